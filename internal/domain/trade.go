package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// TradeLeg is one side of a match, priced at the price held by that leg's
// own order; for the aggressor's leg this is its limit, so the two legs of
// one trade can carry different prices.
type TradeLeg struct {
	OrderID  OrderId
	Price    Price
	Quantity Quantity
}

func (l TradeLeg) String() string {
	return fmt.Sprintf("{order=%d price=%d qty=%d}", l.OrderID, l.Price, l.Quantity)
}

// Trade is an immutable tape entry produced by the matching loop. It carries
// no back-reference to the orders that produced it and no wall-clock
// timestamp: the engine's only dependency on the surrounding environment is
// the clock used by the expiry task.
type Trade struct {
	ID  uuid.UUID
	Bid TradeLeg
	Ask TradeLeg
}

// NewTrade stamps a trade with a fresh correlation id.
func NewTrade(bid, ask TradeLeg) Trade {
	return Trade{ID: uuid.New(), Bid: bid, Ask: ask}
}

func (t Trade) String() string {
	return fmt.Sprintf("trade %s: bid=%s ask=%s", t.ID, t.Bid, t.Ask)
}
