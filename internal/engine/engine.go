// Package engine implements the matching engine: admission, the
// cross-matching loop, cancel/modify and the fill-or-kill feasibility
// check. It serializes all book access behind a single mutex.
package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"limitbook/internal/book"
	"limitbook/internal/domain"
)

// Engine owns one single-instrument order book and the lock that
// serializes every operation against it.
type Engine struct {
	mu     sync.Mutex
	book   *book.State
	log    zerolog.Logger
	closed bool
}

// New returns an empty, running engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{
		book: book.NewState(),
		log:  log.With().Str("component", "engine").Logger(),
	}
}

// Add admits order into the book, matching it against the opposite side
// and returning the trades produced. Duplicate ids, unfillable
// FillAndKill/FillOrKill orders and market orders with no opposite-side
// liquidity are admission rejections: they return a nil slice rather than
// an error.
func (e *Engine) Add(order domain.Order) []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(order)
}

func (e *Engine) addLocked(order domain.Order) []domain.Trade {
	if e.closed {
		return nil
	}
	if _, exists := e.book.Lookup(order.ID); exists {
		e.log.Debug().Uint32("id", uint32(order.ID)).Msg("rejected duplicate order id")
		return nil
	}

	switch order.Type {
	case domain.Market:
		touch, ok := e.book.Best(order.Side.Opposite())
		if !ok {
			e.log.Debug().Uint32("id", uint32(order.ID)).Msg("rejected market order: opposite side empty")
			return nil
		}
		order.Type = domain.GoodTillCancel
		order.Price = touch
	case domain.FillAndKill:
		if !e.canTouch(order.Side, order.Price) {
			e.log.Debug().Uint32("id", uint32(order.ID)).Msg("rejected fill-and-kill: no cross available")
			return nil
		}
	case domain.FillOrKill:
		if !e.canFullyFillLocked(order.Side, order.Price, order.Remaining) {
			e.log.Debug().Uint32("id", uint32(order.ID)).Msg("rejected fill-or-kill: cannot be fully filled")
			return nil
		}
	}

	e.book.Insert(&order)
	return e.match()
}

// canTouch reports whether an aggressively-priced order on side could cross
// with the current best price on the opposite side.
func (e *Engine) canTouch(side domain.Side, price domain.Price) bool {
	opp, ok := e.book.Best(side.Opposite())
	if !ok {
		return false
	}
	if side == domain.Buy {
		return opp <= price
	}
	return opp >= price
}

// match drains crossing volume at the top of book until the two sides no
// longer cross, then cancels any residual FillAndKill order left resting at
// the touch on either side.
func (e *Engine) match() []domain.Trade {
	var trades []domain.Trade
	for {
		bidPrice, bidOk := e.book.Best(domain.Buy)
		askPrice, askOk := e.book.Best(domain.Sell)
		if !bidOk || !askOk || bidPrice < askPrice {
			break
		}

		bid, _ := e.book.HeadOrder(domain.Buy, bidPrice)
		ask, _ := e.book.HeadOrder(domain.Sell, askPrice)

		qty := min(bid.Remaining, ask.Remaining)
		bid.Fill(qty)
		ask.Fill(qty)

		trades = append(trades, domain.NewTrade(
			domain.TradeLeg{OrderID: bid.ID, Price: bid.Price, Quantity: qty},
			domain.TradeLeg{OrderID: ask.ID, Price: ask.Price, Quantity: qty},
		))

		if bid.Filled() {
			e.book.RetireFilled(bid.ID, qty)
		} else {
			e.book.Match(bid.Price, qty)
		}
		if ask.Filled() {
			e.book.RetireFilled(ask.ID, qty)
		} else {
			e.book.Match(ask.Price, qty)
		}
	}

	e.cancelDanglingFillAndKill(domain.Buy)
	e.cancelDanglingFillAndKill(domain.Sell)

	return trades
}

// cancelDanglingFillAndKill cancels the order resting at the touch on side
// if it is a FillAndKill order that failed to fully match during its
// arrival wave.
func (e *Engine) cancelDanglingFillAndKill(side domain.Side) {
	price, ok := e.book.Best(side)
	if !ok {
		return
	}
	head, ok := e.book.HeadOrder(side, price)
	if !ok || head.Type != domain.FillAndKill {
		return
	}
	e.book.Cancel(head.ID)
}

// Cancel removes an order from the book. Cancelling an unknown id is a
// no-op, which keeps it safe to race against the expiry task's snapshot.
func (e *Engine) Cancel(id domain.OrderId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked(id)
}

func (e *Engine) cancelLocked(id domain.OrderId) {
	if e.closed {
		return
	}
	e.book.Cancel(id)
}

// BulkCancel cancels every id under a single lock acquisition.
func (e *Engine) BulkCancel(ids []domain.OrderId) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		e.cancelLocked(id)
	}
}

// Modify is cancel-then-add: it preserves the order's id and type but
// forfeits its place in the FIFO queue, even for a same-price requeue.
func (e *Engine) Modify(id domain.OrderId, side domain.Side, price domain.Price, quantity domain.Quantity) []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	existing, ok := e.book.Lookup(id)
	if !ok {
		return nil
	}
	orderType := existing.Type

	e.cancelLocked(id)
	return e.addLocked(domain.NewOrder(id, side, orderType, price, quantity))
}

// Size is the number of live orders in the book.
func (e *Engine) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Size()
}

// OrderInfos is the read-only snapshot returned by GetOrderInfos.
type OrderInfos struct {
	Bids []book.LevelInfo
	Asks []book.LevelInfo
}

// GetOrderInfos snapshots both ladders under the book's serialization
// scope: bids descending by price, asks ascending.
func (e *Engine) GetOrderInfos() OrderInfos {
	e.mu.Lock()
	defer e.mu.Unlock()
	return OrderInfos{
		Bids: e.book.Snapshot(domain.Buy),
		Asks: e.book.Snapshot(domain.Sell),
	}
}

// CanFullyFill reports whether a prospective order of side, limit price and
// quantity could be completely matched against the resting book as it
// stands right now.
func (e *Engine) CanFullyFill(side domain.Side, price domain.Price, quantity domain.Quantity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canFullyFillLocked(side, price, quantity)
}

func (e *Engine) canFullyFillLocked(side domain.Side, price domain.Price, quantity domain.Quantity) bool {
	opposite := side.Opposite()
	remaining := quantity
	filled := false

	e.book.WalkLevels(opposite, func(levelPrice domain.Price, aggregate domain.Quantity) bool {
		if side == domain.Buy && levelPrice > price {
			return false
		}
		if side == domain.Sell && levelPrice < price {
			return false
		}
		if remaining <= aggregate {
			filled = true
			return false
		}
		remaining -= aggregate
		return true
	})

	return filled
}

// GoodForDayOrderIDs lists, under the book's serialization scope, every
// order currently resting with type GoodForDay. It is the first half of the
// expiry task's two-phase prune.
func (e *Engine) GoodForDayOrderIDs() []domain.OrderId {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []domain.OrderId
	e.book.Each(func(order *domain.Order) {
		if order.Type == domain.GoodForDay {
			ids = append(ids, order.ID)
		}
	})
	return ids
}

// Close marks the engine as shut down: further Add/Cancel/Modify calls
// become no-ops that return without mutating state. It does not touch any
// background task; callers that started one with expiry.New are
// responsible for stopping it (see cmd/main.go for the ordering).
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}
