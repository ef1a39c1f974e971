package domain

import "fmt"

// Order is the mutable per-order state tracked by the book. Once Remaining
// reaches zero the order is retired and must not appear in any queue.
type Order struct {
	ID        OrderId
	Side      Side
	Type      OrderType
	Price     Price
	Initial   Quantity
	Remaining Quantity
}

// NewOrder builds a freshly admitted order: remaining starts equal to the
// requested quantity.
func NewOrder(id OrderId, side Side, orderType OrderType, price Price, quantity Quantity) Order {
	return Order{
		ID:        id,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Initial:   quantity,
		Remaining: quantity,
	}
}

// Filled reports whether the order has no quantity left to trade.
func (o *Order) Filled() bool {
	return o.Remaining == 0
}

// Fill reduces the order's remaining quantity by qty. Asking to fill more
// than remains is a programmer error, not an admission rejection: it leaves
// the order (and by extension the book) in an undefined state, so it panics
// rather than returning an error that could be silently ignored.
func (o *Order) Fill(qty Quantity) {
	if qty > o.Remaining {
		panic(&InvariantViolation{OrderID: o.ID, Requested: qty, Remaining: o.Remaining})
	}
	o.Remaining -= qty
}

// InvariantViolation signals that the book has been driven into a state the
// matching engine's invariants say cannot happen. Recovering from it is not
// attempted anywhere in this package; once raised, the engine that raised it
// should be considered poisoned.
type InvariantViolation struct {
	OrderID   OrderId
	Requested Quantity
	Remaining Quantity
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("order %d: fill of %d exceeds remaining %d", e.OrderID, e.Requested, e.Remaining)
}
