package book

import (
	"container/list"

	"limitbook/internal/domain"
)

// Handle addresses a single order's position within its level queue. It
// remains valid until the order is removed, giving O(1) removal without an
// intrusive reference count on the order itself.
type Handle = *list.Element

// PriceLevel is the FIFO queue of orders resting at one (side, price). All
// orders in a level share side and price; the level is dropped from its
// ladder the instant the queue empties.
type PriceLevel struct {
	Price  domain.Price
	orders *list.List
}

func newPriceLevel(price domain.Price) *PriceLevel {
	return &PriceLevel{Price: price, orders: list.New()}
}

// Len reports the number of orders resting at this level.
func (pl *PriceLevel) Len() int {
	return pl.orders.Len()
}

func (pl *PriceLevel) pushBack(order *domain.Order) Handle {
	return pl.orders.PushBack(order)
}

func (pl *PriceLevel) front() (*domain.Order, bool) {
	e := pl.orders.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*domain.Order), true
}

func (pl *PriceLevel) remove(handle Handle) {
	pl.orders.Remove(handle)
}
