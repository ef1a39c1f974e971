// Package book holds the dual-sided price ladder, the per-level FIFO
// queues, the order-id index and the cached level statistics that back the
// matching engine. None of it is safe for concurrent use on its own; the
// engine package serializes access with a single lock.
package book

import (
	"github.com/tidwall/btree"

	"limitbook/internal/domain"
)

// LevelInfo is a read-only snapshot of one price level's aggregate
// remaining quantity, as returned by Snapshot.
type LevelInfo struct {
	Price    domain.Price
	Quantity domain.Quantity
}

type indexEntry struct {
	order  *domain.Order
	handle Handle
	level  *PriceLevel
	side   domain.Side
}

// State is the book: two price ladders, the id index, and the level
// statistics. Bids are ordered highest price first, asks lowest price
// first, so best-of-book is always the ladder's minimum in btree's terms.
type State struct {
	bids  *btree.BTreeG[*PriceLevel]
	asks  *btree.BTreeG[*PriceLevel]
	index map[domain.OrderId]*indexEntry
	stats map[domain.Price]*levelStat
}

// NewState returns an empty book.
func NewState() *State {
	return &State{
		bids: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price > b.Price
		}),
		asks: btree.NewBTreeG(func(a, b *PriceLevel) bool {
			return a.Price < b.Price
		}),
		index: make(map[domain.OrderId]*indexEntry),
		stats: make(map[domain.Price]*levelStat),
	}
}

func (s *State) ladder(side domain.Side) *btree.BTreeG[*PriceLevel] {
	if side == domain.Buy {
		return s.bids
	}
	return s.asks
}

// Best returns the touch price on side, i.e. the highest bid or the lowest
// ask.
func (s *State) Best(side domain.Side) (domain.Price, bool) {
	pl, ok := s.ladder(side).Min()
	if !ok {
		return 0, false
	}
	return pl.Price, true
}

// Lookup resolves an order by id.
func (s *State) Lookup(id domain.OrderId) (*domain.Order, bool) {
	e, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return e.order, true
}

// HeadOrder peeks the earliest-arriving order at (side, price) without
// removing it.
func (s *State) HeadOrder(side domain.Side, price domain.Price) (*domain.Order, bool) {
	pl, ok := s.ladder(side).Get(&PriceLevel{Price: price})
	if !ok {
		return nil, false
	}
	return pl.front()
}

// Insert appends order to the tail of its (side, price) queue, creating the
// level if necessary, registers it in the index and applies an Add
// statistics update.
func (s *State) Insert(order *domain.Order) {
	ladder := s.ladder(order.Side)
	pl, ok := ladder.Get(&PriceLevel{Price: order.Price})
	if !ok {
		pl = newPriceLevel(order.Price)
		ladder.Set(pl)
	}
	handle := pl.pushBack(order)
	s.index[order.ID] = &indexEntry{order: order, handle: handle, level: pl, side: order.Side}
	s.applyStat(order.Price, StatAdd, order.Remaining)
}

// PopByID removes an order from its queue, the ladder (if the level is now
// empty) and the index, returning it. It does not touch the level
// statistics: callers pick the right StatAction for why the order left.
func (s *State) PopByID(id domain.OrderId) (*domain.Order, bool) {
	e, ok := s.index[id]
	if !ok {
		return nil, false
	}
	e.level.remove(e.handle)
	delete(s.index, id)
	if e.level.Len() == 0 {
		s.ladder(e.side).Delete(&PriceLevel{Price: e.order.Price})
	}
	return e.order, true
}

// Cancel removes an order and accounts for its remaining quantity leaving
// the book. A no-op (returns false) if the order is not present.
func (s *State) Cancel(id domain.OrderId) bool {
	order, ok := s.PopByID(id)
	if !ok {
		return false
	}
	s.applyStat(order.Price, StatRemove, order.Remaining)
	return true
}

// RetireFilled removes an order that has just been driven to zero remaining
// quantity by the matching loop. qty is the quantity it held immediately
// before the fill that emptied it, i.e. the quantity leaving the level's
// aggregate along with the order itself.
func (s *State) RetireFilled(id domain.OrderId, qty domain.Quantity) {
	order, ok := s.PopByID(id)
	if !ok {
		return
	}
	s.applyStat(order.Price, StatRemove, qty)
}

// Match records a partial fill at price: the order stays resting, only the
// cached aggregate shrinks.
func (s *State) Match(price domain.Price, qty domain.Quantity) {
	s.applyStat(price, StatMatch, qty)
}

// Size is the number of live orders in the index.
func (s *State) Size() int {
	return len(s.index)
}

// Each visits every live order in the book. Order of visitation is
// unspecified.
func (s *State) Each(fn func(order *domain.Order)) {
	for _, e := range s.index {
		fn(e.order)
	}
}

// WalkLevels visits side's levels from best to worst, calling fn with each
// level's price and cached aggregate remaining quantity. Iteration stops
// early if fn returns false.
func (s *State) WalkLevels(side domain.Side, fn func(price domain.Price, aggregate domain.Quantity) bool) {
	s.ladder(side).Scan(func(pl *PriceLevel) bool {
		st := s.stats[pl.Price]
		var qty domain.Quantity
		if st != nil {
			qty = st.aggregate
		}
		return fn(pl.Price, qty)
	})
}

// Snapshot returns {price, aggregate_remaining_qty} pairs for side, ordered
// best price first (descending for bids, ascending for asks).
func (s *State) Snapshot(side domain.Side) []LevelInfo {
	var out []LevelInfo
	s.WalkLevels(side, func(price domain.Price, qty domain.Quantity) bool {
		out = append(out, LevelInfo{Price: price, Quantity: qty})
		return true
	})
	return out
}
