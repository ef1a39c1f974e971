package engine_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limitbook/internal/book"
	"limitbook/internal/domain"
	"limitbook/internal/engine"
)

func newEngine() *engine.Engine {
	return engine.New(zerolog.Nop())
}

func add(t *testing.T, e *engine.Engine, id domain.OrderId, side domain.Side, typ domain.OrderType, price domain.Price, qty domain.Quantity) []domain.Trade {
	t.Helper()
	return e.Add(domain.NewOrder(id, side, typ, price, qty))
}

func levels(infos []book.LevelInfo) []book.LevelInfo {
	if infos == nil {
		return []book.LevelInfo{}
	}
	return infos
}

// S1: empty book, single resting GTC order.
func TestScenario_RestingOrder(t *testing.T) {
	e := newEngine()

	trades := add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)
	assert.Empty(t, trades)
	assert.Equal(t, 1, e.Size())

	infos := e.GetOrderInfos()
	assert.Equal(t, []book.LevelInfo{{Price: 100, Quantity: 10}}, levels(infos.Bids))
	assert.Empty(t, infos.Asks)
}

// S2: add then cancel leaves the book empty (round-trip law).
func TestScenario_AddThenCancel(t *testing.T) {
	e := newEngine()

	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)
	e.Cancel(1)

	assert.Equal(t, 0, e.Size())
	infos := e.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Empty(t, infos.Asks)
}

// S3: a crossing sell partially fills the resting buy.
func TestScenario_PartialFill(t *testing.T) {
	e := newEngine()

	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)
	trades := add(t, e, 2, domain.Sell, domain.GoodTillCancel, 100, 4)

	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeLeg{OrderID: 1, Price: 100, Quantity: 4}, trades[0].Bid)
	assert.Equal(t, domain.TradeLeg{OrderID: 2, Price: 100, Quantity: 4}, trades[0].Ask)

	assert.Equal(t, 1, e.Size())
	infos := e.GetOrderInfos()
	assert.Equal(t, []book.LevelInfo{{Price: 100, Quantity: 6}}, levels(infos.Bids))
	assert.Empty(t, infos.Asks)
}

// S4: FillAndKill sweeps two resting orders in FIFO order, leaving the
// aggressor fully consumed and the second resting order partially filled.
func TestScenario_FillAndKillSweep(t *testing.T) {
	e := newEngine()

	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 5)
	add(t, e, 2, domain.Buy, domain.GoodTillCancel, 100, 5)
	trades := add(t, e, 3, domain.Sell, domain.FillAndKill, 100, 8)

	require.Len(t, trades, 2)
	assert.Equal(t, domain.OrderId(1), trades[0].Bid.OrderID)
	assert.Equal(t, domain.Quantity(5), trades[0].Bid.Quantity)
	assert.Equal(t, domain.OrderId(2), trades[1].Bid.OrderID)
	assert.Equal(t, domain.Quantity(3), trades[1].Bid.Quantity)

	assert.Equal(t, 1, e.Size())
	infos := e.GetOrderInfos()
	assert.Equal(t, []book.LevelInfo{{Price: 100, Quantity: 2}}, levels(infos.Bids))
	assert.Empty(t, infos.Asks)
}

// S5: FillOrKill with insufficient depth at the limit is rejected outright.
func TestScenario_FillOrKillRejected(t *testing.T) {
	e := newEngine()

	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 101, 5)
	trades := add(t, e, 2, domain.Buy, domain.FillOrKill, 101, 10)

	assert.Empty(t, trades)
	assert.Equal(t, 1, e.Size())
	infos := e.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Equal(t, []book.LevelInfo{{Price: 101, Quantity: 5}}, levels(infos.Asks))
}

// S6: FillOrKill accepted because two levels together cover the quantity.
func TestScenario_FillOrKillAcceptedAcrossLevels(t *testing.T) {
	e := newEngine()

	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 101, 5)
	add(t, e, 2, domain.Sell, domain.GoodTillCancel, 102, 5)
	trades := add(t, e, 3, domain.Buy, domain.FillOrKill, 102, 10)

	require.Len(t, trades, 2)
	assert.Equal(t, domain.Price(101), trades[0].Ask.Price)
	assert.Equal(t, domain.Price(102), trades[1].Ask.Price)

	assert.Equal(t, 0, e.Size())
	infos := e.GetOrderInfos()
	assert.Empty(t, infos.Bids)
	assert.Empty(t, infos.Asks)
}

func TestCancel_UnknownIDIsNoOp(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)

	e.Cancel(999)

	assert.Equal(t, 1, e.Size())
}

func TestCancel_Idempotent(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)

	e.Cancel(1)
	e.Cancel(1)

	assert.Equal(t, 0, e.Size())
}

func TestAdd_DuplicateIDIsRejected(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)

	trades := add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)

	assert.Empty(t, trades)
	assert.Equal(t, 1, e.Size())
}

func TestAdd_MarketOrderRewritesToTouch(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 101, 5)

	trades := add(t, e, 2, domain.Buy, domain.Market, domain.InvalidPrice, 5)

	require.Len(t, trades, 1)
	assert.Equal(t, domain.Price(101), trades[0].Bid.Price)
	assert.Equal(t, 0, e.Size())
}

func TestAdd_MarketOrderRejectedWhenOppositeSideEmpty(t *testing.T) {
	e := newEngine()

	trades := add(t, e, 1, domain.Buy, domain.Market, domain.InvalidPrice, 5)

	assert.Empty(t, trades)
	assert.Equal(t, 0, e.Size())
}

func TestAdd_FillAndKillRejectedWhenNoCross(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 105, 5)

	trades := add(t, e, 2, domain.Buy, domain.FillAndKill, 100, 5)

	assert.Empty(t, trades)
	// The rejected order never touched the book; the resting sell is untouched.
	assert.Equal(t, 1, e.Size())
}

// F&K residue law: after Add returns, no FillAndKill order is left resting.
func TestLaw_FillAndKillNeverRests(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 100, 3)

	add(t, e, 2, domain.Buy, domain.FillAndKill, 100, 10)

	assert.Equal(t, 0, e.Size())
}

func TestModify_PreservesTypeAndID(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodForDay, 100, 10)

	trades := e.Modify(1, domain.Buy, 99, 20)

	assert.Empty(t, trades)
	ids := e.GoodForDayOrderIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, domain.OrderId(1), ids[0])

	infos := e.GetOrderInfos()
	assert.Equal(t, []book.LevelInfo{{Price: 99, Quantity: 20}}, levels(infos.Bids))
}

func TestModify_UnknownIDIsNoOp(t *testing.T) {
	e := newEngine()
	trades := e.Modify(42, domain.Buy, 100, 10)
	assert.Empty(t, trades)
	assert.Equal(t, 0, e.Size())
}

func TestModify_LosesQueuePriority(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 5)
	add(t, e, 2, domain.Buy, domain.GoodTillCancel, 100, 5)

	// Order 1 requeues at the same price: it now sits behind order 2.
	e.Modify(1, domain.Buy, 100, 5)

	trades := add(t, e, 3, domain.Sell, domain.GoodTillCancel, 100, 5)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.OrderId(2), trades[0].Bid.OrderID)
}

func TestCanFullyFill(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Sell, domain.GoodTillCancel, 101, 5)
	add(t, e, 2, domain.Sell, domain.GoodTillCancel, 102, 5)

	assert.True(t, e.CanFullyFill(domain.Buy, 102, 10))
	assert.False(t, e.CanFullyFill(domain.Buy, 101, 10))
	assert.False(t, e.CanFullyFill(domain.Buy, 100, 1))
}

func TestClose_RejectsFurtherOperations(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 100, 10)

	e.Close()

	trades := add(t, e, 2, domain.Sell, domain.GoodTillCancel, 100, 10)
	assert.Empty(t, trades)
	assert.Equal(t, 1, e.Size())

	e.Cancel(1)
	assert.Equal(t, 1, e.Size(), "cancel after close must not mutate state")
}

// Invariant: best bid is always strictly below best ask once matching
// returns, including after an insert that crosses the spread.
func TestInvariant_BookNeverRestsCrossed(t *testing.T) {
	e := newEngine()
	add(t, e, 1, domain.Buy, domain.GoodTillCancel, 99, 10)
	add(t, e, 2, domain.Sell, domain.GoodTillCancel, 101, 10)
	add(t, e, 3, domain.Buy, domain.GoodTillCancel, 100, 5)
	add(t, e, 4, domain.Sell, domain.GoodTillCancel, 100, 3)

	infos := e.GetOrderInfos()
	if len(infos.Bids) > 0 && len(infos.Asks) > 0 {
		assert.Less(t, infos.Bids[0].Price, infos.Asks[0].Price)
	}
}
