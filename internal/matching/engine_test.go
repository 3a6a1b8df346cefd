package matching

import (
	"testing"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/abdoElHodaky/clobchain/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(b byte) clobtypes.AccountId {
	var id clobtypes.AccountId
	id[0] = b
	return id
}

// testRig bundles an Engine with a ledger it settles through and a
// private order-id counter, mimicking what chain.Host provides in
// production without pulling that package in as a test dependency.
type testRig struct {
	t       *testing.T
	ledger  *ledger.Ledger
	engine  *Engine
	nextId  clobtypes.OrderId
}

func newRig(t *testing.T) *testRig {
	l := ledger.New(events.NewInMemoryBus(nil), nil)
	return &testRig{t: t, ledger: l, engine: New(l, events.NewInMemoryBus(nil), nil)}
}

func (r *testRig) deposit(acc clobtypes.AccountId, asset clobtypes.AssetId, amt int64) {
	require.NoError(r.t, r.ledger.Deposit(acc, asset, amount.New(amt)))
}

func (r *testRig) place(trader clobtypes.AccountId, side clobtypes.OrderSide, price, qty int64) clobtypes.OrderId {
	r.nextId++
	id := r.nextId
	p := amount.New(price)
	q := amount.New(qty)
	lockAmt, err := LockAmountFor(side, p, q)
	require.NoError(r.t, err)
	asset := clobtypes.AssetQuote
	if side == clobtypes.Sell {
		asset = clobtypes.AssetBase
	}
	require.NoError(r.t, r.ledger.Lock(trader, asset, lockAmt))

	order := &clobtypes.Order{
		OrderId: id, Trader: trader, Side: side, OrderType: clobtypes.Limit,
		Price: p, Quantity: q, Status: clobtypes.Open,
	}
	r.engine.PutOrder(order)
	return id
}

func TestS1ExactCross(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	buyId := r.place(alice, clobtypes.Buy, 100, 10)
	sellId := r.place(bob, clobtypes.Sell, 100, 10)

	result := r.engine.FinalizeBlock()

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Less(t, uint64(buyId), uint64(sellId))
	assert.Equal(t, amount.New(100), trade.Price)
	assert.Equal(t, amount.New(10), trade.Quantity)

	assert.Equal(t, amount.New(9_000), r.ledger.Free(alice, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(10), r.ledger.Free(alice, clobtypes.AssetBase))
	assert.True(t, r.ledger.Locked(alice, clobtypes.AssetQuote).IsZero())

	assert.Equal(t, amount.New(1_000), r.ledger.Free(bob, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(90), r.ledger.Free(bob, clobtypes.AssetBase))
	assert.True(t, r.ledger.Locked(bob, clobtypes.AssetBase).IsZero())

	_, aliceStillOpen := r.engine.Order(buyId)
	_, bobStillOpen := r.engine.Order(sellId)
	assert.False(t, aliceStillOpen, "filled order should be removed from the arena")
	assert.False(t, bobStillOpen)
}

func TestS2PartialCrossMakerRemains(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	buyId := r.place(alice, clobtypes.Buy, 100, 10)
	r.place(bob, clobtypes.Sell, 100, 5)

	result := r.engine.FinalizeBlock()
	require.Len(t, result.Trades, 1)
	assert.Equal(t, amount.New(5), result.Trades[0].Quantity)

	aliceOrder, ok := r.engine.Order(buyId)
	require.True(t, ok)
	assert.Equal(t, clobtypes.PartiallyFilled, aliceOrder.Status)
	assert.Equal(t, amount.New(5), aliceOrder.FilledQuantity)

	assert.Equal(t, amount.New(500), r.ledger.Locked(alice, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(9_000), r.ledger.Free(alice, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(5), r.ledger.Free(alice, clobtypes.AssetBase))

	assert.Equal(t, amount.New(500), r.ledger.Free(bob, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(95), r.ledger.Free(bob, clobtypes.AssetBase))
}

func TestS3PriceTimePriority(t *testing.T) {
	r := newRig(t)
	alice, bob, charlie := account(1), account(2), account(3)
	r.deposit(alice, clobtypes.AssetBase, 100)
	r.deposit(bob, clobtypes.AssetBase, 100)
	r.deposit(charlie, clobtypes.AssetQuote, 10_000)

	r.place(alice, clobtypes.Sell, 100, 5)
	bobId := r.place(bob, clobtypes.Sell, 100, 5)
	r.place(charlie, clobtypes.Buy, 100, 5)

	result := r.engine.FinalizeBlock()
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Seller.Equal(alice))

	bobOrder, ok := r.engine.Order(bobId)
	require.True(t, ok)
	assert.Equal(t, clobtypes.Open, bobOrder.Status)
	assert.Equal(t, amount.New(5), r.ledger.Locked(bob, clobtypes.AssetBase))
}

func TestS4NoCrossSpread(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	buyId := r.place(alice, clobtypes.Buy, 95, 10)
	sellId := r.place(bob, clobtypes.Sell, 105, 10)

	result := r.engine.FinalizeBlock()
	assert.Empty(t, result.Trades)

	aliceOrder, _ := r.engine.Order(buyId)
	bobOrder, _ := r.engine.Order(sellId)
	assert.Equal(t, clobtypes.Open, aliceOrder.Status)
	assert.Equal(t, clobtypes.Open, bobOrder.Status)
	assert.Equal(t, amount.New(950), r.ledger.Locked(alice, clobtypes.AssetQuote))
	assert.Equal(t, amount.New(10), r.ledger.Locked(bob, clobtypes.AssetBase))
}

func TestS5MultipleMakersOneSweep(t *testing.T) {
	r := newRig(t)
	alice, bob, charlie := account(1), account(2), account(3)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)
	r.deposit(charlie, clobtypes.AssetBase, 100)

	buyId := r.place(alice, clobtypes.Buy, 100, 20)
	r.place(bob, clobtypes.Sell, 100, 10)
	r.place(charlie, clobtypes.Sell, 100, 10)

	result := r.engine.FinalizeBlock()
	require.Len(t, result.Trades, 2)

	_, stillOpen := r.engine.Order(buyId)
	assert.False(t, stillOpen)
	assert.Equal(t, amount.New(20), r.ledger.Free(alice, clobtypes.AssetBase))
	assert.Equal(t, amount.New(8_000), r.ledger.Free(alice, clobtypes.AssetQuote))
}

func TestS6CancellationUnlocks(t *testing.T) {
	r := newRig(t)
	alice := account(1)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)

	buyId := r.place(alice, clobtypes.Buy, 100, 10)
	r.engine.EnqueueCancellation(buyId)

	result := r.engine.FinalizeBlock()
	require.Len(t, result.Cancelled, 1)
	assert.Empty(t, result.Trades)

	assert.Equal(t, amount.New(10_000), r.ledger.Free(alice, clobtypes.AssetQuote))
	assert.True(t, r.ledger.Locked(alice, clobtypes.AssetQuote).IsZero())
	assert.True(t, r.engine.pending.Bids.Empty())
}

func TestMarketBuyConsumesBestAsks(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	r.place(bob, clobtypes.Sell, 100, 10)

	r.nextId++
	id := r.nextId
	bound := amount.New(150) // caller-supplied bound used only for lock sizing
	lockAmt, err := LockAmountFor(clobtypes.Buy, bound, amount.New(10))
	require.NoError(t, err)
	require.NoError(t, r.ledger.Lock(alice, clobtypes.AssetQuote, lockAmt))
	order := &clobtypes.Order{
		OrderId: id, Trader: alice, Side: clobtypes.Buy, OrderType: clobtypes.Market,
		Price: bound, Quantity: amount.New(10), Status: clobtypes.Open,
	}
	r.engine.PutOrder(order)

	result := r.engine.FinalizeBlock()
	require.Len(t, result.Trades, 1)
	assert.Equal(t, amount.New(100), result.Trades[0].Price)
	// the market order locked at 150/unit but traded at 100/unit: the
	// 50*10 = 500 residual must come back to alice's free quote.
	assert.Equal(t, amount.New(9_500), r.ledger.Free(alice, clobtypes.AssetQuote))
	assert.True(t, r.ledger.Locked(alice, clobtypes.AssetQuote).IsZero())
}

func TestSelfTradePrevention(t *testing.T) {
	r := newRig(t)
	alice := account(1)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(alice, clobtypes.AssetBase, 100)

	sellId := r.place(alice, clobtypes.Sell, 100, 10)
	buyId := r.place(alice, clobtypes.Buy, 100, 10)

	result := r.engine.FinalizeBlock()
	assert.Empty(t, result.Trades)

	sellOrder, ok := r.engine.Order(sellId)
	require.True(t, ok)
	assert.Equal(t, clobtypes.Open, sellOrder.Status)
	buyOrder, ok := r.engine.Order(buyId)
	require.True(t, ok)
	assert.Equal(t, clobtypes.Open, buyOrder.Status)
}

func TestCancellationRacingPartialFillSameBlock(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	buyId := r.place(alice, clobtypes.Buy, 100, 10)
	r.place(bob, clobtypes.Sell, 100, 4)
	// Cancellation is queued in the same block as the crossing order;
	// Phase A runs before Phase B/C, so the order is already Cancelled
	// and matchTaker's IsTerminal guard skips it — cancelling pre-empts
	// same-block matching entirely.
	r.engine.EnqueueCancellation(buyId)

	result := r.engine.FinalizeBlock()
	assert.Empty(t, result.Trades)
	require.Len(t, result.Cancelled, 1)
	assert.Equal(t, amount.New(10), result.Cancelled[0].Remaining)
	assert.Equal(t, amount.New(10_000), r.ledger.Free(alice, clobtypes.AssetQuote))
}

func TestDeterminismAcrossTwoIdenticalRuns(t *testing.T) {
	run := func() []*clobtypes.Trade {
		r := newRig(t)
		alice, bob, charlie := account(1), account(2), account(3)
		r.deposit(alice, clobtypes.AssetQuote, 10_000)
		r.deposit(bob, clobtypes.AssetBase, 100)
		r.deposit(charlie, clobtypes.AssetBase, 100)

		r.place(alice, clobtypes.Buy, 100, 20)
		r.place(bob, clobtypes.Sell, 100, 10)
		r.place(charlie, clobtypes.Sell, 100, 10)

		return r.engine.FinalizeBlock().Trades
	}

	first := run()
	second := run()
	require.Len(t, first, len(second))
	for i := range first {
		assert.Equal(t, first[i].Price, second[i].Price)
		assert.Equal(t, first[i].Quantity, second[i].Quantity)
		assert.Equal(t, first[i].TradeId, second[i].TradeId)
	}
}

func TestNoCrossedBookAfterFinalize(t *testing.T) {
	r := newRig(t)
	alice, bob := account(1), account(2)
	r.deposit(alice, clobtypes.AssetQuote, 10_000)
	r.deposit(bob, clobtypes.AssetBase, 100)

	r.place(alice, clobtypes.Buy, 90, 10)
	r.place(bob, clobtypes.Sell, 95, 10)
	r.engine.FinalizeBlock()

	bestBid, hasBid := r.engine.persistent.Bids.BestBid()
	bestAsk, hasAsk := r.engine.persistent.Asks.BestAsk()
	if hasBid && hasAsk {
		assert.True(t, bestBid.LessThan(bestAsk))
	}
}
