package orderbook

import (
	"testing"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReducer(t *testing.T) (*Reducer, *events.InMemoryBus) {
	bus := events.NewInMemoryBus(nil)
	r := NewReducer(8, nil)
	r.Run(bus)
	return r, bus
}

func TestOrderPlacedInsertsLevel(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy,
		Price: amount.New(100), Quantity: amount.New(10),
	}))

	snap := r.GetSnapshot()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, amount.New(100), snap.Bids[0].Price)
	assert.Equal(t, amount.New(10), snap.Bids[0].TotalQuantity)
	assert.Equal(t, 1, snap.Bids[0].OrderCount)
	assert.Empty(t, snap.Asks)
}

func TestOrderFilledRemovesLevel(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Sell,
		Price: amount.New(100), Quantity: amount.New(10),
	}))
	require.NoError(t, bus.Publish(events.OrderFilled{OrderId: 1, Trader: clobtypes.AccountId{1}}))

	snap := r.GetSnapshot()
	assert.Empty(t, snap.Asks)
}

func TestOrderPartiallyFilledUpdatesRemaining(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy,
		Price: amount.New(100), Quantity: amount.New(10),
	}))
	require.NoError(t, bus.Publish(events.OrderPartiallyFilled{
		OrderId: 1, Trader: clobtypes.AccountId{1},
		FilledQuantity: amount.New(4), RemainingQuantity: amount.New(6),
	}))

	snap := r.GetSnapshot()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, amount.New(6), snap.Bids[0].TotalQuantity)
}

func TestOrderCancelledRemovesLevel(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy,
		Price: amount.New(100), Quantity: amount.New(10),
	}))
	require.NoError(t, bus.Publish(events.OrderCancelled{OrderId: 1, Trader: clobtypes.AccountId{1}}))

	snap := r.GetSnapshot()
	assert.Empty(t, snap.Bids)
}

func TestSpreadAndDepthOrdering(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy, Price: amount.New(99), Quantity: amount.New(1)}))
	require.NoError(t, bus.Publish(events.OrderPlaced{OrderId: 2, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy, Price: amount.New(101), Quantity: amount.New(1)}))
	require.NoError(t, bus.Publish(events.OrderPlaced{OrderId: 3, Trader: clobtypes.AccountId{1}, Side: clobtypes.Sell, Price: amount.New(105), Quantity: amount.New(1)}))
	require.NoError(t, bus.Publish(events.OrderPlaced{OrderId: 4, Trader: clobtypes.AccountId{1}, Side: clobtypes.Sell, Price: amount.New(103), Quantity: amount.New(1)}))

	bid, ask, ok := r.GetSpread()
	require.True(t, ok)
	assert.Equal(t, amount.New(101), bid)
	assert.Equal(t, amount.New(103), ask)

	bids := r.GetBidDepth(10)
	require.Len(t, bids, 2)
	assert.Equal(t, amount.New(101), bids[0].Price) // descending
	assert.Equal(t, amount.New(99), bids[1].Price)

	asks := r.GetAskDepth(10)
	require.Len(t, asks, 2)
	assert.Equal(t, amount.New(103), asks[0].Price) // ascending
	assert.Equal(t, amount.New(105), asks[1].Price)
}

func TestSnapshotBroadcastOnEveryMutation(t *testing.T) {
	r, bus := newTestReducer(t)
	_, ch, unsub := r.Hub().Subscribe()
	defer unsub()

	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy,
		Price: amount.New(100), Quantity: amount.New(10),
	}))

	snap := <-ch
	require.Len(t, snap.Bids, 1)
}

func TestGetSpreadFalseWhenOneSideEmpty(t *testing.T) {
	r, bus := newTestReducer(t)
	require.NoError(t, bus.Publish(events.OrderPlaced{
		OrderId: 1, Trader: clobtypes.AccountId{1}, Side: clobtypes.Buy,
		Price: amount.New(100), Quantity: amount.New(10),
	}))
	_, _, ok := r.GetSpread()
	assert.False(t, ok)
}
