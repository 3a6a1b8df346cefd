// Package orderbook implements C5: the event-sourced L2 book
// projection rebuilt from C3's emitted events, with snapshot
// broadcasting to subscribers — generalized from the teacher's
// internal/trading/market_data projections, which react to the same
// kind of trade/order lifecycle events to maintain a read-side view.
package orderbook

import (
	"sync"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/broadcast"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"go.uber.org/zap"
)

// PriceLevel is one row of a snapshot: the aggregate remaining
// quantity and order count resting at a price.
type PriceLevel struct {
	Price         amount.Amount
	TotalQuantity amount.Amount
	OrderCount    int
}

// Snapshot is the whole-book view C5 broadcasts on every mutating
// transition (§4.5: "snapshots are whole, not diffs").
type Snapshot struct {
	Bids    []PriceLevel // descending by price
	Asks    []PriceLevel // ascending by price
	BestBid *amount.Amount
	BestAsk *amount.Amount
	Spread  *amount.Amount
}

// Reducer rebuilds an in-memory L2 book from the matching engine's
// event stream. It is the single writer during event application; the
// read methods (GetSnapshot, GetBidDepth/GetAskDepth, GetSpread) take
// a brief read lock, per §5's "cooperative multitask ... exclusive
// mutator handle ... readers acquire the same exclusive handle
// briefly".
type Reducer struct {
	mu     sync.RWMutex
	book   *book
	orders map[clobtypes.OrderId]*clobtypes.Order
	hub    *broadcast.Hub[Snapshot]
	logger *zap.Logger
}

// NewReducer creates an empty Reducer whose snapshot hub buffers
// bufferSize messages per subscriber.
func NewReducer(bufferSize int, logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reducer{
		book:   newBook(),
		orders: make(map[clobtypes.OrderId]*clobtypes.Order),
		hub:    broadcast.New[Snapshot](bufferSize, logger),
		logger: logger,
	}
}

// Hub exposes the snapshot broadcast hub for subscribers.
func (r *Reducer) Hub() *broadcast.Hub[Snapshot] { return r.hub }

// Run registers the reducer's transition handlers on bus. Each handler
// runs synchronously on the publisher's goroutine (the in-memory bus's
// dispatch model) and re-broadcasts a fresh snapshot after mutating
// state, matching §4.5's "each mutating transition triggers a snapshot
// broadcast".
func (r *Reducer) Run(bus events.Bus) {
	bus.SubscribeToType("OrderPlaced", func(ev events.Event) { r.onOrderPlaced(ev.(events.OrderPlaced)) })
	bus.SubscribeToType("OrderFilled", func(ev events.Event) { r.onOrderFilled(ev.(events.OrderFilled)) })
	bus.SubscribeToType("OrderPartiallyFilled", func(ev events.Event) { r.onOrderPartiallyFilled(ev.(events.OrderPartiallyFilled)) })
	bus.SubscribeToType("OrderCancelled", func(ev events.Event) { r.onOrderCancelled(ev.(events.OrderCancelled)) })
}

func (r *Reducer) onOrderPlaced(ev events.OrderPlaced) {
	r.mu.Lock()
	r.orders[ev.OrderId] = &clobtypes.Order{
		OrderId: ev.OrderId, Trader: ev.Trader, Side: ev.Side,
		Price: ev.Price, Quantity: ev.Quantity, Status: clobtypes.Open,
	}
	r.book.sideFor(ev.Side).add(ev.OrderId, ev.Price)
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.hub.Publish(snap)
}

func (r *Reducer) onOrderFilled(ev events.OrderFilled) {
	r.mu.Lock()
	if order, ok := r.orders[ev.OrderId]; ok {
		order.FilledQuantity = order.Quantity
		order.Status = clobtypes.Filled
		r.book.sideFor(order.Side).remove(ev.OrderId, order.Price)
		delete(r.orders, ev.OrderId)
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.hub.Publish(snap)
}

func (r *Reducer) onOrderPartiallyFilled(ev events.OrderPartiallyFilled) {
	r.mu.Lock()
	if order, ok := r.orders[ev.OrderId]; ok {
		order.FilledQuantity = ev.FilledQuantity
		// A partial-fill event carrying a zero remaining quantity
		// (filled == quantity) is treated as terminal (§4.5).
		if ev.RemainingQuantity.IsZero() {
			order.Status = clobtypes.Filled
			r.book.sideFor(order.Side).remove(ev.OrderId, order.Price)
			delete(r.orders, ev.OrderId)
		} else {
			order.Status = clobtypes.PartiallyFilled
		}
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.hub.Publish(snap)
}

func (r *Reducer) onOrderCancelled(ev events.OrderCancelled) {
	r.mu.Lock()
	if order, ok := r.orders[ev.OrderId]; ok {
		order.Status = clobtypes.Cancelled
		r.book.sideFor(order.Side).remove(ev.OrderId, order.Price)
		delete(r.orders, ev.OrderId)
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.hub.Publish(snap)
}

// levelsFrom turns level structures into PriceLevel rows, summing each
// resting order's remaining quantity against the live orders map.
func (r *Reducer) levelsFrom(levels []*level) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lv := range levels {
		total := amount.Zero
		count := 0
		for _, id := range lv.orderIds {
			if order, ok := r.orders[id]; ok {
				total = total.Add(order.Remaining())
				count++
			}
		}
		if count == 0 {
			continue
		}
		out = append(out, PriceLevel{Price: lv.price, TotalQuantity: total, OrderCount: count})
	}
	return out
}

func (r *Reducer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Bids: r.levelsFrom(r.book.bids.descending()),
		Asks: r.levelsFrom(r.book.asks.ascending()),
	}
	if bestBid, ok := r.book.bids.best(); ok {
		snap.BestBid = &bestBid
	}
	if bestAsk, ok := r.book.asks.worst(); ok {
		snap.BestAsk = &bestAsk
	}
	if snap.BestBid != nil && snap.BestAsk != nil {
		spread := snap.BestAsk.SaturatingSub(*snap.BestBid)
		snap.Spread = &spread
	}
	return snap
}

// GetSnapshot returns the whole current book (§4.5).
func (r *Reducer) GetSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// GetBidDepth returns the top n bid levels, best price first.
func (r *Reducer) GetBidDepth(n int) []PriceLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	levels := r.levelsFrom(r.book.bids.descending())
	return truncate(levels, n)
}

// GetAskDepth returns the top n ask levels, best price first.
func (r *Reducer) GetAskDepth(n int) []PriceLevel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	levels := r.levelsFrom(r.book.asks.ascending())
	return truncate(levels, n)
}

// GetSpread returns the best bid/ask pair, or ok=false if either side
// is empty.
func (r *Reducer) GetSpread() (bestBid, bestAsk amount.Amount, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, bidOk := r.book.bids.best()
	ask, askOk := r.book.asks.worst()
	if !bidOk || !askOk {
		return amount.Zero, amount.Zero, false
	}
	return bid, ask, true
}

func truncate(levels []PriceLevel, n int) []PriceLevel {
	if n < 0 || n >= len(levels) {
		return levels
	}
	return levels[:n]
}
