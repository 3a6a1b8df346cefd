package matching

import (
	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/abdoElHodaky/clobchain/internal/ledger"
	clobErrors "github.com/abdoElHodaky/clobchain/pkg/errors"
	"go.uber.org/zap"
)

// Engine is the stateful wrapper around the pure Finalize function: it
// owns the live pending/persistent books and order arena, and knows
// how to turn a Result into ledger settlement and published events.
// chain.Host is the only expected caller — it serializes intake and
// drives FinalizeBlock once per block, matching §5's single-writer
// model.
type Engine struct {
	ledger *ledger.Ledger
	bus    events.Bus
	logger *zap.Logger

	pending       *Book
	persistent    *Book
	orders        map[clobtypes.OrderId]*clobtypes.Order
	cancellations []clobtypes.OrderId
	nextTradeId   clobtypes.TradeId
}

// New creates an empty Engine settling through ledger and publishing
// onto bus.
func New(ledger *ledger.Ledger, bus events.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:     ledger,
		bus:        bus,
		logger:     logger,
		pending:    NewBook(),
		persistent: NewBook(),
		orders:     make(map[clobtypes.OrderId]*clobtypes.Order),
	}
}

// Order returns the live order record for id, for chain.Host's
// cancel_order lookups.
func (e *Engine) Order(id clobtypes.OrderId) (*clobtypes.Order, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// PutOrder registers a newly-intaken order in the arena and queues it
// in the pending book at its own price. Called by chain.Host after it
// has already locked funds via the ledger.
func (e *Engine) PutOrder(order *clobtypes.Order) {
	e.orders[order.OrderId] = order
	e.pending.SideFor(order.Side).Add(order.OrderId, order.Price)
}

// EnqueueCancellation queues id for processing at the next Phase A.
func (e *Engine) EnqueueCancellation(id clobtypes.OrderId) {
	e.cancellations = append(e.cancellations, id)
}

// PendingOrderCount reports how many orders are currently resting in
// the pending book, for chain.Host's TooManyPendingOrders check.
func (e *Engine) PendingOrderCount() int {
	count := 0
	for _, lvl := range e.pending.Bids.SnapshotAscending() {
		count += len(lvl.OrderIds)
	}
	for _, lvl := range e.pending.Asks.SnapshotAscending() {
		count += len(lvl.OrderIds)
	}
	return count
}

// PendingCancellationCount reports the size of the queued cancellation
// list, for chain.Host's TooManyPendingCancellations check.
func (e *Engine) PendingCancellationCount() int { return len(e.cancellations) }

// FinalizeBlock runs Finalize over the engine's live state, settles
// every trade and cancellation residual through the ledger, publishes
// the resulting events, and resets pending state for the next block
// (Phase D/E of §4.3).
func (e *Engine) FinalizeBlock() Result {
	state := State{
		Pending:       e.pending,
		Persistent:    e.persistent,
		Cancellations: e.cancellations,
		Orders:        e.orders,
		NextTradeId:   e.nextTradeId,
	}

	result := Finalize(state)

	for _, trade := range result.Trades {
		e.settleTrade(trade)
	}

	for _, c := range result.Cancelled {
		e.settleCancellation(c)
	}

	for _, id := range result.Touched {
		e.emitFillEvent(id)
	}

	e.publish(events.MatchingCompleted{
		TotalTrades: len(result.Trades),
		TotalVolume: result.TotalVolume,
	})

	e.persistent = result.Persistent
	e.orders = result.Orders
	e.nextTradeId = result.NextTradeId
	e.pending = NewBook()
	e.cancellations = nil

	return result
}

// settleTrade moves locked funds across the two counterparties and
// unlocks the buyer's over-locked quote residual (Open Question 1): the
// buy order may have locked quantity*reference_price at intake, but the
// trade executes at the maker's (generally lower, for a buy taker)
// price, leaving the difference still locked in the buyer's account.
//
// Per §7, a settlement failure here is logged and the batch continues
// rather than halting finalize — it should be unreachable given the
// lock invariants, so surfacing it loudly in the log is the point.
func (e *Engine) settleTrade(trade *clobtypes.Trade) {
	value := trade.Value()

	if err := e.ledger.TransferLocked(trade.Buyer, trade.Seller, clobtypes.AssetQuote, value); err != nil {
		e.logger.Error("trade settlement failed: quote transfer",
			zap.Uint64("trade_id", uint64(trade.TradeId)), zap.Error(err))
		return
	}
	if err := e.ledger.TransferLocked(trade.Seller, trade.Buyer, clobtypes.AssetBase, trade.Quantity); err != nil {
		e.logger.Error("trade settlement failed: base transfer",
			zap.Uint64("trade_id", uint64(trade.TradeId)), zap.Error(err))
		return
	}

	if buyOrder, ok := e.orders[trade.BuyOrderId]; ok && buyOrder.Price.GreaterThan(trade.Price) {
		residual := buyOrder.Price.SaturatingSub(trade.Price).Mul(trade.Quantity)
		if !residual.IsZero() {
			if err := e.ledger.Unlock(trade.Buyer, clobtypes.AssetQuote, residual); err != nil {
				e.logger.Error("trade settlement failed: residual unlock",
					zap.Uint64("trade_id", uint64(trade.TradeId)), zap.Error(err))
			}
		}
	}

	e.publish(events.TradeExecuted{
		TradeId: trade.TradeId, BuyOrderId: trade.BuyOrderId, SellOrderId: trade.SellOrderId,
		Buyer: trade.Buyer, Seller: trade.Seller, Price: trade.Price, Quantity: trade.Quantity,
	})
}

// settleCancellation unlocks exactly the residual the cancelled order
// was still holding locked (invariant 7).
func (e *Engine) settleCancellation(c CancelledOrder) {
	if c.Remaining.IsZero() {
		e.publish(events.OrderCancelled{OrderId: c.OrderId, Trader: c.Trader})
		return
	}

	var asset clobtypes.AssetId
	var residual amount.Amount
	if c.Side == clobtypes.Buy {
		asset = clobtypes.AssetQuote
		residual = c.Price.Mul(c.Remaining)
	} else {
		asset = clobtypes.AssetBase
		residual = c.Remaining
	}

	if err := e.ledger.Unlock(c.Trader, asset, residual); err != nil {
		e.logger.Error("cancellation residual unlock failed",
			zap.Uint64("order_id", uint64(c.OrderId)), zap.Error(err))
	}
	e.publish(events.OrderCancelled{OrderId: c.OrderId, Trader: c.Trader})
}

// emitFillEvent turns a touched order's post-finalize status into the
// matching lifecycle event; a Filled order is then dropped from the
// arena (§3: "deleted from orders map ... at the end of finalize").
func (e *Engine) emitFillEvent(id clobtypes.OrderId) {
	order, ok := e.orders[id]
	if !ok {
		return
	}
	switch order.Status {
	case clobtypes.Filled:
		e.publish(events.OrderFilled{OrderId: order.OrderId, Trader: order.Trader})
		delete(e.orders, id)
	case clobtypes.PartiallyFilled:
		e.publish(events.OrderPartiallyFilled{
			OrderId: order.OrderId, Trader: order.Trader,
			FilledQuantity: order.FilledQuantity, RemainingQuantity: order.Remaining(),
		})
	}
}

func (e *Engine) publish(ev events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ev); err != nil {
		e.logger.Warn("failed to publish matching event", zap.Error(err), zap.String("event_type", ev.EventType()))
	}
}

// LockAmountFor computes the amount chain.Host must lock at intake for
// a new order: price*quantity in quote for a Buy, quantity in base for
// a Sell, checked against the u128 ceiling so an overflowing order is
// rejected before any state changes (§4.4).
func LockAmountFor(side clobtypes.OrderSide, price, quantity amount.Amount) (amount.Amount, error) {
	if side == clobtypes.Sell {
		return quantity, nil
	}
	value, ok := price.MulChecked(quantity)
	if !ok {
		return amount.Zero, clobErrors.New(clobErrors.ErrArithmeticOverflow, "price*quantity overflows u128")
	}
	return value, nil
}
