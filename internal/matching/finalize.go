// Package matching implements C3: the block-finalize matcher that
// crosses the intra-block pending book against itself and then against
// the persistent book, applying queued cancellations first.
package matching

import (
	"sort"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
)

// State is the working set Finalize consumes: the intra-block pending
// book, the cross-block persistent book, the queued cancellation ids,
// the shared order arena, and the trade-id counter to continue from.
// Finalize mutates the Pending/Persistent books and the Orders map in
// place and returns the Persistent book and Orders map as part of
// Result — callers that need to
// retain an unmutated copy must clone State first.
type State struct {
	Pending       *Book
	Persistent    *Book
	Cancellations []clobtypes.OrderId
	Orders        map[clobtypes.OrderId]*clobtypes.Order
	NextTradeId   clobtypes.TradeId
}

// CancelledOrder records the side, price and un-filled quantity an
// order was carrying the moment it was cancelled, which is exactly the
// residual the caller must unlock (§4.3 Phase D / invariant 7).
type CancelledOrder struct {
	OrderId   clobtypes.OrderId
	Trader    clobtypes.AccountId
	Side      clobtypes.OrderSide
	Price     amount.Amount
	Remaining amount.Amount
}

// Result is everything Finalize computed for one block. Settlement
// (moving ledger balances for each trade and cancellation residual)
// and event construction/publication are left to Engine.FinalizeBlock,
// so this function has no I/O and is trivially unit-testable.
type Result struct {
	Trades     []*clobtypes.Trade
	Cancelled  []CancelledOrder
	// Touched holds, in first-touch order, every order id whose fill
	// status changed this block (taker or maker), for the caller to
	// turn into OrderFilled/OrderPartiallyFilled events.
	Touched     []clobtypes.OrderId
	Persistent  *Book
	Orders      map[clobtypes.OrderId]*clobtypes.Order
	NextTradeId clobtypes.TradeId
	TotalVolume amount.Amount
}

// touchedSet records order ids the first time they're touched this
// block, preserving that order for deterministic event emission.
type touchedSet struct {
	seen  map[clobtypes.OrderId]bool
	order []clobtypes.OrderId
}

func newTouchedSet() *touchedSet {
	return &touchedSet{seen: make(map[clobtypes.OrderId]bool)}
}

func (t *touchedSet) add(id clobtypes.OrderId) {
	if !t.seen[id] {
		t.seen[id] = true
		t.order = append(t.order, id)
	}
}

// Finalize runs Phase A (cancellations), Phase B (pending-vs-pending)
// and Phase C (pending-vs-persistent) of §4.3 in order.
func Finalize(state State) Result {
	touched := newTouchedSet()
	nextTradeId := state.NextTradeId

	cancelled := applyCancellations(state)

	var trades []*clobtypes.Trade

	// Phase B — internal pending match, ascending order_id = intake order.
	for _, id := range collectPendingIds(state.Pending) {
		order, ok := state.Orders[id]
		if !ok || order.IsTerminal() {
			continue
		}
		side := state.Pending.SideFor(order.Side)
		side.Remove(id, order.Price)
		trades = append(trades, matchTaker(order, state.Pending, state.Orders, &nextTradeId, touched)...)
		if !order.IsTerminal() {
			side.Add(id, order.Price)
		}
	}

	// Phase C — whatever is still resting in the pending book after B
	// gets a shot at the persistent book, then rests there if unfilled.
	for _, id := range collectPendingIds(state.Pending) {
		order, ok := state.Orders[id]
		if !ok || order.IsTerminal() {
			continue
		}
		state.Pending.SideFor(order.Side).Remove(id, order.Price)
		trades = append(trades, matchTaker(order, state.Persistent, state.Orders, &nextTradeId, touched)...)
		if !order.IsTerminal() {
			state.Persistent.SideFor(order.Side).Add(id, order.Price)
		}
	}

	totalVolume := amount.Zero
	for _, t := range trades {
		totalVolume = totalVolume.SaturatingAdd(t.Value())
	}

	return Result{
		Trades:      trades,
		Cancelled:   cancelled,
		Touched:     touched.order,
		Persistent:  state.Persistent,
		Orders:      state.Orders,
		NextTradeId: nextTradeId,
		TotalVolume: totalVolume,
	}
}

// applyCancellations is Phase A. An order already Filled or Cancelled
// is left alone — re-cancelling an already-cancelled id would otherwise
// unlock its residual a second time.
func applyCancellations(state State) []CancelledOrder {
	var cancelled []CancelledOrder
	for _, id := range state.Cancellations {
		order, ok := state.Orders[id]
		if !ok || order.IsTerminal() {
			continue
		}
		remaining := order.Remaining()
		order.Status = clobtypes.Cancelled

		state.Pending.SideFor(order.Side).Remove(id, order.Price)
		state.Persistent.SideFor(order.Side).Remove(id, order.Price)

		cancelled = append(cancelled, CancelledOrder{
			OrderId:   id,
			Trader:    order.Trader,
			Side:      order.Side,
			Price:     order.Price,
			Remaining: remaining,
		})
	}
	return cancelled
}

// collectPendingIds gathers every order id resting in either pending
// side and sorts them ascending by order_id, which is intake order
// since order_id is assigned monotonically at intake (§4.3 Phase B).
func collectPendingIds(book *Book) []clobtypes.OrderId {
	var ids []clobtypes.OrderId
	for _, lvl := range book.Bids.SnapshotAscending() {
		ids = append(ids, lvl.OrderIds...)
	}
	for _, lvl := range book.Asks.SnapshotAscending() {
		ids = append(ids, lvl.OrderIds...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// matchTaker matches order as a taker against the opposite side of
// book, filling at each resting maker's price in price-time-priority
// order until the taker is exhausted, the book side runs dry, or (for
// a Limit taker) the next level crosses the taker's limit price.
//
// Self-trade prevention (Open Question 3): a resting maker owned by
// the same trader as the taker is skipped, not filled — it keeps its
// place in the level for the next taker.
func matchTaker(taker *clobtypes.Order, book *Book, orders map[clobtypes.OrderId]*clobtypes.Order, nextTradeId *clobtypes.TradeId, touched *touchedSet) []*clobtypes.Trade {
	var trades []*clobtypes.Trade
	opposite := book.OppositeSideFor(taker.Side)

	var levels []PriceLevelView
	if taker.Side == clobtypes.Buy {
		levels = opposite.SnapshotAscending()
	} else {
		levels = opposite.SnapshotDescending()
	}

	for _, lvl := range levels {
		if taker.Remaining().IsZero() {
			break
		}
		if taker.OrderType == clobtypes.Limit {
			if taker.Side == clobtypes.Buy && taker.Price.LessThan(lvl.Price) {
				break
			}
			if taker.Side == clobtypes.Sell && taker.Price.GreaterThan(lvl.Price) {
				break
			}
		}

		var exhausted []clobtypes.OrderId
		for _, makerId := range lvl.OrderIds {
			if taker.Remaining().IsZero() {
				break
			}
			maker, ok := orders[makerId]
			if !ok || maker.IsTerminal() {
				exhausted = append(exhausted, makerId)
				continue
			}
			if maker.Trader.Equal(taker.Trader) {
				continue
			}

			fillQty := amount.Min(taker.Remaining(), maker.Remaining())
			if fillQty.IsZero() {
				continue
			}

			maker.ApplyFill(fillQty)
			taker.ApplyFill(fillQty)
			touched.add(maker.OrderId)
			touched.add(taker.OrderId)

			*nextTradeId++
			trades = append(trades, buildTrade(*nextTradeId, taker, maker, fillQty))

			if maker.Status == clobtypes.Filled {
				exhausted = append(exhausted, makerId)
			}
		}

		for _, id := range exhausted {
			opposite.Remove(id, lvl.Price)
		}
	}

	return trades
}

// buildTrade prices the trade at the maker's resting price, per §3's
// Trade definition.
func buildTrade(id clobtypes.TradeId, taker, maker *clobtypes.Order, qty amount.Amount) *clobtypes.Trade {
	if taker.Side == clobtypes.Buy {
		return &clobtypes.Trade{
			TradeId: id, Buyer: taker.Trader, Seller: maker.Trader,
			BuyOrderId: taker.OrderId, SellOrderId: maker.OrderId,
			Price: maker.Price, Quantity: qty,
		}
	}
	return &clobtypes.Trade{
		TradeId: id, Buyer: maker.Trader, Seller: taker.Trader,
		BuyOrderId: maker.OrderId, SellOrderId: taker.OrderId,
		Price: maker.Price, Quantity: qty,
	}
}
