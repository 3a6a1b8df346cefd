package clobtypes

import "github.com/abdoElHodaky/clobchain/internal/amount"

// OrderSide is the side of an order in the book.
type OrderSide string

const (
	// Buy is the bid side.
	Buy OrderSide = "buy"
	// Sell is the ask side.
	Sell OrderSide = "sell"
)

// OrderType distinguishes resting Limit orders from Market orders, which
// take liquidity at any resting price up to a caller-supplied lock bound.
type OrderType string

const (
	// Limit is a standard price-bounded order.
	Limit OrderType = "limit"
	// Market is a taker order matched at any resting price.
	Market OrderType = "market"
)

// OrderStatus is the lifecycle state of an order. See the Order
// invariants: filled_quantity <= quantity and
// status == Filled <=> filled_quantity == quantity.
type OrderStatus string

const (
	// Open is the initial state and the state while resting unfilled.
	Open OrderStatus = "open"
	// PartiallyFilled means 0 < filled_quantity < quantity.
	PartiallyFilled OrderStatus = "partially_filled"
	// Filled means filled_quantity == quantity; terminal.
	Filled OrderStatus = "filled"
	// Cancelled means the trader withdrew the order; terminal.
	Cancelled OrderStatus = "cancelled"
)

// Order is the authoritative record for a single order. Once Filled or
// Cancelled it never mutates again.
type Order struct {
	OrderId        OrderId
	Trader         AccountId
	Side           OrderSide
	OrderType      OrderType
	Price          amount.Amount // for Market, the caller-supplied lock-sizing bound
	Quantity       amount.Amount
	FilledQuantity amount.Amount
	Status         OrderStatus
}

// Remaining returns quantity - filled_quantity.
func (o *Order) Remaining() amount.Amount {
	return o.Quantity.SaturatingSub(o.FilledQuantity)
}

// IsTerminal reports whether the order can never be matched or cancelled
// again.
func (o *Order) IsTerminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}

// ApplyFill records a fill of size qty against the order, updating
// filled_quantity and status. qty must be <= Remaining(); callers in the
// matching engine guarantee this by construction.
func (o *Order) ApplyFill(qty amount.Amount) {
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if o.FilledQuantity.Cmp(o.Quantity) >= 0 {
		o.FilledQuantity = o.Quantity
		o.Status = Filled
		return
	}
	o.Status = PartiallyFilled
}
