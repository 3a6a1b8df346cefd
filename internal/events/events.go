// Package events defines the event types emitted by the ledger (C1) and
// matching engine (C3), and the Bus they are published on for C5/C6 to
// consume — generalized from the teacher's internal/eventsourcing.Event
// and internal/architecture/cqrs/eventbus.EventBus.
package events

import (
	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
)

// Event is anything that can be dispatched on the Bus. Event values
// carry no block number, and nothing on the publishing path attaches
// one.
type Event interface {
	EventType() string
}

// Ledger events (§4.1).

type Deposited struct {
	Account clobtypes.AccountId
	Asset   clobtypes.AssetId
	Amount  amount.Amount
}

func (Deposited) EventType() string { return "Deposited" }

type Withdrawn struct {
	Account clobtypes.AccountId
	Asset   clobtypes.AssetId
	Amount  amount.Amount
}

func (Withdrawn) EventType() string { return "Withdrawn" }

type Locked struct {
	Account clobtypes.AccountId
	Asset   clobtypes.AssetId
	Amount  amount.Amount
}

func (Locked) EventType() string { return "Locked" }

type Unlocked struct {
	Account clobtypes.AccountId
	Asset   clobtypes.AssetId
	Amount  amount.Amount
}

func (Unlocked) EventType() string { return "Unlocked" }

type Transferred struct {
	From   clobtypes.AccountId
	To     clobtypes.AccountId
	Asset  clobtypes.AssetId
	Amount amount.Amount
}

func (Transferred) EventType() string { return "Transferred" }

// Matching / block-host events (§6).

type OrderPlaced struct {
	OrderId  clobtypes.OrderId
	Trader   clobtypes.AccountId
	Side     clobtypes.OrderSide
	Price    amount.Amount
	Quantity amount.Amount
}

func (OrderPlaced) EventType() string { return "OrderPlaced" }

type CancellationRequested struct {
	OrderId clobtypes.OrderId
	Trader  clobtypes.AccountId
}

func (CancellationRequested) EventType() string { return "CancellationRequested" }

type TradeExecuted struct {
	TradeId     clobtypes.TradeId
	BuyOrderId  clobtypes.OrderId
	SellOrderId clobtypes.OrderId
	Buyer       clobtypes.AccountId
	Seller      clobtypes.AccountId
	Price       amount.Amount
	Quantity    amount.Amount
}

func (TradeExecuted) EventType() string { return "TradeExecuted" }

type OrderCancelled struct {
	OrderId clobtypes.OrderId
	Trader  clobtypes.AccountId
}

func (OrderCancelled) EventType() string { return "OrderCancelled" }

type OrderFilled struct {
	OrderId clobtypes.OrderId
	Trader  clobtypes.AccountId
}

func (OrderFilled) EventType() string { return "OrderFilled" }

type OrderPartiallyFilled struct {
	OrderId           clobtypes.OrderId
	Trader            clobtypes.AccountId
	FilledQuantity    amount.Amount
	RemainingQuantity amount.Amount
}

func (OrderPartiallyFilled) EventType() string { return "OrderPartiallyFilled" }

type MatchingCompleted struct {
	TotalTrades int
	TotalVolume amount.Amount // quote terms
}

func (MatchingCompleted) EventType() string { return "MatchingCompleted" }
