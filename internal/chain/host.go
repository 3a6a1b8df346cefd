// Package chain implements C4: the block host that exposes
// place_order/cancel_order to external callers, reserving funds and
// queuing work for the next Finalize — it never matches or settles
// itself (§4.4).
package chain

import (
	"sync"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/clobtypes"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/abdoElHodaky/clobchain/internal/ledger"
	"github.com/abdoElHodaky/clobchain/internal/matching"
	clobErrors "github.com/abdoElHodaky/clobchain/pkg/errors"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Config bounds the resources a single chain can hold in flight, per
// §5 ("Finalize has no internal timeout — it must be bounded by input
// caps").
type Config struct {
	MaxPendingOrders        int
	MaxOpenOrdersPerUser    int
	MaxPendingCancellations int
}

// DefaultConfig mirrors the order of magnitude the teacher's own
// resource-limit middleware defaults to for per-tenant request caps.
func DefaultConfig() Config {
	return Config{
		MaxPendingOrders:        10_000,
		MaxOpenOrdersPerUser:    500,
		MaxPendingCancellations: 1_000,
	}
}

// PlaceOrderRequest is the validated input to Host.PlaceOrder. Price is
// also the Market-order lock-sizing bound (Open Question 2, resolved
// as option (a) in SPEC_FULL.md §4.3).
type PlaceOrderRequest struct {
	Trader    clobtypes.AccountId
	Side      clobtypes.OrderSide
	OrderType clobtypes.OrderType
	Price     amount.Amount `validate:"amountpositive"`
	Quantity  amount.Amount `validate:"amountpositive"`
}

// CancelOrderRequest is the validated input to Host.CancelOrder.
type CancelOrderRequest struct {
	Trader  clobtypes.AccountId
	OrderId clobtypes.OrderId `validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("amountpositive", func(fl validator.FieldLevel) bool {
		a, ok := fl.Field().Interface().(amount.Amount)
		return ok && a.Sign() > 0
	})
	return v
}

// Host serializes place_order/cancel_order intake — §5's "intake
// extrinsics are serialized by the host's transaction pipeline" — and
// binds C1 (ledger) and C3 (matching engine) together.
type Host struct {
	ledger *ledger.Ledger
	engine *matching.Engine
	bus    events.Bus
	cfg    Config
	logger *zap.Logger

	validate *validator.Validate

	mu         sync.Mutex
	nextOrder  clobtypes.OrderId
	userOrders map[clobtypes.AccountId][]clobtypes.OrderId
}

// New creates a Host bound to ledger/engine/bus with the given limits.
func New(l *ledger.Ledger, engine *matching.Engine, bus events.Bus, cfg Config, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		ledger:     l,
		engine:     engine,
		bus:        bus,
		cfg:        cfg,
		logger:     logger,
		validate:   newValidator(),
		userOrders: make(map[clobtypes.AccountId][]clobtypes.OrderId),
	}
}

func (h *Host) validationError(err error) *clobErrors.Error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Price":
			return clobErrors.New(clobErrors.ErrInvalidPrice, "price must be greater than zero")
		case "Quantity":
			return clobErrors.New(clobErrors.ErrInvalidQuantity, "quantity must be greater than zero")
		case "OrderId":
			return clobErrors.New(clobErrors.ErrOrderNotFound, "order id is required")
		}
	}
	return clobErrors.New(clobErrors.ErrInvalidQuantity, "validation failed").WithCause(err)
}

// PlaceOrder validates, locks funds, mints an order_id, registers the
// order, and queues it in the pending book. No matching happens here.
func (h *Host) PlaceOrder(req PlaceOrderRequest) (clobtypes.OrderId, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.validate.Struct(req); err != nil {
		return 0, h.validationError(err)
	}

	lockAmt, err := matching.LockAmountFor(req.Side, req.Price, req.Quantity)
	if err != nil {
		return 0, err
	}

	if h.engine.PendingOrderCount() >= h.cfg.MaxPendingOrders {
		return 0, clobErrors.New(clobErrors.ErrTooManyPendingOrders, "pending order book is full")
	}
	if len(h.userOrders[req.Trader]) >= h.cfg.MaxOpenOrdersPerUser {
		return 0, clobErrors.New(clobErrors.ErrTooManyUserOrders, "too many open orders for this account")
	}

	lockAsset := clobtypes.AssetQuote
	if req.Side == clobtypes.Sell {
		lockAsset = clobtypes.AssetBase
	}
	if err := h.ledger.Lock(req.Trader, lockAsset, lockAmt); err != nil {
		return 0, err
	}

	h.nextOrder++
	id := h.nextOrder
	order := &clobtypes.Order{
		OrderId: id, Trader: req.Trader, Side: req.Side, OrderType: req.OrderType,
		Price: req.Price, Quantity: req.Quantity, Status: clobtypes.Open,
	}
	h.engine.PutOrder(order)
	h.userOrders[req.Trader] = append(h.userOrders[req.Trader], id)

	h.publish(events.OrderPlaced{OrderId: id, Trader: req.Trader, Side: req.Side, Price: req.Price, Quantity: req.Quantity})
	return id, nil
}

// CancelOrder validates ownership/state and queues the cancellation
// for the next Finalize. Funds are not unlocked here — that happens at
// finalize's Phase D against the residual at cancellation time.
func (h *Host) CancelOrder(req CancelOrderRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.validate.Struct(req); err != nil {
		return h.validationError(err)
	}

	order, ok := h.engine.Order(req.OrderId)
	if !ok {
		return clobErrors.New(clobErrors.ErrOrderNotFound, "order not found")
	}
	if !order.Trader.Equal(req.Trader) {
		return clobErrors.New(clobErrors.ErrNotOrderOwner, "origin is not the order owner")
	}
	if order.Status == clobtypes.Filled {
		return clobErrors.New(clobErrors.ErrOrderNotActive, "order is already filled")
	}
	if h.engine.PendingCancellationCount() >= h.cfg.MaxPendingCancellations {
		return clobErrors.New(clobErrors.ErrTooManyPendingCancellations, "cancellation queue is full")
	}

	h.engine.EnqueueCancellation(req.OrderId)
	h.publish(events.CancellationRequested{OrderId: req.OrderId, Trader: req.Trader})
	return nil
}

// FinalizeBlock runs the matching engine's finalize step. It is the
// only place matching/settlement happens (§4.4, "All consistency work
// happens at finalize").
func (h *Host) FinalizeBlock() matching.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := h.engine.FinalizeBlock()
	h.pruneUserOrders(result)
	return result
}

// pruneUserOrders drops order ids that left the open state this block
// from userOrders, so MaxOpenOrdersPerUser bounds resting orders rather
// than every order a trader has ever placed.
func (h *Host) pruneUserOrders(result matching.Result) {
	// Engine.FinalizeBlock deletes Filled orders from the order map that
	// result.Orders shares, so their traders are taken from the trades.
	traders := make(map[clobtypes.OrderId]clobtypes.AccountId)
	for _, t := range result.Trades {
		traders[t.BuyOrderId] = t.Buyer
		traders[t.SellOrderId] = t.Seller
	}
	for _, id := range result.Touched {
		order, ok := result.Orders[id]
		if !ok {
			if trader, known := traders[id]; known {
				h.removeUserOrder(trader, id)
			}
			continue
		}
		if order.Status == clobtypes.Filled {
			h.removeUserOrder(order.Trader, id)
		}
	}
	for _, c := range result.Cancelled {
		h.removeUserOrder(c.Trader, c.OrderId)
	}
}

func (h *Host) removeUserOrder(trader clobtypes.AccountId, id clobtypes.OrderId) {
	ids := h.userOrders[trader]
	for i, existing := range ids {
		if existing == id {
			h.userOrders[trader] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (h *Host) publish(ev events.Event) {
	if h.bus == nil {
		return
	}
	if err := h.bus.Publish(ev); err != nil {
		h.logger.Warn("failed to publish chain event", zap.Error(err), zap.String("event_type", ev.EventType()))
	}
}
