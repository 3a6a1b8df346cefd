package events

import (
	"sync"

	"go.uber.org/zap"
)

// Handler processes one event. Handlers run synchronously on the
// publishing goroutine for the in-memory bus, matching the engine's
// single-threaded finalize step (§5) — there is no concurrency to hide
// a race behind.
type Handler func(Event)

// Bus decouples publishers (ledger, matching engine) from subscribers
// (orderbook reducer, candle aggregator), generalized from the
// teacher's architecture/cqrs/eventbus.EventBus.
type Bus interface {
	Publish(Event) error
	Subscribe(Handler)
	SubscribeToType(eventType string, h Handler)
}

// InMemoryBus is the default Bus: synchronous, in-process fan-out. It
// is what cmd/clobchaind and cmd/indexer each build for themselves when
// events.transport is not "nats"; NewNATSBus (internal/events/nats.go)
// provides the out-of-process variant.
type InMemoryBus struct {
	mu           sync.RWMutex
	handlers     []Handler
	typeHandlers map[string][]Handler
	logger       *zap.Logger
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(logger *zap.Logger) *InMemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryBus{
		typeHandlers: make(map[string][]Handler),
		logger:       logger,
	}
}

// Publish dispatches ev to every subscriber, catching handler panics so
// one bad indexer subscriber cannot take down the publisher (the
// publisher is usually the finalize routine, which §7 says must never
// halt).
func (b *InMemoryBus) Publish(ev Event) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	typeHandlers := append([]Handler(nil), b.typeHandlers[ev.EventType()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.safeCall(h, ev)
	}
	for _, h := range typeHandlers {
		b.safeCall(h, ev)
	}
	return nil
}

func (b *InMemoryBus) safeCall(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.Any("recover", r), zap.String("event_type", ev.EventType()))
		}
	}()
	h(ev)
}

// Subscribe registers a handler for every event.
func (b *InMemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// SubscribeToType registers a handler for one event type only.
func (b *InMemoryBus) SubscribeToType(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeHandlers[eventType] = append(b.typeHandlers[eventType], h)
}
