// Package broadcast implements the generic bounded fan-out primitive
// used by C5 and C6 to push snapshots and candle updates to
// subscribers: lock-free multi-reader/single-writer channels,
// oldest-drop on overflow, never blocking the producer (§5).
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultBufferSize is the per-subscriber channel depth used when a
// caller doesn't override it.
const DefaultBufferSize = 64

type subscriber[T any] struct {
	ch  chan T
	lag int
}

// Hub fans a stream of values of type T out to any number of
// subscribers. Publish never blocks: a subscriber whose channel is
// full has its oldest buffered message dropped to make room, and its
// lag counter incremented, matching the teacher's
// internal/websocket/transport.Hub non-blocking send-or-drop loop —
// generalized here to drop-oldest-and-continue instead of
// unregistering the subscriber outright, since a lagged indexer
// subscriber should resync with a fresh snapshot rather than being
// disconnected.
type Hub[T any] struct {
	mu         sync.RWMutex
	subs       map[uuid.UUID]*subscriber[T]
	bufferSize int
	logger     *zap.Logger
}

// New creates a Hub whose subscriber channels are buffered to
// bufferSize. A non-positive bufferSize falls back to
// DefaultBufferSize.
func New[T any](bufferSize int, logger *zap.Logger) *Hub[T] {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub[T]{
		subs:       make(map[uuid.UUID]*subscriber[T]),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its id, a
// receive-only channel of published values, and an unsubscribe func.
// The caller MUST eventually call unsubscribe (e.g. on socket close,
// per §5's "terminates their worker") or the subscriber leaks.
func (h *Hub[T]) Subscribe() (uuid.UUID, <-chan T, func()) {
	id := uuid.New()
	sub := &subscriber[T]{ch: make(chan T, h.bufferSize)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	return id, sub.ch, func() { h.unsubscribe(id) }
}

func (h *Hub[T]) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
	}
}

// Publish delivers v to every current subscriber without blocking. If
// a subscriber's buffer is full, its oldest queued value is discarded
// to make room for v and its lag counter is incremented; the
// subscriber is expected to notice the gap and request a fresh
// snapshot rather than trying to replay missed deltas.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subs {
		select {
		case sub.ch <- v:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.lag++
			select {
			case sub.ch <- v:
			default:
				h.logger.Warn("broadcast subscriber dropped message after drain",
					zap.String("subscriber_id", id.String()), zap.Int("lag", sub.lag))
			}
		}
	}
}

// SubscriberCount reports how many subscribers are currently
// registered, mostly useful for tests and metrics.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Lag reports how many times the given subscriber has had a message
// dropped for falling behind. Returns 0, false if id is unknown.
func (h *Hub[T]) Lag(id uuid.UUID) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subs[id]
	if !ok {
		return 0, false
	}
	return sub.lag, true
}
