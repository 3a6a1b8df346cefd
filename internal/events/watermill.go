package events

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WatermillBus is an out-of-process-capable Bus backed by watermill's
// pub/sub abstraction, generalized from the teacher's
// architecture/cqrs/eventbus.WatermillEventBus. It defaults to an
// in-process gochannel transport; swap the Publisher/Subscriber for the
// watermill-nats adapter (see NewNATSBus) to fan events out to a
// separately-deployed indexer process.
type WatermillBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *zap.Logger

	mu       sync.Mutex
	cancelFn []context.CancelFunc
}

// WatermillBusConfig configures the gochannel transport buffer.
type WatermillBusConfig struct {
	Topic      string
	BufferSize int
}

// DefaultWatermillBusConfig is the default single-topic, 1024-buffer
// configuration for NewWatermillBus.
func DefaultWatermillBusConfig() WatermillBusConfig {
	return WatermillBusConfig{Topic: "clobchain.events", BufferSize: 1024}
}

// NewWatermillBus creates a gochannel-backed bus.
func NewWatermillBus(logger *zap.Logger, cfg WatermillBusConfig) *WatermillBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	wmLogger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: int64(cfg.BufferSize)}, wmLogger)
	return &WatermillBus{publisher: pubSub, subscriber: pubSub, topic: cfg.Topic, logger: logger}
}

// NewBusFromTransport wires an externally constructed watermill
// publisher/subscriber pair (e.g. the NATS adapter) into a Bus.
func NewBusFromTransport(pub message.Publisher, sub message.Subscriber, topic string, logger *zap.Logger) *WatermillBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatermillBus{publisher: pub, subscriber: sub, topic: topic, logger: logger}
}

// Publish encodes ev and publishes it on the configured topic.
func (b *WatermillBus) Publish(ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	return b.publisher.Publish(b.topic, msg)
}

// Subscribe starts (if not already started) a consumer goroutine that
// decodes and dispatches every message on the topic to h.
func (b *WatermillBus) Subscribe(h Handler) {
	b.SubscribeToType("", h)
}

// SubscribeToType subscribes h to one event type, or every event when
// eventType is empty.
func (b *WatermillBus) SubscribeToType(eventType string, h Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.cancelFn = append(b.cancelFn, cancel)
	b.mu.Unlock()

	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		b.logger.Error("watermill subscribe failed", zap.Error(err))
		return
	}

	go func() {
		for msg := range messages {
			ev, err := decode(msg.Payload)
			if err != nil {
				b.logger.Warn("failed to decode event", zap.Error(err))
				msg.Nack()
				continue
			}
			if eventType == "" || ev.EventType() == eventType {
				h(ev)
			}
			msg.Ack()
		}
	}()
}

// Close stops every subscription started on this bus.
func (b *WatermillBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancelFn {
		cancel()
	}
}
