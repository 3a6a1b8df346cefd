package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"go.uber.org/zap"
)

// NATSBusConfig configures the watermill-nats transport used to fan
// chain-host events out to an indexer running as a separate process,
// generalized from the teacher's architecture/cqrs/eventbus.NatsEventBus.
type NATSBusConfig struct {
	URL   string
	Topic string
}

// DefaultNATSBusConfig points at a local NATS server on the default
// port with the same topic the in-process bus uses.
func DefaultNATSBusConfig() NATSBusConfig {
	return NATSBusConfig{URL: "nats://127.0.0.1:4222", Topic: "clobchain.events"}
}

// NewNATSBus dials NATS and returns a Bus that publishes/subscribes
// engine events over it, letting cmd/clobchaind and cmd/indexer run as
// independent processes while keeping the exact same Event payloads
// the in-process InMemoryBus and WatermillBus carry.
func NewNATSBus(cfg NATSBusConfig, logger *zap.Logger) (*WatermillBus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	marshaler := &nats.GobMarshaler{}
	jsConfig := nats.JetStreamConfig{Disabled: true}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         cfg.URL,
			NatsOptions: nil,
			Marshaler:   marshaler,
			JetStream:   jsConfig,
		},
		watermill.NopLogger{},
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:              cfg.URL,
			NatsOptions:      nil,
			Unmarshaler:      marshaler,
			JetStream:        jsConfig,
			SubscribeOptions: nil,
		},
		watermill.NopLogger{},
	)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return NewBusFromTransport(publisher, subscriber, cfg.Topic, logger), nil
}
