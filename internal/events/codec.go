package events

import (
	"encoding/json"
	"fmt"
)

// envelope is the wire representation used by the out-of-process bus
// adapters (watermill, NATS): a type tag plus the JSON-encoded payload,
// since Event is an interface and gob/json can't round-trip one without
// knowing the concrete type up front.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: ev.EventType(), Payload: payload})
}

func decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	var ev Event
	switch env.Type {
	case "Deposited":
		ev = &Deposited{}
	case "Withdrawn":
		ev = &Withdrawn{}
	case "Locked":
		ev = &Locked{}
	case "Unlocked":
		ev = &Unlocked{}
	case "Transferred":
		ev = &Transferred{}
	case "OrderPlaced":
		ev = &OrderPlaced{}
	case "CancellationRequested":
		ev = &CancellationRequested{}
	case "TradeExecuted":
		ev = &TradeExecuted{}
	case "OrderCancelled":
		ev = &OrderCancelled{}
	case "OrderFilled":
		ev = &OrderFilled{}
	case "OrderPartiallyFilled":
		ev = &OrderPartiallyFilled{}
	case "MatchingCompleted":
		ev = &MatchingCompleted{}
	default:
		return nil, fmt.Errorf("events: unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, err
	}
	// Deref back to value types so callers get the same shape Publish
	// received, not a pointer.
	switch v := ev.(type) {
	case *Deposited:
		return *v, nil
	case *Withdrawn:
		return *v, nil
	case *Locked:
		return *v, nil
	case *Unlocked:
		return *v, nil
	case *Transferred:
		return *v, nil
	case *OrderPlaced:
		return *v, nil
	case *CancellationRequested:
		return *v, nil
	case *TradeExecuted:
		return *v, nil
	case *OrderCancelled:
		return *v, nil
	case *OrderFilled:
		return *v, nil
	case *OrderPartiallyFilled:
		return *v, nil
	case *MatchingCompleted:
		return *v, nil
	default:
		return ev, nil
	}
}
