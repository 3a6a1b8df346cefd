package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait matches the teacher's websocket gateway's per-message
// write deadline (services/websocket.sendMessage).
const writeWait = 10 * time.Second

// EncodeFunc converts one broadcast value into its JSON-marshalable
// wire envelope (e.g. NewOrderbookEnvelope, NewCandleEnvelope).
type EncodeFunc[T any] func(T) any

// Pusher adapts a broadcast.Hub[T] subscription channel to a single
// WebSocket connection: every value received is encoded, optionally
// flate-compressed above compressMinSize, and written as one frame.
// It deliberately does not read from the connection — subscription
// control and auth are handled by the out-of-scope HTTP surface (§6);
// Pusher only pushes.
type Pusher[T any] struct {
	conn   *websocket.Conn
	encode EncodeFunc[T]
	logger *zap.Logger
}

// NewPusher creates a Pusher writing encoded values onto conn.
func NewPusher[T any](conn *websocket.Conn, encode EncodeFunc[T], logger *zap.Logger) *Pusher[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pusher[T]{conn: conn, encode: encode, logger: logger}
}

// Run drains ch until it closes or ctx is cancelled, pushing one frame
// per value. Per §5's "subscribers closing their socket terminate
// their worker; in-flight broadcast deliveries to them are discarded",
// the caller is expected to cancel ctx (or close the hub subscription)
// on socket close, at which point Run returns without draining the
// remainder of ch.
func (p *Pusher[T]) Run(ctx context.Context, ch <-chan T) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.push(v); err != nil {
				p.logger.Warn("websocket push failed", zap.Error(err))
				return err
			}
		}
	}
}

func (p *Pusher[T]) push(v T) error {
	payload, err := json.Marshal(p.encode(v))
	if err != nil {
		return err
	}

	p.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if shouldCompress(len(payload)) {
		compressed, err := compress(payload)
		if err == nil {
			return p.conn.WriteMessage(websocket.BinaryMessage, compressed)
		}
		p.logger.Warn("frame compression failed, sending uncompressed", zap.Error(err))
	}
	return p.conn.WriteMessage(websocket.TextMessage, payload)
}
