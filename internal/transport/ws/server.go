package ws

import (
	"net/http"
	"time"

	"github.com/abdoElHodaky/clobchain/internal/candles"
	"github.com/abdoElHodaky/clobchain/internal/orderbook"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader matches the teacher's services/websocket gateway's buffer
// sizing and allows any origin — this repo has no session/auth layer
// to check the origin against (§1, HTTP surface out of scope).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades incoming HTTP requests to WebSocket connections and
// fans out orderbook snapshots and candles for one symbol, with one
// subscription to each of the two broadcast hubs per connection.
type Server struct {
	symbol   string
	reducer  *orderbook.Reducer
	agg      *candles.Aggregator
	logger   *zap.Logger
}

// NewServer creates a Server pushing the given reducer's and
// aggregator's broadcasts to every connected client.
func NewServer(symbol string, reducer *orderbook.Reducer, agg *candles.Aggregator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{symbol: symbol, reducer: reducer, agg: agg, logger: logger}
}

// ServeHTTP upgrades the connection and runs both pushers until the
// socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	bookID, bookCh, unsubBook := s.reducer.Hub().Subscribe()
	defer unsubBook()
	candleID, candleCh, unsubCandle := s.agg.Hub().Subscribe()
	defer unsubCandle()
	_ = bookID
	_ = candleID

	ctx := r.Context()
	done := make(chan struct{})

	go func() {
		defer close(done)
		NewPusher(conn, func(snap orderbook.Snapshot) any {
			return NewOrderbookEnvelope(s.symbol, time.Now().UnixMilli(), snap)
		}, s.logger).Run(ctx, bookCh)
	}()

	NewPusher(conn, func(c candles.Candle) any {
		return NewCandleEnvelope(c)
	}, s.logger).Run(ctx, candleCh)

	<-done
}
