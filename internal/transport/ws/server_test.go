package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/candles"
	"github.com/abdoElHodaky/clobchain/internal/orderbook"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServerPushesOrderbookSnapshotToConnectedClient(t *testing.T) {
	reducer := orderbook.NewReducer(8, nil)
	agg := candles.NewAggregator(8, nil)
	srv := NewServer("BASEQUOTE", reducer, agg, nil)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(10 * time.Millisecond) // let the server subscribe before publishing

	reducer.Hub().Publish(orderbook.Snapshot{
		Bids: []orderbook.PriceLevel{{Price: amount.New(100), TotalQuantity: amount.New(1), OrderCount: 1}},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env OrderbookEnvelope
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "orderbook", env.Type)
	require.Equal(t, "BASEQUOTE", env.Symbol)
}
