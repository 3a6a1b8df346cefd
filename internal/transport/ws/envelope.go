// Package ws defines the wire envelopes C5/C6 push to WebSocket
// clients and a gorilla/websocket-based Pusher that adapts a
// broadcast.Hub[T] subscription to a socket connection. No HTTP
// router, auth, or REST handlers live here — per §1/§6, only the wire
// shape and the push mechanism are in scope; routing and auth are the
// out-of-scope outer surface.
package ws

import (
	"github.com/abdoElHodaky/clobchain/internal/candles"
	"github.com/abdoElHodaky/clobchain/internal/orderbook"
)

// Level is one row of an OrderbookEnvelope side.
type Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// OrderbookEnvelope is C5's wire format: §6, "{type: "orderbook",
// symbol, time: ms, levels: [bids, asks]}". Levels[0] is bids
// (descending), Levels[1] is asks (ascending).
type OrderbookEnvelope struct {
	Type   string     `json:"type"`
	Symbol string     `json:"symbol"`
	Time   int64      `json:"time"`
	Levels [2][]Level `json:"levels"`
}

// NewOrderbookEnvelope converts a reducer Snapshot to its wire form.
// The per-level size is the raw per-level quantity, not the
// cumulative-depth presentation §6 allows as an alternative.
func NewOrderbookEnvelope(symbol string, timeMs int64, snap orderbook.Snapshot) OrderbookEnvelope {
	env := OrderbookEnvelope{Type: "orderbook", Symbol: symbol, Time: timeMs}
	env.Levels[0] = levelsToWire(snap.Bids)
	env.Levels[1] = levelsToWire(snap.Asks)
	return env
}

func levelsToWire(levels []orderbook.PriceLevel) []Level {
	out := make([]Level, len(levels))
	for i, lv := range levels {
		out[i] = Level{Px: lv.Price.String(), Sz: lv.TotalQuantity.String(), N: lv.OrderCount}
	}
	return out
}

// CandleEnvelope is C6's wire format: §6, "{type: "candle", T: end_ms,
// t: start_ms, o, h, l, c, v, i: timeframe, s: symbol, n:
// trade_count}" with numeric fields as decimal strings.
type CandleEnvelope struct {
	Type string `json:"type"`
	T    int64  `json:"T"`
	Ts   int64  `json:"t"`
	O    string `json:"o"`
	H    string `json:"h"`
	L    string `json:"l"`
	C    string `json:"c"`
	V    string `json:"v"`
	I    string `json:"i"`
	S    string `json:"s"`
	N    int    `json:"n"`
}

// NewCandleEnvelope converts an aggregator Candle to its wire form.
func NewCandleEnvelope(c candles.Candle) CandleEnvelope {
	return CandleEnvelope{
		Type: "candle",
		T:    c.OpenTime + candles.DurationMs(c.Timeframe),
		Ts:   c.OpenTime,
		O:    c.Open.String(),
		H:    c.High.String(),
		L:    c.Low.String(),
		C:    c.Close.String(),
		V:    c.Volume.String(),
		I:    string(c.Timeframe),
		S:    c.Symbol,
		N:    c.TradeCount,
	}
}
