// Package candles implements C6: the multi-timeframe OHLCV roll-up fed
// by TradeExecuted events — generalized from the teacher's
// internal/trading/market_data/timeframe.TimeframeAggregator, but
// publishing every candle on one shared broadcast hub instead of its
// per-symbol subscriber callbacks, replacing its calendar-field
// bucketing with the exact epoch-millisecond bucket arithmetic this
// system specifies, and float64 prices with amount.Amount.
package candles

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/broadcast"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"go.uber.org/zap"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// Timeframe is one of the fixed supported bucket durations.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// durationsMs holds every supported timeframe's bucket length.
var durationsMs = map[Timeframe]int64{
	TF1m:  60_000,
	TF5m:  300_000,
	TF15m: 900_000,
	TF30m: 1_800_000,
	TF1h:  3_600_000,
	TF4h:  14_400_000,
	TF1d:  86_400_000,
}

// DurationMs returns the bucket length of tf in milliseconds.
func DurationMs(tf Timeframe) int64 { return durationsMs[tf] }

// AllTimeframes lists every timeframe a trade is folded into, in the
// order §4.6 lists them.
var AllTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d}

// Candle is one current (possibly still open) OHLCV bar for a
// (symbol, timeframe).
type Candle struct {
	Symbol     string
	Timeframe  Timeframe
	Open       amount.Amount
	High       amount.Amount
	Low        amount.Amount
	Close      amount.Amount
	Volume     amount.Amount
	OpenTime   int64
	CloseTime  int64
	TradeCount int
}

type candleKey struct {
	symbol string
	tf     Timeframe
}

// Aggregator maintains the current candle for every (symbol,
// timeframe) pair it has seen a trade for, and broadcasts every update
// (including roll-overs) through a single shared hub — the teacher's
// aggregator instead hands each update to per-symbol subscriber
// callbacks; this repo routes all of them through one
// `*broadcast.Hub[Candle]`, keyed by the Candle's own Symbol/Timeframe
// fields, since that's the envelope shape §4.6 broadcasts already
// carry.
type Aggregator struct {
	mu        sync.RWMutex
	current   map[candleKey]*Candle
	hub       *broadcast.Hub[Candle]
	rollover  map[Timeframe][]func(Candle)
	logger    *zap.Logger
}

// NewAggregator creates an empty Aggregator whose candle-update hub
// buffers bufferSize messages per subscriber.
func NewAggregator(bufferSize int, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		current:  make(map[candleKey]*Candle),
		hub:      broadcast.New[Candle](bufferSize, logger),
		rollover: make(map[Timeframe][]func(Candle)),
		logger:   logger,
	}
}

// Hub exposes the candle broadcast hub for subscribers.
func (a *Aggregator) Hub() *broadcast.Hub[Candle] { return a.hub }

// OnRollover registers fn to be called with the just-closed candle
// every time tf's bucket advances — the durable persistence hook,
// since the bucket still accumulating trades has nothing final to
// write yet.
func (a *Aggregator) OnRollover(tf Timeframe, fn func(Candle)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollover[tf] = append(a.rollover[tf], fn)
}

// Run registers the aggregator against bus's TradeExecuted events for
// the given symbol — the matching engine's event stream carries no
// symbol field (a single-market engine, per spec), so the caller
// supplies the symbol this Aggregator instance represents.
func (a *Aggregator) Run(bus events.Bus, symbol string) {
	bus.SubscribeToType("TradeExecuted", func(ev events.Event) {
		trade := ev.(events.TradeExecuted)
		a.ProcessTrade(symbol, trade.Price, trade.Quantity, nowMs())
	})
}

// ProcessTrade folds one trade into every supported timeframe's
// current candle, exactly per §4.6's four-step algorithm, and
// broadcasts each (possibly just-created) current candle.
func (a *Aggregator) ProcessTrade(symbol string, price, quantity amount.Amount, tMs int64) {
	for _, tf := range AllTimeframes {
		a.processTradeForTimeframe(symbol, tf, price, quantity, tMs)
	}
}

func (a *Aggregator) processTradeForTimeframe(symbol string, tf Timeframe, price, quantity amount.Amount, tMs int64) {
	durMs := durationsMs[tf]
	start := (tMs / durMs) * durMs
	key := candleKey{symbol: symbol, tf: tf}

	a.mu.Lock()
	cur, ok := a.current[key]
	var closed *Candle
	if ok && tMs >= cur.OpenTime && tMs < cur.OpenTime+durMs {
		if price.GreaterThan(cur.High) {
			cur.High = price
		}
		if price.LessThan(cur.Low) {
			cur.Low = price
		}
		cur.Close = price
		cur.Volume = cur.Volume.SaturatingAdd(quantity)
		cur.CloseTime = tMs
		cur.TradeCount++
	} else {
		if ok {
			snapshot := *cur
			closed = &snapshot
		}
		cur = &Candle{
			Symbol: symbol, Timeframe: tf,
			Open: price, High: price, Low: price, Close: price,
			Volume: quantity, OpenTime: start, CloseTime: tMs, TradeCount: 1,
		}
		a.current[key] = cur
	}
	out := *cur
	callbacks := a.rollover[tf]
	a.mu.Unlock()

	if closed != nil {
		for _, cb := range callbacks {
			cb(*closed)
		}
	}
	a.hub.Publish(out)
}

// Current returns a copy of the current candle for (symbol, tf), or
// ok=false if no trade has been seen for it yet.
func (a *Aggregator) Current(symbol string, tf Timeframe) (Candle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cur, ok := a.current[candleKey{symbol: symbol, tf: tf}]
	if !ok {
		return Candle{}, false
	}
	return *cur, true
}
