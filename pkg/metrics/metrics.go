// Package metrics collects Prometheus metrics for the matching engine,
// block host, and WebSocket transport, grounded on the teacher's
// internal/metrics package (one prometheus.Registry, one collector
// struct per subsystem, fx.Invoke to expose the HTTP handler) narrowed
// to this system's own subsystems in place of the teacher's
// WebSocket/PeerJS pair.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRegistry creates the process's single Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Engine collects metrics for the matching engine and block host
// (§4.3-4.4): orders placed/cancelled, trades settled, phase latency,
// and the live pending/persistent book sizes.
type Engine struct {
	OrdersPlaced    prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrdersRejected  *prometheus.CounterVec
	TradesSettled   prometheus.Counter
	TradeVolume     prometheus.Counter
	BlockDuration   prometheus.Histogram
	PendingOrders   prometheus.Gauge
	PersistentOrders prometheus.Gauge
}

// NewEngine registers and returns the matching engine collector set.
func NewEngine(registry prometheus.Registerer) *Engine {
	e := &Engine{
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_orders_placed_total",
			Help: "Total number of orders accepted into the pending book.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_orders_cancelled_total",
			Help: "Total number of orders cancelled.",
		}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_rejected_total",
			Help: "Total number of orders rejected, by reason.",
		}, []string{"reason"}),
		TradesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_trades_settled_total",
			Help: "Total number of trades settled.",
		}),
		TradeVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_trade_volume_base_total",
			Help: "Cumulative settled trade volume, in base-asset minor units.",
		}),
		BlockDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clob_block_finalize_duration_seconds",
			Help:    "Wall-clock duration of a single Finalize call (phases A-E).",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
		}),
		PendingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clob_pending_orders",
			Help: "Current number of orders in the pending (intra-block) book.",
		}),
		PersistentOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clob_persistent_orders",
			Help: "Current number of orders in the persistent (cross-block) book.",
		}),
	}
	registry.MustRegister(
		e.OrdersPlaced, e.OrdersCancelled, e.OrdersRejected,
		e.TradesSettled, e.TradeVolume, e.BlockDuration,
		e.PendingOrders, e.PersistentOrders,
	)
	return e
}

// ObserveBlock records one Finalize call's duration.
func (e *Engine) ObserveBlock(d time.Duration) { e.BlockDuration.Observe(d.Seconds()) }

// Transport collects metrics for the WebSocket push path (§6),
// narrowed from the teacher's WebSocketMetrics down to the connection
// and push-failure counters this transport actually needs — no
// batching/compression-ratio histograms, since internal/transport/ws
// compresses unconditionally above a size threshold rather than
// adaptively.
type Transport struct {
	ActiveConnections prometheus.Gauge
	ConnectionTotal   prometheus.Counter
	PushesSent        *prometheus.CounterVec
	PushErrors        *prometheus.CounterVec
	SubscriberLag     *prometheus.GaugeVec
}

// NewTransport registers and returns the WebSocket transport collector set.
func NewTransport(registry prometheus.Registerer) *Transport {
	t := &Transport{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clob_ws_active_connections",
			Help: "Number of open WebSocket connections.",
		}),
		ConnectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_ws_connections_total",
			Help: "Total number of WebSocket connections accepted.",
		}),
		PushesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_ws_pushes_total",
			Help: "Total number of messages pushed, by channel (orderbook/candle).",
		}, []string{"channel"}),
		PushErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_ws_push_errors_total",
			Help: "Total number of push failures, by channel.",
		}, []string{"channel"}),
		SubscriberLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clob_broadcast_subscriber_lag",
			Help: "Messages dropped for a lagging broadcast subscriber, by hub.",
		}, []string{"hub"}),
	}
	registry.MustRegister(t.ActiveConnections, t.ConnectionTotal, t.PushesSent, t.PushErrors, t.SubscriberLag)
	return t
}

// Module wires the registry, collector sets, and the /metrics HTTP
// handler into an fx app, grounded on the teacher's metrics.Module /
// RegisterMetricsHandler.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Provide(NewEngine),
	fx.Provide(NewTransport),
	fx.Invoke(registerHandler),
)

type handlerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Registry  *prometheus.Registry
	Logger    *zap.Logger
	Config    Config `optional:"true"`
}

// Config names the address the /metrics endpoint listens on.
type Config struct {
	Addr string
}

func registerHandler(p handlerParams) {
	addr := p.Config.Addr
	if addr == "" {
		addr = ":9090"
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Logger.Info("starting metrics server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					p.Logger.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}
