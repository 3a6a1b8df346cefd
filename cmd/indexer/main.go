// Command indexer runs the read-side projection: it subscribes to the
// same event stream cmd/clobchaind publishes, maintains the L2
// orderbook and OHLCV candles in memory, and serves both over
// WebSocket — grounded on the teacher's cmd/marketdata bootstrap shape,
// adapted from a gRPC service to an event-sourced WebSocket indexer.
package main

import (
	"context"
	"flag"
	"net/http"
	"strconv"

	"github.com/abdoElHodaky/clobchain/internal/candles"
	"github.com/abdoElHodaky/clobchain/internal/config"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/abdoElHodaky/clobchain/internal/health"
	"github.com/abdoElHodaky/clobchain/internal/orderbook"
	"github.com/abdoElHodaky/clobchain/internal/persistence"
	"github.com/abdoElHodaky/clobchain/internal/transport/ws"
	"github.com/abdoElHodaky/clobchain/pkg/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := config.InitLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	app := fx.New(
		fx.Supply(cfg, logger),
		fx.Provide(newBus),
		fx.Provide(newReducer),
		fx.Provide(newAggregator),
		metrics.Module,
		fx.Invoke(runProjections),
		fx.Invoke(runHTTPServer),
		fx.Invoke(wireCandlePersistence),
		fx.Invoke(runHealthServer),
	)
	app.Run()
}

func newBus(cfg *config.Config, logger *zap.Logger) (events.Bus, error) {
	if cfg.Events.Transport == "nats" {
		return events.NewNATSBus(events.NATSBusConfig{URL: cfg.Events.NATSURL, Topic: "clobchain." + cfg.Symbol}, logger)
	}
	return events.NewInMemoryBus(logger), nil
}

func newReducer(logger *zap.Logger) *orderbook.Reducer {
	return orderbook.NewReducer(64, logger)
}

func newAggregator(logger *zap.Logger) *candles.Aggregator {
	return candles.NewAggregator(64, logger)
}

func runProjections(bus events.Bus, reducer *orderbook.Reducer, agg *candles.Aggregator, cfg *config.Config) {
	reducer.Run(bus)
	agg.Run(bus, cfg.Symbol)
}

func runHTTPServer(lc fx.Lifecycle, cfg *config.Config, reducer *orderbook.Reducer, agg *candles.Aggregator, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.WebSocket.Path, ws.NewServer(cfg.Symbol, reducer, agg, logger))

	server := &http.Server{
		Addr:    cfg.WebSocket.Host + ":" + strconv.Itoa(cfg.WebSocket.Port),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("starting websocket server", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("websocket server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// runHealthServer exposes /health, /health/ready and /health/live on
// their own port, independent of the WebSocket push port.
func runHealthServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	mux := http.NewServeMux()
	health.New("indexer", "dev", nil, logger).Register(mux)
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Monitoring.HealthPort), Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("health server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// wireCandlePersistence saves each candle's prior bucket once a trade
// rolls the aggregator over to a new one, so the only candle ever
// missing from storage on a crash is the one still accumulating
// trades.
func wireCandlePersistence(lc fx.Lifecycle, agg *candles.Aggregator, cfg *config.Config, logger *zap.Logger) {
	db, err := persistence.Open(persistence.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, Name: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Warn("candle persistence disabled: could not open database", zap.Error(err))
		return
	}
	store := persistence.NewGormStore(db)

	for _, tf := range candles.AllTimeframes {
		tf := tf
		agg.OnRollover(tf, func(c candles.Candle) {
			row := persistence.CandleRow{
				Symbol: c.Symbol, Timeframe: string(c.Timeframe),
				OpenTimeMs: c.OpenTime, CloseTimeMs: c.CloseTime,
				Open: c.Open.String(), High: c.High.String(), Low: c.Low.String(), Close: c.Close.String(),
				Volume: c.Volume.String(), TradeCount: c.TradeCount,
			}
			if err := store.SaveCandle(context.Background(), row); err != nil {
				logger.Warn("failed to persist candle", zap.Error(err), zap.String("timeframe", string(tf)))
			}
		})
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return nil
			}
			return sqlDB.Close()
		},
	})
}
