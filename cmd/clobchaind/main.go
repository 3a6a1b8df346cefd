// Command clobchaind runs the block host: it wires the ledger, matching
// engine and chain.Host together, drives FinalizeBlock on a fixed
// interval, and persists settled trades. It exposes no place_order or
// cancel_order endpoint of its own — grounded on the
// teacher's cmd/marketdata's fx.New/fx.Lifecycle wiring shape, adapted
// from a gRPC server bootstrap to a block-producing loop.
package main

import (
	"context"
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/abdoElHodaky/clobchain/internal/chain"
	"github.com/abdoElHodaky/clobchain/internal/config"
	"github.com/abdoElHodaky/clobchain/internal/events"
	"github.com/abdoElHodaky/clobchain/internal/health"
	"github.com/abdoElHodaky/clobchain/internal/ledger"
	"github.com/abdoElHodaky/clobchain/internal/matching"
	"github.com/abdoElHodaky/clobchain/internal/persistence"
	"github.com/abdoElHodaky/clobchain/internal/replay"
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
		fx.Provide(newLedger),
		fx.Provide(newEngine),
		fx.Provide(newHost),
		fx.Provide(newReplayBot),
		metrics.Module,
		fx.Invoke(runBlockProducer),
		fx.Invoke(wirePersistence),
		fx.Invoke(runReplay),
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

func newLedger(bus events.Bus, logger *zap.Logger) *ledger.Ledger {
	return ledger.New(bus, logger)
}

func newEngine(l *ledger.Ledger, bus events.Bus, logger *zap.Logger) *matching.Engine {
	return matching.New(l, bus, logger)
}

func newHost(l *ledger.Ledger, engine *matching.Engine, bus events.Bus, cfg *config.Config, logger *zap.Logger) *chain.Host {
	return chain.New(l, engine, bus, chain.Config{
		MaxPendingOrders:        cfg.Chain.MaxPendingOrders,
		MaxOpenOrdersPerUser:    cfg.Chain.MaxOpenOrdersPerUser,
		MaxPendingCancellations: cfg.Chain.MaxPendingCancellations,
	}, logger)
}

func newReplayBot(cfg *config.Config, logger *zap.Logger) (*replay.Bot, error) {
	rc := replay.DefaultConfig()
	if cfg.Replay.PoolSize > 0 {
		rc.PoolSize = cfg.Replay.PoolSize
	}
	return replay.NewBot(rc, logger)
}

// runBlockProducer starts a ticker that calls host.FinalizeBlock on
// every tick, the block-cadence analogue of an on-chain block timer.
// This standalone engine has no consensus layer of its own; the
// interval is the only notion of "block time" it carries.
func runBlockProducer(lc fx.Lifecycle, host *chain.Host, cfg *config.Config, eng *matching.Engine, m *metrics.Engine, logger *zap.Logger) {
	interval := time.Duration(cfg.Chain.BlockIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						start := time.Now()
						result := host.FinalizeBlock()
						m.ObserveBlock(time.Since(start))
						m.TradesSettled.Add(float64(len(result.Trades)))
						m.PendingOrders.Set(float64(eng.PendingOrderCount()))
						if len(result.Trades) > 0 {
							logger.Debug("block finalized", zap.Int("trades", len(result.Trades)))
						}
					case <-stop:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return nil
		},
	})
}

// wirePersistence subscribes TradeExecuted events and writes each
// settled trade to the database, off the matching engine's hot path.
func wirePersistence(lc fx.Lifecycle, bus events.Bus, cfg *config.Config, logger *zap.Logger) {
	db, err := persistence.Open(persistence.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, Name: cfg.Database.Name, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Warn("persistence disabled: could not open database", zap.Error(err))
		return
	}
	store := persistence.NewGormStore(db)

	bus.SubscribeToType("TradeExecuted", func(ev events.Event) {
		t, ok := ev.(events.TradeExecuted)
		if !ok {
			return
		}
		row := persistence.TradeRow{
			ID:           uint64(t.TradeId),
			Symbol:       cfg.Symbol,
			BuyOrderID:   uint64(t.BuyOrderId),
			SellOrderID:  uint64(t.SellOrderId),
			Price:        t.Price.String(),
			Quantity:     t.Quantity.String(),
			ExecutedAtMs: time.Now().UnixMilli(),
		}
		// The in-memory bus calls this handler from inside FinalizeBlock,
		// so the database write runs on its own goroutine.
		go func() {
			if err := store.SaveTrade(context.Background(), row); err != nil {
				logger.Warn("failed to persist trade", zap.Error(err), zap.Uint64("trade_id", uint64(t.TradeId)))
			}
		}()
	})

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

// runHealthServer exposes /health, /health/ready and /health/live
// alongside the block producer so an orchestrator can probe this
// process independently of the Prometheus scrape port.
func runHealthServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) {
	mux := http.NewServeMux()
	health.New("clobchaind", "dev", nil, logger).Register(mux)
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

func runReplay(lc fx.Lifecycle, bot *replay.Bot) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			bot.Release()
			return nil
		},
	})
}
