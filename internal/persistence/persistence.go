// Package persistence is the thin, out-of-scope-core sink the indexer
// and chain host write finalized state to once it has already taken
// effect in memory (§1: "persistence of balances is out of scope");
// nothing in internal/matching, internal/ledger, or internal/chain
// reads from or depends on this package. It exists so trades and
// candles survive a process restart, grounded on the teacher's
// internal/config database helpers (gorm.Open + connection pool
// tuning), narrowed from SQLite/HFT pragmas to the postgres driver
// named in the domain stack.
package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config names the postgres DSN and pool limits, filled in from
// config.Config.Database by the owning binary.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Open connects to postgres and runs AutoMigrate for the trade and
// candle rows. Silent logger mode matches the teacher's
// SilentLogger default for a latency-sensitive write path.
func Open(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.dsn()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	if err := db.AutoMigrate(&TradeRow{}, &CandleRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return db, nil
}

// TradeRow is the durable record of a settled trade (§4.2 Trade,
// flattened for storage).
type TradeRow struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Symbol       string `gorm:"index"`
	BuyOrderID   uint64
	SellOrderID  uint64
	Price        string
	Quantity     string
	ExecutedAtMs int64 `gorm:"index"`
}

func (TradeRow) TableName() string { return "trades" }

// CandleRow is the durable record of a closed OHLCV bucket (§4.6).
// Only closed candles are persisted — the in-memory aggregator is the
// source of truth for the candle still accumulating trades.
type CandleRow struct {
	Symbol     string `gorm:"primaryKey"`
	Timeframe  string `gorm:"primaryKey"`
	OpenTimeMs int64  `gorm:"primaryKey"`
	CloseTimeMs int64
	Open       string
	High       string
	Low        string
	Close      string
	Volume     string
	TradeCount int
}

func (CandleRow) TableName() string { return "candles" }

// TradeStore persists settled trades. Implementations must not block
// the matching engine's hot path; callers invoke it from an event
// subscriber goroutine, never inline with Finalize.
type TradeStore interface {
	SaveTrade(ctx context.Context, row TradeRow) error
}

// CandleStore persists closed candle buckets.
type CandleStore interface {
	SaveCandle(ctx context.Context, row CandleRow) error
}

// GormStore implements TradeStore and CandleStore against a *gorm.DB.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) SaveTrade(ctx context.Context, row TradeRow) error {
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) SaveCandle(ctx context.Context, row CandleRow) error {
	return s.db.WithContext(ctx).Save(&row).Error
}
