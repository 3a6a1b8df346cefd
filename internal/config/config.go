// Package config loads the configuration shared by cmd/clobchaind and
// cmd/indexer: same viper-backed LoadConfig/GetConfig singleton and
// environment-variable override shape as the teacher's
// internal/config.Config, narrowed to this system's own sections
// (chain resource caps, the event bus transport, the WebSocket push
// surface, and monitoring) in place of the teacher's
// server/peerjs/market-data/risk/auth sections.
package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the top-level configuration for both binaries. Fields a
// given binary doesn't need are simply left at their defaults.
type Config struct {
	// Symbol is the single market this process handles — the matching
	// engine and event stream are single-market (§3); a multi-market
	// deployment runs one process per symbol.
	Symbol string `mapstructure:"symbol"`

	// Chain bounds the block host's resource caps (§5) and the
	// interval at which cmd/clobchaind calls FinalizeBlock.
	Chain struct {
		MaxPendingOrders        int `mapstructure:"max_pending_orders"`
		MaxOpenOrdersPerUser    int `mapstructure:"max_open_orders_per_user"`
		MaxPendingCancellations int `mapstructure:"max_pending_cancellations"`
		BlockIntervalMs         int `mapstructure:"block_interval_ms"`
	} `mapstructure:"chain"`

	// Events selects the events.Bus transport: "inmemory" (the
	// default, single-process) or "nats".
	Events struct {
		Transport string `mapstructure:"transport"`
		NATSURL   string `mapstructure:"nats_url"`
	} `mapstructure:"events"`

	// WebSocket configuration
	WebSocket struct {
		Host           string `mapstructure:"host"`
		Port           int    `mapstructure:"port"`
		Path           string `mapstructure:"path"`
		MaxConnections int    `mapstructure:"max_connections"`
	} `mapstructure:"websocket"`

	// Database configuration, consumed by internal/persistence.
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	// Monitoring configuration
	Monitoring struct {
		PrometheusPort int    `mapstructure:"prometheus_port"`
		HealthPort     int    `mapstructure:"health_port"`
		LogLevel       string `mapstructure:"log_level"`
	} `mapstructure:"monitoring"`

	// Replay configures the synthetic trade replay bot.
	Replay struct {
		PoolSize int `mapstructure:"pool_size"`
	} `mapstructure:"replay"`
}

var (
	config *Config
	vCfg   *viper.Viper
	once   sync.Once
)

// LoadConfig loads the configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		config = &Config{}

		// Set default values
		setDefaults()

		// Initialize viper
		v := viper.New()
		vCfg = v
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Add config path
		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
				v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/clobchain")
		}

		// Read environment variables
		v.AutomaticEnv()
		v.SetEnvPrefix("CLOBCHAIN")

		// Read config file
		if err = v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config file: %w", err)
				return
			}
			// Config file not found, using defaults and environment variables
			err = nil
		}

		// Unmarshal config
		if err = v.Unmarshal(config); err != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", err)
			return
		}
	})

	return config, err
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if config == nil {
		_, err := LoadConfig("")
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	}
	return config
}

// NewWatcher builds a Watcher over the viper instance LoadConfig
// created. Panics if called before LoadConfig — there is nothing to
// watch yet.
func NewWatcher(logger *zap.Logger) *Watcher {
	if vCfg == nil {
		panic("config: NewWatcher called before LoadConfig")
	}
	return newWatcher(vCfg, logger)
}

// setDefaults sets default values for the configuration
func setDefaults() {
	config.Symbol = "BASEQUOTE"

	config.Chain.MaxPendingOrders = 10_000
	config.Chain.MaxOpenOrdersPerUser = 100
	config.Chain.MaxPendingCancellations = 1_000
	config.Chain.BlockIntervalMs = 1_000

	config.Events.Transport = "inmemory"
	config.Events.NATSURL = "nats://localhost:4222"

	// WebSocket defaults
	config.WebSocket.Host = "0.0.0.0"
	config.WebSocket.Port = 8081
	config.WebSocket.Path = "/ws"
	config.WebSocket.MaxConnections = 1000

	// Database defaults
	config.Database.Host = "localhost"
	config.Database.Port = 5432
	config.Database.User = "postgres"
	config.Database.Name = "clobchain"
	config.Database.SSLMode = "disable"

	// Monitoring defaults
	config.Monitoring.PrometheusPort = 9090
	config.Monitoring.HealthPort = 8082
	config.Monitoring.LogLevel = "info"

	config.Replay.PoolSize = 16
}

// InitLogger initializes the logger based on the configuration
func InitLogger(cfg *Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch cfg.Monitoring.LogLevel {
	case "debug":
		logger, err = zap.NewDevelopment()
	case "info", "warn", "error":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
