package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "BASEQUOTE", cfg.Symbol)
	assert.Equal(t, "inmemory", cfg.Events.Transport)
	assert.Equal(t, 8081, cfg.WebSocket.Port)
	assert.Equal(t, 16, cfg.Replay.PoolSize)
}

func TestGetConfigReturnsSameInstanceAsLoadConfig(t *testing.T) {
	loaded, err := LoadConfig("")
	require.NoError(t, err)
	assert.Same(t, loaded, GetConfig())
}

func TestInitLoggerSelectsDevelopmentForDebugLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Monitoring.LogLevel = "debug"
	logger, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestInitLoggerSelectsProductionForUnknownLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Monitoring.LogLevel = "nonsense"
	logger, err := InitLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
