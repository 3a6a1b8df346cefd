package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDSNIncludesAllFields(t *testing.T) {
	cfg := Config{
		Host:     "db.internal",
		Port:     5432,
		User:     "clob",
		Password: "secret",
		Name:     "clobchain",
		SSLMode:  "disable",
	}

	dsn := cfg.dsn()

	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "user=clob")
	assert.Contains(t, dsn, "password=secret")
	assert.Contains(t, dsn, "dbname=clobchain")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestTradeRowTableName(t *testing.T) {
	assert.Equal(t, "trades", TradeRow{}.TableName())
}

func TestCandleRowTableName(t *testing.T) {
	assert.Equal(t, "candles", CandleRow{}.TableName())
}
