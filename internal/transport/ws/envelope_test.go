package ws

import (
	"bytes"
	"io"
	"testing"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/abdoElHodaky/clobchain/internal/candles"
	"github.com/abdoElHodaky/clobchain/internal/orderbook"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
)

func TestNewOrderbookEnvelopeOrdersSidesCorrectly(t *testing.T) {
	snap := orderbook.Snapshot{
		Bids: []orderbook.PriceLevel{{Price: amount.New(101), TotalQuantity: amount.New(5), OrderCount: 2}},
		Asks: []orderbook.PriceLevel{{Price: amount.New(103), TotalQuantity: amount.New(3), OrderCount: 1}},
	}
	env := NewOrderbookEnvelope("BASEQUOTE", 1_000, snap)

	assert.Equal(t, "orderbook", env.Type)
	assert.Equal(t, "BASEQUOTE", env.Symbol)
	assert.Len(t, env.Levels[0], 1)
	assert.Len(t, env.Levels[1], 1)
	assert.Equal(t, "101", env.Levels[0][0].Px)
	assert.Equal(t, "5", env.Levels[0][0].Sz)
	assert.Equal(t, 2, env.Levels[0][0].N)
	assert.Equal(t, "103", env.Levels[1][0].Px)
}

func TestNewCandleEnvelopeComputesBucketEnd(t *testing.T) {
	c := candles.Candle{
		Symbol: "BASEQUOTE", Timeframe: candles.TF1m,
		Open: amount.New(100), High: amount.New(110), Low: amount.New(90), Close: amount.New(105),
		Volume: amount.New(12), OpenTime: 60_000, CloseTime: 95_000, TradeCount: 4,
	}
	env := NewCandleEnvelope(c)

	assert.Equal(t, "candle", env.Type)
	assert.Equal(t, int64(60_000), env.Ts)
	assert.Equal(t, int64(120_000), env.T) // open_time + 1m bucket length
	assert.Equal(t, "100", env.O)
	assert.Equal(t, "110", env.H)
	assert.Equal(t, "90", env.L)
	assert.Equal(t, "105", env.C)
	assert.Equal(t, "12", env.V)
	assert.Equal(t, "1m", env.I)
	assert.Equal(t, 4, env.N)
}

func TestShouldCompressThreshold(t *testing.T) {
	assert.False(t, shouldCompress(compressMinSize-1))
	assert.True(t, shouldCompress(compressMinSize))
}

func TestCompressRoundTripsSmallerOrEqual(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 7)
	}
	out, err := compress(data)
	assert.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), len(data))

	back, err := io.ReadAll(flate.NewReader(bytes.NewReader(out)))
	assert.NoError(t, err)
	assert.Equal(t, data, back)
}
