package candles

import (
	"testing"

	"github.com/abdoElHodaky/clobchain/internal/amount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstTradeOpensCandle(t *testing.T) {
	a := NewAggregator(8, nil)
	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(5), 1_000)

	c, ok := a.Current("BASEQUOTE", TF1m)
	require.True(t, ok)
	assert.Equal(t, amount.New(100), c.Open)
	assert.Equal(t, amount.New(100), c.High)
	assert.Equal(t, amount.New(100), c.Low)
	assert.Equal(t, amount.New(100), c.Close)
	assert.Equal(t, amount.New(5), c.Volume)
	assert.Equal(t, int64(0), c.OpenTime)
	assert.Equal(t, 1, c.TradeCount)
}

func TestTradeWithinBucketUpdatesCandle(t *testing.T) {
	a := NewAggregator(8, nil)
	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(5), 1_000)
	a.ProcessTrade("BASEQUOTE", amount.New(110), amount.New(3), 30_000)
	a.ProcessTrade("BASEQUOTE", amount.New(90), amount.New(2), 59_000)

	c, ok := a.Current("BASEQUOTE", TF1m)
	require.True(t, ok)
	assert.Equal(t, amount.New(100), c.Open)
	assert.Equal(t, amount.New(110), c.High)
	assert.Equal(t, amount.New(90), c.Low)
	assert.Equal(t, amount.New(90), c.Close)
	assert.Equal(t, amount.New(10), c.Volume)
	assert.Equal(t, 3, c.TradeCount)
	assert.Equal(t, int64(59_000), c.CloseTime)
}

func TestTradeInNextBucketRollsOver(t *testing.T) {
	a := NewAggregator(8, nil)
	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(5), 1_000)
	a.ProcessTrade("BASEQUOTE", amount.New(200), amount.New(1), 61_000) // next 1m bucket

	c, ok := a.Current("BASEQUOTE", TF1m)
	require.True(t, ok)
	assert.Equal(t, int64(60_000), c.OpenTime)
	assert.Equal(t, amount.New(200), c.Open)
	assert.Equal(t, amount.New(200), c.High)
	assert.Equal(t, amount.New(200), c.Low)
	assert.Equal(t, amount.New(1), c.Volume)
	assert.Equal(t, 1, c.TradeCount)
}

func TestEveryTimeframeGetsAnIndependentCandle(t *testing.T) {
	a := NewAggregator(8, nil)
	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(1), 1_000)

	for _, tf := range AllTimeframes {
		_, ok := a.Current("BASEQUOTE", tf)
		assert.True(t, ok, "expected a current candle for %s", tf)
	}
}

func TestBucketBoundsUseIntegerDivision(t *testing.T) {
	a := NewAggregator(8, nil)
	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(1), 3_600_001) // 1h bucket 2 starts here

	c, ok := a.Current("BASEQUOTE", TF1h)
	require.True(t, ok)
	assert.Equal(t, int64(3_600_000), c.OpenTime)
}

func TestOnRolloverFiresWithClosedCandleOnBucketAdvance(t *testing.T) {
	a := NewAggregator(8, nil)

	var closed Candle
	fired := false
	a.OnRollover(TF1m, func(c Candle) {
		fired = true
		closed = c
	})

	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(5), 1_000)
	assert.False(t, fired, "no rollover yet on the first trade")

	a.ProcessTrade("BASEQUOTE", amount.New(200), amount.New(1), 61_000)
	require.True(t, fired)
	assert.Equal(t, int64(0), closed.OpenTime)
	assert.Equal(t, amount.New(100), closed.Close)
	assert.Equal(t, 1, closed.TradeCount)
}

func TestOnRolloverDoesNotFireForOtherTimeframes(t *testing.T) {
	a := NewAggregator(8, nil)

	fired := false
	a.OnRollover(TF1h, func(Candle) { fired = true })

	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(5), 1_000)
	a.ProcessTrade("BASEQUOTE", amount.New(200), amount.New(1), 61_000) // rolls 1m, not 1h

	assert.False(t, fired)
}

func TestBroadcastsOnEveryTrade(t *testing.T) {
	a := NewAggregator(8, nil)
	_, ch, unsub := a.Hub().Subscribe()
	defer unsub()

	a.ProcessTrade("BASEQUOTE", amount.New(100), amount.New(1), 1_000)

	seen := 0
	for seen < len(AllTimeframes) {
		<-ch
		seen++
	}
	assert.Equal(t, len(AllTimeframes), seen)
}
