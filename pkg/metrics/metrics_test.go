package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestNewEngineRegistersWithoutPanicking(t *testing.T) {
	registry := prometheus.NewRegistry()
	e := NewEngine(registry)
	e.OrdersPlaced.Inc()
	assert.Equal(t, 1.0, counterValue(t, e.OrdersPlaced))
}

func TestObserveBlockRecordsDuration(t *testing.T) {
	e := NewEngine(prometheus.NewRegistry())
	e.ObserveBlock(5 * time.Millisecond)

	m := &dto.Metric{}
	require.NoError(t, e.BlockDuration.Write(m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestNewTransportRegistersWithoutPanicking(t *testing.T) {
	registry := prometheus.NewRegistry()
	tr := NewTransport(registry)
	tr.PushesSent.WithLabelValues("orderbook").Inc()
	assert.Equal(t, 1.0, counterValue(t, tr.PushesSent.WithLabelValues("orderbook")))
}
