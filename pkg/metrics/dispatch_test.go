package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.IncTransition("order", "READY")
	m.IncTransition("order", "READY")
	m.IncMatch(MatchFallback)
	m.IncSideEffectFailure("realtime")
	m.ObserveTxRetry(1)
	m.ObserveTxRetry(2)
	m.ObserveTxExhausted()
	m.ObserveTxDuration("conflict", 450*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("order", "READY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.matches.WithLabelValues(MatchFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sideEffects.WithLabelValues("realtime")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exhausted))
	series, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, series)

	observer, ok := m.txDuration.WithLabelValues("conflict").(prometheus.Metric)
	require.True(t, ok)
	var sample dto.Metric
	require.NoError(t, observer.Write(&sample))
	assert.Equal(t, uint64(1), sample.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.45, sample.GetHistogram().GetSampleSum(), 0.0001)
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.IncTransition("order", "READY")
	m.ObserveTxExhausted()

	noop := NewDispatchMetrics(nil)
	noop.IncMatch(MatchNone)
	noop.ObserveTxDuration("committed", time.Second)
}
