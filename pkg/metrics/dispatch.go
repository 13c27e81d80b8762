package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MatchInRadius = "in_radius"
	MatchFallback = "fallback"
	MatchNone     = "none"
)

// DispatchMetrics records state-machine and retry telemetry.
type DispatchMetrics struct {
	transitions *prometheus.CounterVec
	retries     *prometheus.CounterVec
	exhausted   prometheus.Counter
	txDuration  *prometheus.HistogramVec
	matches     *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_status_transitions_total",
		Help: "Committed status transitions by entity and target status.",
	}, []string{"entity", "status"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_tx_retries_total",
		Help: "Transactions replayed after a write conflict, by failed attempt number.",
	}, []string{"attempt"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_tx_conflicts_exhausted_total",
		Help: "Transactions that still conflicted after the last attempt.",
	})
	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_tx_duration_seconds",
		Help:    "Wall time of retried transactions including backoff.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_courier_match_total",
		Help: "Courier matcher outcomes.",
	}, []string{"outcome"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_side_effect_failures_total",
		Help: "Post-commit side effects that failed and were dropped.",
	}, []string{"sink"})
	reg.MustRegister(transitions, retries, exhausted, txDuration, matches, sideEffects)
	return &DispatchMetrics{
		transitions: transitions,
		retries:     retries,
		exhausted:   exhausted,
		txDuration:  txDuration,
		matches:     matches,
		sideEffects: sideEffects,
	}
}

// IncTransition counts a committed status change.
func (d *DispatchMetrics) IncTransition(entity, status string) {
	if d == nil || d.transitions == nil {
		return
	}
	d.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(status)).Inc()
}

// IncMatch counts a matcher outcome (MatchInRadius, MatchFallback, MatchNone).
func (d *DispatchMetrics) IncMatch(outcome string) {
	if d == nil || d.matches == nil {
		return
	}
	d.matches.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncSideEffectFailure counts a dropped notification or event.
func (d *DispatchMetrics) IncSideEffectFailure(sink string) {
	if d == nil || d.sideEffects == nil {
		return
	}
	d.sideEffects.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (d *DispatchMetrics) ObserveTxRetry(attempt int) {
	if d == nil || d.retries == nil {
		return
	}
	d.retries.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (d *DispatchMetrics) ObserveTxExhausted() {
	if d == nil || d.exhausted == nil {
		return
	}
	d.exhausted.Inc()
}

func (d *DispatchMetrics) ObserveTxDuration(outcome string, duration time.Duration) {
	if d == nil || d.txDuration == nil {
		return
	}
	d.txDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}
