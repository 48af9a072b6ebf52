package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitDecisionsTotal         *prometheus.CounterVec
	RateLimitBansImposedTotal       *prometheus.CounterVec
	RateLimitAbuseAttemptsTotal     *prometheus.CounterVec
	RateLimitStoreErrorsTotal       *prometheus.CounterVec
	RateLimitStoreCircuitOpen       prometheus.Gauge
	RateLimitEventsDroppedTotal     prometheus.Counter
	RateLimitEventsWrittenTotal     prometheus.Counter
	RateLimitPatternsDetected       *prometheus.GaugeVec
	RateLimitCleanupRunsTotal       *prometheus.CounterVec
	RateLimitCleanupDurationSeconds prometheus.Histogram
	RateLimitCleanupKeysDeleted     *prometheus.CounterVec
}

// New registers the rate limit collectors with the default registry.
// Call it once per process.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RateLimitDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_decisions_total",
			Help: "Gate decisions by action and outcome",
		}, []string{"action", "outcome"}),
		RateLimitBansImposedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_bans_imposed_total",
			Help: "Temporary bans imposed, by abuse type",
		}, []string{"type"}),
		RateLimitAbuseAttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_abuse_attempts_total",
			Help: "Abuse attempts recorded, by abuse type",
		}, []string{"type"}),
		RateLimitStoreErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_store_errors_total",
			Help: "Store failures by operation",
		}, []string{"operation"}),
		RateLimitStoreCircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pastebin_ratelimit_store_circuit_open",
			Help: "1 while the store circuit breaker is open",
		}),
		RateLimitEventsDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_events_dropped_total",
			Help: "Events dropped because the event queue was full",
		}),
		RateLimitEventsWrittenTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_events_written_total",
			Help: "Events persisted to the store",
		}),
		RateLimitPatternsDetected: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pastebin_ratelimit_patterns_detected",
			Help: "Abuse patterns found by the last detection run, by type",
		}, []string{"type"}),
		RateLimitCleanupRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_cleanup_runs_total",
			Help: "Total number of cleanup runs",
		}, []string{"status"}),
		RateLimitCleanupDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "pastebin_ratelimit_cleanup_duration_seconds",
			Help: "Duration of cleanup runs in seconds",
		}),
		RateLimitCleanupKeysDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_ratelimit_cleanup_keys_deleted_total",
			Help: "Keys deleted by the cleanup job, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementDecision(action, outcome string) {
	if m == nil {
		return
	}
	m.RateLimitDecisionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementBans(abuseType string) {
	if m == nil {
		return
	}
	m.RateLimitBansImposedTotal.WithLabelValues(abuseType).Inc()
}

func (m *Metrics) IncrementAbuseAttempts(abuseType string) {
	if m == nil {
		return
	}
	m.RateLimitAbuseAttemptsTotal.WithLabelValues(abuseType).Inc()
}

func (m *Metrics) IncrementStoreErrors(operation string) {
	if m == nil {
		return
	}
	m.RateLimitStoreErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.RateLimitStoreCircuitOpen.Set(1)
		return
	}
	m.RateLimitStoreCircuitOpen.Set(0)
}

func (m *Metrics) IncrementEventsDropped() {
	if m == nil {
		return
	}
	m.RateLimitEventsDroppedTotal.Inc()
}

func (m *Metrics) IncrementEventsWritten() {
	if m == nil {
		return
	}
	m.RateLimitEventsWrittenTotal.Inc()
}

func (m *Metrics) SetPatternsDetected(patternType string, count int) {
	if m == nil {
		return
	}
	m.RateLimitPatternsDetected.WithLabelValues(patternType).Set(float64(count))
}

func (m *Metrics) IncrementCleanupRuns(status string) {
	if m == nil {
		return
	}
	m.RateLimitCleanupRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCleanupDuration(durationSeconds float64) {
	if m == nil {
		return
	}
	m.RateLimitCleanupDurationSeconds.Observe(durationSeconds)
}

func (m *Metrics) AddCleanupKeysDeleted(kind string, count int) {
	if m == nil {
		return
	}
	m.RateLimitCleanupKeysDeleted.WithLabelValues(kind).Add(float64(count))
}
