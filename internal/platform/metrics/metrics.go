package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP level Prometheus metrics for the application.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec
	AuthFailures    *prometheus.CounterVec
}

// New creates and registers all HTTP metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg, so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_http_requests_total",
			Help: "Total number of HTTP requests, labeled by route pattern and status",
		}, []string{"method", "route", "status"}),
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pastebin_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pastebin_auth_failures_total",
			Help: "Total number of rejected credentials, labeled by kind",
		}, []string{"kind"}),
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route string, status int, durationSeconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.EndpointLatency.WithLabelValues(route).Observe(durationSeconds)
}

// IncrementAuthFailures counts a rejected bearer token or admin token.
func (m *Metrics) IncrementAuthFailures(kind string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(kind).Inc()
}
