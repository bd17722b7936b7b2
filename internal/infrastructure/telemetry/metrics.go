package telemetry

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "helpdesk"

// Metrics owns the Prometheus registry and the HTTP instruments. It is
// safe for concurrent use.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	authFailures    *prometheus.CounterVec
	schemaLeaks     prometheus.Counter
}

// NewMetrics creates a registry with the Go runtime and process collectors
// plus the HTTP instruments.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_failures_total",
			Help:      "Requests rejected while establishing identity",
		}, []string{"reason"}),
		schemaLeaks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tenant_schema_violations_total",
			Help:      "SQL statements that touched a schema of another tenant",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.authFailures,
		m.schemaLeaks,
	)
	return m
}

// Registry returns the registry for additional collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted tracks an in-flight request and returns the function
// recording its outcome. route is the matched route template, never the
// raw path, to keep label cardinality bounded.
func (m *Metrics) RequestStarted() func(method, route string, status int) {
	start := time.Now()
	m.inFlight.Inc()
	return func(method, route string, status int) {
		m.inFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthFailure counts a rejected identity (missing_token,
// invalid_token, unknown_tenant, suspended_tenant)
func (m *Metrics) RecordAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// RecordSchemaViolation counts a statement that left its tenant's schema
func (m *Metrics) RecordSchemaViolation() {
	m.schemaLeaks.Inc()
}

// RegisterDBStats exposes the connection pool statistics of sqlDB
func (m *Metrics) RegisterDBStats(sqlDB *sql.DB, dbName string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(sqlDB, dbName))
}
