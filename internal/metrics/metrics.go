// Package metrics exposes the Prometheus instrumentation of the server and
// the queue daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector on one private registry so tests can hold
// independent instances.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts handled HTTP requests by method and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes request latency by method.
	RequestDuration *prometheus.HistogramVec

	// AccessDenied counts requests rejected by the access control engine.
	AccessDenied prometheus.Counter

	// TokensIssued counts issued bearer tokens and cookie sessions.
	TokensIssued *prometheus.CounterVec

	// PosixQueueDepth tracks queued POSIX requests by status band.
	PosixQueueDepth *prometheus.GaugeVec

	// JournalPathCache counts journal path cache hits and misses.
	JournalPathCache *prometheus.CounterVec

	// AuditRowsWritten counts stored audit log rows.
	AuditRowsWritten prometheus.Counter
}

// New creates a metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corefacility_http_requests_total",
			Help: "Handled HTTP requests.",
		}, []string{"method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corefacility_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corefacility_access_denied_total",
			Help: "Requests rejected by the access control engine.",
		}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corefacility_tokens_issued_total",
			Help: "Issued authentication credentials.",
		}, []string{"kind"}),
		PosixQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corefacility_posix_queue_depth",
			Help: "Queued POSIX requests by status.",
		}, []string{"status"}),
		JournalPathCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corefacility_journal_path_cache_total",
			Help: "Journal path cache lookups.",
		}, []string{"outcome"}),
		AuditRowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corefacility_audit_rows_written_total",
			Help: "Stored audit log rows.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AccessDenied,
		m.TokensIssued,
		m.PosixQueueDepth,
		m.JournalPathCache,
		m.AuditRowsWritten,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
