// Package observability carries the service's metrics registry and logging
// helpers.
//
// Metrics live on a private prometheus.Registry so tests can build as many
// instances as they like. Every recording method is safe on a nil *Metrics,
// which lets components treat metrics as optional.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metrics for the timetable service.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance.
	Registry *prometheus.Registry

	// Extraction passes
	PassesTotal  *prometheus.CounterVec
	PassDuration prometheus.Histogram
	Routes       *prometheus.GaugeVec

	// Cache and diagnostics
	CacheLookups *prometheus.CounterVec
	Diagnostics  *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with a new registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetables_passes_total",
			Help: "Extraction passes by outcome",
		}, []string{"outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timetables_pass_duration_seconds",
			Help:    "Duration of extraction passes, rendering included",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		}),
		Routes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timetables_routes",
			Help: "Routes in the current schedule set by state",
		}, []string{"state"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetables_cache_lookups_total",
			Help: "Schedule set lookups by result (hit, miss, stale)",
		}, []string{"result"}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetables_diagnostics_total",
			Help: "Extraction diagnostics by kind",
		}, []string{"kind"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetables_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timetables_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.PassesTotal,
		m.PassDuration,
		m.Routes,
		m.CacheLookups,
		m.Diagnostics,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePass records the outcome ("ok", "failed") and duration of a pass.
func (m *Metrics) ObservePass(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PassesTotal.WithLabelValues(outcome).Inc()
	m.PassDuration.Observe(d.Seconds())
}

// SetRoutes publishes how many routes carry times and how many carry the
// no-service message.
func (m *Metrics) SetRoutes(served, noService int) {
	if m == nil {
		return
	}
	m.Routes.WithLabelValues("served").Set(float64(served))
	m.Routes.WithLabelValues("no_service").Set(float64(noService))
}

// CacheLookup counts one lookup by result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Diagnostic counts one extraction diagnostic.
func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.Diagnostics.WithLabelValues(kind).Inc()
}
