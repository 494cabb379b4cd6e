// Package metrics provides the Prometheus metrics of the motion-coach backend.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains Prometheus metrics for HTTP traffic, AI calls and media processing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	aiCalls    *prometheus.CounterVec
	aiDuration *prometheus.HistogramVec

	ingestions *prometheus.CounterVec
	analyses   *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// New creates and registers the metrics on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motioncoach_http_request_duration_seconds",
			Help:    "Time taken to handle HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.aiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_ai_calls_total",
			Help: "Total number of calls made to the AI service",
		},
		[]string{"operation", "outcome"},
	)
	m.aiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motioncoach_ai_call_duration_seconds",
			Help:    "Time taken by AI service calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"operation"},
	)

	m.ingestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_ingestions_total",
			Help: "Total number of media uploads by outcome",
		},
		[]string{"media_type", "outcome"},
	)
	m.analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motioncoach_analysis_requests_total",
			Help: "Total number of analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	m.collectors = []prometheus.Collector{
		m.httpRequests, m.httpDuration,
		m.aiCalls, m.aiDuration,
		m.ingestions, m.analyses,
	}
}

// Registry returns the registry the metrics were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// ObserveHTTPRequest records a handled request. route is the matched route pattern.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveAICall records one outbound AI call.
func (m *Metrics) ObserveAICall(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.WithLabelValues(operation, outcome).Inc()
	m.aiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordIngestion(mediaType, outcome string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(mediaType, outcome).Inc()
}

func (m *Metrics) RecordAnalysis(outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
}
