// Package observability provides Prometheus metrics for the projection engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's collectors and the registry they live in.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Rejected        *prometheus.CounterVec
	Debounce        *prometheus.CounterVec
	Comparisons     *prometheus.CounterVec
	Busy            prometheus.Gauge
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "projection"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Outbound calls to the calculation service by operation and outcome",
		}, []string{"operation", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Latency of outbound calls to the calculation service",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Evaluations dropped before reaching the network",
		}, []string{"reason"}),
		Debounce: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_total",
			Help:      "Debounced trigger transitions",
		}, []string{"event"}),
		Comparisons: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Comparison batches by aggregate outcome",
		}, []string{"outcome"}),
		Busy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy",
			Help:      "1 while a request is in flight",
		}),
	}
}

// ObserveRequest records one outbound call.
func (m *Metrics) ObserveRequest(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRejected records a dropped evaluation.
func (m *Metrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

// ObserveDebounce records a debounce transition.
func (m *Metrics) ObserveDebounce(event string) {
	if m == nil {
		return
	}
	m.Debounce.WithLabelValues(event).Inc()
}

// ObserveComparison records the aggregate outcome of a batch.
func (m *Metrics) ObserveComparison(outcome string) {
	if m == nil {
		return
	}
	m.Comparisons.WithLabelValues(outcome).Inc()
}

// SetBusy mirrors the busy flag.
func (m *Metrics) SetBusy(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.Busy.Set(1)
		return
	}
	m.Busy.Set(0)
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
