package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics contains Prometheus metrics for the audit sink.
type AuditMetrics struct {
	recordedTotal *prometheus.CounterVec
	droppedTotal  prometheus.Counter
	errorsTotal   *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(registry *prometheus.Registry) (*AuditMetrics, error) {
	m := &AuditMetrics{
		recordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_recorded_total",
				Help: "Audit events delivered to a backend",
			},
			[]string{"backend"},
		),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events dropped because the queue was full or closed",
		}),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_backend_errors_total",
				Help: "Audit backend failures",
			},
			[]string{"backend"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Audit events waiting for delivery",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register audit metrics: %w", err)
	}
	return m, nil
}

// RecordDelivered counts an event accepted by a backend.
func (m *AuditMetrics) RecordDelivered(backend string) {
	if m == nil {
		return
	}
	m.recordedTotal.WithLabelValues(backend).Inc()
}

// RecordDropped counts an event that never reached a backend.
func (m *AuditMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

// RecordBackendError counts a backend failure.
func (m *AuditMetrics) RecordBackendError(backend string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(backend).Inc()
}

// SetQueueDepth reports the current queue length.
func (m *AuditMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// Describe implements the prometheus.Collector interface.
func (m *AuditMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.recordedTotal.Describe(ch)
	ch <- m.droppedTotal.Desc()
	m.errorsTotal.Describe(ch)
	ch <- m.queueDepth.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *AuditMetrics) Collect(ch chan<- prometheus.Metric) {
	m.recordedTotal.Collect(ch)
	ch <- m.droppedTotal
	m.errorsTotal.Collect(ch)
	ch <- m.queueDepth
}
