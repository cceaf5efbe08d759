package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics contains Prometheus metrics for work day reconciliation.
type ReconcileMetrics struct {
	reconcilesTotal   *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	failuresTotal     *prometheus.CounterVec
	anomaliesTotal    *prometheus.CounterVec
	conflictRetries   prometheus.Counter
}

// NewReconcileMetrics creates and registers reconcile metrics.
func NewReconcileMetrics(registry *prometheus.Registry) (*ReconcileMetrics, error) {
	m := &ReconcileMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register reconcile metrics: %w", err)
	}
	return m, nil
}

func (m *ReconcileMetrics) initMetrics() {
	m.reconcilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workday_reconciles_total",
			Help: "Total number of work day reconciles by outcome",
		},
		[]string{"outcome"}, // created, updated, unchanged, deleted, empty
	)

	m.reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "workday_reconcile_duration_seconds",
		Help:    "Time taken to reconcile one work day key",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workday_reconcile_failures_total",
			Help: "Total number of failed reconciles by error category",
		},
		[]string{"category"},
	)

	m.anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workday_pairing_anomalies_total",
			Help: "Clock events that could not be paired, by kind",
		},
		[]string{"kind"},
	)

	m.conflictRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workday_reconcile_conflict_retries_total",
		Help: "Reconciles retried after losing a unique constraint race",
	})
}

// RecordReconcile records a finished reconcile.
func (m *ReconcileMetrics) RecordReconcile(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcilesTotal.WithLabelValues(outcome).Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
}

// RecordFailure records a reconcile that returned an error.
func (m *ReconcileMetrics) RecordFailure(category string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(category).Inc()
}

// RecordAnomaly adds count findings of the given kind.
func (m *ReconcileMetrics) RecordAnomaly(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.anomaliesTotal.WithLabelValues(kind).Add(float64(count))
}

// RecordConflictRetry counts a retried insert race.
func (m *ReconcileMetrics) RecordConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *ReconcileMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.reconcilesTotal.Describe(ch)
	m.reconcileDuration.Describe(ch)
	m.failuresTotal.Describe(ch)
	m.anomaliesTotal.Describe(ch)
	m.conflictRetries.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ReconcileMetrics) Collect(ch chan<- prometheus.Metric) {
	m.reconcilesTotal.Collect(ch)
	m.reconcileDuration.Collect(ch)
	m.failuresTotal.Collect(ch)
	m.anomaliesTotal.Collect(ch)
	m.conflictRetries.Collect(ch)
}
