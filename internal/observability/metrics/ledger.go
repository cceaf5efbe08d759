package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics contains Prometheus metrics for correction ledger operations.
type LedgerMetrics struct {
	correctionsTotal *prometheus.CounterVec
	operationsTotal  *prometheus.CounterVec
	replayedTotal    *prometheus.CounterVec
}

// NewLedgerMetrics creates and registers ledger metrics.
func NewLedgerMetrics(registry *prometheus.Registry) (*LedgerMetrics, error) {
	m := &LedgerMetrics{
		correctionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_corrections_total",
				Help: "Total number of corrections written by kind",
			},
			[]string{"kind"},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Total number of ledger operations by kind and status",
			},
			[]string{"kind", "status"}, // status: success, error, partial
		),
		replayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_already_applied_total",
				Help: "Entries skipped because the operation had already corrected them",
			},
			[]string{"kind"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ledger metrics: %w", err)
	}
	return m, nil
}

// RecordCorrection counts one written correction.
func (m *LedgerMetrics) RecordCorrection(kind string) {
	if m == nil {
		return
	}
	m.correctionsTotal.WithLabelValues(kind).Inc()
}

// RecordOperation counts a finished ledger operation.
func (m *LedgerMetrics) RecordOperation(kind, status string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordAlreadyApplied counts entries skipped on retry.
func (m *LedgerMetrics) RecordAlreadyApplied(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.replayedTotal.WithLabelValues(kind).Add(float64(count))
}

// Describe implements the prometheus.Collector interface.
func (m *LedgerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.correctionsTotal.Describe(ch)
	m.operationsTotal.Describe(ch)
	m.replayedTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LedgerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.correctionsTotal.Collect(ch)
	m.operationsTotal.Collect(ch)
	m.replayedTotal.Collect(ch)
}
