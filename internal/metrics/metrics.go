// Package metrics provides the prometheus-backed implementation of the
// membership service's metrics collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements membership.MetricsCollector.
type Prometheus struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec

	consolidatedGroups prometheus.Counter
	duplicatesDeleted  prometheus.Counter
}

// New creates a Prometheus collector with all membership metrics
// registered on the default registry.
func New() *Prometheus {
	return &Prometheus{
		operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "afilia_membership_operations_total",
			Help: "Membership operations by operation and result",
		}, []string{"operation", "result"}),

		durations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "afilia_membership_operation_duration_seconds",
			Help:    "Duration of membership operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "afilia_membership_errors_total",
			Help: "Membership operation failures by operation and error type",
		}, []string{"operation", "type"}),

		consolidatedGroups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "afilia_membership_consolidated_groups_total",
			Help: "Duplicate membership groups merged by the repair operation",
		}),

		duplicatesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "afilia_membership_duplicates_deleted_total",
			Help: "Duplicate membership records deleted by the repair operation",
		}),
	}
}

func (m *Prometheus) RecordOperation(operation, result string) {
	if m != nil {
		m.operations.WithLabelValues(operation, result).Inc()
	}
}

func (m *Prometheus) RecordOperationDuration(operation string, d time.Duration) {
	if m != nil {
		m.durations.WithLabelValues(operation).Observe(d.Seconds())
	}
}

func (m *Prometheus) RecordError(operation, errType string) {
	if m != nil {
		m.errors.WithLabelValues(operation, errType).Inc()
	}
}

func (m *Prometheus) RecordConsolidation(consolidated, deleted int) {
	if m != nil {
		m.consolidatedGroups.Add(float64(consolidated))
		m.duplicatesDeleted.Add(float64(deleted))
	}
}
