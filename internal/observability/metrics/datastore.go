package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for the history store
type DatastoreMetrics struct {
	dbOperationsTotal   *prometheus.CounterVec
	dbOperationDuration *prometheus.HistogramVec
	dbOperationErrors   *prometheus.CounterVec
	registry            *prometheus.Registry
}

// NewDatastoreMetrics creates and registers datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{
		registry: registry,
		dbOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageclassifier_db_operations_total",
			Help: "History store operations partitioned by operation, table and status.",
		}, []string{"operation", "table", "status"}),
		dbOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imageclassifier_db_operation_duration_seconds",
			Help:    "History store operation latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"operation", "table"}),
		dbOperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imageclassifier_db_operation_errors_total",
			Help: "History store errors partitioned by operation, table and error type.",
		}, []string{"operation", "table", "error_type"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

// RecordDbOperation records the outcome of a store operation
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	if m == nil {
		return
	}
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration records how long a store operation took
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, seconds float64) {
	if m == nil {
		return
	}
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(seconds)
}

// RecordDbOperationError records a failed store operation
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	if m == nil {
		return
	}
	m.dbOperationErrors.WithLabelValues(operation, table, errorType).Inc()
}

// Describe implements prometheus.Collector
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.dbOperationsTotal.Describe(ch)
	m.dbOperationDuration.Describe(ch)
	m.dbOperationErrors.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.dbOperationsTotal.Collect(ch)
	m.dbOperationDuration.Collect(ch)
	m.dbOperationErrors.Collect(ch)
}
