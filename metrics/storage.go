package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics instruments database operations.
type StorageMetrics struct {
	// Counts of database operations, partitioned by operation and
	// status.
	operations *prometheus.CounterVec

	// Latencies of database operations, partitioned by operation.
	latencies *prometheus.HistogramVec
}

// NewDefaultStorageMetrics creates Prometheus metric instrumentation
// for the named database.
func NewDefaultStorageMetrics(db string) StorageMetrics {
	metrics := StorageMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_operations",
				Help: "How many storage operations were performed, partitioned by database, operation, and status.",
				ConstLabels: prometheus.Labels{
					"database": db,
				},
			},
			[]string{"operation", "status"},
		),
		latencies: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "storage_latencies",
				Help: "How long storage operations take, partitioned by database and operation.",
				ConstLabels: prometheus.Labels{
					"database": db,
				},
			},
			[]string{"operation"},
		),
	}
	metrics.operations = registerOnce(metrics.operations).(*prometheus.CounterVec)
	metrics.latencies = registerOnce(metrics.latencies).(*prometheus.HistogramVec)
	return metrics
}

// OperationCounter returns the counter for the given operation and
// status.
func (m *StorageMetrics) OperationCounter(operation, status string) prometheus.Counter {
	return m.operations.WithLabelValues(operation, status)
}

// OperationTimer creates a new latency timer for the given operation.
func (m *StorageMetrics) OperationTimer(operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(operation))
}
