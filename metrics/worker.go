package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics instruments the consensus tick workers.
type WorkerMetrics struct {
	// Length of the work queue, partitioned by worker.
	queueLengths *prometheus.GaugeVec

	// Counts of tick outcomes, partitioned by worker and outcome
	// (pending, approved, rejected).
	tickOutcomes *prometheus.CounterVec
}

// NewDefaultWorkerMetrics creates Prometheus metric instrumentation
// for the named worker.
func NewDefaultWorkerMetrics(worker string) WorkerMetrics {
	metrics := WorkerMetrics{
		queueLengths: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "worker_queue_length",
				Help: "How many work items are pending, partitioned by worker.",
			},
			[]string{"worker"},
		),
		tickOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_tick_outcomes",
				Help: "How many channel ticks completed, partitioned by worker and outcome.",
			},
			[]string{"worker", "outcome"},
		),
	}
	metrics.queueLengths = registerOnce(metrics.queueLengths).(*prometheus.GaugeVec)
	metrics.tickOutcomes = registerOnce(metrics.tickOutcomes).(*prometheus.CounterVec)
	return metrics
}

// QueueLength returns the queue length gauge for the worker.
func (m *WorkerMetrics) QueueLength(worker string) prometheus.Gauge {
	return m.queueLengths.WithLabelValues(worker)
}

// TickOutcome returns the outcome counter for the worker.
func (m *WorkerMetrics) TickOutcome(worker, outcome string) prometheus.Counter {
	return m.tickOutcomes.WithLabelValues(worker, outcome)
}
