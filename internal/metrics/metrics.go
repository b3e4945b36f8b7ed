package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JobsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailqueue_jobs_enqueued_total",
			Help: "Total jobs accepted and persisted",
		},
	)

	Attempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailqueue_delivery_attempts_total",
			Help: "Total delivery attempts across all jobs",
		},
	)

	JobsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailqueue_jobs_sent_total",
			Help: "Total jobs delivered successfully",
		},
	)

	JobsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailqueue_jobs_failed_total",
			Help: "Total jobs that exhausted their attempts",
		},
	)

	StoreErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailqueue_store_errors_total",
			Help: "Total persistence failures surfaced as operational faults",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailqueue_memory_queue_depth",
			Help: "Jobs currently buffered in the in-process queue",
		},
	)

	ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailqueue_active_workers",
			Help: "Worker goroutines currently running",
		},
	)
)

func Init() {
	prometheus.MustRegister(
		JobsEnqueued,
		Attempts,
		JobsSent,
		JobsFailed,
		StoreErrors,
		QueueDepth,
		ActiveWorkers,
	)
}
