package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TurnsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_turns_enqueued_total",
			Help: "Total number of conversation turns enqueued, per scope.",
		},
		[]string{"scope"},
	)

	EntriesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "membridge_queue_entries_dropped_total",
			Help: "Total number of queue entries evicted by backpressure.",
		},
	)

	BatchesDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "membridge_batches_delivered_total",
			Help: "Total number of message batches delivered to the memory service.",
		},
	)

	BatchesFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "membridge_batches_failed_total",
			Help: "Total number of batch deliveries that failed and were requeued.",
		},
	)

	QueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "membridge_queue_size",
			Help: "Current number of entries in the ingestion queue.",
		},
	)

	BackfillSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "membridge_backfill_sessions",
			Help: "Number of sessions with pending backfill work.",
		},
	)

	RecallRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membridge_recall_requests_total",
			Help: "Total number of recall requests, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TurnsEnqueuedTotal,
		EntriesDroppedTotal,
		BatchesDeliveredTotal,
		BatchesFailedTotal,
		QueueSize,
		BackfillSessions,
		RecallRequestsTotal,
	)
}
