package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demo_ingest_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	// Ingestion
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_events_received_total",
			Help: "Event records received in valid batches",
		},
		[]string{"event_name"},
	)

	EventsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_events_inserted_total",
			Help: "Event records persisted for the first time",
		},
		[]string{"event_name"},
	)

	BatchesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_batches_rejected_total",
			Help: "Event batches rejected before persistence",
		},
		[]string{"event_name", "reason"},
	)

	// Jobs
	JobsTransitioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_job_transitions_total",
			Help: "Processing job status transitions",
		},
		[]string{"status"},
	)

	// Workqueue
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_tasks_processed_total",
			Help: "Workqueue task executions by queue and outcome",
		},
		[]string{"queue", "task", "outcome"}, // "success", "retry", "failed"
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demo_ingest_task_duration_seconds",
			Help:    "Workqueue task execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue", "task"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demo_ingest_queue_depth",
			Help: "Tasks waiting in each named queue",
		},
		[]string{"queue"},
	)

	// Parser gateway
	ParserRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_parser_requests_total",
			Help: "Requests sent to the demo parser",
		},
		[]string{"operation", "outcome"},
	)

	ParserBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demo_ingest_parser_breaker_open",
			Help: "1 while the parser circuit breaker is open",
		},
	)

	// Scoring
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demo_ingest_aggregation_duration_seconds",
			Help:    "Time to aggregate one match in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LeaderboardEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "demo_ingest_leaderboard_entries",
			Help: "Rows in the latest leaderboard snapshot",
		},
		[]string{"type", "window"},
	)

	SweptJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demo_ingest_swept_jobs_total",
			Help: "Jobs failed as stale or deleted by retention",
		},
		[]string{"sweep"}, // "stale", "retention"
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
