package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// MQ consume results
	MQConsumeResult = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_consume_result_total",
			Help: "MQ messages handled, by outcome",
		},
		[]string{"queue", "result"}, // result: ack, requeue, dlq, duplicate
	)

	// slow queries
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// slow query duration (s)
	DBSlowQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
		[]string{"operation"},
	)

	// HTTP request latency (s)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// management decisions
	DecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idea_decision_total",
			Help: "Management decisions recorded, by kind",
		},
		[]string{"decision"},
	)

	// submitted evaluations
	EvaluationSubmittedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_submitted_total",
			Help: "Evaluations submitted, by rubric category",
		},
		[]string{"category"},
	)

	// outbox publish results
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox events published, by routing key and status",
		},
		[]string{"routing_key", "status"}, // status: sent, failed
	)

	// notification deliveries
	NotificationSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Notifications delivered, by channel and status",
		},
		[]string{"channel", "status"},
	)

	// scheduled job runs
	JobRunCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runner_job_total",
			Help: "Runner job executions, by job and status",
		},
		[]string{"job", "status"},
	)
)

// RecordMQConsumeLatency observes how long a message took to handle.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementMQConsumeResult counts a handled message by result.
func IncrementMQConsumeResult(queue, result string) {
	MQConsumeResult.WithLabelValues(queue, result).Inc()
}

// IncrementSlowQuery counts and times one slow query.
func IncrementSlowQuery(operation string, duration time.Duration) {
	DBSlowQueryCount.WithLabelValues(operation).Inc()
	DBSlowQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration observes one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementDecision(decision string) {
	DecisionCount.WithLabelValues(decision).Inc()
}

func IncrementEvaluationSubmitted(category string) {
	EvaluationSubmittedCount.WithLabelValues(category).Inc()
}

func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}

func IncrementNotificationSent(channel, status string) {
	NotificationSentCount.WithLabelValues(channel, status).Inc()
}

func IncrementJobRun(job, status string) {
	JobRunCount.WithLabelValues(job, status).Inc()
}
