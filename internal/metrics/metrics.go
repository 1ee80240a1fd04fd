package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event publishing metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"event"},
	)

	// Queue job metrics
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_jobs_completed_total",
			Help: "Total number of queue jobs processed successfully",
		},
		[]string{"job"},
	)

	JobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_jobs_failed_total",
			Help: "Total number of queue job processing failures",
		},
		[]string{"job"},
	)

	JobsUnknown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fakestore_jobs_unknown_total",
			Help: "Total number of jobs acknowledged due to an unknown job name",
		},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fakestore_job_duration_seconds",
			Help:    "Duration of queue job processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Webhook delivery metrics
	WebhooksSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_webhooks_sent_total",
			Help: "Total number of successful webhook deliveries",
		},
		[]string{"event"},
	)

	WebhooksFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_webhooks_failed_total",
			Help: "Total number of failed webhook deliveries",
		},
		[]string{"event"},
	)

	WebhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fakestore_webhook_delivery_duration_seconds",
			Help:    "Duration of webhook delivery attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Dead letter metrics
	DeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_dead_letters_total",
			Help: "Total number of jobs moved to the dead letter queue",
		},
		[]string{"job"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fakestore_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"client"},
	)

	AbuseBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fakestore_abuse_blocks_total",
			Help: "Total number of requests blocked by the abuse guard",
		},
	)
)
