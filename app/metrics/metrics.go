package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_relay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Feed pipeline
	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_feed_fetches_total",
			Help: "Total number of feed fetch requests by outcome",
		},
		[]string{"status"},
	)

	ArticlesParsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_relay_articles_parsed_total",
			Help: "Total number of articles parsed from feeds",
		},
	)

	ArticlesComparedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_articles_compared_total",
			Help: "Total number of articles by comparison outcome",
		},
		[]string{"outcome"},
	)

	ExternalContentErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_external_content_errors_total",
			Help: "Total number of external content injection errors",
		},
		[]string{"type"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_relay_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)

	// Messaging
	NatsMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_relay_nats_messages_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject", "status"},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_relay_application_info",
			Help: "Application information",
		},
		[]string{"version"},
	)
)

func Init(version string) {
	ApplicationInfo.WithLabelValues(version).Set(1)
}

// RecordComparison counts the outcome of one comparison run.
func RecordComparison(delivered, blocked, passed int) {
	ArticlesComparedTotal.WithLabelValues("delivered").Add(float64(delivered))
	ArticlesComparedTotal.WithLabelValues("blocked").Add(float64(blocked))
	ArticlesComparedTotal.WithLabelValues("passed").Add(float64(passed))
}
