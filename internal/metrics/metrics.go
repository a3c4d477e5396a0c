package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BroadcastsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_broadcasts_started_total", Help: "Confirmed broadcasts"},
	)
	BroadcastSent = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_broadcast_sent_total", Help: "Creatives delivered to recipients"},
	)
	BroadcastFailed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_broadcast_failed_total", Help: "Per-recipient delivery failures"},
	)
	BroadcastCounterErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_broadcast_counter_update_errors_total",
			Help: "Messages delivered whose sent-counter update failed",
		},
	)
	BroadcastChunkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_broadcast_chunk_duration_seconds",
			Help:    "Time spent dispatching one chunk",
			Buckets: prometheus.DefBuckets,
		},
	)

	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_webhook_requests_total", Help: "Payment webhook requests"},
		[]string{"status"},
	)
	WebhookRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bot_webhook_request_duration_seconds",
			Help:    "Payment webhook handling duration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		BroadcastsStarted, BroadcastSent, BroadcastFailed,
		BroadcastCounterErrors, BroadcastChunkDuration,
		WebhookRequestsTotal, WebhookRequestDuration,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
