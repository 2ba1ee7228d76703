package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsDispatched counts notification deliveries by type and channel.
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawhaven_notifications_dispatched_total",
			Help: "Total number of notifications dispatched per channel",
		},
		[]string{"type", "channel"},
	)

	// DedupRejections counts sends suppressed by the idempotency guard.
	DedupRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawhaven_dedup_rejections_total",
			Help: "Total number of sends suppressed by the dedup guard",
		},
		[]string{"type"},
	)

	// TransportFailures counts channel transport errors (email/telegram).
	TransportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawhaven_transport_failures_total",
			Help: "Total number of channel transport failures",
		},
		[]string{"channel"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pawhaven_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
