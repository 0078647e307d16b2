package eventqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDroppedTotal tracks items evicted or rejected, by queue and policy.
	QueueDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_queue_dropped_total",
			Help: "Total number of items dropped by bounded queues",
		},
		[]string{"queue", "policy"},
	)

	// QueueBlockedTotal tracks producer suspensions under the Block policy.
	QueueBlockedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_queue_blocked_total",
			Help: "Total number of producer blocks on full queues",
		},
		[]string{"queue"},
	)

	// QueueWaitSeconds tracks enqueue-to-dequeue latency.
	QueueWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_arb_queue_wait_seconds",
			Help:    "Time items spend queued before a consumer takes them",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"queue"},
	)
)
