package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connection state per socket.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_arb_ws_active_connections",
			Help: "Whether the named websocket connection is up",
		},
		[]string{"name"},
	)

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_ws_reconnect_attempts_total",
		Help: "Total number of websocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_arb_ws_reconnect_failures_total",
		Help: "Total number of websocket reconnection failures",
	})

	// FramesReceivedTotal tracks inbound frames per socket.
	FramesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_ws_frames_received_total",
			Help: "Total number of websocket frames received",
		},
		[]string{"name"},
	)

	// FramesDroppedTotal tracks frames lost to a full buffer.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_arb_ws_frames_dropped_total",
			Help: "Total number of websocket frames dropped because the buffer was full",
		},
		[]string{"name"},
	)

	// SubscriptionCount tracks active market subscriptions per socket.
	SubscriptionCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_arb_ws_subscription_count",
			Help: "Number of active market subscriptions",
		},
		[]string{"name"},
	)

	// ConnectionDuration tracks connection lifetime per socket.
	ConnectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_arb_ws_connection_duration_seconds",
			Help:    "Websocket connection lifetime",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
		},
		[]string{"name"},
	)
)
