package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Realtime metrics for monitoring the presence, chat relay, and call
// signaling subsystem
var (
	// Connection metrics
	WebSocketConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_websocket_connections_active",
		Help: "Current number of open WebSocket connections",
	})

	WebSocketConnectionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_websocket_connections_rejected_total",
		Help: "Total number of unidentified connections terminated at the gateway",
	})

	// Presence metrics
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_presence_online_users",
		Help: "Current number of users registered in the presence registry",
	})

	PresenceStoreWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_presence_store_write_failures_total",
		Help: "Total number of best-effort online-flag writes that failed",
	})

	// Chat metrics
	ChatMessagesRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_chat_messages_relayed_total",
		Help: "Total number of sendMessage operations by outcome",
	}, []string{"status"}) // "delivered" or an error code

	ChatRoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_chat_rooms_active",
		Help: "Current number of rooms with at least one joined connection",
	})

	// Call metrics
	CallsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_calls_initiated_total",
		Help: "Total number of call initiations by outcome",
	}, []string{"status"})

	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_calls_active",
		Help: "Current number of live call sessions",
	})

	CallsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_calls_ended_total",
		Help: "Total number of terminated call sessions by reason",
	}, []string{"reason"}) // hangup, rejected, disconnect, timeout

	SignalingErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_signaling_errors_total",
		Help: "Total number of signaling events rejected, by error code",
	}, []string{"code"})
)
