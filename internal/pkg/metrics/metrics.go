package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realty_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// 实时通道
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realty_ws_connections",
			Help: "Currently open live chat connections",
		},
	)

	WSRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_ws_rejected_total",
			Help: "Live chat connections refused",
		},
		[]string{"reason"}, // "capacity" / "token" / "upgrade"
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_ws_frames_dropped_total",
			Help: "Outbound frames dropped because a client send buffer was full",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_ws_events_total",
			Help: "Inbound live chat events",
		},
		[]string{"event"},
	)

	// 业务
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_chat_messages_total",
			Help: "Messages persisted",
		},
		[]string{"sender"},
	)

	DuplicateMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_chat_duplicate_messages_total",
			Help: "Sends short-circuited by clientMsgId",
		},
	)

	ThreadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_chat_threads_created_total",
			Help: "Threads created",
		},
	)

	MessageWriteRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realty_chat_message_write_retries_total",
			Help: "Message body writes handed to the calibration workers",
		},
		[]string{"result"}, // "queued" / "recovered" / "lost"
	)

	BroadcastErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realty_chat_broadcast_errors_total",
			Help: "Failed publishes to the broadcast bus",
		},
	)
)
