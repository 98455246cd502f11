package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	negotiationsCreated      prometheus.Counter
	negotiationTransitions   *prometheus.CounterVec
	chatMessagesSent         prometheus.Counter
	notificationsPublished   *prometheus.CounterVec
	inboxEventsTotal         prometheus.Counter
	dispatchDroppedTotal     prometheus.Counter
	inboxSubscribersActive   prometheus.Gauge
	noticeSubscribersActive  prometheus.Gauge
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		negotiationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookswap_negotiations_created_total",
			Help: "Total number of swap negotiations proposed.",
		})

		negotiationTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_negotiation_transitions_total",
			Help: "Total number of negotiation status transitions applied.",
		}, []string{"status"})

		chatMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookswap_chat_messages_sent_total",
			Help: "Total number of chat messages persisted.",
		})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_notifications_published_total",
			Help: "Total number of out-of-band notices dispatched.",
		}, []string{"type"})

		inboxEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookswap_inbox_refresh_events_total",
			Help: "Total number of inbox refresh events fanned out.",
		})

		dispatchDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookswap_dispatch_dropped_total",
			Help: "Total number of notification jobs dropped due to a full queue.",
		})

		inboxSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookswap_inbox_subscribers_active",
			Help: "Number of live inbox websocket subscribers.",
		})

		noticeSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bookswap_notice_subscribers_active",
			Help: "Number of live notification SSE subscribers.",
		})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookswap_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			negotiationsCreated,
			negotiationTransitions,
			chatMessagesSent,
			notificationsPublished,
			inboxEventsTotal,
			dispatchDroppedTotal,
			inboxSubscribersActive,
			noticeSubscribersActive,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// NegotiationsCreated exposes the proposal counter.
func NegotiationsCreated() prometheus.Counter {
	RegisterMetrics()
	return negotiationsCreated
}

// NegotiationTransitions exposes the transition counter.
func NegotiationTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return negotiationTransitions
}

// ChatMessagesSent exposes the chat message counter.
func ChatMessagesSent() prometheus.Counter {
	RegisterMetrics()
	return chatMessagesSent
}

// NotificationsPublished exposes the notice counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// InboxEvents exposes the inbox refresh event counter.
func InboxEvents() prometheus.Counter {
	RegisterMetrics()
	return inboxEventsTotal
}

// DispatchDropped exposes the dropped-job counter.
func DispatchDropped() prometheus.Counter {
	RegisterMetrics()
	return dispatchDroppedTotal
}

// InboxSubscribers exposes the live inbox subscriber gauge.
func InboxSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return inboxSubscribersActive
}

// NoticeSubscribers exposes the live SSE subscriber gauge.
func NoticeSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return noticeSubscribersActive
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
