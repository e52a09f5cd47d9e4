package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the signal service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Signal Relay Metrics
	signalEventsTotal   *prometheus.CounterVec
	signalFailuresTotal *prometheus.CounterVec

	// Presence Metrics
	presenceHeartbeatsTotal prometheus.Counter
	presenceOfflineTotal    prometheus.Counter

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec

	// Push Notification Metrics
	pushNotificationsTotal  *prometheus.CounterVec
	pushNotificationsFailed *prometheus.CounterVec

	// Redis Metrics
	redisDegradedMode prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on a private registry
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: constLabels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being served",
				ConstLabels: constLabels,
			},
		),
		signalEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signal_events_total",
				Help:        "Total number of call signaling events relayed",
				ConstLabels: constLabels,
			},
			[]string{"event"},
		),
		signalFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signal_failures_total",
				Help:        "Total number of call signaling events that failed",
				ConstLabels: constLabels,
			},
			[]string{"event", "reason"},
		),
		presenceHeartbeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "presence_heartbeats_total",
				Help:        "Total number of presence heartbeats recorded",
				ConstLabels: constLabels,
			},
		),
		presenceOfflineTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "presence_offline_total",
				Help:        "Total number of explicit offline assertions",
				ConstLabels: constLabels,
			},
		),
		websocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active realtime WebSocket connections",
				ConstLabels: constLabels,
			},
		),
		websocketMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of messages delivered over realtime channels",
				ConstLabels: constLabels,
			},
			[]string{"channel_kind"},
		),
		pushNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_total",
				Help:        "Total number of push notifications dispatched",
				ConstLabels: constLabels,
			},
			[]string{"provider"},
		),
		pushNotificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_failed_total",
				Help:        "Total number of push notifications that failed",
				ConstLabels: constLabels,
			},
			[]string{"provider"},
		),
		redisDegradedMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "redis_degraded_mode",
				Help:        "Indicates if Redis is in degraded mode (1 = degraded, 0 = healthy)",
				ConstLabels: constLabels,
			},
		),
	}

	registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.signalEventsTotal,
		m.signalFailuresTotal,
		m.presenceHeartbeatsTotal,
		m.presenceOfflineTotal,
		m.websocketConnections,
		m.websocketMessagesTotal,
		m.pushNotificationsTotal,
		m.pushNotificationsFailed,
		m.redisDegradedMode,
	)

	return m
}

// GetRegistry returns the underlying Prometheus registry for scraping
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request with its outcome
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the in-flight request gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the in-flight request gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// RecordSignalEvent records a relayed signaling event
func (m *Metrics) RecordSignalEvent(event string) {
	m.signalEventsTotal.WithLabelValues(event).Inc()
}

// RecordSignalFailure records a signaling event that failed
func (m *Metrics) RecordSignalFailure(event, reason string) {
	m.signalFailuresTotal.WithLabelValues(event, reason).Inc()
}

// RecordHeartbeat records a presence heartbeat
func (m *Metrics) RecordHeartbeat() {
	m.presenceHeartbeatsTotal.Inc()
}

// RecordOffline records an explicit offline assertion
func (m *Metrics) RecordOffline() {
	m.presenceOfflineTotal.Inc()
}

// IncrementWebSocketConnections increments the active connection gauge
func (m *Metrics) IncrementWebSocketConnections() {
	m.websocketConnections.Inc()
}

// DecrementWebSocketConnections decrements the active connection gauge
func (m *Metrics) DecrementWebSocketConnections() {
	m.websocketConnections.Dec()
}

// RecordWebSocketMessage records a message delivered on a realtime channel
func (m *Metrics) RecordWebSocketMessage(channelKind string) {
	m.websocketMessagesTotal.WithLabelValues(channelKind).Inc()
}

// RecordPushNotification records a push dispatch attempt
func (m *Metrics) RecordPushNotification(provider string, failed bool) {
	m.pushNotificationsTotal.WithLabelValues(provider).Inc()
	if failed {
		m.pushNotificationsFailed.WithLabelValues(provider).Inc()
	}
}

// SetRedisDegraded updates the Redis degraded mode gauge
func (m *Metrics) SetRedisDegraded(degraded bool) {
	if degraded {
		m.redisDegradedMode.Set(1)
	} else {
		m.redisDegradedMode.Set(0)
	}
}
