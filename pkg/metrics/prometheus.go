package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the signaling service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketEventsTotal   *prometheus.CounterVec
	websocketErrorsTotal   *prometheus.CounterVec
	websocketRejectedTotal prometheus.Counter

	// Presence Metrics
	presenceRegistrations *prometheus.CounterVec

	// Signaling Metrics
	deliveriesTotal *prometheus.CounterVec

	// Call Metrics
	callsTotal         *prometheus.CounterVec
	callTransitions    *prometheus.CounterVec
	callsDuration      *prometheus.HistogramVec
	persistenceErrors  *prometheus.CounterVec
	stateMismatchTotal *prometheus.CounterVec

	// Push Notification Metrics
	pushNotificationsTotal  *prometheus.CounterVec
	pushNotificationsFailed *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of open signaling WebSocket connections",
				ConstLabels: labels,
			},
		),
		websocketEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_events_total",
				Help:        "Total number of signaling events by name and direction",
				ConstLabels: labels,
			},
			[]string{"event", "direction"},
		),
		websocketErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_errors_total",
				Help:        "Total number of rejected or malformed signaling frames",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		websocketRejectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "websocket_connections_rejected_total",
				Help:        "Connections rejected because the gateway was at capacity",
				ConstLabels: labels,
			},
		),

		presenceRegistrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "presence_registrations_total",
				Help:        "Presence registry mutations by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),

		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "signaling_deliveries_total",
				Help:        "Outbound Send attempts by event and result",
				ConstLabels: labels,
			},
			[]string{"event", "result"},
		),

		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total number of initiated calls by type and initial outcome",
				ConstLabels: labels,
			},
			[]string{"call_type", "outcome"},
		),
		callTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_transitions_total",
				Help:        "Persisted call status transitions",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		callsDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "call_duration_seconds",
				Help:        "Duration of ended calls in seconds",
				ConstLabels: labels,
				Buckets:     []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"call_type"},
		),
		persistenceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_persistence_errors_total",
				Help:        "Call record and notification writes that failed",
				ConstLabels: labels,
			},
			[]string{"operation"},
		),
		stateMismatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "call_state_mismatch_total",
				Help:        "Lifecycle events with no matching call record",
				ConstLabels: labels,
			},
			[]string{"event"},
		),

		pushNotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_total",
				Help:        "Total number of push notifications sent",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		pushNotificationsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "push_notifications_failed_total",
				Help:        "Total number of failed push notifications",
				ConstLabels: labels,
			},
			[]string{"type", "reason"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// WebSocketConnected increments the open connection gauge
func (m *Metrics) WebSocketConnected() {
	if m == nil {
		return
	}
	m.websocketConnections.Inc()
}

// WebSocketDisconnected decrements the open connection gauge
func (m *Metrics) WebSocketDisconnected() {
	if m == nil {
		return
	}
	m.websocketConnections.Dec()
}

// RecordWebSocketEvent counts an inbound or outbound event
func (m *Metrics) RecordWebSocketEvent(event, direction string) {
	if m == nil {
		return
	}
	m.websocketEventsTotal.WithLabelValues(event, direction).Inc()
}

// RecordWebSocketError counts a rejected frame
func (m *Metrics) RecordWebSocketError(reason string) {
	if m == nil {
		return
	}
	m.websocketErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordConnectionRejected counts a connection refused at capacity
func (m *Metrics) RecordConnectionRejected() {
	if m == nil {
		return
	}
	m.websocketRejectedTotal.Inc()
}

// RecordPresence counts a registry mutation (registered, replaced, unregistered, stale)
func (m *Metrics) RecordPresence(outcome string) {
	if m == nil {
		return
	}
	m.presenceRegistrations.WithLabelValues(outcome).Inc()
}

// RecordDelivery counts a Send attempt
func (m *Metrics) RecordDelivery(event string, delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "offline"
	}
	m.deliveriesTotal.WithLabelValues(event, result).Inc()
}

// RecordCall counts an initiated call
func (m *Metrics) RecordCall(callType, outcome string) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(callType, outcome).Inc()
}

// RecordCallTransition counts a persisted status change
func (m *Metrics) RecordCallTransition(status string) {
	if m == nil {
		return
	}
	m.callTransitions.WithLabelValues(status).Inc()
}

// RecordCallDuration records call duration
func (m *Metrics) RecordCallDuration(callType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.callsDuration.WithLabelValues(callType).Observe(duration.Seconds())
}

// RecordPersistenceError counts a failed store or sink write
func (m *Metrics) RecordPersistenceError(operation string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(operation).Inc()
}

// RecordStateMismatch counts an accept/decline/end without a matching record
func (m *Metrics) RecordStateMismatch(event string) {
	if m == nil {
		return
	}
	m.stateMismatchTotal.WithLabelValues(event).Inc()
}

// RecordPushNotification records a push notification
func (m *Metrics) RecordPushNotification(notifType string) {
	if m == nil {
		return
	}
	m.pushNotificationsTotal.WithLabelValues(notifType).Inc()
}

// RecordPushNotificationFailure records a failed push notification
func (m *Metrics) RecordPushNotificationFailure(notifType, reason string) {
	if m == nil {
		return
	}
	m.pushNotificationsFailed.WithLabelValues(notifType, reason).Inc()
}
