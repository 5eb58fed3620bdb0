package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for calsync
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec

	// Backend request metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session lifecycle
	SessionTransitions *prometheus.CounterVec

	// Push registration and foreground delivery
	PushRegistrations     *prometheus.CounterVec
	NotificationsReceived *prometheus.CounterVec

	// Route guard decisions
	GuardDecisions *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calsync_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_api_requests_total",
				Help: "Total number of backend requests by endpoint and outcome",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calsync_api_request_duration_seconds",
				Help:    "Backend request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "endpoint"},
		),

		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_session_transitions_total",
				Help: "Auth state transitions by target state and trigger",
			},
			[]string{"state", "reason"},
		),

		PushRegistrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_push_registrations_total",
				Help: "Push token registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		NotificationsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_notifications_received_total",
				Help: "Foreground notifications handed to the display by source",
			},
			[]string{"source"},
		),

		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_guard_decisions_total",
				Help: "Command gate decisions by outcome",
			},
			[]string{"outcome"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calsync_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"code"},
		),
	}
}

// RecordCommand records one command execution.
func (m *Metrics) RecordCommand(command string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.CommandExecutions.WithLabelValues(command, boolLabel(success)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordRequest records one backend request. status is the HTTP status as
// text, or "network_error" when no response arrived.
func (m *Metrics) RecordRequest(method, endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RecordTransition records an auth state change.
func (m *Metrics) RecordTransition(state, reason string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state, reason).Inc()
}

// RecordPushRegistration records the outcome of one registration attempt:
// registered, failed, denied, no_token or no_session.
func (m *Metrics) RecordPushRegistration(outcome string) {
	if m == nil {
		return
	}
	m.PushRegistrations.WithLabelValues(outcome).Inc()
}

// RecordNotification records a message delivered to the display.
func (m *Metrics) RecordNotification(source string) {
	if m == nil {
		return
	}
	m.NotificationsReceived.WithLabelValues(source).Inc()
}

// RecordGuard records a guard decision.
func (m *Metrics) RecordGuard(outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(outcome).Inc()
}

// RecordError counts an error by code.
func (m *Metrics) RecordError(code string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
