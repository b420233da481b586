// Package metrics registers the gateway's Prometheus instrumentation,
// grounded on the teacher's internal/metrics package shape (a single
// Metrics struct of CounterVec/HistogramVec/Gauge fields built with
// promauto, plus small Observe* convenience methods per concern).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the gateway exposes on /metrics.
type Metrics struct {
	AuthAttemptsTotal *prometheus.CounterVec
	AuthLockoutsTotal *prometheus.CounterVec

	PaymentsInitTotal   *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	TransitionRejected  *prometheus.CounterVec
	PaymentDuration     *prometheus.HistogramVec

	BankCallsTotal   *prometheus.CounterVec
	BankCallDuration *prometheus.HistogramVec

	WebhooksTotal       *prometheus.CounterVec
	WebhookRetriesTotal *prometheus.CounterVec
	WebhookDLQTotal     *prometheus.CounterVec
	WebhookDuration     *prometheus.HistogramVec

	RateLimitHitsTotal *prometheus.CounterVec

	CircuitBreakerStateChanges *prometheus.CounterVec

	ReaperRunsTotal    prometheus.Counter
	ReaperExpiredTotal prometheus.Counter

	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers every collector against registry (or the
// default registerer when nil).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_attempts_total",
				Help: "Total number of request token verifications, by outcome",
			},
			[]string{"outcome"},
		),
		AuthLockoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_auth_lockouts_total",
				Help: "Total number of merchants placed into lockout cooldown",
			},
			[]string{"team_slug"},
		),
		PaymentsInitTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_init_total",
				Help: "Total number of Init operations, by outcome",
			},
			[]string{"team_slug", "outcome"},
		),
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payment_transitions_total",
				Help: "Total number of accepted payment state transitions",
			},
			[]string{"from", "to"},
		),
		TransitionRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payment_transitions_rejected_total",
				Help: "Total number of rejected transition attempts, by error code",
			},
			[]string{"error_code"},
		),
		PaymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_payment_duration_seconds",
				Help:    "Time from INIT to a terminal status",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 900},
			},
			[]string{"final_status"},
		),
		BankCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_bank_calls_total",
				Help: "Total number of bank simulator calls, by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		BankCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_bank_call_duration_seconds",
				Help:    "Bank simulator call latency",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhooks_total",
				Help: "Total number of merchant webhook delivery attempts, by outcome",
			},
			[]string{"status"},
		),
		WebhookRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_retries_total",
				Help: "Total number of webhook delivery retries, by attempt bucket",
			},
			[]string{"attempt"},
		),
		WebhookDLQTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhook_dlq_total",
				Help: "Total number of webhooks moved to the dead letter queue",
			},
			[]string{"team_slug"},
		),
		WebhookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_webhook_duration_seconds",
				Help:    "End-to-end webhook delivery duration, including retries",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"status"},
		),
		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_hits_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"scope"},
		),
		CircuitBreakerStateChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_circuit_breaker_state_changes_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "to_state"},
		),
		ReaperRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_reaper_runs_total",
				Help: "Total number of expiry reaper sweeps",
			},
		),
		ReaperExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_reaper_expired_total",
				Help: "Total number of payments moved to DEADLINE_EXPIRED by the reaper",
			},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_db_query_duration_seconds",
				Help:    "Database query duration, by operation and backend",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_db_connections_active",
				Help: "Active database connections",
			},
		),
	}
}

// ObserveAuth records a token-verification attempt.
func (m *Metrics) ObserveAuth(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.AuthAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLockout records a merchant entering lockout cooldown.
func (m *Metrics) ObserveLockout(teamSlug string) {
	if m == nil {
		return
	}
	m.AuthLockoutsTotal.WithLabelValues(teamSlug).Inc()
}

// ObserveInit records an Init operation outcome.
func (m *Metrics) ObserveInit(teamSlug string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.PaymentsInitTotal.WithLabelValues(teamSlug, outcome).Inc()
}

// ObserveTransition records an accepted state transition.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveTransitionRejected records a rejected transition attempt.
func (m *Metrics) ObserveTransitionRejected(errorCode string) {
	if m == nil {
		return
	}
	m.TransitionRejected.WithLabelValues(errorCode).Inc()
}

// ObservePaymentLifetime records the time a payment spent reaching a terminal status.
func (m *Metrics) ObservePaymentLifetime(finalStatus string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PaymentDuration.WithLabelValues(finalStatus).Observe(duration.Seconds())
}

// ObserveBankCall records a bank simulator call.
func (m *Metrics) ObserveBankCall(operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "approved"
	if !success {
		outcome = "declined"
	}
	m.BankCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.BankCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveWebhook records a webhook delivery attempt (possibly after retries).
func (m *Metrics) ObserveWebhook(status string, duration time.Duration, attempt int, sentToDLQ bool, teamSlug string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(status).Inc()
	m.WebhookDuration.WithLabelValues(status).Observe(duration.Seconds())
	if attempt > 1 {
		m.WebhookRetriesTotal.WithLabelValues(formatAttempt(attempt)).Inc()
	}
	if sentToDLQ {
		m.WebhookDLQTotal.WithLabelValues(teamSlug).Inc()
	}
}

// ObserveRateLimit records a rate-limit rejection.
func (m *Metrics) ObserveRateLimit(scope string) {
	if m == nil {
		return
	}
	m.RateLimitHitsTotal.WithLabelValues(scope).Inc()
}

// ObserveCircuitBreakerStateChange records a breaker transitioning state.
func (m *Metrics) ObserveCircuitBreakerStateChange(breaker, toState string) {
	if m == nil {
		return
	}
	m.CircuitBreakerStateChanges.WithLabelValues(breaker, toState).Inc()
}

// ObserveReaperRun records one reaper sweep and how many payments it expired.
func (m *Metrics) ObserveReaperRun(expiredCount int) {
	if m == nil {
		return
	}
	m.ReaperRunsTotal.Inc()
	m.ReaperExpiredTotal.Add(float64(expiredCount))
}

// ObserveDBQuery records a database query duration.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

func formatAttempt(attempt int) string {
	if attempt <= 5 {
		return string(rune('0' + attempt))
	}
	return "5+"
}
