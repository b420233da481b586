package observability

import (
	"context"

	"github.com/hackload-kz/payment-gateway/internal/metrics"
)

// PrometheusHook adapts the gateway's existing Prometheus collectors
// (internal/metrics) to the hook interface, so the same events that feed
// other hooks also drive /metrics.
type PrometheusHook struct {
	metrics *metrics.Metrics
}

// NewPrometheusHook creates a hook that emits events to Prometheus metrics.
func NewPrometheusHook(m *metrics.Metrics) *PrometheusHook {
	return &PrometheusHook{metrics: m}
}

func (h *PrometheusHook) Name() string {
	return "prometheus"
}

// ===============================================
// PaymentHook Implementation
// ===============================================

func (h *PrometheusHook) OnPaymentStarted(ctx context.Context, event PaymentStartedEvent) {
	h.metrics.ObserveInit(event.TeamSlug, true)
}

func (h *PrometheusHook) OnPaymentTransitioned(ctx context.Context, event PaymentTransitionedEvent) {
	h.metrics.ObserveTransition(event.From, event.To)
}

func (h *PrometheusHook) OnPaymentCompleted(ctx context.Context, event PaymentCompletedEvent) {
	h.metrics.ObservePaymentLifetime(event.FinalStatus, event.Duration)
}

// ===============================================
// WebhookHook Implementation
// ===============================================

func (h *PrometheusHook) OnWebhookQueued(ctx context.Context, event WebhookQueuedEvent) {
	// Prometheus only tracks delivery outcomes, not the enqueue itself.
}

func (h *PrometheusHook) OnWebhookDelivered(ctx context.Context, event WebhookDeliveredEvent) {
	h.metrics.ObserveWebhook("delivered", event.Duration, event.Attempts, false, event.TeamSlug)
}

func (h *PrometheusHook) OnWebhookFailed(ctx context.Context, event WebhookFailedEvent) {
	status := "retry"
	if event.FinalFailure {
		status = "dlq"
	}
	h.metrics.ObserveWebhook(status, 0, event.Attempts, event.FinalFailure, event.TeamSlug)
}

func (h *PrometheusHook) OnWebhookRetried(ctx context.Context, event WebhookRetriedEvent) {
	// Retries are already counted by the dispatcher's own
	// ObserveWebhook("retry", ...) call.
}

// ===============================================
// RefundHook Implementation
// ===============================================

func (h *PrometheusHook) OnRefundRequested(ctx context.Context, event RefundRequestedEvent) {
	// Prometheus doesn't track "requested" events separately.
}

func (h *PrometheusHook) OnRefundProcessed(ctx context.Context, event RefundProcessedEvent) {
	finalStatus := "REFUNDED"
	if !event.Success {
		finalStatus = "REFUND_FAILED"
	}
	h.metrics.ObservePaymentLifetime(finalStatus, event.Duration)
}

// ===============================================
// DatabaseHook Implementation
// ===============================================

func (h *PrometheusHook) OnDatabaseQuery(ctx context.Context, event DatabaseQueryEvent) {
	h.metrics.ObserveDBQuery(event.Operation, event.Backend, event.Duration)
}
