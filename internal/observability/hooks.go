package observability

import (
	"context"
	"time"
)

// Hook is the base interface for all observability hooks. Implementations
// can emit events to Prometheus, a log sink, or any other backend without
// the emitting code (orchestrator, notifier) knowing which.
type Hook interface {
	// Name returns the hook's identifier for logging/debugging.
	Name() string
}

// PaymentHook receives events during the payment lifecycle.
type PaymentHook interface {
	Hook

	// OnPaymentStarted is called when an Init request is accepted.
	OnPaymentStarted(ctx context.Context, event PaymentStartedEvent)

	// OnPaymentTransitioned is called once per orchestrator operation with the
	// status the payment holds when the operation ends; intermediate
	// transitions and reaper expiries are not reported.
	OnPaymentTransitioned(ctx context.Context, event PaymentTransitionedEvent)

	// OnPaymentCompleted is called when a payment reaches CONFIRMED or a
	// terminal status.
	OnPaymentCompleted(ctx context.Context, event PaymentCompletedEvent)
}

// WebhookHook receives events during merchant webhook delivery.
type WebhookHook interface {
	Hook

	// OnWebhookQueued is called when a notification is enqueued for delivery.
	OnWebhookQueued(ctx context.Context, event WebhookQueuedEvent)

	// OnWebhookDelivered is called when a webhook is successfully delivered.
	OnWebhookDelivered(ctx context.Context, event WebhookDeliveredEvent)

	// OnWebhookFailed is called when a webhook's last delivery attempt fails
	// and it moves to the DLQ.
	OnWebhookFailed(ctx context.Context, event WebhookFailedEvent)

	// OnWebhookRetried is called when a failed delivery is scheduled for retry.
	OnWebhookRetried(ctx context.Context, event WebhookRetriedEvent)
}

// RefundHook receives events during refund/cancel-after-confirm processing.
type RefundHook interface {
	Hook

	// OnRefundRequested is called when a Cancel targets a CONFIRMED payment.
	OnRefundRequested(ctx context.Context, event RefundRequestedEvent)

	// OnRefundProcessed is called when the bank simulator resolves the refund.
	OnRefundProcessed(ctx context.Context, event RefundProcessedEvent)
}

// DatabaseHook receives events from store operations.
type DatabaseHook interface {
	Hook

	// OnDatabaseQuery is called for each store round trip.
	OnDatabaseQuery(ctx context.Context, event DatabaseQueryEvent)
}

// ===============================================
// Event Types
// ===============================================

// PaymentStartedEvent is emitted when Init accepts a new payment.
type PaymentStartedEvent struct {
	Timestamp time.Time
	PaymentID string
	TeamSlug  string
	OrderID   string
	Amount    int64
	Currency  string
	PayType   string
	Metadata  map[string]string
}

// PaymentTransitionedEvent is emitted once per orchestrator operation with
// the payment's resulting status.
type PaymentTransitionedEvent struct {
	Timestamp time.Time
	PaymentID string
	TeamSlug  string
	From      string
	To        string
	Actor     string
}

// PaymentCompletedEvent is emitted when a payment reaches CONFIRMED or a
// status payment.IsTerminal reports (CANCELLED, REJECTED, AUTH_FAIL, REVERSED,
// REFUNDED, ...).
type PaymentCompletedEvent struct {
	Timestamp   time.Time
	PaymentID   string
	TeamSlug    string
	FinalStatus string
	Success     bool
	ErrorReason string
	Amount      int64
	Currency    string
	Duration    time.Duration
	Metadata    map[string]string
}

// WebhookQueuedEvent is emitted when a notification is enqueued for delivery.
type WebhookQueuedEvent struct {
	Timestamp time.Time
	WebhookID string
	TeamSlug  string
	PaymentID string
	EventType string // "payment" or "refund"
	URL       string
}

// WebhookDeliveredEvent is emitted when a webhook is successfully delivered.
type WebhookDeliveredEvent struct {
	Timestamp  time.Time
	WebhookID  string
	TeamSlug   string
	PaymentID  string
	Attempts   int
	Duration   time.Duration
	StatusCode int
}

// WebhookFailedEvent is emitted when a webhook's last delivery attempt fails
// and it moves to the DLQ.
type WebhookFailedEvent struct {
	Timestamp    time.Time
	WebhookID    string
	TeamSlug     string
	PaymentID    string
	Attempts     int
	Error        string
	FinalFailure bool // true once retries are exhausted and the item moves to the DLQ
}

// WebhookRetriedEvent is emitted when a failed delivery is scheduled for retry.
type WebhookRetriedEvent struct {
	Timestamp      time.Time
	WebhookID      string
	TeamSlug       string
	PaymentID      string
	CurrentAttempt int
	MaxAttempts    int
	NextRetryAt    time.Time
	BackoffSeconds float64
}

// RefundRequestedEvent is emitted when Cancel targets a CONFIRMED payment.
type RefundRequestedEvent struct {
	Timestamp time.Time
	PaymentID string
	TeamSlug  string
	Amount    int64
	Currency  string
	Reason    string
}

// RefundProcessedEvent is emitted when the bank simulator resolves a refund.
type RefundProcessedEvent struct {
	Timestamp   time.Time
	PaymentID   string
	TeamSlug    string
	Success     bool
	ErrorReason string
	Amount      int64
	Currency    string
	Duration    time.Duration
}

// DatabaseQueryEvent is emitted for each store round trip.
type DatabaseQueryEvent struct {
	Timestamp time.Time
	Operation string // "get", "list", "save", "delete", etc.
	Backend   string // "postgres", "mongodb", "memory"
	Duration  time.Duration
	Success   bool
	Error     string
}
