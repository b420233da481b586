// Package notify implements the Notifier (C10): durable, ordered delivery of
// merchant webhooks, one per orchestrator operation carrying the payment's
// resulting status (reaper expiries are not notified), with exponential
// backoff retries, a dead letter queue, and HMAC-SHA256 signing (via
// crypto/hmac, §4.8) carried in the X-Webhook-Signature header — distinct
// from the Token Signer's (C1) field-concatenation scheme used to verify
// inbound requests.
//
// Grounded on the teacher's internal/callbacks package (RetryableClient,
// WebhookQueueWorker, DLQStore), adapted from a fire-and-forget event
// notifier to a durably-queued, per-paymentId-ordered dispatcher that
// notifies non-terminal outcomes too, not just terminal success.
package notify

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a queued notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusDLQ        Status = "dlq"
)

// Event is the payload POSTed to a merchant's notificationUrl (§4.8's exact
// body shape: paymentId, orderId, status, amount, currency, timestamp,
// attemptId). AttemptID is filled in per delivery attempt, not at enqueue
// time, since it must be unique to the specific attempt the signature covers.
type Event struct {
	PaymentID string    `json:"paymentId"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
	AttemptID string    `json:"attemptId"`
}

// Notification is one queued webhook delivery attempt.
type Notification struct {
	ID            string
	PaymentID     string
	TeamSlug      string
	URL           string
	Payload       json.RawMessage
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}
