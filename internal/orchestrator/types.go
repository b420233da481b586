// Package orchestrator implements the Payment Orchestrator (C7): the
// authenticate → validate → business-rule → state-machine → bank →
// persist → notify pipeline behind every public operation (§4.5).
//
// Grounded on the teacher's internal/httpserver handler-struct-with-
// injected-deps pattern: one struct holding every collaborator, one method
// per public operation, each method assembled from the same ordered steps.
package orchestrator

import (
	"time"

	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// CardData is the card-present information Form-Submit consumes in-flight;
// none of it is ever persisted (§3's "never stored" list).
type CardData struct {
	PAN    string
	Expiry string
	CVV    string
	Holder string
}

// InitRequest is the Init operation's input (§4.5, fields per §4.4).
type InitRequest struct {
	TeamSlug        string
	Token           string
	Amount          int64
	OrderID         string
	Currency        string
	PayType         payment.PayType
	Description     string
	CustomerKey     string
	Language        payment.Language
	SuccessURL      string
	FailURL         string
	NotificationURL string
	PaymentExpiry   int
	Recurrent       bool
	RedirectDueDate time.Time
	Data            map[string]string
	Receipt         *payment.Receipt
}

// InitResult is Init's success payload (§4.5).
type InitResult struct {
	PaymentID  string
	PaymentURL string
	Status     payment.Status
	Amount     int64
	OrderID    string
}

// FormSubmitRequest is Form-Submit's input.
type FormSubmitRequest struct {
	TeamSlug  string
	Token     string
	PaymentID string
	Card      CardData
}

// FormSubmitResult is Form-Submit's success payload.
type FormSubmitResult struct {
	PaymentID string
	Status    payment.Status
}

// ConfirmRequest is Confirm's input (two-stage only, §4.5).
type ConfirmRequest struct {
	TeamSlug       string
	Token          string
	PaymentID      string
	Amount         *int64 // optional partial capture
	IdempotencyKey string
}

// ConfirmResult is Confirm's success payload.
type ConfirmResult struct {
	PaymentID string
	Status    payment.Status
	Amount    int64
}

// CancelRequest is Cancel's input.
type CancelRequest struct {
	TeamSlug  string
	Token     string
	PaymentID string
	Amount    *int64 // optional partial refund/reversal
	Reason    string
}

// CancelResult is Cancel's success payload.
type CancelResult struct {
	PaymentID string
	Status    payment.Status
}

// CheckRequest is Check's input.
type CheckRequest struct {
	TeamSlug        string
	Token           string
	PaymentID       string
	IncludeHistory  bool
}

// CheckResult is Check's read-only payload (§4.5).
type CheckResult struct {
	PaymentID        string
	OrderID          string
	Status           payment.Status
	Amount           int64
	AuthorizedAmount int64
	ConfirmedAmount  int64
	RefundedAmount   int64
	Currency         string
	History          []payment.TransitionRecord
}
