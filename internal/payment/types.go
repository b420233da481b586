// Package payment holds the gateway's core domain types and the state
// machine (C6) that guards their transitions.
package payment

import "time"

// Status is one of the payment lifecycle states (§4.3).
type Status string

const (
	StatusInit             Status = "INIT"
	StatusNew              Status = "NEW"
	StatusFormShowed       Status = "FORM_SHOWED"
	StatusAuthorizing      Status = "AUTHORIZING"
	StatusThreeDSChecking  Status = "THREE_DS_CHECKING"
	StatusThreeDSChecked   Status = "THREE_DS_CHECKED"
	StatusAuthorized       Status = "AUTHORIZED"
	StatusAuthFail         Status = "AUTH_FAIL"
	StatusConfirming       Status = "CONFIRMING"
	StatusConfirmed        Status = "CONFIRMED"
	StatusReversing        Status = "REVERSING"
	StatusReversed         Status = "REVERSED"
	StatusPartialReversed  Status = "PARTIAL_REVERSED"
	StatusRefunding        Status = "REFUNDING"
	StatusRefunded         Status = "REFUNDED"
	StatusPartialRefunded  Status = "PARTIAL_REFUNDED"
	StatusCancelling       Status = "CANCELLING"
	StatusCancelled        Status = "CANCELLED"
	StatusRejected         Status = "REJECTED"
	StatusExpired          Status = "EXPIRED"
	StatusDeadlineExpired  Status = "DEADLINE_EXPIRED"
)

// PayType distinguishes single-stage (auth+capture together) from two-stage
// (authorize now, Confirm later) payments.
type PayType string

const (
	PayTypeSingleStage PayType = "O"
	PayTypeTwoStage    PayType = "T"
)

// Language selects the localization of merchant-facing messages.
type Language string

const (
	LanguageRU Language = "ru"
	LanguageEN Language = "en"
)

// Payment is the gateway's central entity (§3). Card data (PAN/CVV) is never
// a field here — it is consumed in-flight by the Bank Simulator call and
// discarded.
type Payment struct {
	PaymentID   string
	TeamSlug    string
	OrderID     string
	Amount      int64 // minor units
	Currency    string
	PayType     PayType
	Description string
	CustomerKey string
	Language    Language

	SuccessURL      string
	FailURL         string
	NotificationURL string

	PaymentExpiry int // minutes
	CreatedAt     time.Time
	ExpiresAt     time.Time

	Status       Status
	ErrorCode    string
	Message      string
	AttemptCount int
	MaxAttempts  int

	Data    map[string]string
	Receipt *Receipt

	// AuthorizedAmount records the amount the bank approved at AUTHORIZED,
	// used to guard partial-capture (I8) and partial-refund (I9) bounds.
	AuthorizedAmount int64
	ConfirmedAmount  int64
	RefundedAmount   int64

	Version int64 // optimistic concurrency (§9's redesign note)
}

// Receipt is the optional fiscal receipt attached to a payment (§4.4).
type Receipt struct {
	Email string
	Phone string
	Items []ReceiptItem
}

// ReceiptItem is one line of a Receipt; Amount must equal Quantity*Price and
// the sum of all item amounts must equal the payment amount (§4.4).
type ReceiptItem struct {
	Name     string
	Price    int64
	Quantity int64
	Amount   int64
}

// Transaction records one bank-facing attempt against a payment (§3).
type Transaction struct {
	TransactionID string
	PaymentID     string
	Type          TransactionType
	Status        Status
	Amount        int64
	ExternalRef   string
	AttemptNumber int
	NextRetryAt   time.Time
	FraudScore    float64
	CreatedAt     time.Time
}

// TransactionType enumerates bank-facing operation kinds.
type TransactionType string

const (
	TransactionAuthorize TransactionType = "authorize"
	TransactionCapture   TransactionType = "capture"
	TransactionRefund    TransactionType = "refund"
)

// TransitionRecord is one append-only history entry (§3); never deleted.
type TransitionRecord struct {
	PaymentID string
	From      Status
	To        Status
	Timestamp time.Time
	Actor     string
	Reason    string
	ErrorCode string
	Message   string
}

// terminalStatuses lists the statuses Machine.guard refuses to leave (apart
// from the AUTH_FAIL retry below), whatever edges the transition table holds.
var terminalStatuses = map[Status]struct{}{
	StatusCancelled:       {},
	StatusDeadlineExpired: {},
	StatusExpired:         {},
	StatusRejected:        {},
	StatusReversed:        {},
	StatusPartialReversed: {},
	StatusRefunded:        {},
	StatusPartialRefunded: {},
	StatusAuthFail:        {}, // terminal only once retries exhausted; see the retry carve-out in Machine.guard
}

// IsTerminal reports whether status is in terminalStatuses.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}
