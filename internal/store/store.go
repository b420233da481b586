// Package store implements the Payment Store (C5): durable persistence for
// payments, their transition history, merchant records, and the outbound
// notification queue. Grounded on the teacher's internal/storage package
// shape (a narrow Store interface with Postgres/MongoDB/memory
// implementations, ErrNotFound sentinel, configurable table names, and a
// withQueryTimeout context helper).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("store: not found")

// DefaultQueryTimeout bounds any single database operation (§5's storage
// concern: bounded query latency so a slow store never hangs a request).
const DefaultQueryTimeout = 5 * time.Second

// withQueryTimeout wraps ctx with DefaultQueryTimeout unless ctx already
// carries a deadline.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}

// Store is the full persistence contract the gateway needs: payment state
// (satisfying payment.Store for the state machine), the merchant directory
// (satisfying merchant.Repository), and the notification queue (satisfying
// notify.Queue).
type Store interface {
	payment.Store
	merchant.Repository
	notify.Queue

	FindByOrderID(ctx context.Context, teamSlug, orderID string) (*payment.Payment, error)
	CreatePayment(ctx context.Context, p *payment.Payment) error
	ListTransitions(ctx context.Context, paymentID string) ([]payment.TransitionRecord, error)
	ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)

	// DailySummary aggregates a merchant's confirmed+refunded+partial-refunded
	// turnover and payment count for the UTC calendar day containing day,
	// backing the orchestrator's business-rule engine (§4.5: dailyTotal /
	// dailyCount checks).
	DailySummary(ctx context.Context, teamSlug string, day time.Time) (DailySummary, error)

	Close() error
}

// DailySummary is one merchant's turnover for a calendar day.
type DailySummary struct {
	Total int64
	Count int
}
