package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	"github.com/hackload-kz/payment-gateway/internal/bank"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/idempotency"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/observability"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/store"
)

// Orchestrator composes C2 (merchant directory), C3 (authenticator), C5
// (store), C6 (state machine), C8 (bank simulator), and C10 (notifier)
// behind one public operation per method, each following §4.5's fixed
// pipeline.
type Orchestrator struct {
	store       store.Store
	auth        *authenticator.Authenticator
	machine     *payment.Machine
	bank        *bank.Simulator
	dispatcher  *notify.Dispatcher
	idempotency idempotency.Store
	metrics     *metrics.Metrics
	hooks       *observability.Registry
	logger      zerolog.Logger
	baseURL     string
	now         func() time.Time
}

// WithHooks attaches an observability registry. Optional: a nil or
// never-called registry leaves the orchestrator's behavior unchanged.
func (o *Orchestrator) WithHooks(registry *observability.Registry) *Orchestrator {
	o.hooks = registry
	return o
}

// New builds an Orchestrator from its collaborators. baseURL is prefixed to
// the hosted payment form path to build paymentURL (§4.5's Init effects).
func New(
	st store.Store,
	auth *authenticator.Authenticator,
	machine *payment.Machine,
	bankSim *bank.Simulator,
	dispatcher *notify.Dispatcher,
	idemStore idempotency.Store,
	m *metrics.Metrics,
	logger zerolog.Logger,
	baseURL string,
) *Orchestrator {
	return &Orchestrator{
		store: st, auth: auth, machine: machine, bank: bankSim,
		dispatcher: dispatcher, idempotency: idemStore, metrics: m, logger: logger,
		baseURL: baseURL, now: time.Now,
	}
}

// generatePaymentID derives a 20-ASCII-digit paymentId from a random UUID
// (§3: "opaque paymentId, 20-character ASCII, globally unique"), grounded
// on the teacher's google/uuid usage for other correlation identifiers.
func generatePaymentID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	mod := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	n.Mod(n, mod)
	return fmt.Sprintf("%020s", n.String())
}

// checkBusinessRules enforces §4.5's business-rule engine: per-payment
// limits, currency support, team active status, and the daily turnover and
// count limits over the UTC calendar day containing now.
func (o *Orchestrator) checkBusinessRules(ctx context.Context, m *merchant.Merchant, amount int64, currency string, now time.Time) error {
	if !m.IsActive {
		return gwerrors.New(gwerrors.CodeTerminalInactive, "merchant account is inactive")
	}
	if !m.SupportsCurrency(currency) {
		return gwerrors.New(gwerrors.CodeValidationFailed, "currency not supported by this merchant").
			WithDetails(fmt.Sprintf("currency %s is not in the merchant's supported set", currency))
	}
	if m.MinPerPayment > 0 && amount < m.MinPerPayment {
		return gwerrors.New(gwerrors.CodeValidationFailed, "amount below merchant minimum").
			WithDetails(fmt.Sprintf("amount must be at least %d", m.MinPerPayment))
	}
	if m.MaxPerPayment > 0 && amount > m.MaxPerPayment {
		return gwerrors.New(gwerrors.CodeValidationFailed, "amount exceeds merchant maximum").
			WithDetails(fmt.Sprintf("amount must be at most %d", m.MaxPerPayment))
	}

	if m.DailyTotal > 0 || m.DailyCount > 0 {
		summary, err := o.store.DailySummary(ctx, m.TeamSlug, now)
		if err != nil {
			o.logger.Error().Err(err).Str("teamSlug", m.TeamSlug).Msg("orchestrator: daily summary lookup failed")
			return gwerrors.New(gwerrors.CodeInternal, "internal error")
		}
		if m.DailyTotal > 0 && summary.Total+amount > m.DailyTotal {
			return gwerrors.New(gwerrors.CodeValidationFailed, "daily turnover limit exceeded")
		}
		if m.DailyCount > 0 && summary.Count >= m.DailyCount {
			return gwerrors.New(gwerrors.CodeValidationFailed, "daily payment count limit exceeded")
		}
	}
	return nil
}

// isNotFound reports whether err is the store's not-found outcome for a
// lookup, regardless of which backend produced it.
func isNotFound(err error) bool {
	ge, ok := err.(*gwerrors.GatewayError)
	return ok && ge.Code == gwerrors.CodePaymentNotFound
}

// loadOwnedPayment loads paymentID and confirms it belongs to teamSlug,
// masking cross-tenant existence the same way an unknown paymentId is
// reported (I7's ownership check).
func (o *Orchestrator) loadOwnedPayment(ctx context.Context, teamSlug, paymentID string) (*payment.Payment, error) {
	p, err := o.store.LoadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.TeamSlug != teamSlug {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	return p, nil
}

// notifyTransition enqueues one webhook carrying p's current status. Each
// orchestrator operation calls it once, after its last transition, so
// intermediate statuses (FORM_SHOWED, AUTHORIZING, CONFIRMING, ...) are not
// notified separately, and expiries applied by the reaper are not notified.
// Enqueue failures are logged, not propagated: the state transition has
// already committed and must not be undone by a notification problem.
func (o *Orchestrator) notifyTransition(ctx context.Context, p *payment.Payment, m *merchant.Merchant) {
	o.emitTransitionHooks(ctx, p)

	url := p.NotificationURL
	if url == "" {
		url = m.DefaultNotificationURL
	}
	if url == "" {
		return
	}

	event := notify.Event{
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Status:    string(p.Status),
		Amount:    p.Amount,
		Currency:  p.Currency,
		Timestamp: o.now(),
	}
	if err := o.dispatcher.Enqueue(ctx, p.TeamSlug, url, event); err != nil {
		o.logger.Error().Err(err).Str("paymentId", p.PaymentID).Msg("orchestrator: failed to enqueue notification")
	}
}

// emitTransitionHooks feeds the observability registry (if attached) from
// the same transition events that drive webhook delivery, so a registered
// PaymentHook sees exactly the transitions a merchant's webhook would.
func (o *Orchestrator) emitTransitionHooks(ctx context.Context, p *payment.Payment) {
	if o.hooks == nil {
		return
	}
	o.hooks.EmitPaymentTransitioned(ctx, observability.PaymentTransitionedEvent{
		Timestamp: o.now(),
		PaymentID: p.PaymentID,
		TeamSlug:  p.TeamSlug,
		To:        string(p.Status),
	})
	if payment.IsTerminal(p.Status) || p.Status == payment.StatusConfirmed {
		o.hooks.EmitPaymentCompleted(ctx, observability.PaymentCompletedEvent{
			Timestamp:   o.now(),
			PaymentID:   p.PaymentID,
			TeamSlug:    p.TeamSlug,
			FinalStatus: string(p.Status),
			Success:     p.Status == payment.StatusConfirmed,
			ErrorReason: p.Message,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Duration:    o.now().Sub(p.CreatedAt),
		})
	}
}
