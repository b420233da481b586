package payment

import (
	"context"
	"fmt"
	"time"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
)

// Store is the narrow persistence contract the state machine needs (§9's
// redesign note: explicit narrow interfaces over an entity/repository
// graph). The full Store (C5) embeds this.
type Store interface {
	LoadPayment(ctx context.Context, paymentID string) (*Payment, error) // gwerrors-wrapped NotFound on miss
	SavePayment(ctx context.Context, p *Payment, expectedVersion int64) error
	AppendTransition(ctx context.Context, rec TransitionRecord) error
}

// edge is one permitted (from, to) pair in §4.3's transition table.
type edge struct {
	from Status
	to   Status
}

// transitions is the complete edge table from §4.3. Any (from, to) pair not
// listed here is rejected with CodeBadStatus.
var transitions = map[edge]struct{}{
	{StatusInit, StatusNew}:                     {},
	{StatusNew, StatusFormShowed}:                {},
	{StatusNew, StatusCancelling}:                {},
	{StatusFormShowed, StatusAuthorizing}:        {},
	{StatusFormShowed, StatusCancelling}:         {},
	{StatusAuthorizing, StatusThreeDSChecking}:   {},
	{StatusAuthorizing, StatusAuthorized}:        {},
	{StatusAuthorizing, StatusAuthFail}:          {},
	{StatusThreeDSChecking, StatusThreeDSChecked}: {},
	{StatusThreeDSChecking, StatusAuthFail}:      {},
	{StatusThreeDSChecked, StatusAuthorized}:     {},
	{StatusThreeDSChecked, StatusAuthFail}:       {},
	{StatusAuthFail, StatusAuthorizing}:          {}, // retry while attemptCount < maxAttempts
	{StatusAuthorized, StatusConfirming}:         {}, // two-stage confirm
	{StatusAuthorized, StatusConfirmed}:          {}, // single-stage auto-capture
	{StatusAuthorized, StatusReversing}:          {}, // cancel before capture
	{StatusConfirming, StatusConfirmed}:          {},
	{StatusConfirming, StatusRejected}:           {},
	{StatusConfirmed, StatusRefunding}:            {},
	{StatusRefunding, StatusRefunded}:             {},
	{StatusRefunding, StatusPartialRefunded}:      {},
	{StatusPartialRefunded, StatusRefunding}:      {}, // guard rejects it: PARTIAL_REFUNDED is terminal
	{StatusReversing, StatusReversed}:             {},
	{StatusReversing, StatusPartialReversed}:      {},
	{StatusCancelling, StatusCancelled}:           {},
	{StatusNew, StatusDeadlineExpired}:            {},
	{StatusFormShowed, StatusDeadlineExpired}:     {},
	{StatusAuthorizing, StatusDeadlineExpired}:    {},
	{StatusThreeDSChecking, StatusDeadlineExpired}: {},
	{StatusAuthFail, StatusDeadlineExpired}:        {},
	{StatusAuthorized, StatusDeadlineExpired}:      {}, // only when PayType==T and never confirmed
}

// Machine enforces §4.3's transition table and §5's atomicity/mutual-
// exclusion contract on top of a Store.
type Machine struct {
	store Store
	locks *keyedMutex
	now   func() time.Time
}

// NewMachine builds a Machine over store. now defaults to time.Now; tests
// may override it for deterministic expiry checks.
func NewMachine(store Store, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, locks: newKeyedMutex(), now: now}
}

// TransitionInput describes a requested transition.
type TransitionInput struct {
	PaymentID    string
	ExpectedFrom Status // empty means "don't check current status"
	To           Status
	ErrorCode    string
	Message      string
	Actor        string

	// SetAmount/SetAuthorizedAmount/SetConfirmedAmount/SetRefundedAmount, when
	// non-nil, overwrite the corresponding Payment field atomically with the
	// status transition (I8/I9's partial-capture/partial-refund bookkeeping),
	// rather than requiring a second unguarded store write outside the keyed
	// lock. SetAmount is used by a partial capture (§4.3) to bring Payment.Amount
	// down to the actually-confirmed amount, so a later Check reflects it.
	SetAmount           *int64
	SetAuthorizedAmount *int64
	SetConfirmedAmount  *int64
	SetRefundedAmount   *int64

	// AllowExpired permits a transition into DEADLINE_EXPIRED even when the
	// target payment's expiresAt has not yet passed (used by manual admin
	// actions if ever needed); the reaper always leaves this false.
	AllowExpired bool
}

// Attempt performs load → guard → update → append-history atomically under
// the paymentId's keyed mutex, retrying once on an optimistic-concurrency
// conflict from a concurrent writer (§5's "store-level optimistic
// concurrency (version column)" backstop for races the in-process lock
// cannot see, e.g. a second process instance).
func (m *Machine) Attempt(ctx context.Context, in TransitionInput) (*Payment, error) {
	var result *Payment
	err := m.locks.withLock(in.PaymentID, func() error {
		for attempt := 0; attempt < 2; attempt++ {
			p, err := m.store.LoadPayment(ctx, in.PaymentID)
			if err != nil {
				return err
			}

			if err := m.guard(p, in); err != nil {
				return err
			}

			from := p.Status
			loadedVersion := p.Version
			applySideEffects(p, from, in.To, in.ErrorCode, in.Message, m.now())
			if in.SetAmount != nil {
				p.Amount = *in.SetAmount
			}
			if in.SetAuthorizedAmount != nil {
				p.AuthorizedAmount = *in.SetAuthorizedAmount
			}
			if in.SetConfirmedAmount != nil {
				p.ConfirmedAmount = *in.SetConfirmedAmount
			}
			if in.SetRefundedAmount != nil {
				p.RefundedAmount = *in.SetRefundedAmount
			}

			if err := m.store.SavePayment(ctx, p, loadedVersion); err != nil {
				if isVersionConflict(err) && attempt == 0 {
					continue // reload and retry once
				}
				return err
			}

			rec := TransitionRecord{
				PaymentID: p.PaymentID,
				From:      from,
				To:        p.Status,
				Timestamp: m.now(),
				Actor:     in.Actor,
				ErrorCode: in.ErrorCode,
				Message:   in.Message,
			}
			if err := m.store.AppendTransition(ctx, rec); err != nil {
				return err
			}

			result = p
			return nil
		}
		return gwerrors.New(gwerrors.CodeStateConflict, "concurrent update, retry exhausted")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// guard enforces §4.3's invariants: edge membership, terminal-state
// rejection, expiry, and the AUTHORIZING retry-attempt cap.
func (m *Machine) guard(p *Payment, in TransitionInput) error {
	if in.ExpectedFrom != "" && p.Status != in.ExpectedFrom {
		return gwerrors.New(gwerrors.CodeStateConflict,
			fmt.Sprintf("expected status %s, found %s", in.ExpectedFrom, p.Status))
	}

	// AUTH_FAIL is terminal only once retries are exhausted (§9 scenario 3):
	// a retrying FormSubmit must still be able to re-enter AUTHORIZING.
	retryingAuthFail := p.Status == StatusAuthFail && in.To == StatusAuthorizing &&
		(p.MaxAttempts <= 0 || p.AttemptCount < p.MaxAttempts)

	if IsTerminal(p.Status) && !retryingAuthFail {
		return gwerrors.New(gwerrors.CodeBadStatus,
			fmt.Sprintf("payment %s is in terminal status %s", p.PaymentID, p.Status))
	}

	if in.To != StatusDeadlineExpired {
		if _, ok := transitions[edge{p.Status, in.To}]; !ok {
			return gwerrors.New(gwerrors.CodeBadStatus,
				fmt.Sprintf("no transition %s -> %s", p.Status, in.To))
		}
	} else if !in.AllowExpired {
		if _, ok := transitions[edge{p.Status, StatusDeadlineExpired}]; !ok {
			return gwerrors.New(gwerrors.CodeBadStatus,
				fmt.Sprintf("no expiry transition from %s", p.Status))
		}
		if !p.ExpiresAt.Before(m.now()) {
			return gwerrors.New(gwerrors.CodeBadStatus, "payment has not yet expired")
		}
	}

	if p.Status == StatusAuthFail && in.To == StatusAuthorizing {
		if p.MaxAttempts > 0 && p.AttemptCount >= p.MaxAttempts {
			return gwerrors.New(gwerrors.CodeBadStatus, "maximum authorization attempts exceeded")
		}
	}

	if !p.ExpiresAt.IsZero() && p.ExpiresAt.Before(m.now()) && in.To != StatusDeadlineExpired {
		return gwerrors.New(gwerrors.CodeBadStatus, "payment has expired")
	}

	return nil
}

// applySideEffects mutates p per §4.3's per-transition side-effect notes.
func applySideEffects(p *Payment, from, to Status, errorCode, message string, now time.Time) {
	switch {
	case from == StatusInit && to == StatusNew:
		p.ExpiresAt = now.Add(time.Duration(p.PaymentExpiry) * time.Minute)
	case from == StatusFormShowed && to == StatusAuthorizing:
		p.AttemptCount++
	case from == StatusAuthFail && to == StatusAuthorizing:
		p.AttemptCount++
	}

	p.Status = to
	if errorCode != "" {
		p.ErrorCode = errorCode
	}
	if message != "" {
		p.Message = message
	}
	p.Version++
}

// isVersionConflict reports whether err signals a SavePayment optimistic-
// concurrency mismatch (store implementations wrap this as CodeStateConflict).
func isVersionConflict(err error) bool {
	ge, ok := err.(*gwerrors.GatewayError)
	return ok && ge.Code == gwerrors.CodeStateConflict
}
