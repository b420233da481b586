package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/idempotency"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/hackload-kz/payment-gateway/internal/validate"
)

// idempotencyTTL bounds how long a cached Confirm response is replayed
// before a repeated idempotencyKey is treated as a fresh request (§4.5).
const idempotencyTTL = 24 * time.Hour

// Confirm captures a previously authorized two-stage payment, optionally for
// a partial amount (AUTHORIZED→CONFIRMING→CONFIRMED|REJECTED, I8).
func (o *Orchestrator) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if req.IdempotencyKey != "" {
		if cached, ok := o.idempotency.Get(ctx, idempotencyKeyFor(req.TeamSlug, req.PaymentID, req.IdempotencyKey)); ok {
			var result ConfirmResult
			if err := json.Unmarshal(cached.Body, &result); err == nil {
				return &result, nil
			}
		}
	}

	v := &validate.Violations{}
	validate.RequireTeamSlug(v, req.TeamSlug)
	validate.RequireToken(v, req.Token)
	validate.RequirePaymentID(v, req.PaymentID)
	if !v.Empty() {
		return nil, gwerrors.New(gwerrors.CodeValidationFailed, "request validation failed").WithDetails(v.Details())
	}

	m, err := o.auth.Authenticate(ctx, authenticator.Request{
		TeamSlug: req.TeamSlug,
		Token:    req.Token,
		Params:   token.Params{"TeamSlug": req.TeamSlug, "PaymentId": req.PaymentID},
	})
	if err != nil {
		return nil, err
	}

	p, err := o.loadOwnedPayment(ctx, req.TeamSlug, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if p.PayType != payment.PayTypeTwoStage {
		return nil, gwerrors.New(gwerrors.CodeBadStatus, "confirm applies only to two-stage payments")
	}

	amount := p.AuthorizedAmount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > p.AuthorizedAmount {
		return nil, gwerrors.New(gwerrors.CodeAmountExceeded, "confirm amount exceeds the authorized amount")
	}

	confirming, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorized, To: payment.StatusConfirming,
		Actor: "orchestrator.Confirm",
	})
	if err != nil {
		return nil, err
	}

	outcome, bankErr := o.bank.Capture(ctx, "", amount)
	var final *payment.Payment
	if bankErr != nil || !outcome.Approved {
		final, err = o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: confirming.PaymentID, ExpectedFrom: payment.StatusConfirming, To: payment.StatusRejected,
			ErrorCode: "CAPTURE_FAILED", Actor: "orchestrator.Confirm",
		})
	} else {
		final, err = o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: confirming.PaymentID, ExpectedFrom: payment.StatusConfirming, To: payment.StatusConfirmed,
			Actor: "orchestrator.Confirm", SetAmount: &amount, SetConfirmedAmount: &amount,
		})
	}
	if err != nil {
		return nil, err
	}

	o.notifyTransition(ctx, final, m)
	result := &ConfirmResult{PaymentID: final.PaymentID, Status: final.Status, Amount: amount}

	if req.IdempotencyKey != "" {
		o.cacheIdempotentResponse(ctx, req.TeamSlug, req.IdempotencyKey, result)
	}
	return result, nil
}

func idempotencyKeyFor(teamSlug, paymentID, key string) string {
	return teamSlug + ":" + paymentID + ":" + key
}

func (o *Orchestrator) cacheIdempotentResponse(ctx context.Context, teamSlug, key string, result *ConfirmResult) {
	body, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = o.idempotency.Set(ctx, idempotencyKeyFor(teamSlug, result.PaymentID, key), &idempotency.Response{
		StatusCode: 200,
		Body:       body,
		CachedAt:   o.now(),
	}, idempotencyTTL)
}
