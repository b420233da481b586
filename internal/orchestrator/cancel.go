package orchestrator

import (
	"context"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/observability"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/hackload-kz/payment-gateway/internal/validate"
)

// Cancel routes by the payment's current status (§4.5): a pre-authorization
// payment is simply cancelled, an authorized-but-uncaptured payment is
// reversed, and a confirmed payment is refunded — both of the latter two
// amount-aware for partial reversal/refund (I9).
func (o *Orchestrator) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	v := &validate.Violations{}
	validate.RequireTeamSlug(v, req.TeamSlug)
	validate.RequireToken(v, req.Token)
	validate.RequirePaymentID(v, req.PaymentID)
	validate.Reason(v, req.Reason)
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

	var final *payment.Payment
	switch p.Status {
	case payment.StatusNew, payment.StatusFormShowed:
		final, err = o.cancelUnauthorized(ctx, p, req.Reason)
	case payment.StatusAuthorized:
		final, err = o.reverseAuthorized(ctx, p, req.Amount, req.Reason)
	case payment.StatusConfirmed, payment.StatusPartialRefunded:
		final, err = o.refundConfirmed(ctx, p, req.Amount, req.Reason)
	default:
		return nil, gwerrors.New(gwerrors.CodeBadStatus, "payment cannot be cancelled from its current status")
	}
	if err != nil {
		return nil, err
	}

	o.notifyTransition(ctx, final, m)
	return &CancelResult{PaymentID: final.PaymentID, Status: final.Status}, nil
}

func (o *Orchestrator) cancelUnauthorized(ctx context.Context, p *payment.Payment, reason string) (*payment.Payment, error) {
	cancelling, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: p.Status, To: payment.StatusCancelling,
		Message: reason, Actor: "orchestrator.Cancel",
	})
	if err != nil {
		return nil, err
	}
	return o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: cancelling.PaymentID, ExpectedFrom: payment.StatusCancelling, To: payment.StatusCancelled,
		Actor: "orchestrator.Cancel",
	})
}

func (o *Orchestrator) reverseAuthorized(ctx context.Context, p *payment.Payment, amount *int64, reason string) (*payment.Payment, error) {
	target := p.AuthorizedAmount
	if amount != nil {
		target = *amount
	}
	if target <= 0 || target > p.AuthorizedAmount {
		return nil, gwerrors.New(gwerrors.CodeAmountExceeded, "reversal amount exceeds the authorized amount")
	}

	reversing, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorized, To: payment.StatusReversing,
		Message: reason, Actor: "orchestrator.Cancel",
	})
	if err != nil {
		return nil, err
	}

	outcome, bankErr := o.bank.Reverse(ctx, "", target)
	if bankErr != nil || !outcome.Approved {
		return nil, gwerrors.New(gwerrors.CodeInternal, "reversal failed at the bank")
	}

	to := payment.StatusReversed
	if target < p.AuthorizedAmount {
		to = payment.StatusPartialReversed
	}
	return o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: reversing.PaymentID, ExpectedFrom: payment.StatusReversing, To: to,
		Actor: "orchestrator.Cancel",
	})
}

func (o *Orchestrator) refundConfirmed(ctx context.Context, p *payment.Payment, amount *int64, reason string) (*payment.Payment, error) {
	remaining := p.ConfirmedAmount - p.RefundedAmount
	target := remaining
	if amount != nil {
		target = *amount
	}
	if target <= 0 || target > remaining {
		return nil, gwerrors.New(gwerrors.CodeAmountExceeded, "refund amount exceeds the remaining confirmed amount")
	}

	refunding, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: p.Status, To: payment.StatusRefunding,
		Message: reason, Actor: "orchestrator.Cancel",
	})
	if err != nil {
		return nil, err
	}

	refundStart := o.now()
	if o.hooks != nil {
		o.hooks.EmitRefundRequested(ctx, observability.RefundRequestedEvent{
			Timestamp: refundStart,
			PaymentID: p.PaymentID,
			TeamSlug:  p.TeamSlug,
			Amount:    target,
			Currency:  p.Currency,
			Reason:    reason,
		})
	}

	outcome, bankErr := o.bank.Refund(ctx, "", target)
	if o.hooks != nil {
		o.hooks.EmitRefundProcessed(ctx, observability.RefundProcessedEvent{
			Timestamp: o.now(),
			PaymentID: p.PaymentID,
			TeamSlug:  p.TeamSlug,
			Success:   bankErr == nil && outcome.Approved,
			Amount:    target,
			Currency:  p.Currency,
			Duration:  o.now().Sub(refundStart),
		})
	}
	if bankErr != nil || !outcome.Approved {
		return nil, gwerrors.New(gwerrors.CodeInternal, "refund failed at the bank")
	}

	totalRefunded := p.RefundedAmount + target
	to := payment.StatusRefunded
	if totalRefunded < p.ConfirmedAmount {
		to = payment.StatusPartialRefunded
	}
	return o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: refunding.PaymentID, ExpectedFrom: payment.StatusRefunding, To: to,
		Actor: "orchestrator.Cancel", SetRefundedAmount: &totalRefunded,
	})
}
