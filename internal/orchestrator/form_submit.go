package orchestrator

import (
	"context"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	"github.com/hackload-kz/payment-gateway/internal/bank"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/hackload-kz/payment-gateway/internal/validate"
)

// FormSubmit authorizes a card against a payment (§4.5's Form-Submit
// operation): NEW→FORM_SHOWED (idempotent), FORM_SHOWED→AUTHORIZING, a C8
// call, then AUTHORIZING→AUTHORIZED|AUTH_FAIL|THREE_DS_CHECKING. Single-stage
// payments auto-capture to CONFIRMED once authorized.
func (o *Orchestrator) FormSubmit(ctx context.Context, req FormSubmitRequest) (*FormSubmitResult, error) {
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

	p, err = o.enterAuthorizing(ctx, p)
	if err != nil {
		return nil, err
	}

	outcome, bankErr := o.bank.Authorize(ctx, req.Card.PAN, p.Amount)
	p, err = o.applyAuthorizationOutcome(ctx, p, outcome, bankErr)
	if err != nil {
		return nil, err
	}

	o.notifyTransition(ctx, p, m)
	return &FormSubmitResult{PaymentID: p.PaymentID, Status: p.Status}, nil
}

// enterAuthorizing advances p from NEW/FORM_SHOWED/AUTH_FAIL to AUTHORIZING,
// rejecting a resubmission while a prior attempt is still in flight.
func (o *Orchestrator) enterAuthorizing(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	switch p.Status {
	case payment.StatusNew:
		shown, err := o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: p.PaymentID, ExpectedFrom: payment.StatusNew, To: payment.StatusFormShowed,
			Actor: "orchestrator.FormSubmit",
		})
		if err != nil {
			return nil, err
		}
		o.metrics.ObserveTransition(string(payment.StatusNew), string(payment.StatusFormShowed))
		p = shown
	case payment.StatusFormShowed, payment.StatusAuthFail:
		// already showed, or retrying after a declined attempt
	default:
		return nil, gwerrors.New(gwerrors.CodeBadStatus, "payment is not awaiting card submission")
	}

	from := p.Status
	authorizing, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: from, To: payment.StatusAuthorizing,
		Actor: "orchestrator.FormSubmit",
	})
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveTransition(string(from), string(payment.StatusAuthorizing))
	return authorizing, nil
}

// applyAuthorizationOutcome maps a C8 Outcome onto the AUTHORIZING→{AUTHORIZED,
// AUTH_FAIL, THREE_DS_CHECKING} edges and, for single-stage payments, chains
// straight through to CONFIRMED (§4.5, §4.6's outcome table).
func (o *Orchestrator) applyAuthorizationOutcome(ctx context.Context, p *payment.Payment, outcome bank.Outcome, bankErr error) (*payment.Payment, error) {
	if bankErr != nil {
		return o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorizing, To: payment.StatusAuthFail,
			ErrorCode: "NETWORK_ERROR", Message: bankErr.Error(), Actor: "orchestrator.FormSubmit",
		})
	}

	if outcome.ThreeDSRequired {
		checking, err := o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorizing, To: payment.StatusThreeDSChecking,
			Actor: "orchestrator.FormSubmit",
		})
		if err != nil {
			return nil, err
		}
		// The simulator never issues a real challenge; the check completes
		// synchronously (§4.6's non-goal: no real 3DS provider integration).
		checked, err := o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: checking.PaymentID, ExpectedFrom: payment.StatusThreeDSChecking, To: payment.StatusThreeDSChecked,
			Actor: "orchestrator.FormSubmit",
		})
		if err != nil {
			return nil, err
		}
		authorizedAmount := checked.Amount
		return o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: checked.PaymentID, ExpectedFrom: payment.StatusThreeDSChecked, To: payment.StatusAuthorized,
			Actor: "orchestrator.FormSubmit", SetAuthorizedAmount: &authorizedAmount,
		})
	}

	if !outcome.Approved {
		return o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorizing, To: payment.StatusAuthFail,
			ErrorCode: outcome.ResponseCode, Message: outcome.ResponseMessage, Actor: "orchestrator.FormSubmit",
		})
	}

	authorizedAmount := p.Amount
	authorized, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorizing, To: payment.StatusAuthorized,
		Actor: "orchestrator.FormSubmit", SetAuthorizedAmount: &authorizedAmount,
	})
	if err != nil {
		return nil, err
	}

	if authorized.PayType == payment.PayTypeSingleStage {
		return o.autoCapture(ctx, authorized)
	}
	return authorized, nil
}

// autoCapture performs the single-stage payment's automatic capture
// (AUTHORIZED→CONFIRMING→CONFIRMED) right after authorization.
func (o *Orchestrator) autoCapture(ctx context.Context, p *payment.Payment) (*payment.Payment, error) {
	confirming, err := o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: p.PaymentID, ExpectedFrom: payment.StatusAuthorized, To: payment.StatusConfirming,
		Actor: "orchestrator.FormSubmit",
	})
	if err != nil {
		return nil, err
	}

	outcome, bankErr := o.bank.Capture(ctx, "", confirming.Amount)
	if bankErr != nil || !outcome.Approved {
		return o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: confirming.PaymentID, ExpectedFrom: payment.StatusConfirming, To: payment.StatusRejected,
			ErrorCode: "CAPTURE_FAILED", Actor: "orchestrator.FormSubmit",
		})
	}

	confirmedAmount := confirming.Amount
	return o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID: confirming.PaymentID, ExpectedFrom: payment.StatusConfirming, To: payment.StatusConfirmed,
		Actor: "orchestrator.FormSubmit", SetConfirmedAmount: &confirmedAmount,
	})
}

