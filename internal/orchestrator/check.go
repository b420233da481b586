package orchestrator

import (
	"context"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/hackload-kz/payment-gateway/internal/validate"
)

// Check returns a payment's current state and, optionally, its full
// transition history (§4.5, a read-only operation with no side effects).
func (o *Orchestrator) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	v := &validate.Violations{}
	validate.RequireTeamSlug(v, req.TeamSlug)
	validate.RequireToken(v, req.Token)
	validate.RequirePaymentID(v, req.PaymentID)
	if !v.Empty() {
		return nil, gwerrors.New(gwerrors.CodeValidationFailed, "request validation failed").WithDetails(v.Details())
	}

	_, err := o.auth.Authenticate(ctx, authenticator.Request{
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

	result := &CheckResult{
		PaymentID:        p.PaymentID,
		OrderID:          p.OrderID,
		Status:           p.Status,
		Amount:           p.Amount,
		AuthorizedAmount: p.AuthorizedAmount,
		ConfirmedAmount:  p.ConfirmedAmount,
		RefundedAmount:   p.RefundedAmount,
		Currency:         p.Currency,
	}

	if req.IncludeHistory {
		history, err := o.store.ListTransitions(ctx, p.PaymentID)
		if err != nil {
			return nil, err
		}
		result.History = history
	}

	return result, nil
}
