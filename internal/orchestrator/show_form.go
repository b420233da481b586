package orchestrator

import (
	"context"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// ShowFormResult is the hosted form's read model (§6: unauthenticated, the
// unguessable paymentId is itself the access control).
type ShowFormResult struct {
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
	Status    payment.Status
	Language  payment.Language
}

// ShowForm loads a payment for the hosted card-entry page and, on first
// view, advances NEW→FORM_SHOWED (§4.5: "idempotent on repeat GET of form").
// No teamSlug/token is required: the 20-digit paymentId is the capability.
func (o *Orchestrator) ShowForm(ctx context.Context, paymentID string) (*ShowFormResult, error) {
	p, err := o.store.LoadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case payment.StatusNew:
		shown, err := o.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID: p.PaymentID, ExpectedFrom: payment.StatusNew, To: payment.StatusFormShowed,
			Actor: "orchestrator.ShowForm",
		})
		if err != nil {
			return nil, err
		}
		o.metrics.ObserveTransition(string(payment.StatusNew), string(payment.StatusFormShowed))
		p = shown
	case payment.StatusFormShowed, payment.StatusAuthFail:
		// already showed, or awaiting a retry submission
	default:
		return nil, gwerrors.New(gwerrors.CodeBadStatus, "payment is not awaiting card submission")
	}

	return &ShowFormResult{
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    p.Status,
		Language:  p.Language,
	}, nil
}
