package orchestrator

import (
	"context"
	"fmt"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/observability"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/hackload-kz/payment-gateway/internal/validate"
)

// Init creates a new payment in status NEW and returns the hosted payment
// form URL (§4.5's first operation). PaymentID is gateway-assigned; teamSlug
// + orderId uniqueness is enforced by C5 (I1).
func (o *Orchestrator) Init(ctx context.Context, req InitRequest) (*InitResult, error) {
	v := &validate.Violations{}
	validate.RequireTeamSlug(v, req.TeamSlug)
	validate.RequireToken(v, req.Token)
	validate.RequireAmount(v, req.Amount)
	validate.RequireOrderID(v, req.OrderID)
	validate.RequirePayType(v, req.PayType)
	validate.RequireLanguage(v, req.Language)
	validate.Description(v, req.Description)
	validate.CustomerKey(v, req.CustomerKey)
	validate.RequireCustomerKeyIfRecurrent(v, req.Recurrent, req.CustomerKey)
	validate.OptionalURL(v, "successUrl", req.SuccessURL)
	validate.OptionalURL(v, "failUrl", req.FailURL)
	validate.OptionalURL(v, "notificationUrl", req.NotificationURL)
	validate.Data(v, req.Data)
	validate.CallbackURLsShareProtocol(v, req.SuccessURL, req.FailURL, req.NotificationURL)
	if !req.RedirectDueDate.IsZero() {
		validate.RedirectDueDate(v, req.RedirectDueDate, o.now())
	}
	if req.PaymentExpiry != 0 {
		validate.RequirePaymentExpiry(v, req.PaymentExpiry)
	}
	if !v.Empty() {
		return nil, gwerrors.New(gwerrors.CodeValidationFailed, "request validation failed").WithDetails(v.Details())
	}

	m, err := o.auth.Authenticate(ctx, authenticator.Request{
		TeamSlug: req.TeamSlug,
		Token:    req.Token,
		Params:   initTokenParams(req),
	})
	if err != nil {
		return nil, err
	}

	paymentExpiry := req.PaymentExpiry
	if paymentExpiry == 0 {
		paymentExpiry = defaultPaymentExpiry(m)
	}
	currencyViolations := &validate.Violations{}
	validate.RequireCurrency(currencyViolations, req.Currency, m.SupportsCurrency)
	if !currencyViolations.Empty() {
		return nil, gwerrors.New(gwerrors.CodeValidationFailed, "request validation failed").WithDetails(currencyViolations.Details())
	}
	receiptViolations := &validate.Violations{}
	validate.Receipt(receiptViolations, req.Receipt, req.Amount)
	if !receiptViolations.Empty() {
		return nil, gwerrors.New(gwerrors.CodeValidationFailed, "request validation failed").WithDetails(receiptViolations.Details())
	}

	now := o.now()
	if err := o.checkBusinessRules(ctx, m, req.Amount, req.Currency, now); err != nil {
		return nil, err
	}

	if existing, err := o.store.FindByOrderID(ctx, req.TeamSlug, req.OrderID); err == nil {
		return nil, gwerrors.New(gwerrors.CodeDuplicateOrderID,
			fmt.Sprintf("orderId %s already has payment %s", req.OrderID, existing.PaymentID))
	} else if !isNotFound(err) {
		o.logger.Error().Err(err).Str("orderId", req.OrderID).Msg("orchestrator: orderId lookup failed")
		return nil, gwerrors.New(gwerrors.CodeInternal, "internal error")
	}

	maxAttempts := 1
	if req.PayType == payment.PayTypeSingleStage {
		maxAttempts = 3 // single-stage auth retries before AUTH_FAIL per §7
	}

	p := &payment.Payment{
		PaymentID:       generatePaymentID(),
		TeamSlug:        req.TeamSlug,
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		PayType:         req.PayType,
		Description:     req.Description,
		CustomerKey:     req.CustomerKey,
		Language:        req.Language,
		SuccessURL:      firstNonEmpty(req.SuccessURL, m.DefaultSuccessURL),
		FailURL:         firstNonEmpty(req.FailURL, m.DefaultFailURL),
		NotificationURL: req.NotificationURL,
		PaymentExpiry:   paymentExpiry,
		CreatedAt:       now,
		Status:          payment.StatusInit,
		MaxAttempts:     maxAttempts,
		Data:            req.Data,
		Receipt:         req.Receipt,
	}
	if err := o.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	p, err = o.machine.Attempt(ctx, payment.TransitionInput{
		PaymentID:    p.PaymentID,
		ExpectedFrom: payment.StatusInit,
		To:           payment.StatusNew,
		Actor:        "orchestrator.Init",
	})
	if err != nil {
		return nil, err
	}

	o.metrics.ObserveInit(req.TeamSlug, true)
	o.metrics.ObserveTransition(string(payment.StatusInit), string(payment.StatusNew))
	if o.hooks != nil {
		o.hooks.EmitPaymentStarted(ctx, observability.PaymentStartedEvent{
			Timestamp: now,
			PaymentID: p.PaymentID,
			TeamSlug:  p.TeamSlug,
			OrderID:   p.OrderID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			PayType:   string(p.PayType),
		})
	}
	o.notifyTransition(ctx, p, m)

	return &InitResult{
		PaymentID:  p.PaymentID,
		PaymentURL: o.paymentURL(p.PaymentID),
		Status:     p.Status,
		Amount:     p.Amount,
		OrderID:    p.OrderID,
	}, nil
}

// initTokenParams projects Init's scalar fields for token verification
// (§4.1): only scalar request fields participate, per token.Sign's contract.
func initTokenParams(req InitRequest) token.Params {
	return token.Params{
		"TeamSlug":      req.TeamSlug,
		"Amount":        req.Amount,
		"OrderId":       req.OrderID,
		"Currency":      req.Currency,
		"PayType":       string(req.PayType),
		"Description":   req.Description,
		"CustomerKey":   req.CustomerKey,
		"Language":      string(req.Language),
		"Recurrent":     req.Recurrent,
		"PaymentExpiry": req.PaymentExpiry,
	}
}

// defaultPaymentExpiry falls back to the merchant's configured default when
// the caller omits paymentExpiry, clamped to the merchant's bounds.
func defaultPaymentExpiry(m *merchant.Merchant) int {
	const fallback = 1440 // 24h
	switch {
	case m.MinPaymentExpiry > 0 && fallback < m.MinPaymentExpiry:
		return m.MinPaymentExpiry
	case m.MaxPaymentExpiry > 0 && fallback > m.MaxPaymentExpiry:
		return m.MaxPaymentExpiry
	default:
		return fallback
	}
}

func (o *Orchestrator) paymentURL(paymentID string) string {
	return fmt.Sprintf("%s/paymentform/%s", o.baseURL, paymentID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
