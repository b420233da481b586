package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	"github.com/hackload-kz/payment-gateway/internal/bank"
	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/idempotency"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/store"
	"github.com/hackload-kz/payment-gateway/internal/token"
)

const testSecret = "test-secret"

func newTestMerchant() *merchant.Merchant {
	return &merchant.Merchant{
		TeamSlug:            "demo-team",
		Password:            testSecret,
		IsActive:            true,
		SupportedCurrencies: map[string]struct{}{"RUB": {}},
	}
}

// newTestOrchestrator wires an Orchestrator over an in-memory store, with a
// disabled circuit breaker (pass-through, Config{}'s zero value) so scenario
// tests never wait on gobreaker state, only the bank simulator's own tiny
// simulated delay.
func newTestOrchestrator(t *testing.T, m *merchant.Merchant) *Orchestrator {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.Save(context.Background(), m); err != nil {
		t.Fatalf("seed merchant: %v", err)
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	logger := zerolog.Nop()

	dir := merchant.NewDirectory(st, time.Minute, merchant.DefaultLockoutPolicy())
	auth := authenticator.New(dir, met, logger)
	machine := payment.NewMachine(st, time.Now)
	breaker := circuitbreaker.NewManager(circuitbreaker.Config{})
	bankSim := bank.New(breaker, met)

	secrets := func(ctx context.Context, teamSlug string) (string, error) {
		mm, err := dir.Lookup(ctx, teamSlug)
		if err != nil {
			return "", err
		}
		return mm.EffectiveWebhookSecret(), nil
	}
	dispatcher := notify.NewDispatcher(st, secrets, notify.DefaultRetryConfig(), breaker, met, logger)

	return New(st, auth, machine, bankSim, dispatcher, idempotency.NewMemoryStore(), met, logger, "https://gateway.example.test")
}

// initRequest builds a fully-valid InitRequest/token pair for teamSlug,
// signing exactly the scalar fields initTokenParams projects.
func initRequest(teamSlug string, amount int64, orderID string, payType payment.PayType) InitRequest {
	req := InitRequest{
		TeamSlug: teamSlug,
		Amount:   amount,
		OrderID:  orderID,
		Currency: "RUB",
		PayType:  payType,
		Language: payment.LanguageRU,
	}
	req.Token = token.Sign(initTokenParams(req), testSecret)
	return req
}

func mustInit(t *testing.T, o *Orchestrator, req InitRequest) *InitResult {
	t.Helper()
	res, err := o.Init(context.Background(), req)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return res
}

func opToken(teamSlug, paymentID string) string {
	return token.Sign(token.Params{"TeamSlug": teamSlug, "PaymentId": paymentID}, testSecret)
}

func TestOrchestratorSingleStageHappyPath(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	initRes := mustInit(t, o, initRequest(m.TeamSlug, 100000, "O1", payment.PayTypeSingleStage))
	if initRes.Status != payment.StatusNew {
		t.Fatalf("expected NEW after Init, got %s", initRes.Status)
	}

	formRes, err := o.FormSubmit(context.Background(), FormSubmitRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Card:      CardData{PAN: "4111111111111111", Expiry: "1230", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("FormSubmit failed: %v", err)
	}
	if formRes.Status != payment.StatusConfirmed {
		t.Fatalf("expected single-stage payment to auto-capture to CONFIRMED, got %s", formRes.Status)
	}

	checkRes, err := o.Check(context.Background(), CheckRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
	})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if checkRes.Status != payment.StatusConfirmed || checkRes.ConfirmedAmount != 100000 {
		t.Fatalf("unexpected check result: %+v", checkRes)
	}
}

func TestOrchestratorTwoStagePartialCapture(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	initRes := mustInit(t, o, initRequest(m.TeamSlug, 10000, "O2", payment.PayTypeTwoStage))

	formRes, err := o.FormSubmit(context.Background(), FormSubmitRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Card:      CardData{PAN: "4111111111111112", Expiry: "1230", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("FormSubmit failed: %v", err)
	}
	if formRes.Status != payment.StatusAuthorized {
		t.Fatalf("expected two-stage payment to stop at AUTHORIZED, got %s", formRes.Status)
	}

	partial := int64(7500)
	confirmRes, err := o.Confirm(context.Background(), ConfirmRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Amount:    &partial,
	})
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if confirmRes.Status != payment.StatusConfirmed || confirmRes.Amount != partial {
		t.Fatalf("expected CONFIRMED with amount 7500, got %+v", confirmRes)
	}
}

func TestOrchestratorDeclinedCardExhaustsAttempts(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	initRes := mustInit(t, o, initRequest(m.TeamSlug, 5000, "O3", payment.PayTypeSingleStage))

	declinedPAN := "4111111111111110"
	var lastStatus payment.Status
	for attempt := 0; attempt < 3; attempt++ {
		formRes, err := o.FormSubmit(context.Background(), FormSubmitRequest{
			TeamSlug:  m.TeamSlug,
			Token:     opToken(m.TeamSlug, initRes.PaymentID),
			PaymentID: initRes.PaymentID,
			Card:      CardData{PAN: declinedPAN, Expiry: "1230", CVV: "123"},
		})
		if err != nil {
			t.Fatalf("FormSubmit attempt %d failed: %v", attempt, err)
		}
		lastStatus = formRes.Status
		if formRes.Status != payment.StatusAuthFail {
			t.Fatalf("expected AUTH_FAIL on a declined card, got %s", formRes.Status)
		}
	}
	if lastStatus != payment.StatusAuthFail {
		t.Fatalf("expected payment to remain AUTH_FAIL after exhausting attempts, got %s", lastStatus)
	}

	_, err := o.FormSubmit(context.Background(), FormSubmitRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Card:      CardData{PAN: declinedPAN, Expiry: "1230", CVV: "123"},
	})
	if err == nil {
		t.Fatalf("expected a 4th submission past maxAttempts to be rejected")
	}
}

func TestOrchestratorThreeDSChallengeResolvesToAuthorized(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	initRes := mustInit(t, o, initRequest(m.TeamSlug, 20000, "O4", payment.PayTypeTwoStage))

	formRes, err := o.FormSubmit(context.Background(), FormSubmitRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Card:      CardData{PAN: "4111111111111119", Expiry: "1230", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("FormSubmit failed: %v", err)
	}
	if formRes.Status != payment.StatusAuthorized {
		t.Fatalf("expected the 3DS challenge to resolve straight through to AUTHORIZED, got %s", formRes.Status)
	}
}

func TestOrchestratorInitRejectsDuplicateOrderID(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	req := initRequest(m.TeamSlug, 1000, "DUP", payment.PayTypeSingleStage)
	mustInit(t, o, req)

	_, err := o.Init(context.Background(), req)
	if err == nil {
		t.Fatalf("expected second Init with the same orderId to fail")
	}
	ge, ok := err.(*gwerrors.GatewayError)
	if !ok || ge.Code != gwerrors.CodeDuplicateOrderID {
		t.Fatalf("expected CodeDuplicateOrderID, got %v", err)
	}
}

func TestOrchestratorCancelReversesAnAuthorizedTwoStagePayment(t *testing.T) {
	m := newTestMerchant()
	o := newTestOrchestrator(t, m)

	initRes := mustInit(t, o, initRequest(m.TeamSlug, 15000, "O5", payment.PayTypeTwoStage))
	formRes, err := o.FormSubmit(context.Background(), FormSubmitRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Card:      CardData{PAN: "4111111111111112", Expiry: "1230", CVV: "123"},
	})
	if err != nil {
		t.Fatalf("FormSubmit failed: %v", err)
	}
	if formRes.Status != payment.StatusAuthorized {
		t.Fatalf("expected AUTHORIZED before cancel, got %s", formRes.Status)
	}

	cancelRes, err := o.Cancel(context.Background(), CancelRequest{
		TeamSlug:  m.TeamSlug,
		Token:     opToken(m.TeamSlug, initRes.PaymentID),
		PaymentID: initRes.PaymentID,
		Reason:    "customer requested cancellation",
	})
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if cancelRes.Status != payment.StatusReversed {
		t.Fatalf("expected REVERSED after cancelling an authorized payment, got %s", cancelRes.Status)
	}
}
