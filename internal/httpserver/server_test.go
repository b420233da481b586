package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/authenticator"
	"github.com/hackload-kz/payment-gateway/internal/bank"
	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/config"
	"github.com/hackload-kz/payment-gateway/internal/idempotency"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/orchestrator"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/hackload-kz/payment-gateway/internal/store"
	"github.com/hackload-kz/payment-gateway/internal/token"
)

const testTeamSlug = "demo-team"
const testSecret = "test-secret"

// newTestServer wires a full chi router against an in-memory store, mirroring
// the orchestrator package's own test harness (internal/orchestrator/orchestrator_test.go).
func newTestServer(t *testing.T) chi.Router {
	t.Helper()

	st := store.NewMemoryStore()
	m := &merchant.Merchant{
		TeamSlug: testTeamSlug, Password: testSecret, IsActive: true,
		SupportedCurrencies: map[string]struct{}{"RUB": {}},
	}
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

	orch := orchestrator.New(st, auth, machine, bankSim, dispatcher, idempotency.NewMemoryStore(), met, logger, "https://gateway.example.test")

	cfg := &config.Config{}
	cfg.Server.RoutePrefix = ""
	cfg.Server.AdminToken = "admin-secret"

	router := chi.NewRouter()
	ConfigureRouter(router, cfg, orch, met, logger)
	return router
}

// signedInit computes the Init token over exactly the scalar fields
// initTokenParams projects server-side (internal/orchestrator/init.go),
// including zero-valued Recurrent/PaymentExpiry which still render as
// non-empty "false"/"0" strings per token.Sign's contract.
func signedInit(body map[string]any) []byte {
	params := token.Params{
		"TeamSlug":      body["teamSlug"],
		"Amount":        body["amount"],
		"OrderId":       body["orderId"],
		"Currency":      body["currency"],
		"PayType":       body["payType"],
		"Language":      body["language"],
		"Recurrent":     false,
		"PaymentExpiry": 0,
	}
	body["token"] = token.Sign(params, testSecret)
	encoded, _ := json.Marshal(body)
	return encoded
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpointRequiresAdminToken(t *testing.T) {
	router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Admin-Token", "admin-secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a valid admin token, got %d", w.Code)
	}
}

func TestInitAndFormShowRoundTrip(t *testing.T) {
	router := newTestServer(t)

	initBody := signedInit(map[string]any{
		"teamSlug": testTeamSlug,
		"amount":   float64(50000),
		"orderId":  "HTTP-O1",
		"currency": "RUB",
		"payType":  "O",
		"language": "ru",
	})

	req := httptest.NewRequest(http.MethodPost, "/paymentinit/init", bytes.NewReader(initBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from Init, got %d: %s", w.Code, w.Body.String())
	}

	var initResp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &initResp); err != nil {
		t.Fatalf("decode init response: %v", err)
	}
	paymentID, _ := initResp["paymentId"].(string)
	if paymentID == "" {
		t.Fatalf("expected a paymentId in the init response, got %+v", initResp)
	}

	formReq := httptest.NewRequest(http.MethodGet, "/paymentform/"+paymentID, nil)
	formW := httptest.NewRecorder()
	router.ServeHTTP(formW, formReq)

	if formW.Code != http.StatusOK {
		t.Fatalf("expected 200 from the unauthenticated form GET, got %d: %s", formW.Code, formW.Body.String())
	}
}

func TestInitRejectsInvalidToken(t *testing.T) {
	router := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"teamSlug": testTeamSlug,
		"amount":   float64(1000),
		"orderId":  "HTTP-O2",
		"currency": "RUB",
		"payType":  "O",
		"language": "ru",
		"token":    "not-a-valid-signature",
	})

	req := httptest.NewRequest(http.MethodPost, "/paymentinit/init", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatalf("expected Init with a bad token to fail, got 200: %s", w.Body.String())
	}
}
