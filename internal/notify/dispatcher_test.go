package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func fixedSecret(_ context.Context, _ string) (string, error) { return "whsec", nil }

func TestDispatcherDeliversSuccessfully(t *testing.T) {
	var gotSignature, gotEvent, gotDelivery string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotDelivery = r.Header.Get("X-Webhook-Delivery")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	queue := NewMemoryQueue()
	d := NewDispatcher(queue, fixedSecret, DefaultRetryConfig(), circuitbreaker.NewManager(circuitbreaker.Config{}), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	err := d.Enqueue(context.Background(), "demo-team", srv.URL, Event{
		PaymentID: "pay_1",
		OrderID:   "O1",
		Status:    "CONFIRMED",
		Amount:    1000,
		Currency:  "RUB",
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	d.drain(context.Background())

	if gotEvent != "CONFIRMED" {
		t.Fatalf("expected X-Webhook-Event CONFIRMED, got %q", gotEvent)
	}
	if gotDelivery == "" {
		t.Fatalf("expected a non-empty X-Webhook-Delivery attempt id")
	}
	secret, _ := fixedSecret(context.Background(), "demo-team")
	if gotSignature != signBody(gotBody, secret) {
		t.Fatalf("X-Webhook-Signature does not match HMAC-SHA256(body, secret)")
	}
	var evt Event
	if err := json.Unmarshal(gotBody, &evt); err != nil {
		t.Fatalf("delivered body is not valid JSON: %v", err)
	}
	if evt.AttemptID != gotDelivery {
		t.Fatalf("expected body attemptId %q to match X-Webhook-Delivery %q", evt.AttemptID, gotDelivery)
	}
	dlq, _ := queue.ListDLQ(context.Background(), 10)
	if len(dlq) != 0 {
		t.Fatalf("expected no DLQ entries after a successful delivery")
	}
}

func TestDispatcherMovesExhaustedToDLQ(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	queue := NewMemoryQueue()
	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = 1
	d := NewDispatcher(queue, fixedSecret, retryCfg, circuitbreaker.NewManager(circuitbreaker.Config{}), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	_ = d.Enqueue(context.Background(), "demo-team", srv.URL, Event{PaymentID: "pay_1", Status: "CONFIRMED"})
	d.drain(context.Background())

	dlq, err := queue.ListDLQ(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dlq) != 1 {
		t.Fatalf("expected one DLQ entry, got %d", len(dlq))
	}
}

func TestDispatcherSkipsEmptyURL(t *testing.T) {
	queue := NewMemoryQueue()
	d := NewDispatcher(queue, fixedSecret, DefaultRetryConfig(), circuitbreaker.NewManager(circuitbreaker.Config{}), metrics.New(prometheus.NewRegistry()), zerolog.Nop())

	if err := d.Enqueue(context.Background(), "demo-team", "", Event{PaymentID: "pay_1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch, _ := queue.DequeueNotifications(context.Background(), 10)
	if len(batch) != 0 {
		t.Fatalf("expected nothing enqueued for an empty notification URL")
	}
}
