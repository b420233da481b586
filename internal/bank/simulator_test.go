package bank

import (
	"context"
	"testing"

	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestSimulator() *Simulator {
	breaker := circuitbreaker.NewManager(circuitbreaker.Config{})
	return New(breaker, metrics.New(prometheus.NewRegistry()))
}

func TestAuthorizeDeclinesLastDigitZero(t *testing.T) {
	s := newTestSimulator()
	out, err := s.Authorize(context.Background(), "4111111111111110", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Approved {
		t.Fatalf("expected decline for last digit 0")
	}
	if out.ResponseCode != CardDeclined {
		t.Fatalf("expected CARD_DECLINED, got %s", out.ResponseCode)
	}
}

func TestAuthorizeRequires3DSForLastDigitNine(t *testing.T) {
	s := newTestSimulator()
	out, err := s.Authorize(context.Background(), "4111111111111119", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.ThreeDSRequired {
		t.Fatalf("expected 3DS challenge for last digit 9")
	}
}

func TestAuthorizeApprovesOtherwise(t *testing.T) {
	s := newTestSimulator()
	out, err := s.Authorize(context.Background(), "4111111111111111", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Approved {
		t.Fatalf("expected approval for last digit 1, got %+v", out)
	}
	if out.ExternalRef == "" {
		t.Fatalf("expected a non-empty external ref")
	}
}

func TestAuthorizeIsDeterministicAcrossCalls(t *testing.T) {
	s := newTestSimulator()
	a, _ := s.Authorize(context.Background(), "4111111111111110", 1000)
	b, _ := s.Authorize(context.Background(), "4111111111111110", 1000)
	if a.Approved != b.Approved || a.ResponseCode != b.ResponseCode {
		t.Fatalf("expected deterministic outcome for the same PAN suffix")
	}
}

func TestAuthorizeRespectsContextDeadline(t *testing.T) {
	s := newTestSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Authorize(ctx, "4111111111111111", 1000)
	if err == nil {
		t.Fatalf("expected an error when the context is already cancelled")
	}
}
