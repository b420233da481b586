package authenticator

import (
	"context"
	"testing"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/merchant"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type fakeRepo struct {
	m *merchant.Merchant
}

func (r *fakeRepo) Load(_ context.Context, teamSlug string) (*merchant.Merchant, error) {
	if r.m == nil || r.m.TeamSlug != teamSlug {
		return nil, merchant.ErrNotFound
	}
	return r.m.Clone(), nil
}

func (r *fakeRepo) Save(_ context.Context, m *merchant.Merchant) error {
	r.m = m.Clone()
	return nil
}

func newTestAuthenticator(m *merchant.Merchant) *Authenticator {
	repo := &fakeRepo{m: m}
	dir := merchant.NewDirectory(repo, time.Minute, merchant.DefaultLockoutPolicy())
	return New(dir, metrics.New(prometheus.NewRegistry()), zerolog.Nop())
}

func TestAuthenticateSucceedsWithValidToken(t *testing.T) {
	m := &merchant.Merchant{TeamSlug: "demo-team", Password: "secret", IsActive: true}
	a := newTestAuthenticator(m)

	params := token.Params{"TeamSlug": "demo-team", "Amount": int64(1000)}
	tok := token.Sign(params, "secret")

	got, err := a.Authenticate(context.Background(), Request{TeamSlug: "demo-team", Token: tok, Params: params})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TeamSlug != "demo-team" {
		t.Fatalf("expected demo-team, got %s", got.TeamSlug)
	}
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	m := &merchant.Merchant{TeamSlug: "demo-team", Password: "secret", IsActive: true}
	a := newTestAuthenticator(m)

	params := token.Params{"TeamSlug": "demo-team"}
	_, err := a.Authenticate(context.Background(), Request{TeamSlug: "demo-team", Token: "deadbeef", Params: params})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.(*gwerrors.GatewayError).Code != gwerrors.CodeInvalidToken {
		t.Fatalf("expected CodeInvalidToken, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownTeam(t *testing.T) {
	a := newTestAuthenticator(nil)
	_, err := a.Authenticate(context.Background(), Request{TeamSlug: "ghost", Token: "deadbeef"})
	if err == nil || err.(*gwerrors.GatewayError).Code != gwerrors.CodeInvalidToken {
		t.Fatalf("expected CodeInvalidToken for unknown team, got %v", err)
	}
}

func TestAuthenticateRejectsInactiveMerchant(t *testing.T) {
	m := &merchant.Merchant{TeamSlug: "demo-team", Password: "secret", IsActive: false}
	a := newTestAuthenticator(m)

	params := token.Params{"TeamSlug": "demo-team"}
	tok := token.Sign(params, "secret")
	_, err := a.Authenticate(context.Background(), Request{TeamSlug: "demo-team", Token: tok, Params: params})
	if err == nil || err.(*gwerrors.GatewayError).Code != gwerrors.CodeTerminalInactive {
		t.Fatalf("expected CodeTerminalInactive, got %v", err)
	}
}

func TestAuthenticateLocksOutAfterRepeatedFailures(t *testing.T) {
	m := &merchant.Merchant{TeamSlug: "demo-team", Password: "secret", IsActive: true}
	a := newTestAuthenticator(m)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = a.Authenticate(ctx, Request{TeamSlug: "demo-team", Token: "deadbeef"})
	}

	params := token.Params{"TeamSlug": "demo-team"}
	tok := token.Sign(params, "secret")
	_, err := a.Authenticate(ctx, Request{TeamSlug: "demo-team", Token: tok, Params: params})
	if err == nil || err.(*gwerrors.GatewayError).Code != gwerrors.CodeInvalidToken {
		t.Fatalf("expected lockout to reject even a correct token, got %v", err)
	}
}
