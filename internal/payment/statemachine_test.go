package payment

import (
	"context"
	"testing"
	"time"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
)

type fakeStore struct {
	payments map[string]*Payment
	history  []TransitionRecord
}

func newFakeStore(p *Payment) *fakeStore {
	return &fakeStore{payments: map[string]*Payment{p.PaymentID: p}}
}

func (f *fakeStore) LoadPayment(_ context.Context, paymentID string) (*Payment, error) {
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) SavePayment(_ context.Context, p *Payment, expectedVersion int64) error {
	cur, ok := f.payments[p.PaymentID]
	if ok && cur.Version != expectedVersion {
		return gwerrors.New(gwerrors.CodeStateConflict, "version mismatch")
	}
	cp := *p
	f.payments[p.PaymentID] = &cp
	return nil
}

func (f *fakeStore) AppendTransition(_ context.Context, rec TransitionRecord) error {
	f.history = append(f.history, rec)
	return nil
}

func newTestPayment() *Payment {
	return &Payment{
		PaymentID:     "pay_1",
		TeamSlug:      "demo-team",
		OrderID:       "O1",
		Amount:        10000,
		Currency:      "RUB",
		PayType:       PayTypeTwoStage,
		PaymentExpiry: 30,
		MaxAttempts:   3,
		Status:        StatusInit,
		Version:       0,
	}
}

func TestAttemptValidTransition(t *testing.T) {
	store := newFakeStore(newTestPayment())
	m := NewMachine(store, nil)

	p, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID:    "pay_1",
		ExpectedFrom: StatusInit,
		To:           StatusNew,
		Actor:        "orchestrator",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusNew {
		t.Fatalf("expected status NEW, got %s", p.Status)
	}
	if p.ExpiresAt.IsZero() {
		t.Fatalf("expected expiresAt to be set on INIT->NEW")
	}
	if len(store.history) != 1 {
		t.Fatalf("expected one history record, got %d", len(store.history))
	}
}

func TestAttemptRejectsUnknownEdge(t *testing.T) {
	store := newFakeStore(newTestPayment())
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusConfirmed,
		Actor:     "orchestrator",
	})
	if err == nil {
		t.Fatalf("expected error for INIT->CONFIRMED")
	}
	ge := err.(*gwerrors.GatewayError)
	if ge.Code != gwerrors.CodeBadStatus {
		t.Fatalf("expected CodeBadStatus, got %s", ge.Code)
	}
}

func TestAttemptRejectsTerminalSource(t *testing.T) {
	p := newTestPayment()
	p.Status = StatusCancelled
	store := newFakeStore(p)
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusNew,
	})
	if err == nil {
		t.Fatalf("expected error transitioning out of a terminal status")
	}
}

func TestAttemptExpectedFromMismatch(t *testing.T) {
	store := newFakeStore(newTestPayment())
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID:    "pay_1",
		ExpectedFrom: StatusNew,
		To:           StatusFormShowed,
	})
	if err == nil {
		t.Fatalf("expected state-conflict error")
	}
	ge := err.(*gwerrors.GatewayError)
	if ge.Code != gwerrors.CodeStateConflict {
		t.Fatalf("expected CodeStateConflict, got %s", ge.Code)
	}
}

func TestAttemptAuthorizingRetryCapExhausted(t *testing.T) {
	p := newTestPayment()
	p.Status = StatusAuthFail
	p.AttemptCount = 3
	p.MaxAttempts = 3
	store := newFakeStore(p)
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusAuthorizing,
	})
	if err == nil {
		t.Fatalf("expected max-attempts error")
	}
}

func TestAttemptAuthorizingRetryIncrementsAttemptCount(t *testing.T) {
	p := newTestPayment()
	p.Status = StatusAuthFail
	p.AttemptCount = 1
	store := newFakeStore(p)
	m := NewMachine(store, nil)

	got, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusAuthorizing,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.AttemptCount != 2 {
		t.Fatalf("expected attemptCount 2, got %d", got.AttemptCount)
	}
}

func TestAttemptRejectsExpiredPayment(t *testing.T) {
	p := newTestPayment()
	p.Status = StatusNew
	p.ExpiresAt = time.Now().Add(-time.Minute)
	store := newFakeStore(p)
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusFormShowed,
	})
	if err == nil {
		t.Fatalf("expected expired-payment error")
	}
}

func TestAttemptDeadlineExpiredRequiresPastExpiry(t *testing.T) {
	p := newTestPayment()
	p.Status = StatusNew
	p.ExpiresAt = time.Now().Add(time.Hour)
	store := newFakeStore(p)
	m := NewMachine(store, nil)

	_, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusDeadlineExpired,
	})
	if err == nil {
		t.Fatalf("expected error transitioning to DEADLINE_EXPIRED before expiry")
	}

	store.payments["pay_1"].ExpiresAt = time.Now().Add(-time.Minute)
	got, err := m.Attempt(context.Background(), TransitionInput{
		PaymentID: "pay_1",
		To:        StatusDeadlineExpired,
	})
	if err != nil {
		t.Fatalf("unexpected error once expired: %v", err)
	}
	if got.Status != StatusDeadlineExpired {
		t.Fatalf("expected DEADLINE_EXPIRED, got %s", got.Status)
	}
}

func TestAttemptIsIsolatedPerPaymentID(t *testing.T) {
	store := newFakeStore(newTestPayment())
	other := newTestPayment()
	other.PaymentID = "pay_2"
	store.payments["pay_2"] = other

	m := NewMachine(store, nil)
	done := make(chan error, 2)
	go func() {
		_, err := m.Attempt(context.Background(), TransitionInput{PaymentID: "pay_1", To: StatusNew})
		done <- err
	}()
	go func() {
		_, err := m.Attempt(context.Background(), TransitionInput{PaymentID: "pay_2", To: StatusNew})
		done <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
