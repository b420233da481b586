package store

import (
	"context"
	"testing"
	"time"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

func TestCreatePaymentRejectsDuplicateOrderID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := &payment.Payment{PaymentID: "pay_1", TeamSlug: "demo", OrderID: "O1"}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := &payment.Payment{PaymentID: "pay_2", TeamSlug: "demo", OrderID: "O1"}
	err := s.CreatePayment(ctx, dup)
	if err == nil {
		t.Fatalf("expected duplicate orderId error")
	}
	if err.(*gwerrors.GatewayError).Code != gwerrors.CodeDuplicateOrderID {
		t.Fatalf("expected CodeDuplicateOrderID, got %v", err)
	}
}

func TestSavePaymentRejectsStaleVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := &payment.Payment{PaymentID: "pay_1", TeamSlug: "demo", OrderID: "O1", Version: 0}
	_ = s.CreatePayment(ctx, p)

	p.Version = 1
	err := s.SavePayment(ctx, p, 5)
	if err == nil {
		t.Fatalf("expected version-conflict error")
	}
	if err.(*gwerrors.GatewayError).Code != gwerrors.CodeStateConflict {
		t.Fatalf("expected CodeStateConflict, got %v", err)
	}
}

func TestExpiredCandidatesOrderedOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	p1 := &payment.Payment{PaymentID: "pay_1", TeamSlug: "demo", OrderID: "O1", Status: payment.StatusNew, ExpiresAt: now.Add(-time.Hour)}
	p2 := &payment.Payment{PaymentID: "pay_2", TeamSlug: "demo", OrderID: "O2", Status: payment.StatusNew, ExpiresAt: now.Add(-2 * time.Hour)}
	p3 := &payment.Payment{PaymentID: "pay_3", TeamSlug: "demo", OrderID: "O3", Status: payment.StatusConfirmed, ExpiresAt: now.Add(-3 * time.Hour)}
	_ = s.CreatePayment(ctx, p1)
	_ = s.CreatePayment(ctx, p2)
	_ = s.CreatePayment(ctx, p3)

	candidates, err := s.ExpiredCandidates(ctx, now, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 expired non-terminal candidates, got %d", len(candidates))
	}
	if candidates[0].PaymentID != "pay_2" {
		t.Fatalf("expected pay_2 (oldest expiry) first, got %s", candidates[0].PaymentID)
	}
}

func TestFindByOrderID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.CreatePayment(ctx, &payment.Payment{PaymentID: "pay_1", TeamSlug: "demo", OrderID: "O1"})

	got, err := s.FindByOrderID(ctx, "demo", "O1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.PaymentID != "pay_1" {
		t.Fatalf("expected pay_1, got %s", got.PaymentID)
	}

	_, err = s.FindByOrderID(ctx, "demo", "missing")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestDailySummarySumsConfirmedRefundedOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = s.CreatePayment(ctx, &payment.Payment{PaymentID: "pay_1", TeamSlug: "demo", OrderID: "O1", Amount: 1000, Status: payment.StatusConfirmed, CreatedAt: now})
	_ = s.CreatePayment(ctx, &payment.Payment{PaymentID: "pay_2", TeamSlug: "demo", OrderID: "O2", Amount: 500, Status: payment.StatusRefunded, CreatedAt: now})
	_ = s.CreatePayment(ctx, &payment.Payment{PaymentID: "pay_3", TeamSlug: "demo", OrderID: "O3", Amount: 999, Status: payment.StatusNew, CreatedAt: now})
	_ = s.CreatePayment(ctx, &payment.Payment{PaymentID: "pay_4", TeamSlug: "demo", OrderID: "O4", Amount: 999, Status: payment.StatusConfirmed, CreatedAt: now.Add(-48 * time.Hour)})

	summary, err := s.DailySummary(ctx, "demo", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 1500 || summary.Count != 2 {
		t.Fatalf("expected total=1500 count=2, got total=%d count=%d", summary.Total, summary.Count)
	}
}
