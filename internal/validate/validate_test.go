package validate

import (
	"testing"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/payment"
)

func TestRequireAmountBoundary(t *testing.T) {
	v := &Violations{}
	RequireAmount(v, 999)
	if v.Empty() {
		t.Fatalf("expected 999 to be rejected")
	}

	v = &Violations{}
	RequireAmount(v, 1000)
	if !v.Empty() {
		t.Fatalf("expected 1000 to be accepted, got %s", v.Details())
	}
}

func TestRequireOrderIDLengthBoundary(t *testing.T) {
	v := &Violations{}
	RequireOrderID(v, repeat("a", 36))
	if !v.Empty() {
		t.Fatalf("expected 36-char orderId to be accepted, got %s", v.Details())
	}

	v = &Violations{}
	RequireOrderID(v, repeat("a", 37))
	if v.Empty() {
		t.Fatalf("expected 37-char orderId to be rejected")
	}
}

func TestRequirePaymentExpiryBoundary(t *testing.T) {
	cases := []struct {
		minutes int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{43200, false},
		{43201, true},
	}
	for _, tc := range cases {
		v := &Violations{}
		RequirePaymentExpiry(v, tc.minutes)
		if v.Empty() == tc.wantErr {
			t.Fatalf("paymentExpiry=%d: wantErr=%v, violations=%v", tc.minutes, tc.wantErr, v.entries)
		}
	}
}

func TestRequireCurrencyUnsupported(t *testing.T) {
	v := &Violations{}
	RequireCurrency(v, "RUB", func(c string) bool { return c == "USD" })
	if v.Empty() {
		t.Fatalf("expected unsupported currency to be rejected")
	}
}

func TestRequireCustomerKeyIfRecurrent(t *testing.T) {
	v := &Violations{}
	RequireCustomerKeyIfRecurrent(v, true, "")
	if v.Empty() {
		t.Fatalf("expected recurrent without customerKey to be rejected")
	}

	v = &Violations{}
	RequireCustomerKeyIfRecurrent(v, true, "cust_1")
	if !v.Empty() {
		t.Fatalf("expected recurrent with customerKey to be accepted")
	}
}

func TestReceiptItemArithmetic(t *testing.T) {
	v := &Violations{}
	r := &payment.Receipt{
		Items: []payment.ReceiptItem{
			{Name: "widget", Price: 500, Quantity: 2, Amount: 1000},
			{Name: "gadget", Price: 300, Quantity: 1, Amount: 300},
		},
	}
	Receipt(v, r, 1300)
	if !v.Empty() {
		t.Fatalf("expected matching receipt arithmetic to pass, got %s", v.Details())
	}

	v = &Violations{}
	Receipt(v, r, 1000)
	if v.Empty() {
		t.Fatalf("expected mismatched sum to be rejected")
	}
}

func TestReceiptItemAmountMismatch(t *testing.T) {
	v := &Violations{}
	r := &payment.Receipt{
		Items: []payment.ReceiptItem{{Name: "widget", Price: 500, Quantity: 2, Amount: 999}},
	}
	Receipt(v, r, 999)
	if v.Empty() {
		t.Fatalf("expected quantity*price mismatch to be rejected")
	}
}

func TestRedirectDueDateBounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	v := &Violations{}
	RedirectDueDate(v, now.Add(-time.Hour), now)
	if v.Empty() {
		t.Fatalf("expected past due date to be rejected")
	}

	v = &Violations{}
	RedirectDueDate(v, now.Add(91*24*time.Hour), now)
	if v.Empty() {
		t.Fatalf("expected due date beyond 90 days to be rejected")
	}

	v = &Violations{}
	RedirectDueDate(v, now.Add(30*24*time.Hour), now)
	if !v.Empty() {
		t.Fatalf("expected due date within 90 days to be accepted, got %s", v.Details())
	}
}

func TestCallbackURLsShareProtocol(t *testing.T) {
	v := &Violations{}
	CallbackURLsShareProtocol(v, "https://a.example/s", "http://a.example/f")
	if v.Empty() {
		t.Fatalf("expected mismatched schemes to be rejected")
	}

	v = &Violations{}
	CallbackURLsShareProtocol(v, "https://a.example/s", "https://a.example/f")
	if !v.Empty() {
		t.Fatalf("expected matching schemes to be accepted, got %s", v.Details())
	}
}

func TestOptionalEmailAndPhone(t *testing.T) {
	v := &Violations{}
	OptionalEmail(v, "email", "")
	OptionalPhone(v, "phone", "")
	if !v.Empty() {
		t.Fatalf("expected empty optional fields to be accepted")
	}

	v = &Violations{}
	OptionalEmail(v, "email", "not-an-email")
	if v.Empty() {
		t.Fatalf("expected malformed email to be rejected")
	}

	v = &Violations{}
	OptionalPhone(v, "phone", "abc")
	if v.Empty() {
		t.Fatalf("expected malformed phone to be rejected")
	}
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
