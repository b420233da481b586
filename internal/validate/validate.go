// Package validate implements the Request Validators (C4): field-level
// syntactic validation and inter-field consistency rules applied uniformly
// across operations (§4.4), grounded on the teacher's internal/config
// validation.go shape — a single pass collecting a []string of violations
// joined into one localized message, rather than failing fast on the first
// one.
package validate

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/payment"
)

var (
	teamSlugRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
	tokenRe    = regexp.MustCompile(`^[0-9a-fA-F]{1,256}$`)
	orderIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,36}$`)
	paymentIDRe = regexp.MustCompile(`^[0-9]{1,20}$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9]{7,20}$`)
)

// Violations accumulates field-scoped validation failures for one request.
type Violations struct {
	entries []string
}

// Add records a violation against field.
func (v *Violations) Add(field, format string, args ...interface{}) {
	v.entries = append(v.entries, fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)))
}

// Empty reports whether no violations were recorded.
func (v *Violations) Empty() bool { return len(v.entries) == 0 }

// Details joins every recorded violation into the single details string
// the common response envelope carries (§6).
func (v *Violations) Details() string { return strings.Join(v.entries, "; ") }

// RequireTeamSlug validates the teamSlug field (§4.4).
func RequireTeamSlug(v *Violations, teamSlug string) {
	if !teamSlugRe.MatchString(teamSlug) {
		v.Add("teamSlug", "required, up to 50 chars, [A-Za-z0-9_-]")
	}
}

// RequireToken validates the token field (§4.4).
func RequireToken(v *Violations, token string) {
	if !tokenRe.MatchString(token) {
		v.Add("token", "required, up to 256 hex chars")
	}
}

// Amount bounds (§4.4): subject to tighter merchant bounds applied separately
// by the orchestrator's business-rule engine.
const (
	MinAmount = 1000
	MaxAmount = 50_000_000
)

// RequireAmount validates the amount field against the gateway-wide bounds.
func RequireAmount(v *Violations, amount int64) {
	if amount < MinAmount || amount > MaxAmount {
		v.Add("amount", "must be between %d and %d minor units", MinAmount, MaxAmount)
	}
}

// RequireOrderID validates the orderId field.
func RequireOrderID(v *Violations, orderID string) {
	if !orderIDRe.MatchString(orderID) {
		v.Add("orderId", "required, up to 36 chars, [A-Za-z0-9_-]")
	}
}

// RequirePaymentID validates the paymentId field (used outside Init, where
// the gateway itself assigned it).
func RequirePaymentID(v *Violations, paymentID string) {
	if !paymentIDRe.MatchString(paymentID) {
		v.Add("paymentId", "must be up to 20 digits")
	}
}

// RequireCurrency validates currency syntax and merchant support.
func RequireCurrency(v *Violations, currency string, supported func(string) bool) {
	if !currencyRe.MatchString(currency) {
		v.Add("currency", "must be 3 uppercase letters")
		return
	}
	if supported != nil && !supported(currency) {
		v.Add("currency", "%s is not supported by this merchant", currency)
	}
}

// RequirePayType validates the payType field.
func RequirePayType(v *Violations, payType payment.PayType) {
	if payType != payment.PayTypeSingleStage && payType != payment.PayTypeTwoStage {
		v.Add("payType", "must be O or T")
	}
}

// RequireLanguage validates the language field.
func RequireLanguage(v *Violations, language payment.Language) {
	if language != payment.LanguageRU && language != payment.LanguageEN {
		v.Add("language", "must be ru or en")
	}
}

// RequirePaymentExpiry validates the paymentExpiry field in minutes.
func RequirePaymentExpiry(v *Violations, minutes int) {
	if minutes < 1 || minutes > 43200 {
		v.Add("paymentExpiry", "must be between 1 and 43200 minutes")
	}
}

// OptionalURL validates an absolute http/https URL, allowing an empty value
// (caller falls back to the merchant's default URL).
func OptionalURL(v *Violations, field, raw string) {
	if raw == "" {
		return
	}
	if len(raw) > 2048 {
		v.Add(field, "must be at most 2048 chars")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		v.Add(field, "must be an absolute http(s) URL")
	}
}

// OptionalEmail validates an RFC-5322 email address, allowing empty.
func OptionalEmail(v *Violations, field, email string) {
	if email == "" {
		return
	}
	if len(email) > 254 {
		v.Add(field, "must be at most 254 chars")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		v.Add(field, "must be a valid email address")
	}
}

// OptionalPhone validates a phone number, allowing empty.
func OptionalPhone(v *Violations, field, phone string) {
	if phone == "" {
		return
	}
	if !phoneRe.MatchString(phone) {
		v.Add(field, "must match +?[0-9]{7,20}")
	}
}

// Description validates the description field (≤140 chars).
func Description(v *Violations, description string) {
	if len(description) > 140 {
		v.Add("description", "must be at most 140 chars")
	}
}

// Reason validates a reason field (≤500 chars).
func Reason(v *Violations, reason string) {
	if len(reason) > 500 {
		v.Add("reason", "must be at most 500 chars")
	}
}

// CustomerKey validates the customerKey field (≤36 chars, optional unless
// required by recurrent).
func CustomerKey(v *Violations, customerKey string) {
	if len(customerKey) > 36 {
		v.Add("customerKey", "must be at most 36 chars")
	}
}

// RequireCustomerKeyIfRecurrent enforces that Recurrent=Y requires a
// non-empty customerKey (§4.4).
func RequireCustomerKeyIfRecurrent(v *Violations, recurrent bool, customerKey string) {
	if recurrent && customerKey == "" {
		v.Add("customerKey", "required when recurrent=Y")
	}
}

// Data validates the opaque key-value data map: at most 20 entries, and the
// special Phone/account keys follow their own rules (§4.4).
func Data(v *Violations, data map[string]string) {
	if len(data) > 20 {
		v.Add("data", "must have at most 20 entries")
	}
	if phone, ok := data["Phone"]; ok {
		OptionalPhone(v, "data.Phone", phone)
	}
	if account, ok := data["account"]; ok && len(account) > 30 {
		v.Add("data.account", "must be at most 30 chars")
	}
}

// RedirectDueDate validates that due is strictly in the future and at most
// 90 days ahead of now.
func RedirectDueDate(v *Violations, due, now time.Time) {
	if due.IsZero() {
		return
	}
	if !due.After(now) {
		v.Add("redirectDueDate", "must be strictly in the future")
		return
	}
	if due.After(now.Add(90 * 24 * time.Hour)) {
		v.Add("redirectDueDate", "must be at most 90 days ahead")
	}
}

// Receipt validates a receipt's item arithmetic against the payment amount
// (§4.4): each item's amount must equal quantity*price, and the items must
// sum to the payment's total amount.
func Receipt(v *Violations, r *payment.Receipt, paymentAmount int64) {
	if r == nil {
		return
	}
	OptionalEmail(v, "receipt.email", r.Email)
	OptionalPhone(v, "receipt.phone", r.Phone)

	var sum int64
	for i, item := range r.Items {
		if item.Amount != item.Quantity*item.Price {
			v.Add(fmt.Sprintf("receipt.items[%d].amount", i), "must equal quantity*price")
		}
		sum += item.Amount
	}
	if len(r.Items) > 0 && sum != paymentAmount {
		v.Add("receipt.items", "sum of item amounts must equal the payment amount")
	}
}

// CallbackURLsShareProtocol enforces the inter-field consistency rule that
// callback URLs share a protocol scheme when more than one is set (§4.4).
func CallbackURLsShareProtocol(v *Violations, urls ...string) {
	scheme := ""
	for _, raw := range urls {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue // already flagged by OptionalURL
		}
		if scheme == "" {
			scheme = u.Scheme
			continue
		}
		if u.Scheme != scheme {
			v.Add("callbackUrls", "must share a single protocol scheme")
			return
		}
	}
}

// ReceiptContactMatchesCustomer enforces that when both the receipt and the
// customer-level email/phone are supplied, they agree (§4.4's inter-field
// consistency rule).
func ReceiptContactMatchesCustomer(v *Violations, r *payment.Receipt, customerEmail, customerPhone string) {
	if r == nil {
		return
	}
	if r.Email != "" && customerEmail != "" && r.Email != customerEmail {
		v.Add("receipt.email", "must equal the customer email when both are provided")
	}
	if r.Phone != "" && customerPhone != "" && r.Phone != customerPhone {
		v.Add("receipt.phone", "must equal the customer phone when both are provided")
	}
}
