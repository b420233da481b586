// Package merchant implements the Merchant Directory (C2): resolving a
// teamSlug to a merchant record and tracking authentication lockout state.
package merchant

import "time"

// Merchant is the gateway's immutable-identity, mutable-counters merchant
// record (§3).
type Merchant struct {
	TeamSlug            string
	Password            string // recomputable secret per §9's open-question resolution
	WebhookSecret       string // defaults to Password if unset; kept distinct for rotation
	IsActive            bool
	SupportedCurrencies map[string]struct{}

	MinPerPayment int64
	MaxPerPayment int64
	DailyTotal    int64
	DailyCount    int

	MinPaymentExpiry int // minutes
	MaxPaymentExpiry int // minutes

	DefaultSuccessURL      string
	DefaultFailURL         string
	DefaultNotificationURL string

	FailedAuthAttempts int
	LockedUntil        time.Time
	LastAuthAt         time.Time
}

// SupportsCurrency reports whether currency is in the merchant's supported set (I3).
func (m *Merchant) SupportsCurrency(currency string) bool {
	_, ok := m.SupportedCurrencies[currency]
	return ok
}

// IsLocked reports whether the merchant is currently in a lockout cooldown.
func (m *Merchant) IsLocked(now time.Time) bool {
	return m.LockedUntil.After(now)
}

// EffectiveWebhookSecret returns WebhookSecret, falling back to Password.
func (m *Merchant) EffectiveWebhookSecret() string {
	if m.WebhookSecret != "" {
		return m.WebhookSecret
	}
	return m.Password
}

// Clone returns a deep-enough copy safe for callers to mutate without
// affecting the directory's cached copy.
func (m *Merchant) Clone() *Merchant {
	c := *m
	c.SupportedCurrencies = make(map[string]struct{}, len(m.SupportedCurrencies))
	for k := range m.SupportedCurrencies {
		c.SupportedCurrencies[k] = struct{}{}
	}
	return &c
}
