// Package authenticator implements the Authenticator (C3): resolving the
// inbound teamSlug to a merchant, recomputing and constant-time comparing
// the request token (C1), and accounting lockout/rate-limit outcomes via
// the Merchant Directory (C2).
//
// Grounded on the teacher's internal/auth package (extract → verify →
// check identity shape), adapted from Ed25519/Solana wallet signatures to
// this domain's HMAC-style recomputable token.
package authenticator

import (
	"context"
	"errors"
	"time"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/token"
	"github.com/rs/zerolog"
)

// Request is the subset of an inbound request the Authenticator needs:
// the identity fields plus the full scalar parameter set the token is
// computed over.
type Request struct {
	TeamSlug string
	Token    string
	Params   token.Params
}

// Authenticator composes the Merchant Directory and Token Signer to verify
// inbound requests (C3).
type Authenticator struct {
	directory *merchant.Directory
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// New builds an Authenticator backed by directory.
func New(directory *merchant.Directory, m *metrics.Metrics, logger zerolog.Logger) *Authenticator {
	return &Authenticator{directory: directory, metrics: m, logger: logger, now: time.Now}
}

// Authenticate resolves req.TeamSlug, verifies req.Token, and records the
// outcome against the merchant's lockout counters (§4.2). It returns the
// resolved merchant on success.
func (a *Authenticator) Authenticate(ctx context.Context, req Request) (*merchant.Merchant, error) {
	now := a.now()

	m, err := a.directory.Lookup(ctx, req.TeamSlug)
	if err != nil {
		a.metrics.ObserveAuth(false)
		if errors.Is(err, merchant.ErrNotFound) {
			a.logger.Warn().Str("teamSlug", req.TeamSlug).Msg("authenticator: unknown team")
			return nil, gwerrors.New(gwerrors.CodeInvalidToken, "authentication token is invalid")
		}
		a.logger.Error().Err(err).Str("teamSlug", req.TeamSlug).Msg("authenticator: directory lookup failed")
		return nil, gwerrors.New(gwerrors.CodeInternal, "internal error")
	}

	if m.IsLocked(now) {
		a.metrics.ObserveAuth(false)
		a.metrics.ObserveLockout(req.TeamSlug)
		a.logger.Warn().Str("teamSlug", req.TeamSlug).Time("lockedUntil", m.LockedUntil).Msg("authenticator: merchant locked out")
		return nil, gwerrors.New(gwerrors.CodeInvalidToken, "authentication token is invalid")
	}

	if !m.IsActive {
		// Inactive is reported distinctly from auth failure and does not
		// contribute to the lockout counter — it is not a credential guess.
		a.logger.Warn().Str("teamSlug", req.TeamSlug).Msg("authenticator: merchant inactive")
		return nil, gwerrors.New(gwerrors.CodeTerminalInactive, "merchant account is inactive")
	}

	if !token.Verify(req.Params, req.Token, m.Password) {
		a.metrics.ObserveAuth(false)
		if recErr := a.directory.RecordAuthOutcome(ctx, req.TeamSlug, false, now); recErr != nil {
			a.logger.Error().Err(recErr).Str("teamSlug", req.TeamSlug).Msg("authenticator: failed to record auth failure")
		}
		a.logger.Warn().Str("teamSlug", req.TeamSlug).Msg("authenticator: token mismatch")
		return nil, gwerrors.New(gwerrors.CodeInvalidToken, "authentication token is invalid")
	}

	a.metrics.ObserveAuth(true)
	if recErr := a.directory.RecordAuthOutcome(ctx, req.TeamSlug, true, now); recErr != nil {
		a.logger.Error().Err(recErr).Str("teamSlug", req.TeamSlug).Msg("authenticator: failed to record auth success")
	}
	return m, nil
}
