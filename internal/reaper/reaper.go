// Package reaper implements the Expiry Reaper (C9): a periodic sweep that
// moves payments whose expiresAt has passed into DEADLINE_EXPIRED (§4.7).
//
// Grounded on the teacher's internal/monitoring.BalanceMonitor periodic-check
// shape (ticker-driven loop, Start/Stop with a stop channel and WaitGroup),
// generalized from balance polling to expired-payment sweeping.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// candidateSource is the narrow store dependency the reaper needs: the
// ExpiredCandidates query the full Store interface already provides.
type candidateSource interface {
	ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
}

// Config controls the reaper's sweep cadence and batch bound (§4.7).
type Config struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultConfig returns the spec's defaults: sweep every 30s, 1000 per tick.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, BatchSize: 1000}
}

// Reaper periodically expires stale payments via the state machine.
type Reaper struct {
	store   candidateSource
	machine *payment.Machine
	cfg     Config
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Reaper. machine performs the actual DEADLINE_EXPIRED
// transition so the reaper inherits the same guarded, keyed-locked,
// optimistic-concurrency contract as every other transition source (§5).
func New(store candidateSource, machine *payment.Machine, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Reaper {
	return &Reaper{
		store: store, machine: machine, cfg: cfg, metrics: m, logger: logger,
		now: time.Now, stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine.
func (r *Reaper) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep runs one expiry pass, expiring up to cfg.BatchSize payments.
func (r *Reaper) sweep(ctx context.Context) {
	candidates, err := r.store.ExpiredCandidates(ctx, r.now(), r.cfg.BatchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("reaper: failed to load expired candidates")
		return
	}

	var expired int
	for _, p := range candidates {
		_, err := r.machine.Attempt(ctx, payment.TransitionInput{
			PaymentID:    p.PaymentID,
			ExpectedFrom: p.Status,
			To:           payment.StatusDeadlineExpired,
			Actor:        "reaper",
			Message:      "expiresAt passed",
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("paymentId", p.PaymentID).Msg("reaper: failed to expire payment")
			continue
		}
		expired++
	}

	r.metrics.ObserveReaperRun(expired)
	if expired > 0 {
		r.logger.Info().Int("expired", expired).Int("candidates", len(candidates)).Msg("reaper: swept expired payments")
	}
}
