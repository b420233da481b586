package merchant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/cacheutil"
)

// ErrNotFound is returned when teamSlug has no merchant record.
var ErrNotFound = errors.New("merchant: not found")

// Repository is the narrow persistence contract for merchant records (§9's
// redesign note: explicit dependency, not an entity/repository graph).
type Repository interface {
	Load(ctx context.Context, teamSlug string) (*Merchant, error) // ErrNotFound if absent
	Save(ctx context.Context, m *Merchant) error
}

// LockoutPolicy configures the consecutive-failure lockout rule (§4.2).
type LockoutPolicy struct {
	MaxFailures  int
	Window       time.Duration
	Cooldown     time.Duration
}

// DefaultLockoutPolicy returns the spec's defaults: 5 failures / 15m window / 15m cooldown.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailures: 5, Window: 15 * time.Minute, Cooldown: 15 * time.Minute}
}

// Directory resolves teamSlug to Merchant records with a read-mostly,
// TTL-bounded in-memory cache in front of the repository, per §5 ("The
// merchant directory is read-mostly with an in-memory TTL cache; writes go
// through the store"). Grounded on the teacher's cacheutil.ReadThrough helper.
type Directory struct {
	repo   Repository
	ttl    time.Duration
	policy LockoutPolicy

	mu    sync.RWMutex
	cache map[string]cacheutil.CachedValue[*Merchant]
}

// NewDirectory builds a Directory backed by repo with the given cache TTL.
func NewDirectory(repo Repository, ttl time.Duration, policy LockoutPolicy) *Directory {
	return &Directory{
		repo:   repo,
		ttl:    ttl,
		policy: policy,
		cache:  make(map[string]cacheutil.CachedValue[*Merchant]),
	}
}

// Lookup resolves teamSlug to a Merchant, populating the TTL cache on miss.
func (d *Directory) Lookup(ctx context.Context, teamSlug string) (*Merchant, error) {
	return cacheutil.ReadThrough(
		&d.mu,
		func(now time.Time) (*Merchant, bool) {
			entry, ok := d.cache[teamSlug]
			if !ok || now.Sub(entry.FetchedAt) >= d.ttl {
				return nil, false
			}
			return entry.Value, true
		},
		func(now time.Time) (*Merchant, error) {
			m, err := d.repo.Load(ctx, teamSlug)
			if err != nil {
				return nil, err
			}
			d.cache[teamSlug] = cacheutil.CachedValue[*Merchant]{Value: m, FetchedAt: now}
			return m, nil
		},
	)
}

// invalidate drops teamSlug from the read cache; called after any write.
func (d *Directory) invalidate(teamSlug string) {
	d.mu.Lock()
	delete(d.cache, teamSlug)
	d.mu.Unlock()
}

// RecordAuthOutcome updates failedAuthAttempts/lockedUntil/lastAuthAt per
// §4.2's lockout policy and persists the change, invalidating the cache.
func (d *Directory) RecordAuthOutcome(ctx context.Context, teamSlug string, success bool, now time.Time) error {
	return cacheutil.WriteThrough(func() { d.invalidate(teamSlug) }, func() error {
		m, err := d.repo.Load(ctx, teamSlug)
		if err != nil {
			return err
		}

		if success {
			m.FailedAuthAttempts = 0
			m.LockedUntil = time.Time{}
			m.LastAuthAt = now
			return d.repo.Save(ctx, m)
		}

		// Consecutive failures only count within the rolling window; an
		// old failure streak that aged out does not contribute to lockout.
		if !m.LastAuthAt.IsZero() && now.Sub(m.LastAuthAt) > d.policy.Window {
			m.FailedAuthAttempts = 0
		}
		m.FailedAuthAttempts++
		m.LastAuthAt = now
		if m.FailedAuthAttempts >= d.policy.MaxFailures {
			m.LockedUntil = now.Add(d.policy.Cooldown)
			m.FailedAuthAttempts = 0
		}
		return d.repo.Save(ctx, m)
	})
}
