package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/merchant"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/payment"
)

// MemoryStore is an in-process Store, used by tests and by single-instance
// deployments that run without a configured database backend. Grounded on
// the teacher's in-memory map-of-mutex-guarded-records pattern used
// throughout internal/storage's non-Postgres implementations.
type MemoryStore struct {
	mu         sync.RWMutex
	payments   map[string]*payment.Payment
	byOrder    map[string]string // teamSlug|orderID -> paymentID
	history    map[string][]payment.TransitionRecord
	merchants  map[string]*merchant.Merchant
	notifyQueue *notify.MemoryQueue
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments:    make(map[string]*payment.Payment),
		byOrder:     make(map[string]string),
		history:     make(map[string][]payment.TransitionRecord),
		merchants:   make(map[string]*merchant.Merchant),
		notifyQueue: notify.NewMemoryQueue(),
	}
}

func orderKey(teamSlug, orderID string) string { return teamSlug + "|" + orderID }

// CreatePayment inserts a new payment, rejecting a duplicate (teamSlug, orderId) pair (I1).
func (s *MemoryStore) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := orderKey(p.TeamSlug, p.OrderID)
	if _, exists := s.byOrder[key]; exists {
		return gwerrors.New(gwerrors.CodeDuplicateOrderID, "orderId already used for this team")
	}

	cp := *p
	s.payments[p.PaymentID] = &cp
	s.byOrder[key] = p.PaymentID
	return nil
}

func (s *MemoryStore) LoadPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) SavePayment(_ context.Context, p *payment.Payment, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.payments[p.PaymentID]
	if !ok {
		return gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	if cur.Version != expectedVersion {
		return gwerrors.New(gwerrors.CodeStateConflict, "optimistic concurrency conflict")
	}

	cp := *p
	s.payments[p.PaymentID] = &cp
	return nil
}

func (s *MemoryStore) AppendTransition(_ context.Context, rec payment.TransitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[rec.PaymentID] = append(s.history[rec.PaymentID], rec)
	return nil
}

func (s *MemoryStore) ListTransitions(_ context.Context, paymentID string) ([]payment.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]payment.TransitionRecord(nil), s.history[paymentID]...), nil
}

func (s *MemoryStore) FindByOrderID(_ context.Context, teamSlug, orderID string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderKey(teamSlug, orderID)]
	if !ok {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	cp := *s.payments[id]
	return &cp, nil
}

// ExpiredCandidates returns up to limit payments in a status with a
// DEADLINE_EXPIRED edge (NEW, FORM_SHOWED, AUTHORIZING, THREE_DS_CHECKING,
// AUTHORIZED) whose expiresAt has passed, ordered oldest-first (§4.6's
// reaper sweep contract). CONFIRMED and other non-terminal statuses are
// skipped.
func (s *MemoryStore) ExpiredCandidates(_ context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*payment.Payment
	for _, p := range s.payments {
		if payment.IsTerminal(p.Status) {
			continue
		}
		switch p.Status {
		case payment.StatusNew, payment.StatusFormShowed, payment.StatusAuthorizing,
			payment.StatusThreeDSChecking, payment.StatusAuthorized:
		default:
			continue
		}
		if p.ExpiresAt.IsZero() || p.ExpiresAt.After(now) {
			continue
		}
		cp := *p
		candidates = append(candidates, &cp)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt) })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// DailySummary aggregates teamSlug's confirmed+refunded+partial-refunded
// turnover for the UTC calendar day containing day (§4.5).
func (s *MemoryStore) DailySummary(_ context.Context, teamSlug string, day time.Time) (DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	var sum DailySummary
	for _, p := range s.payments {
		if p.TeamSlug != teamSlug {
			continue
		}
		if p.CreatedAt.Before(start) || !p.CreatedAt.Before(end) {
			continue
		}
		switch p.Status {
		case payment.StatusConfirmed, payment.StatusRefunded, payment.StatusPartialRefunded:
			sum.Total += p.Amount
			sum.Count++
		}
	}
	return sum, nil
}

// Load/Save satisfy merchant.Repository.
func (s *MemoryStore) Load(_ context.Context, teamSlug string) (*merchant.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchants[teamSlug]
	if !ok {
		return nil, merchant.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, m *merchant.Merchant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.TeamSlug] = m.Clone()
	return nil
}

// SeedMerchant inserts m directly, bypassing lockout bookkeeping; used at
// startup to load configured merchants (§2's bootstrap pipeline).
func (s *MemoryStore) SeedMerchant(m *merchant.Merchant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merchants[m.TeamSlug] = m.Clone()
}

// notify.Queue passthrough to the embedded MemoryQueue.
func (s *MemoryStore) EnqueueNotification(ctx context.Context, n notify.Notification) (string, error) {
	return s.notifyQueue.EnqueueNotification(ctx, n)
}
func (s *MemoryStore) DequeueNotifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	return s.notifyQueue.DequeueNotifications(ctx, limit)
}
func (s *MemoryStore) MarkNotificationProcessing(ctx context.Context, id string) error {
	return s.notifyQueue.MarkNotificationProcessing(ctx, id)
}
func (s *MemoryStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	return s.notifyQueue.MarkNotificationDelivered(ctx, id)
}
func (s *MemoryStore) MarkNotificationFailed(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error {
	return s.notifyQueue.MarkNotificationFailed(ctx, id, errMsg, nextAttemptAt)
}
func (s *MemoryStore) MoveNotificationToDLQ(ctx context.Context, id string, errMsg string) error {
	return s.notifyQueue.MoveNotificationToDLQ(ctx, id, errMsg)
}
func (s *MemoryStore) ListDLQ(ctx context.Context, limit int) ([]notify.Notification, error) {
	return s.notifyQueue.ListDLQ(ctx, limit)
}

func (s *MemoryStore) Close() error { return nil }
