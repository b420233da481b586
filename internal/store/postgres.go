package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/config"
	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

// PostgresStore implements Store using PostgreSQL. Grounded on the teacher's
// PostgresStore: sql.Open + Ping + ApplyPostgresPoolSettings at construction,
// CREATE TABLE IF NOT EXISTS at startup, ON CONFLICT upserts, and
// sql.ErrNoRows translated to the package's NotFound sentinel.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewPostgresStore opens a new connection pool and creates tables.
func NewPostgresStore(connectionString string, poolCfg config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	config.ApplyPostgresPoolSettings(db, poolCfg)

	s := &PostgresStore{db: db, ownsDB: true}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithDB wraps an existing shared pool (the app wiring
// layer's dbpool.SharedPool passes one in so multiple stores share one pool).
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db, ownsDB: false}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS payments (
			payment_id TEXT PRIMARY KEY,
			team_slug TEXT NOT NULL,
			order_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			pay_type TEXT NOT NULL,
			description TEXT,
			customer_key TEXT,
			language TEXT,
			success_url TEXT,
			fail_url TEXT,
			notification_url TEXT,
			payment_expiry INT,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			error_code TEXT,
			message TEXT,
			attempt_count INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 3,
			data JSONB,
			receipt JSONB,
			authorized_amount BIGINT NOT NULL DEFAULT 0,
			confirmed_amount BIGINT NOT NULL DEFAULT 0,
			refunded_amount BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0,
			UNIQUE (team_slug, order_id)
		);
		CREATE TABLE IF NOT EXISTS payment_transitions (
			id BIGSERIAL PRIMARY KEY,
			payment_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			actor TEXT,
			reason TEXT,
			error_code TEXT,
			message TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_payment_transitions_payment_id ON payment_transitions (payment_id);
		CREATE TABLE IF NOT EXISTS merchants (
			team_slug TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			webhook_secret TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			supported_currencies TEXT[] NOT NULL DEFAULT '{}',
			min_per_payment BIGINT NOT NULL DEFAULT 0,
			max_per_payment BIGINT NOT NULL DEFAULT 0,
			daily_total BIGINT NOT NULL DEFAULT 0,
			daily_count INT NOT NULL DEFAULT 0,
			min_payment_expiry INT NOT NULL DEFAULT 1,
			max_payment_expiry INT NOT NULL DEFAULT 1440,
			default_success_url TEXT,
			default_fail_url TEXT,
			default_notification_url TEXT,
			failed_auth_attempts INT NOT NULL DEFAULT 0,
			locked_until TIMESTAMPTZ,
			last_auth_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS webhook_notifications (
			id TEXT PRIMARY KEY,
			payment_id TEXT NOT NULL,
			team_slug TEXT NOT NULL,
			url TEXT NOT NULL,
			payload JSONB NOT NULL,
			status TEXT NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMPTZ NOT NULL,
			last_error TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_webhook_notifications_status ON webhook_notifications (status, next_attempt_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreatePayment inserts a new payment row; a unique-constraint violation on
// (team_slug, order_id) is translated to CodeDuplicateOrderID (I1).
func (s *PostgresStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	dataJSON, receiptJSON, err := marshalPaymentJSON(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (
			payment_id, team_slug, order_id, amount, currency, pay_type, description,
			customer_key, language, success_url, fail_url, notification_url, payment_expiry,
			created_at, expires_at, status, error_code, message, attempt_count, max_attempts,
			data, receipt, authorized_amount, confirmed_amount, refunded_amount, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
	`,
		p.PaymentID, p.TeamSlug, p.OrderID, p.Amount, p.Currency, string(p.PayType), p.Description,
		p.CustomerKey, string(p.Language), p.SuccessURL, p.FailURL, p.NotificationURL, p.PaymentExpiry,
		p.CreatedAt.UTC(), nullableTime(p.ExpiresAt), string(p.Status), p.ErrorCode, p.Message,
		p.AttemptCount, p.MaxAttempts, dataJSON, receiptJSON, p.AuthorizedAmount, p.ConfirmedAmount,
		p.RefundedAmount, p.Version,
	)
	if isUniqueViolation(err) {
		return gwerrors.New(gwerrors.CodeDuplicateOrderID, "orderId already used for this team")
	}
	return err
}

func (s *PostgresStore) LoadPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	return s.scanPaymentQuery(ctx, `
		SELECT payment_id, team_slug, order_id, amount, currency, pay_type, description,
			customer_key, language, success_url, fail_url, notification_url, payment_expiry,
			created_at, expires_at, status, error_code, message, attempt_count, max_attempts,
			data, receipt, authorized_amount, confirmed_amount, refunded_amount, version
		FROM payments WHERE payment_id = $1
	`, paymentID)
}

func (s *PostgresStore) FindByOrderID(ctx context.Context, teamSlug, orderID string) (*payment.Payment, error) {
	return s.scanPaymentQuery(ctx, `
		SELECT payment_id, team_slug, order_id, amount, currency, pay_type, description,
			customer_key, language, success_url, fail_url, notification_url, payment_expiry,
			created_at, expires_at, status, error_code, message, attempt_count, max_attempts,
			data, receipt, authorized_amount, confirmed_amount, refunded_amount, version
		FROM payments WHERE team_slug = $1 AND order_id = $2
	`, teamSlug, orderID)
}

func (s *PostgresStore) scanPaymentQuery(ctx context.Context, query string, args ...interface{}) (*payment.Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var p payment.Payment
	var payType, language, status string
	var expiresAt sql.NullTime
	var dataJSON, receiptJSON []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&p.PaymentID, &p.TeamSlug, &p.OrderID, &p.Amount, &p.Currency, &payType, &p.Description,
		&p.CustomerKey, &language, &p.SuccessURL, &p.FailURL, &p.NotificationURL, &p.PaymentExpiry,
		&p.CreatedAt, &expiresAt, &status, &p.ErrorCode, &p.Message, &p.AttemptCount, &p.MaxAttempts,
		&dataJSON, &receiptJSON, &p.AuthorizedAmount, &p.ConfirmedAmount, &p.RefundedAmount, &p.Version,
	)
	if err == sql.ErrNoRows {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}

	p.PayType = payment.PayType(payType)
	p.Language = payment.Language(language)
	p.Status = payment.Status(status)
	if expiresAt.Valid {
		p.ExpiresAt = expiresAt.Time
	}
	if err := unmarshalPaymentJSON(&p, dataJSON, receiptJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePayment updates a payment row conditioned on expectedVersion, the
// store-level half of §5's optimistic concurrency contract.
func (s *PostgresStore) SavePayment(ctx context.Context, p *payment.Payment, expectedVersion int64) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	dataJSON, receiptJSON, err := marshalPaymentJSON(p)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE payments SET
			status = $1, error_code = $2, message = $3, attempt_count = $4,
			data = $5, receipt = $6, authorized_amount = $7, confirmed_amount = $8,
			refunded_amount = $9, expires_at = $10, version = $11
		WHERE payment_id = $12 AND version = $13
	`,
		string(p.Status), p.ErrorCode, p.Message, p.AttemptCount,
		dataJSON, receiptJSON, p.AuthorizedAmount, p.ConfirmedAmount,
		p.RefundedAmount, nullableTime(p.ExpiresAt), p.Version,
		p.PaymentID, expectedVersion,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return gwerrors.New(gwerrors.CodeStateConflict, "optimistic concurrency conflict")
	}
	return nil
}

func (s *PostgresStore) AppendTransition(ctx context.Context, rec payment.TransitionRecord) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_transitions (payment_id, from_status, to_status, ts, actor, reason, error_code, message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.PaymentID, string(rec.From), string(rec.To), rec.Timestamp.UTC(), rec.Actor, rec.Reason, rec.ErrorCode, rec.Message)
	return err
}

func (s *PostgresStore) ListTransitions(ctx context.Context, paymentID string) ([]payment.TransitionRecord, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, from_status, to_status, ts, actor, reason, error_code, message
		FROM payment_transitions WHERE payment_id = $1 ORDER BY ts ASC
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payment.TransitionRecord
	for rows.Next() {
		var rec payment.TransitionRecord
		var from, to string
		if err := rows.Scan(&rec.PaymentID, &from, &to, &rec.Timestamp, &rec.Actor, &rec.Reason, &rec.ErrorCode, &rec.Message); err != nil {
			return nil, err
		}
		rec.From, rec.To = payment.Status(from), payment.Status(to)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExpiredCandidates returns non-terminal payments past expiresAt, oldest first.
func (s *PostgresStore) ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id FROM payments
		WHERE expires_at IS NOT NULL AND expires_at < $1
			AND status NOT IN ('CANCELLED','DEADLINE_EXPIRED','EXPIRED','REJECTED','REVERSED','PARTIAL_REVERSED','REFUNDED','PARTIAL_REFUNDED','AUTH_FAIL')
		ORDER BY expires_at ASC
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	out := make([]*payment.Payment, 0, len(ids))
	for _, id := range ids {
		p, err := s.LoadPayment(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// DailySummary aggregates teamSlug's confirmed+refunded+partial-refunded
// turnover for the UTC calendar day containing day (§4.5).
func (s *PostgresStore) DailySummary(ctx context.Context, teamSlug string, day time.Time) (DailySummary, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var total int64
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments
		WHERE team_slug = $1 AND created_at >= $2 AND created_at < $3
			AND status IN ('CONFIRMED','REFUNDED','PARTIAL_REFUNDED')
	`, teamSlug, start, end).Scan(&total, &count)
	if err != nil {
		return DailySummary{}, err
	}
	return DailySummary{Total: total, Count: count}, nil
}

// Load/Save satisfy merchant.Repository.
func (s *PostgresStore) Load(ctx context.Context, teamSlug string) (*merchant.Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var m merchant.Merchant
	var currencies pq.StringArray
	var lockedUntil, lastAuthAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT team_slug, password, webhook_secret, is_active, supported_currencies,
			min_per_payment, max_per_payment, daily_total, daily_count,
			min_payment_expiry, max_payment_expiry, default_success_url, default_fail_url,
			default_notification_url, failed_auth_attempts, locked_until, last_auth_at
		FROM merchants WHERE team_slug = $1
	`, teamSlug).Scan(
		&m.TeamSlug, &m.Password, &m.WebhookSecret, &m.IsActive, &currencies,
		&m.MinPerPayment, &m.MaxPerPayment, &m.DailyTotal, &m.DailyCount,
		&m.MinPaymentExpiry, &m.MaxPaymentExpiry, &m.DefaultSuccessURL, &m.DefaultFailURL,
		&m.DefaultNotificationURL, &m.FailedAuthAttempts, &lockedUntil, &lastAuthAt,
	)
	if err == sql.ErrNoRows {
		return nil, merchant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.SupportedCurrencies = make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		m.SupportedCurrencies[c] = struct{}{}
	}
	if lockedUntil.Valid {
		m.LockedUntil = lockedUntil.Time
	}
	if lastAuthAt.Valid {
		m.LastAuthAt = lastAuthAt.Time
	}
	return &m, nil
}

func (s *PostgresStore) Save(ctx context.Context, m *merchant.Merchant) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	currencies := make(pq.StringArray, 0, len(m.SupportedCurrencies))
	for c := range m.SupportedCurrencies {
		currencies = append(currencies, c)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants (
			team_slug, password, webhook_secret, is_active, supported_currencies,
			min_per_payment, max_per_payment, daily_total, daily_count,
			min_payment_expiry, max_payment_expiry, default_success_url, default_fail_url,
			default_notification_url, failed_auth_attempts, locked_until, last_auth_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (team_slug) DO UPDATE SET
			password = EXCLUDED.password, webhook_secret = EXCLUDED.webhook_secret,
			is_active = EXCLUDED.is_active, supported_currencies = EXCLUDED.supported_currencies,
			min_per_payment = EXCLUDED.min_per_payment, max_per_payment = EXCLUDED.max_per_payment,
			daily_total = EXCLUDED.daily_total, daily_count = EXCLUDED.daily_count,
			min_payment_expiry = EXCLUDED.min_payment_expiry, max_payment_expiry = EXCLUDED.max_payment_expiry,
			default_success_url = EXCLUDED.default_success_url, default_fail_url = EXCLUDED.default_fail_url,
			default_notification_url = EXCLUDED.default_notification_url,
			failed_auth_attempts = EXCLUDED.failed_auth_attempts, locked_until = EXCLUDED.locked_until,
			last_auth_at = EXCLUDED.last_auth_at
	`,
		m.TeamSlug, m.Password, m.WebhookSecret, m.IsActive, currencies,
		m.MinPerPayment, m.MaxPerPayment, m.DailyTotal, m.DailyCount,
		m.MinPaymentExpiry, m.MaxPaymentExpiry, m.DefaultSuccessURL, m.DefaultFailURL,
		m.DefaultNotificationURL, m.FailedAuthAttempts, nullableTime(m.LockedUntil), nullableTime(m.LastAuthAt),
	)
	return err
}

// EnqueueNotification/DequeueNotifications/... satisfy notify.Queue.
func (s *PostgresStore) EnqueueNotification(ctx context.Context, n notify.Notification) (string, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	if n.ID == "" {
		n.ID = fmt.Sprintf("ntf_%d", time.Now().UnixNano())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_notifications (id, payment_id, team_slug, url, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
	`, n.ID, n.PaymentID, n.TeamSlug, n.URL, []byte(n.Payload), n.CreatedAt, n.CreatedAt)
	return n.ID, err
}

func (s *PostgresStore) DequeueNotifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payment_id, team_slug, url, payload, status, attempts, next_attempt_at, last_error, created_at
		FROM webhook_notifications
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var status string
		var payload []byte
		var lastError sql.NullString
		if err := rows.Scan(&n.ID, &n.PaymentID, &n.TeamSlug, &n.URL, &payload, &status, &n.Attempts, &n.NextAttemptAt, &lastError, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Status = notify.Status(status)
		n.Payload = json.RawMessage(payload)
		n.LastError = lastError.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationProcessing(ctx context.Context, id string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_notifications SET status = 'processing' WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhook_notifications WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) MarkNotificationFailed(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_notifications
		SET status = 'pending', attempts = attempts + 1, last_error = $1, next_attempt_at = $2
		WHERE id = $3
	`, errMsg, nextAttemptAt, id)
	return err
}

func (s *PostgresStore) MoveNotificationToDLQ(ctx context.Context, id string, errMsg string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `UPDATE webhook_notifications SET status = 'dlq', last_error = $1 WHERE id = $2`, errMsg, id)
	return err
}

func (s *PostgresStore) ListDLQ(ctx context.Context, limit int) ([]notify.Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payment_id, team_slug, url, payload, status, attempts, next_attempt_at, last_error, created_at
		FROM webhook_notifications WHERE status = 'dlq' ORDER BY created_at ASC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notify.Notification
	for rows.Next() {
		var n notify.Notification
		var status string
		var payload []byte
		var lastError sql.NullString
		if err := rows.Scan(&n.ID, &n.PaymentID, &n.TeamSlug, &n.URL, &payload, &status, &n.Attempts, &n.NextAttemptAt, &lastError, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Status = notify.Status(status)
		n.Payload = json.RawMessage(payload)
		n.LastError = lastError.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func marshalPaymentJSON(p *payment.Payment) (dataJSON, receiptJSON []byte, err error) {
	dataJSON, err = json.Marshal(p.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal data: %w", err)
	}
	if p.Receipt != nil {
		receiptJSON, err = json.Marshal(p.Receipt)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal receipt: %w", err)
		}
	}
	return dataJSON, receiptJSON, nil
}

func unmarshalPaymentJSON(p *payment.Payment, dataJSON, receiptJSON []byte) error {
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &p.Data); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}
	if len(receiptJSON) > 0 {
		p.Receipt = &payment.Receipt{}
		if err := json.Unmarshal(receiptJSON, p.Receipt); err != nil {
			return fmt.Errorf("unmarshal receipt: %w", err)
		}
	}
	return nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), the wire signal for a duplicate orderId.
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
