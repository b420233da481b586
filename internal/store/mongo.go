package store

import (
	"context"
	"fmt"
	"time"

	gwerrors "github.com/hackload-kz/payment-gateway/internal/errors"
	"github.com/hackload-kz/payment-gateway/internal/merchant"
	"github.com/hackload-kz/payment-gateway/internal/notify"
	"github.com/hackload-kz/payment-gateway/internal/payment"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements Store using MongoDB. Grounded on the teacher's
// MongoDBStore: one *mongo.Client, per-entity collections, bson.M filters,
// and mongo.ErrNoDocuments translated to the package's NotFound sentinel.
type MongoDBStore struct {
	client        *mongo.Client
	payments      *mongo.Collection
	transitions   *mongo.Collection
	merchants     *mongo.Collection
	notifications *mongo.Collection
}

// NewMongoDBStore connects to database on connectionString and ensures indexes.
func NewMongoDBStore(connectionString, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client:        client,
		payments:      db.Collection("payments"),
		transitions:   db.Collection("payment_transitions"),
		merchants:     db.Collection("merchants"),
		notifications: db.Collection("webhook_notifications"),
	}
	if err := s.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoDBStore) createIndexes(ctx context.Context) error {
	if _, err := s.payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "team_slug", Value: 1}, {Key: "order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create payment indexes: %w", err)
	}
	if _, err := s.transitions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "payment_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create transition indexes: %w", err)
	}
	if _, err := s.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "next_attempt_at", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

// mongoPayment mirrors payment.Payment with bson tags for storage.
type mongoPayment struct {
	PaymentID        string            `bson:"_id"`
	TeamSlug         string            `bson:"team_slug"`
	OrderID          string            `bson:"order_id"`
	Amount           int64             `bson:"amount"`
	Currency         string            `bson:"currency"`
	PayType          string            `bson:"pay_type"`
	Description      string            `bson:"description"`
	CustomerKey      string            `bson:"customer_key"`
	Language         string            `bson:"language"`
	SuccessURL       string            `bson:"success_url"`
	FailURL          string            `bson:"fail_url"`
	NotificationURL  string            `bson:"notification_url"`
	PaymentExpiry    int               `bson:"payment_expiry"`
	CreatedAt        time.Time         `bson:"created_at"`
	ExpiresAt        time.Time         `bson:"expires_at"`
	Status           string            `bson:"status"`
	ErrorCode        string            `bson:"error_code"`
	Message          string            `bson:"message"`
	AttemptCount     int               `bson:"attempt_count"`
	MaxAttempts      int               `bson:"max_attempts"`
	Data             map[string]string `bson:"data"`
	Receipt          *payment.Receipt  `bson:"receipt,omitempty"`
	AuthorizedAmount int64             `bson:"authorized_amount"`
	ConfirmedAmount  int64             `bson:"confirmed_amount"`
	RefundedAmount   int64             `bson:"refunded_amount"`
	Version          int64             `bson:"version"`
}

func toMongoPayment(p *payment.Payment) mongoPayment {
	return mongoPayment{
		PaymentID: p.PaymentID, TeamSlug: p.TeamSlug, OrderID: p.OrderID, Amount: p.Amount,
		Currency: p.Currency, PayType: string(p.PayType), Description: p.Description,
		CustomerKey: p.CustomerKey, Language: string(p.Language), SuccessURL: p.SuccessURL,
		FailURL: p.FailURL, NotificationURL: p.NotificationURL, PaymentExpiry: p.PaymentExpiry,
		CreatedAt: p.CreatedAt, ExpiresAt: p.ExpiresAt, Status: string(p.Status),
		ErrorCode: p.ErrorCode, Message: p.Message, AttemptCount: p.AttemptCount,
		MaxAttempts: p.MaxAttempts, Data: p.Data, Receipt: p.Receipt,
		AuthorizedAmount: p.AuthorizedAmount, ConfirmedAmount: p.ConfirmedAmount,
		RefundedAmount: p.RefundedAmount, Version: p.Version,
	}
}

func fromMongoPayment(mp mongoPayment) *payment.Payment {
	return &payment.Payment{
		PaymentID: mp.PaymentID, TeamSlug: mp.TeamSlug, OrderID: mp.OrderID, Amount: mp.Amount,
		Currency: mp.Currency, PayType: payment.PayType(mp.PayType), Description: mp.Description,
		CustomerKey: mp.CustomerKey, Language: payment.Language(mp.Language), SuccessURL: mp.SuccessURL,
		FailURL: mp.FailURL, NotificationURL: mp.NotificationURL, PaymentExpiry: mp.PaymentExpiry,
		CreatedAt: mp.CreatedAt, ExpiresAt: mp.ExpiresAt, Status: payment.Status(mp.Status),
		ErrorCode: mp.ErrorCode, Message: mp.Message, AttemptCount: mp.AttemptCount,
		MaxAttempts: mp.MaxAttempts, Data: mp.Data, Receipt: mp.Receipt,
		AuthorizedAmount: mp.AuthorizedAmount, ConfirmedAmount: mp.ConfirmedAmount,
		RefundedAmount: mp.RefundedAmount, Version: mp.Version,
	}
}

func (s *MongoDBStore) CreatePayment(ctx context.Context, p *payment.Payment) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.payments.InsertOne(ctx, toMongoPayment(p))
	if mongo.IsDuplicateKeyError(err) {
		return gwerrors.New(gwerrors.CodeDuplicateOrderID, "orderId already used for this team")
	}
	return err
}

func (s *MongoDBStore) LoadPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	var mp mongoPayment
	err := s.payments.FindOne(ctx, bson.M{"_id": paymentID}).Decode(&mp)
	if err == mongo.ErrNoDocuments {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}
	return fromMongoPayment(mp), nil
}

func (s *MongoDBStore) FindByOrderID(ctx context.Context, teamSlug, orderID string) (*payment.Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	var mp mongoPayment
	err := s.payments.FindOne(ctx, bson.M{"team_slug": teamSlug, "order_id": orderID}).Decode(&mp)
	if err == mongo.ErrNoDocuments {
		return nil, gwerrors.New(gwerrors.CodePaymentNotFound, "payment not found")
	}
	if err != nil {
		return nil, err
	}
	return fromMongoPayment(mp), nil
}

// SavePayment updates conditioned on version, matching (§5's optimistic
// concurrency contract); a zero matched-count means the version moved.
func (s *MongoDBStore) SavePayment(ctx context.Context, p *payment.Payment, expectedVersion int64) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	mp := toMongoPayment(p)
	result, err := s.payments.UpdateOne(ctx,
		bson.M{"_id": p.PaymentID, "version": expectedVersion},
		bson.M{"$set": mp},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return gwerrors.New(gwerrors.CodeStateConflict, "optimistic concurrency conflict")
	}
	return nil
}

func (s *MongoDBStore) AppendTransition(ctx context.Context, rec payment.TransitionRecord) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.transitions.InsertOne(ctx, bson.M{
		"payment_id": rec.PaymentID, "from_status": string(rec.From), "to_status": string(rec.To),
		"ts": rec.Timestamp, "actor": rec.Actor, "reason": rec.Reason,
		"error_code": rec.ErrorCode, "message": rec.Message,
	})
	return err
}

func (s *MongoDBStore) ListTransitions(ctx context.Context, paymentID string) ([]payment.TransitionRecord, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	cur, err := s.transitions.Find(ctx, bson.M{"payment_id": paymentID}, options.Find().SetSort(bson.D{{Key: "ts", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []payment.TransitionRecord
	for cur.Next(ctx) {
		var doc struct {
			PaymentID  string    `bson:"payment_id"`
			FromStatus string    `bson:"from_status"`
			ToStatus   string    `bson:"to_status"`
			Ts         time.Time `bson:"ts"`
			Actor      string    `bson:"actor"`
			Reason     string    `bson:"reason"`
			ErrorCode  string    `bson:"error_code"`
			Message    string    `bson:"message"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, payment.TransitionRecord{
			PaymentID: doc.PaymentID, From: payment.Status(doc.FromStatus), To: payment.Status(doc.ToStatus),
			Timestamp: doc.Ts, Actor: doc.Actor, Reason: doc.Reason, ErrorCode: doc.ErrorCode, Message: doc.Message,
		})
	}
	return out, cur.Err()
}

func (s *MongoDBStore) ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	terminal := []string{"CANCELLED", "DEADLINE_EXPIRED", "EXPIRED", "REJECTED", "REVERSED", "PARTIAL_REVERSED", "REFUNDED", "PARTIAL_REFUNDED", "AUTH_FAIL"}
	cur, err := s.payments.Find(ctx, bson.M{
		"expires_at": bson.M{"$lt": now},
		"status":     bson.M{"$nin": terminal},
	}, options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*payment.Payment
	for cur.Next(ctx) {
		var mp mongoPayment
		if err := cur.Decode(&mp); err != nil {
			return nil, err
		}
		out = append(out, fromMongoPayment(mp))
	}
	return out, cur.Err()
}

// DailySummary aggregates teamSlug's confirmed+refunded+partial-refunded
// turnover for the UTC calendar day containing day (§4.5).
func (s *MongoDBStore) DailySummary(ctx context.Context, teamSlug string, day time.Time) (DailySummary, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	cur, err := s.payments.Find(ctx, bson.M{
		"team_slug":  teamSlug,
		"created_at": bson.M{"$gte": start, "$lt": end},
		"status":     bson.M{"$in": []string{"CONFIRMED", "REFUNDED", "PARTIAL_REFUNDED"}},
	})
	if err != nil {
		return DailySummary{}, err
	}
	defer cur.Close(ctx)

	var out DailySummary
	for cur.Next(ctx) {
		var doc struct {
			Amount int64 `bson:"amount"`
		}
		if err := cur.Decode(&doc); err != nil {
			return DailySummary{}, err
		}
		out.Total += doc.Amount
		out.Count++
	}
	return out, cur.Err()
}

func (s *MongoDBStore) Load(ctx context.Context, teamSlug string) (*merchant.Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	var doc struct {
		TeamSlug               string    `bson:"_id"`
		Password               string    `bson:"password"`
		WebhookSecret          string    `bson:"webhook_secret"`
		IsActive               bool      `bson:"is_active"`
		SupportedCurrencies    []string  `bson:"supported_currencies"`
		MinPerPayment          int64     `bson:"min_per_payment"`
		MaxPerPayment          int64     `bson:"max_per_payment"`
		DailyTotal             int64     `bson:"daily_total"`
		DailyCount             int       `bson:"daily_count"`
		MinPaymentExpiry       int       `bson:"min_payment_expiry"`
		MaxPaymentExpiry       int       `bson:"max_payment_expiry"`
		DefaultSuccessURL      string    `bson:"default_success_url"`
		DefaultFailURL         string    `bson:"default_fail_url"`
		DefaultNotificationURL string    `bson:"default_notification_url"`
		FailedAuthAttempts     int       `bson:"failed_auth_attempts"`
		LockedUntil            time.Time `bson:"locked_until"`
		LastAuthAt             time.Time `bson:"last_auth_at"`
	}
	err := s.merchants.FindOne(ctx, bson.M{"_id": teamSlug}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, merchant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m := &merchant.Merchant{
		TeamSlug: doc.TeamSlug, Password: doc.Password, WebhookSecret: doc.WebhookSecret,
		IsActive: doc.IsActive, MinPerPayment: doc.MinPerPayment, MaxPerPayment: doc.MaxPerPayment,
		DailyTotal: doc.DailyTotal, DailyCount: doc.DailyCount, MinPaymentExpiry: doc.MinPaymentExpiry,
		MaxPaymentExpiry: doc.MaxPaymentExpiry, DefaultSuccessURL: doc.DefaultSuccessURL,
		DefaultFailURL: doc.DefaultFailURL, DefaultNotificationURL: doc.DefaultNotificationURL,
		FailedAuthAttempts: doc.FailedAuthAttempts, LockedUntil: doc.LockedUntil, LastAuthAt: doc.LastAuthAt,
		SupportedCurrencies: make(map[string]struct{}, len(doc.SupportedCurrencies)),
	}
	for _, c := range doc.SupportedCurrencies {
		m.SupportedCurrencies[c] = struct{}{}
	}
	return m, nil
}

func (s *MongoDBStore) Save(ctx context.Context, m *merchant.Merchant) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	currencies := make([]string, 0, len(m.SupportedCurrencies))
	for c := range m.SupportedCurrencies {
		currencies = append(currencies, c)
	}
	_, err := s.merchants.UpdateOne(ctx,
		bson.M{"_id": m.TeamSlug},
		bson.M{"$set": bson.M{
			"password": m.Password, "webhook_secret": m.WebhookSecret, "is_active": m.IsActive,
			"supported_currencies": currencies, "min_per_payment": m.MinPerPayment,
			"max_per_payment": m.MaxPerPayment, "daily_total": m.DailyTotal, "daily_count": m.DailyCount,
			"min_payment_expiry": m.MinPaymentExpiry, "max_payment_expiry": m.MaxPaymentExpiry,
			"default_success_url": m.DefaultSuccessURL, "default_fail_url": m.DefaultFailURL,
			"default_notification_url": m.DefaultNotificationURL, "failed_auth_attempts": m.FailedAuthAttempts,
			"locked_until": m.LockedUntil, "last_auth_at": m.LastAuthAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoDBStore) EnqueueNotification(ctx context.Context, n notify.Notification) (string, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	if n.ID == "" {
		n.ID = fmt.Sprintf("ntf_%d", time.Now().UnixNano())
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.notifications.InsertOne(ctx, bson.M{
		"_id": n.ID, "payment_id": n.PaymentID, "team_slug": n.TeamSlug, "url": n.URL,
		"payload": []byte(n.Payload), "status": string(notify.StatusPending), "attempts": 0,
		"next_attempt_at": n.CreatedAt, "created_at": n.CreatedAt,
	})
	return n.ID, err
}

func (s *MongoDBStore) DequeueNotifications(ctx context.Context, limit int) ([]notify.Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	cur, err := s.notifications.Find(ctx, bson.M{
		"status":          string(notify.StatusPending),
		"next_attempt_at": bson.M{"$lte": time.Now()},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeNotifications(ctx, cur)
}

func (s *MongoDBStore) ListDLQ(ctx context.Context, limit int) ([]notify.Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	cur, err := s.notifications.Find(ctx, bson.M{"status": string(notify.StatusDLQ)},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeNotifications(ctx, cur)
}

func decodeNotifications(ctx context.Context, cur *mongo.Cursor) ([]notify.Notification, error) {
	var out []notify.Notification
	for cur.Next(ctx) {
		var doc struct {
			ID            string    `bson:"_id"`
			PaymentID     string    `bson:"payment_id"`
			TeamSlug      string    `bson:"team_slug"`
			URL           string    `bson:"url"`
			Payload       []byte    `bson:"payload"`
			Status        string    `bson:"status"`
			Attempts      int       `bson:"attempts"`
			NextAttemptAt time.Time `bson:"next_attempt_at"`
			LastError     string    `bson:"last_error"`
			CreatedAt     time.Time `bson:"created_at"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, notify.Notification{
			ID: doc.ID, PaymentID: doc.PaymentID, TeamSlug: doc.TeamSlug, URL: doc.URL,
			Payload: doc.Payload, Status: notify.Status(doc.Status), Attempts: doc.Attempts,
			NextAttemptAt: doc.NextAttemptAt, LastError: doc.LastError, CreatedAt: doc.CreatedAt,
		})
	}
	return out, cur.Err()
}

func (s *MongoDBStore) MarkNotificationProcessing(ctx context.Context, id string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": string(notify.StatusProcessing)}})
	return err
}

func (s *MongoDBStore) MarkNotificationDelivered(ctx context.Context, id string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.notifications.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *MongoDBStore) MarkNotificationFailed(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": string(notify.StatusPending), "last_error": errMsg, "next_attempt_at": nextAttemptAt},
		"$inc": bson.M{"attempts": 1},
	})
	return err
}

func (s *MongoDBStore) MoveNotificationToDLQ(ctx context.Context, id string, errMsg string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	_, err := s.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": string(notify.StatusDLQ), "last_error": errMsg}})
	return err
}

func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
