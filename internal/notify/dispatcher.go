package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/httputil"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
	"github.com/hackload-kz/payment-gateway/internal/observability"
	"github.com/rs/zerolog"
)

// SecretLookup resolves a merchant's webhook signing secret by teamSlug,
// used to sign each Event right before delivery.
type SecretLookup func(ctx context.Context, teamSlug string) (string, error)

// RetryConfig controls the dispatcher's exponential backoff schedule (§4.5).
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64
	Timeout     time.Duration
}

// DefaultRetryConfig mirrors the teacher's DefaultRetryConfig shape with
// gateway-appropriate defaults: 5 attempts, 1s base, 5m cap.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  5 * time.Minute,
		Multiplier:  2.0,
		Timeout:     10 * time.Second,
	}
}

// Dispatcher pulls notifications from a Queue and delivers them with
// exponential backoff, moving exhausted notifications to the DLQ. Grounded
// on the teacher's WebhookQueueWorker/RetryableClient pair, merged into one
// type since the gateway's queue is always persistent (no fire-and-forget
// mode).
type Dispatcher struct {
	queue      Queue
	secrets    SecretLookup
	retryCfg   RetryConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Manager
	metrics    *metrics.Metrics
	hooks      *observability.Registry
	logger     zerolog.Logger

	pollInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// WithHooks attaches an observability registry. Optional: a dispatcher
// with no registry behaves exactly as before.
func (d *Dispatcher) WithHooks(registry *observability.Registry) *Dispatcher {
	d.hooks = registry
	return d
}

// NewDispatcher builds a Dispatcher over queue.
func NewDispatcher(queue Queue, secrets SecretLookup, retryCfg RetryConfig, breaker *circuitbreaker.Manager, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetryConfig()
	}
	return &Dispatcher{
		queue:        queue,
		secrets:      secrets,
		retryCfg:     retryCfg,
		httpClient:   httputil.NewClient(retryCfg.Timeout),
		breaker:      breaker,
		metrics:      m,
		logger:       logger,
		pollInterval: 2 * time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Enqueue builds and persists a Notification for one event; the
// orchestrator calls it once per operation with the payment's resulting
// status.
// The body is signed at delivery time, not here, since §4.8's attemptId (and
// thus the signature it's covered by) is specific to each delivery attempt.
func (d *Dispatcher) Enqueue(ctx context.Context, teamSlug, url string, event Event) error {
	if url == "" {
		return nil
	}
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	id, err := d.queue.EnqueueNotification(ctx, Notification{
		PaymentID: event.PaymentID,
		TeamSlug:  teamSlug,
		URL:       url,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err == nil && d.hooks != nil {
		d.hooks.EmitWebhookQueued(ctx, observability.WebhookQueuedEvent{
			Timestamp: time.Now().UTC(),
			WebhookID: id,
			TeamSlug:  teamSlug,
			PaymentID: event.PaymentID,
			EventType: "payment",
			URL:       url,
		})
	}
	return err
}

// Start begins the polling loop in a background goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Stop gracefully halts the polling loop.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain processes one batch of ready notifications.
func (d *Dispatcher) drain(ctx context.Context) {
	batch, err := d.queue.DequeueNotifications(ctx, 50)
	if err != nil {
		d.logger.Error().Err(err).Msg("notify: dequeue failed")
		return
	}
	for _, n := range batch {
		d.deliver(ctx, n)
	}
}

// deliver attempts one delivery of n, updating queue state and metrics.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	_ = d.queue.MarkNotificationProcessing(ctx, n.ID)

	attempt := n.Attempts + 1
	attemptID := fmt.Sprintf("%s-%d", n.ID, attempt)

	start := time.Now()
	err := d.send(ctx, n, attemptID)
	duration := time.Since(start)

	if err == nil {
		_ = d.queue.MarkNotificationDelivered(ctx, n.ID)
		d.metrics.ObserveWebhook("success", duration, attempt, false, n.TeamSlug)
		if d.hooks != nil {
			d.hooks.EmitWebhookDelivered(ctx, observability.WebhookDeliveredEvent{
				Timestamp: time.Now().UTC(),
				WebhookID: n.ID,
				TeamSlug:  n.TeamSlug,
				PaymentID: n.PaymentID,
				Attempts:  attempt,
				Duration:  duration,
			})
		}
		return
	}

	if attempt >= d.retryCfg.MaxAttempts {
		_ = d.queue.MoveNotificationToDLQ(ctx, n.ID, err.Error())
		d.metrics.ObserveWebhook("failed", duration, attempt, true, n.TeamSlug)
		if d.hooks != nil {
			d.hooks.EmitWebhookFailed(ctx, observability.WebhookFailedEvent{
				Timestamp:    time.Now().UTC(),
				WebhookID:    n.ID,
				TeamSlug:     n.TeamSlug,
				PaymentID:    n.PaymentID,
				Attempts:     attempt,
				Error:        err.Error(),
				FinalFailure: true,
			})
		}
		d.logger.Error().Err(err).Str("payment_id", n.PaymentID).Str("notification_id", n.ID).
			Msg("notify: webhook exhausted retries, moved to DLQ")
		return
	}

	backoff := time.Duration(float64(d.retryCfg.BaseBackoff) * pow(d.retryCfg.Multiplier, attempt-1))
	if backoff > d.retryCfg.MaxBackoff {
		backoff = d.retryCfg.MaxBackoff
	}
	nextRetry := time.Now().Add(backoff)
	_ = d.queue.MarkNotificationFailed(ctx, n.ID, err.Error(), nextRetry)
	d.metrics.ObserveWebhook("retry", duration, attempt, false, n.TeamSlug)
	if d.hooks != nil {
		d.hooks.EmitWebhookRetried(ctx, observability.WebhookRetriedEvent{
			Timestamp:      time.Now().UTC(),
			WebhookID:      n.ID,
			TeamSlug:       n.TeamSlug,
			PaymentID:      n.PaymentID,
			CurrentAttempt: attempt,
			MaxAttempts:    d.retryCfg.MaxAttempts,
			NextRetryAt:    nextRetry,
			BackoffSeconds: backoff.Seconds(),
		})
	}
	d.logger.Warn().Err(err).Str("payment_id", n.PaymentID).Int("attempt", attempt).
		Dur("next_retry", backoff).Msg("notify: webhook attempt failed")
}

// send builds the §4.8-shaped body for this delivery attempt, signs it, and
// performs one HTTP POST, wrapped in the webhook circuit breaker.
func (d *Dispatcher) send(ctx context.Context, n Notification, attemptID string) error {
	var evt Event
	if err := json.Unmarshal(n.Payload, &evt); err != nil {
		return err
	}
	evt.AttemptID = attemptID

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	secret, err := d.secrets(ctx, n.TeamSlug)
	if err != nil {
		return err
	}
	signature := signBody(body, secret)

	_, err = d.breaker.Execute(circuitbreaker.ServiceWebhook, func() (interface{}, error) {
		reqCtx, cancel := context.WithTimeout(ctx, d.retryCfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Signature", signature)
		req.Header.Set("X-Webhook-Event", evt.Status)
		req.Header.Set("X-Webhook-Delivery", attemptID)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, httpStatusError(resp.StatusCode, n.URL)
		}
		return nil, nil
	})
	return err
}

// signBody computes §4.8's delivery signature: HMAC-SHA256(body, secret),
// lowercase hex — a real HMAC over the raw wire bytes, distinct from the
// Token Signer's (C1) field-concatenation scheme.
func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
