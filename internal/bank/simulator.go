// Package bank implements the Bank Simulator (C8): a deterministic,
// reproducible stand-in for a card network, keyed purely on the card PAN's
// last digit (§4.6). No real card-network integration exists anywhere in
// this repository, per spec.md's non-goals.
package bank

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/hackload-kz/payment-gateway/internal/circuitbreaker"
	"github.com/hackload-kz/payment-gateway/internal/metrics"
)

// Operation identifies the bank-facing action a Call performs.
type Operation string

const (
	OperationAuthorize Operation = "authorize"
	OperationCapture   Operation = "capture"
	OperationRefund    Operation = "refund"
	OperationReverse   Operation = "reverse"
)

// Outcome is the Bank Simulator's response (§4.6).
type Outcome struct {
	Approved        bool
	ThreeDSRequired bool
	ExternalRef     string
	ResponseCode    string
	ResponseMessage string
	DelayMs         int64
}

// CardDeclined is the response code returned for a last-digit-0 PAN.
const CardDeclined = "CARD_DECLINED"

// DefaultTimeout is the fixed deadline the orchestrator waits for a bank
// call before treating the delay as a retryable NetworkError (§4.6).
const DefaultTimeout = 5 * time.Second

// Simulator implements the deterministic PAN-suffix mapping.
type Simulator struct {
	breaker *circuitbreaker.Manager
	metrics *metrics.Metrics
	sleep   func(time.Duration)
}

// New builds a Simulator wrapped by breaker's ServiceBank circuit breaker,
// generalized from the teacher's external-RPC bulkhead-isolation pattern.
func New(breaker *circuitbreaker.Manager, m *metrics.Metrics) *Simulator {
	return &Simulator{breaker: breaker, metrics: m, sleep: time.Sleep}
}

// Authorize simulates a card authorization for pan (§4.6's outcome table).
func (s *Simulator) Authorize(ctx context.Context, pan string, amount int64) (Outcome, error) {
	return s.call(ctx, OperationAuthorize, pan, amount)
}

// Capture simulates a capture of a previously authorized amount.
func (s *Simulator) Capture(ctx context.Context, pan string, amount int64) (Outcome, error) {
	return s.call(ctx, OperationCapture, pan, amount)
}

// Refund simulates a refund against a previously captured amount.
func (s *Simulator) Refund(ctx context.Context, pan string, amount int64) (Outcome, error) {
	return s.call(ctx, OperationRefund, pan, amount)
}

// Reverse simulates a reversal of a previously authorized amount.
func (s *Simulator) Reverse(ctx context.Context, pan string, amount int64) (Outcome, error) {
	return s.call(ctx, OperationReverse, pan, amount)
}

func (s *Simulator) call(ctx context.Context, op Operation, pan string, amount int64) (Outcome, error) {
	start := time.Now()

	result, err := s.breaker.Execute(circuitbreaker.ServiceBank, func() (interface{}, error) {
		return s.simulate(ctx, pan)
	})

	success := err == nil
	s.metrics.ObserveBankCall(string(op), success, time.Since(start))
	if err != nil {
		return Outcome{}, fmt.Errorf("bank %s: %w", op, err)
	}
	return result.(Outcome), nil
}

// simulate applies the deterministic PAN-suffix rule and respects ctx's
// deadline, returning a NetworkError-shaped error on timeout (§4.6).
func (s *Simulator) simulate(ctx context.Context, pan string) (Outcome, error) {
	delay := simulatedLatency(pan)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("bank call exceeded deadline: %w", ctx.Err())
	}

	ref, err := externalRef()
	if err != nil {
		return Outcome{}, err
	}

	switch lastDigit(pan) {
	case 0:
		return Outcome{
			Approved:        false,
			ExternalRef:     ref,
			ResponseCode:    CardDeclined,
			ResponseMessage: "card declined by issuer",
			DelayMs:         delay.Milliseconds(),
		}, nil
	case 9:
		return Outcome{
			Approved:        false,
			ThreeDSRequired: true,
			ExternalRef:     ref,
			ResponseCode:    "3DS_REQUIRED",
			ResponseMessage: "3-D Secure challenge required",
			DelayMs:         delay.Milliseconds(),
		}, nil
	default:
		return Outcome{
			Approved:        true,
			ExternalRef:     ref,
			ResponseCode:    "APPROVED",
			ResponseMessage: "approved",
			DelayMs:         delay.Milliseconds(),
		}, nil
	}
}

// lastDigit extracts the PAN's trailing digit; a malformed PAN is treated
// as digit 5 (approved), since card-format validation belongs to C4, not
// the simulator.
func lastDigit(pan string) int {
	if pan == "" {
		return 5
	}
	last := pan[len(pan)-1:]
	d, err := strconv.Atoi(last)
	if err != nil {
		return 5
	}
	return d
}

// simulatedLatency derives a small, deterministic-ish processing delay so
// tests can bound wait time without the simulator being instantaneous.
func simulatedLatency(pan string) time.Duration {
	d := lastDigit(pan)
	return time.Duration(20+d*5) * time.Millisecond
}

func externalRef() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate external ref: %w", err)
	}
	return "bank_" + hex.EncodeToString(buf), nil
}

// RetryDelay computes the backoff before a bank-call retry after a
// NetworkError, capped to avoid unbounded growth (§7's propagation policy:
// retried up to maxAttempts before moving to AUTH_FAIL).
func RetryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	capped := time.Duration(math.Min(float64(base)*math.Pow(2, float64(attempt)), float64(5*time.Second)))
	return capped
}
