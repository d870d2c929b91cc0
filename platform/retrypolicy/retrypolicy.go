// Package retrypolicy computes retry delays and classifies errors as
// retryable, per spec.md §4.1. Grounded on infrastructure/resilience/retry.go,
// adapted to classify connect/timeout/network errors and HTTP 5xx/429 as
// retryable and everything else as not.
package retrypolicy

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// Policy is a pure value describing a backoff schedule.
type Policy struct {
	Name        string
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      bool
}

// Fast is tuned for interactive, frequent deliveries (queue sender,
// notifier dispatcher).
func Fast() Policy {
	return Policy{Name: "fast", MaxAttempts: 3, Base: 200 * time.Millisecond, Cap: 2 * time.Second, Jitter: true}
}

// Patient is tuned for cross-Monitor escalation (upstream forwarder).
func Patient() Policy {
	return Policy{Name: "patient", MaxAttempts: 5, Base: 500 * time.Millisecond, Cap: 15 * time.Second, Jitter: true}
}

// Critical is tuned for operations that must not give up quickly (10
// attempts, up to 30s apart). No caller in this repository uses it.
func Critical() Policy {
	return Policy{Name: "critical", MaxAttempts: 10, Base: 1 * time.Second, Cap: 30 * time.Second, Jitter: true}
}

// Delay computes the backoff delay for attempt n (1-based):
// min(base * expo^(n-1), cap), optionally scaled by a uniform [0.5, 1.5)
// jitter sample.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > float64(p.Cap) {
			d = float64(p.Cap)
			break
		}
	}
	delay := time.Duration(d)
	if delay > p.Cap {
		delay = p.Cap
	}
	if p.Jitter {
		scale := 0.5 + rand.Float64()
		delay = time.Duration(float64(delay) * scale)
	}
	return delay
}

// Retryable classifies an error (or HTTP status) as retryable: connect
// errors, timeouts, generic network errors, and HTTP 5xx/429. Everything
// else — malformed responses, other HTTP statuses, programming errors —
// is non-retryable.
func Retryable(err error, status int) bool {
	if status != 0 {
		return status >= 500 || status == http.StatusTooManyRequests
	}
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}

// Run executes fn up to MaxAttempts times, sleeping Delay(attempt) between
// tries, and returns the last error if every attempt failed. It stops early
// and returns ctx.Err() if the context is cancelled while sleeping.
func Run(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
