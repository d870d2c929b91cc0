package retrypolicy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestDelayCapsGrowth(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 4 * time.Second, Jitter: false}

	if got := p.Delay(1); got != time.Second {
		t.Errorf("Delay(1) = %v, want %v", got, time.Second)
	}
	if got := p.Delay(2); got != 2*time.Second {
		t.Errorf("Delay(2) = %v, want %v", got, 2*time.Second)
	}
	if got := p.Delay(5); got != p.Cap {
		t.Errorf("Delay(5) = %v, want cap %v", got, p.Cap)
	}
}

func TestDelayClampsAttemptBelowOne(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 4 * time.Second, Jitter: false}
	if got := p.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want same as Delay(1) = %v", got, time.Second)
	}
}

func TestDelayWithJitterStaysInRange(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 10 * time.Second, Jitter: true}
	for i := 0; i < 20; i++ {
		d := p.Delay(1)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v out of expected [0.5s, 1.5s) range", d)
		}
	}
}

func TestRetryableByStatus(t *testing.T) {
	cases := map[int]bool{
		http.StatusOK:                 false,
		http.StatusBadRequest:         false,
		http.StatusTooManyRequests:    true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:         true,
	}
	for status, want := range cases {
		if got := Retryable(nil, status); got != want {
			t.Errorf("Retryable(nil, %d) = %v, want %v", status, got, want)
		}
	}
}

func TestRetryableByError(t *testing.T) {
	if Retryable(nil, 0) {
		t.Fatalf("expected nil error with no status to be non-retryable")
	}
	if Retryable(errors.New("boom"), 0) {
		t.Fatalf("expected generic error to be non-retryable")
	}

	netErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	if !Retryable(netErr, 0) {
		t.Fatalf("expected net.OpError to be retryable")
	}
}

func TestRunSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Run(context.Background(), Fast(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestRunRetriesThenGivesUp(t *testing.T) {
	p := Policy{MaxAttempts: 3, Base: time.Millisecond, Cap: time.Millisecond, Jitter: false}
	calls := 0
	wantErr := errors.New("persistent failure")

	err := Run(context.Background(), p, func() error {
		calls++
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected final error to be returned, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	p := Policy{MaxAttempts: 5, Base: time.Hour, Cap: time.Hour, Jitter: false}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Run(ctx, p, func() error {
		calls++
		return errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt before cancellation, got %d", calls)
	}
}
