package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// fakeClock drives the breaker's notion of time.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time             { return c.now }
func (c *fakeClock) Advance(d time.Duration)    { c.now = c.now.Add(d) }
func newFakeClock() *fakeClock                  { return &fakeClock{now: time.Unix(1000, 0)} }
func testBreaker(clock *fakeClock) *Breaker {
	b := NewBreaker(BreakerConfig{
		FailureThreshold:  5,
		MinimumThroughput: 10,
		RecoveryTimeout:   30 * time.Second,
	})
	b.nowFn = clock.Now
	return b
}

func succeed(ctx context.Context) (any, error) { return "ok", nil }
func fail(ctx context.Context) (any, error)    { return nil, errBoom }

func TestBreaker_TripsAfterThresholdWithThroughput(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	// 5 successes then 5 failures: at the 10th call the sample size is
	// sufficient and the failure count reaches the threshold.
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(ctx, succeed); err != nil {
			t.Fatalf("success %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("failure %d: expected wrapped op error, got %v", i, err)
		}
	}

	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %s, want OPEN", got)
	}
}

func TestBreaker_StaysClosedBelowThroughput(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	// 5 straight failures, but only 5 requests total: below minimum throughput.
	for i := 0; i < 5; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %s, want CLOSED (sample too small)", got)
	}
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	b.ForceOpen()

	invoked := false
	_, err := b.Execute(ctx, func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}
	if invoked {
		t.Fatal("operation must not be invoked while breaker is open")
	}

	var coe *CircuitOpenError
	if !errors.As(err, &coe) || coe.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", err)
	}
}

func TestBreaker_RecoveryToHalfOpenThenClosed(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	b.ForceOpen()

	// Before the recovery timeout: still rejecting.
	clock.Advance(29 * time.Second)
	if _, err := b.Execute(ctx, succeed); !IsCircuitOpen(err) {
		t.Fatalf("expected rejection before recovery timeout, got %v", err)
	}

	// After the timeout the next call is a trial; success closes the breaker.
	clock.Advance(2 * time.Second)
	if _, err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state after trial success = %s, want CLOSED", got)
	}

	metrics := b.Metrics()
	if metrics.FailureCount != 0 || metrics.RequestCount != 0 {
		t.Fatalf("expected counters reset after recovery, got %+v", metrics)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	b.ForceOpen()
	clock.Advance(31 * time.Second)

	// Trial call fails: back to OPEN with a fresh recovery window.
	if _, err := b.Execute(ctx, fail); !errors.Is(err, errBoom) {
		t.Fatalf("trial call: %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %s, want OPEN after trial failure", got)
	}

	// The recovery window restarts from the trial failure.
	clock.Advance(29 * time.Second)
	if _, err := b.Execute(ctx, succeed); !IsCircuitOpen(err) {
		t.Fatalf("expected rejection inside fresh window, got %v", err)
	}
	clock.Advance(2 * time.Second)
	if _, err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("second trial: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("state = %s, want CLOSED", got)
	}
}

func TestBreaker_SuccessResetsFailureCountWhenClosed(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if _, err := b.Execute(ctx, succeed); err != nil {
		t.Fatalf("success: %v", err)
	}
	if got := b.Metrics().FailureCount; got != 0 {
		t.Fatalf("failure count = %d, want 0 after success in CLOSED", got)
	}
}

func TestBreaker_TripsOnFailureRate(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	// Threshold of 5 not reached, but rate exceeds 0.5 at sufficient sample:
	// use a higher threshold to isolate the rate path.
	b.cfg.FailureThreshold = 100

	for i := 0; i < 4; i++ {
		_, _ = b.Execute(ctx, succeed)
	}
	for i := 0; i < 6; i++ {
		_, _ = b.Execute(ctx, fail)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("state = %s, want OPEN on failure rate > 0.5", got)
	}
}

func TestBreaker_ForceOverrides(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)

	b.ForceOpen()
	if b.State() != StateOpen {
		t.Fatal("ForceOpen did not open")
	}
	b.ForceHalfOpen()
	if b.State() != StateHalfOpen {
		t.Fatal("ForceHalfOpen did not transition")
	}
	b.ForceClose()
	if b.State() != StateClosed {
		t.Fatal("ForceClose did not close")
	}
	if m := b.Metrics(); m.RequestCount != 0 || m.FailureCount != 0 {
		t.Fatalf("ForceClose should zero counters, got %+v", m)
	}
}

func TestBreaker_MetricsSnapshot(t *testing.T) {
	clock := newFakeClock()
	b := testBreaker(clock)
	ctx := context.Background()

	_, _ = b.Execute(ctx, succeed)
	_, _ = b.Execute(ctx, fail)

	m := b.Metrics()
	if m.RequestCount != 2 || m.SuccessCount != 1 || m.FailureCount != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.FailureRate != 0.5 {
		t.Fatalf("failure rate = %v, want 0.5", m.FailureRate)
	}
	if m.LastFailure.IsZero() {
		t.Fatal("expected LastFailure to be stamped")
	}
}
