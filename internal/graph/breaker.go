package graph

import (
	"context"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's admission state.
type BreakerState string

const (
	// StateClosed admits all calls.
	StateClosed BreakerState = "CLOSED"
	// StateOpen rejects all calls until the recovery timeout elapses.
	StateOpen BreakerState = "OPEN"
	// StateHalfOpen admits trial calls; one success closes, one failure re-opens.
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the absolute failure count that trips the breaker.
	FailureThreshold int
	// MinimumThroughput is the minimum request count before tripping decisions are trusted.
	MinimumThroughput int
	// RecoveryTimeout is how long the breaker stays open before a trial call.
	RecoveryTimeout time.Duration
}

// Breaker is a three-state circuit breaker shared by every operation flowing
// through one transaction manager. A failure storm in any entity's operations
// opens the breaker for all of them; that blast radius is deliberate.
type Breaker struct {
	cfg BreakerConfig

	mu           sync.Mutex
	state        BreakerState
	failureCount int
	successCount int
	requestCount int
	lastFailure  time.Time
	lastReset    time.Time
	nextAttempt  time.Time

	nowFn func() time.Time
}

// BreakerMetrics is a point-in-time snapshot of breaker state.
type BreakerMetrics struct {
	State          BreakerState
	FailureCount   int
	SuccessCount   int
	RequestCount   int
	FailureRate    float64
	LastFailure    time.Time
	TimeSinceReset time.Duration
}

// NewBreaker creates a breaker with the given config. Zero-valued fields get
// conservative defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MinimumThroughput <= 0 {
		cfg.MinimumThroughput = 10
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	now := time.Now()
	return &Breaker{
		cfg:       cfg,
		state:     StateClosed,
		lastReset: now,
		nowFn:     time.Now,
	}
}

// Execute runs op under breaker admission control. In OPEN state it fails
// with CircuitOpenError without invoking op, unless the recovery timeout has
// elapsed, in which case it transitions to HALF_OPEN and proceeds with a
// trial call.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}

	result, err := op(ctx)
	if err != nil {
		b.recordFailure()
		return nil, err
	}
	b.recordSuccess()
	return result, nil
}

// admit decides whether a call may proceed, advancing OPEN to HALF_OPEN
// when the recovery window has passed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	now := b.nowFn()
	if now.Before(b.nextAttempt) {
		return &CircuitOpenError{RetryAfter: b.nextAttempt.Sub(now)}
	}
	b.state = StateHalfOpen
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successCount++
	b.requestCount++

	switch b.state {
	case StateHalfOpen:
		// Trial call succeeded: full reset.
		b.resetLocked()
	case StateClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFn()
	b.failureCount++
	b.requestCount++
	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		b.tripLocked(now)
	case StateClosed:
		if b.requestCount >= b.cfg.MinimumThroughput {
			rate := float64(b.failureCount) / float64(b.requestCount)
			if b.failureCount >= b.cfg.FailureThreshold || rate > 0.5 {
				b.tripLocked(now)
			}
		}
	}
}

func (b *Breaker) tripLocked(now time.Time) {
	b.state = StateOpen
	b.nextAttempt = now.Add(b.cfg.RecoveryTimeout)
}

func (b *Breaker) resetLocked() {
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.requestCount = 0
	b.lastReset = b.nowFn()
}

// State returns the current state without side effects.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a point-in-time snapshot for dashboards and tests.
func (b *Breaker) Metrics() BreakerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	rate := 0.0
	if b.requestCount > 0 {
		rate = float64(b.failureCount) / float64(b.requestCount)
	}
	return BreakerMetrics{
		State:          b.state,
		FailureCount:   b.failureCount,
		SuccessCount:   b.successCount,
		RequestCount:   b.requestCount,
		FailureRate:    rate,
		LastFailure:    b.lastFailure,
		TimeSinceReset: b.nowFn().Sub(b.lastReset),
	}
}

// ForceOpen trips the breaker regardless of counters. Operational override.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tripLocked(b.nowFn())
}

// ForceClose resets the breaker to CLOSED with zeroed counters.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// ForceHalfOpen moves the breaker to HALF_OPEN. Operational override.
func (b *Breaker) ForceHalfOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateHalfOpen
}
