package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/basket/go-canvas/internal/shared"
	"github.com/cenkalti/backoff/v5"
)

// Action is the recovery decision for a classified failure.
type Action int

const (
	// ActionRetry retries after the class-specific delay.
	ActionRetry Action = iota
	// ActionReconnectAndRetry retries after a linear delay, giving the driver
	// pool time to re-establish connections.
	ActionReconnectAndRetry
	// ActionFailFast surfaces the error immediately as a ConstraintError.
	ActionFailFast
	// ActionFail surfaces the original error immediately.
	ActionFail
)

// actionFor maps a failure class to its recovery action.
func actionFor(class FailureClass) Action {
	switch class {
	case ClassDeadlock, ClassSessionExpired, ClassTransactionConflict, ClassTemporary:
		return ActionRetry
	case ClassTransientConnection:
		return ActionReconnectAndRetry
	case ClassConstraintViolation:
		return ActionFailFast
	default:
		return ActionFail
	}
}

// Strategy names a retry budget and the default backoff used for classes
// without their own delay rule.
type Strategy struct {
	Name       string
	MaxRetries int
	// BaseDelay/MaxDelay drive the default exponential backoff.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// FixedDelay, when set, replaces the default exponential backoff entirely.
	FixedDelay time.Duration
	// Jitter is the randomization factor applied to exponential delays.
	// Zero disables jitter for the whole strategy.
	Jitter float64
}

// Named strategies let callers trade latency against resilience per
// operation class.
var (
	// DefaultStrategy is moderate: 3 retries, 100ms..5s exponential, ±10% jitter.
	DefaultStrategy = Strategy{
		Name:       "default",
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Jitter:     0.10,
	}

	// CriticalStrategy favors resilience: up to 5 retries, tighter base, higher cap.
	CriticalStrategy = Strategy{
		Name:       "critical",
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Jitter:     0.10,
	}

	// ConservativeStrategy favors predictability: 2 retries, fixed 2s delay, no jitter.
	ConservativeStrategy = Strategy{
		Name:       "conservative",
		MaxRetries: 2,
		FixedDelay: 2 * time.Second,
	}
)

// StrategyByName resolves a configured strategy name, falling back to default.
func StrategyByName(name string) Strategy {
	switch name {
	case "critical":
		return CriticalStrategy
	case "conservative":
		return ConservativeStrategy
	default:
		return DefaultStrategy
	}
}

// expDelay computes the capped exponential delay for the given zero-based
// attempt: min(base·2^attempt ± jitter, cap).
func expDelay(base, cap time.Duration, jitter float64, attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: jitter,
		Multiplier:          2,
		MaxInterval:         cap,
	}
	b.Reset()
	d := b.NextBackOff()
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	// The backoff library randomizes after capping currentInterval, so a
	// jittered at-cap delay can exceed MaxInterval. The cap is a hard bound.
	if d > cap {
		d = cap
	}
	return d
}

// delayFor computes the wait before retry number attempt (zero-based) for a
// failure class. Classes with spec'd delay rules use them; the rest fall
// back to the strategy's default backoff.
func delayFor(class FailureClass, s Strategy, attempt int) time.Duration {
	switch class {
	case ClassDeadlock:
		return expDelay(100*time.Millisecond, 5*time.Second, s.Jitter, attempt)
	case ClassTransientConnection:
		return time.Second + time.Duration(attempt)*500*time.Millisecond
	case ClassSessionExpired:
		return 100 * time.Millisecond
	case ClassTransactionConflict:
		return expDelay(50*time.Millisecond, 2*time.Second, s.Jitter, attempt)
	default:
		if s.FixedDelay > 0 {
			return s.FixedDelay
		}
		return expDelay(s.BaseDelay, s.MaxDelay, s.Jitter, attempt)
	}
}

// Retryer executes operations under a named strategy, consulting the
// classifier after each failure.
type Retryer struct {
	strategy Strategy
	logger   *slog.Logger

	// sleepFn waits for the backoff delay; injectable for tests. The default
	// suspends only the calling goroutine and honors context cancellation.
	sleepFn func(ctx context.Context, d time.Duration) error

	// onRetry, when set, observes each consumed retry.
	onRetry func(class FailureClass, attempt int, delay time.Duration)
}

// NewRetryer creates a Retryer for the given strategy.
func NewRetryer(strategy Strategy, logger *slog.Logger) *Retryer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retryer{
		strategy: strategy,
		logger:   logger,
		sleepFn:  ctxSleep,
	}
}

// Strategy returns the retryer's strategy.
func (r *Retryer) Strategy() Strategy { return r.strategy }

// Execute runs op up to 1+MaxRetries times. Constraint violations fail fast
// as ConstraintError after exactly one attempt; unclassified errors fail
// with the original error; transient failures that exhaust the budget are
// wrapped in TransientStoreError.
func (r *Retryer) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	var lastErr error
	var lastClass FailureClass

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		lastClass = Classify(err)

		switch actionFor(lastClass) {
		case ActionFailFast:
			return nil, &ConstraintError{Err: err}
		case ActionFail:
			return nil, err
		}

		if attempt >= r.strategy.MaxRetries {
			break
		}

		delay := delayFor(lastClass, r.strategy, attempt)
		if r.onRetry != nil {
			r.onRetry(lastClass, attempt+1, delay)
		}
		r.logger.Debug("retrying store operation",
			"trace_id", shared.TraceID(ctx),
			"class", string(lastClass),
			"attempt", attempt+1,
			"max_retries", r.strategy.MaxRetries,
			"delay", delay,
		)
		if err := r.sleepFn(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &TransientStoreError{
		Class:    lastClass,
		Attempts: r.strategy.MaxRetries + 1,
		Err:      lastErr,
	}
}

// ctxSleep waits for d or until the context is canceled. A timer, not a
// blocking OS sleep, so concurrent operations proceed unaffected.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
