package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// FailureClass categorizes store errors for retry decision-making.
type FailureClass string

const (
	// ClassDeadlock indicates the store detected a deadlock and aborted the transaction.
	ClassDeadlock FailureClass = "DEADLOCK"

	// ClassTransientConnection indicates a broken or refused connection to the store.
	ClassTransientConnection FailureClass = "TRANSIENT_CONNECTION"

	// ClassConstraintViolation indicates a schema or uniqueness constraint failure.
	// Never retried: it signals a data-integrity problem, not a transient fault.
	ClassConstraintViolation FailureClass = "CONSTRAINT_VIOLATION"

	// ClassSessionExpired indicates the driver session is no longer valid.
	ClassSessionExpired FailureClass = "SESSION_EXPIRED"

	// ClassTransactionConflict indicates a lock or write conflict with a concurrent transaction.
	ClassTransactionConflict FailureClass = "TRANSACTION_CONFLICT"

	// ClassTemporary indicates a store-reported transient condition without a more specific class.
	ClassTemporary FailureClass = "TEMPORARY"

	// ClassUnclassified is the default for unrecognized errors.
	ClassUnclassified FailureClass = "UNCLASSIFIED"
)

// Classify categorizes a store error. Driver error codes are inspected
// first, message substrings second, so a misleading message never overrides
// a definitive code.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassUnclassified
	}

	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		code := neoErr.Code
		switch {
		case strings.Contains(code, "DeadlockDetected"):
			return ClassDeadlock
		case strings.Contains(code, "ConstraintValidationFailed"),
			strings.Contains(code, "ConstraintViolation"),
			strings.Contains(code, "Schema.ConstraintAlreadyExists"):
			return ClassConstraintViolation
		case strings.Contains(code, "AuthorizationExpired"),
			strings.Contains(code, "Security.TokenExpired"):
			return ClassSessionExpired
		case strings.Contains(code, "Transaction.LockClientStopped"),
			strings.Contains(code, "Transaction.Outdated"),
			strings.Contains(code, "Transaction.Terminated"):
			return ClassTransactionConflict
		case strings.Contains(code, "DatabaseUnavailable"),
			strings.Contains(code, "ServiceUnavailable"):
			return ClassTransientConnection
		case strings.HasPrefix(code, "Neo.TransientError."):
			return ClassTemporary
		}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "deadlock"):
		return ClassDeadlock
	case strings.Contains(msg, "constraint"):
		return ClassConstraintViolation
	case strings.Contains(msg, "session expired"),
		strings.Contains(msg, "session is expired"):
		return ClassSessionExpired
	case strings.Contains(msg, "lock acquisition"),
		strings.Contains(msg, "write conflict"),
		strings.Contains(msg, "transaction conflict"):
		return ClassTransactionConflict
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "unable to connect"),
		strings.Contains(msg, "no connection"),
		msg == "eof", strings.HasSuffix(msg, ": eof"),
		strings.Contains(msg, "unexpected eof"),
		strings.Contains(msg, "service unavailable"):
		return ClassTransientConnection
	case strings.Contains(msg, "temporarily unavailable"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"):
		return ClassTemporary
	}

	return ClassUnclassified
}

// transient reports whether a class is worth retrying.
func (c FailureClass) transient() bool {
	switch c {
	case ClassDeadlock, ClassTransientConnection, ClassSessionExpired,
		ClassTransactionConflict, ClassTemporary:
		return true
	}
	return false
}

// ConstraintError wraps a store constraint violation. Surfaced to callers
// after zero additional retries.
type ConstraintError struct {
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation: %v", e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// TransientStoreError wraps a transient store failure that exhausted its
// retry budget.
type TransientStoreError struct {
	Class    FailureClass
	Attempts int
	Err      error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("store failure (%s) after %d attempts: %v", e.Class, e.Attempts, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// CircuitOpenError is returned when the breaker rejects a call before it
// reaches the store. Callers should back off independently.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open: retry after %s", e.RetryAfter.Round(time.Millisecond))
}

// IsCircuitOpen reports whether err is a breaker rejection.
func IsCircuitOpen(err error) bool {
	var coe *CircuitOpenError
	return errors.As(err, &coe)
}

// IsConstraintViolation reports whether err is a constraint violation.
func IsConstraintViolation(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsTransientExhausted reports whether err is a transient failure that
// exhausted retries.
func IsTransientExhausted(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}
