package models

import (
	"errors"
	"fmt"
)

// FailureKind classifies a tick failure so callers can decide between
// retrying, alerting, or halting.
type FailureKind string

const (
	// FailureTransient marks upstream unavailability (feed or broker
	// timeouts, 5xx). The tick is skipped; the next one retries.
	FailureTransient FailureKind = "transient"

	// FailureSchema marks a malformed upstream payload. Retrying will not
	// help until the adapter or the upstream is fixed.
	FailureSchema FailureKind = "schema"

	// FailureInvariant marks a portfolio document that violates its own
	// invariants. The tick aborts before persisting.
	FailureInvariant FailureKind = "invariant"

	// FailureBrokerRejection marks an order the broker refused. The tick
	// continues; the rejection is recorded in the trade log.
	FailureBrokerRejection FailureKind = "broker_rejection"

	// FailurePersistence marks a failed document save. In-memory state is
	// discarded so the next tick reloads the last persisted document.
	FailurePersistence FailureKind = "persistence"
)

// ClassifiedError pairs an error with its failure kind.
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// TransientError wraps err as a transient upstream failure.
func TransientError(err error) error {
	return &ClassifiedError{Kind: FailureTransient, Err: err}
}

// SchemaError wraps err as a malformed-payload failure.
func SchemaError(err error) error {
	return &ClassifiedError{Kind: FailureSchema, Err: err}
}

// InvariantError wraps err as a portfolio invariant violation.
func InvariantError(err error) error {
	return &ClassifiedError{Kind: FailureInvariant, Err: err}
}

// BrokerRejectionError wraps err as a broker order rejection.
func BrokerRejectionError(err error) error {
	return &ClassifiedError{Kind: FailureBrokerRejection, Err: err}
}

// PersistenceError wraps err as a failed document save.
func PersistenceError(err error) error {
	return &ClassifiedError{Kind: FailurePersistence, Err: err}
}

// KindOf returns the failure kind of err, or FailureTransient when err
// carries no classification. Unclassified failures are assumed retryable.
func KindOf(err error) FailureKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return FailureTransient
}
