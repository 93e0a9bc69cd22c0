// Package faults defines the error taxonomy shared by every Strands
// component. Errors carry a Kind so callers can branch on failure class
// without string matching, and wrap an underlying cause for logging.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds are stable identifiers that appear in
// logs, audit entries and API error payloads.
type Kind string

const (
	// KindValidationFailed marks an input contract violation at a boundary.
	// Never retried.
	KindValidationFailed Kind = "VALIDATION_FAILED"

	// KindUpstreamUnavailable marks a transient adapter failure (timeout,
	// 5xx, exhausted retries). Retried by the resilience executor.
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"

	// KindCircuitOpen marks a call short-circuited by an open breaker.
	// Transient, but not retried within the same invocation.
	KindCircuitOpen Kind = "CIRCUIT_OPEN"

	// KindIllegalStateTransition marks an attempt to move an entity to a
	// state its state machine does not allow.
	KindIllegalStateTransition Kind = "ILLEGAL_STATE_TRANSITION"

	// KindOptimisticConflict marks a compare-and-set race on playbook
	// statistics. Retried up to the store's budget, then surfaced as
	// UPSTREAM_UNAVAILABLE.
	KindOptimisticConflict Kind = "OPTIMISTIC_CONFLICT"

	// KindInvestigationDegraded marks an investigation where zero
	// specialists succeeded. A decision is still emitted.
	KindInvestigationDegraded Kind = "INVESTIGATION_DEGRADED"

	// KindNoProviderAvailable marks a collect cycle where every alert
	// provider failed. The controller skips the tick.
	KindNoProviderAvailable Kind = "NO_PROVIDER_AVAILABLE"

	// KindReviewAlreadyClosed marks a reviewer conflict on a terminal review.
	KindReviewAlreadyClosed Kind = "REVIEW_ALREADY_CLOSED"

	// KindInvalidReviewer marks a review attempt by the system identity
	// that produced the decision.
	KindInvalidReviewer Kind = "INVALID_REVIEWER"
)

// Error is the concrete error type carried across component boundaries.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "graph.upsert_node"
	Msg  string // optional human-readable reason
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind with a human-readable reason.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf creates an error of the given kind with a formatted reason.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind, operation, and context message to an underlying
// cause. A nil cause yields nil so call sites can wrap unconditionally.
func Wrap(kind Kind, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the Kind from an error chain. Unknown errors report an
// empty Kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}

// IsTransient reports whether the failure class is worth retrying.
// Validation and state-machine violations are permanent by definition.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindUpstreamUnavailable, KindOptimisticConflict:
		return true
	default:
		return false
	}
}
