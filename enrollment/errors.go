/*
errors.go - Centralized error types for the enrollment engine

PURPOSE:
  All error types in one place. Failure of any check aborts the whole
  transaction's reconciliation: the engine returns an error and no partial
  timeline mutation reaches the caller.

ERROR CATEGORIES:
  1. Data inconsistency - ambiguous overlap (more than one straddling span)
  2. Not found - transaction references a span/premium span that doesn't exist
  3. Malformed transaction - required fields missing

USAGE:
  Callers match with errors.Is / errors.As:

    if errors.Is(err, enrollment.ErrAmbiguousOverlap) { ... }

    var nf *enrollment.NotFoundError
    if errors.As(err, &nf) { ... }
*/
package enrollment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAmbiguousOverlap is returned when more than one existing span
	// straddles a new period's start. This is a data inconsistency; the
	// transaction is rejected, never auto-resolved.
	ErrAmbiguousOverlap = errors.New("ambiguous overlap: multiple spans straddle the new start date")

	// ErrSpanNotFound is returned when a transaction references a group
	// policy or date with no corresponding enrollment span.
	ErrSpanNotFound = errors.New("enrollment span not found")

	// ErrPremiumSpanNotFound is returned when a financial line-item has no
	// date-matched active premium span.
	ErrPremiumSpanNotFound = errors.New("premium span not found")

	// ErrMalformedTransaction is returned when required transaction fields
	// are missing.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrNoHouseholdHead is returned when deriving the exchange subscriber
	// identifier and the account has no household-head member.
	ErrNoHouseholdHead = errors.New("account has no household-head member")

	// ErrAccountNotFound is returned when the transaction's account does
	// not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrValidationRejected is returned when the validation strategy
	// rejects the materialized candidate changes.
	ErrValidationRejected = errors.New("transaction rejected by validation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AmbiguousOverlapError reports the spans that straddle a new period's
// start. More than one is an unresolved-state condition.
type AmbiguousOverlapError struct {
	AccountID AccountID
	NewStart  Date
	SpanIDs   []SpanID
}

func (e *AmbiguousOverlapError) Error() string {
	return fmt.Sprintf("ambiguous overlap: %d spans straddle %s for account %s (%v)",
		len(e.SpanIDs), e.NewStart, e.AccountID, e.SpanIDs)
}

func (e *AmbiguousOverlapError) Unwrap() error { return ErrAmbiguousOverlap }

// NotFoundError reports a missing span or premium span reference.
type NotFoundError struct {
	AccountID     AccountID
	GroupPolicyID string
	Date          Date
	Kind          string // "enrollment span" or "premium span"
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found for account %s (group policy %q, date %s)",
		e.Kind, e.AccountID, e.GroupPolicyID, e.Date)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "premium span" {
		return ErrPremiumSpanNotFound
	}
	return ErrSpanNotFound
}

// MalformedTransactionError reports which required field is missing.
type MalformedTransactionError struct {
	TransactionID string
	Field         string
	Reason        string
}

func (e *MalformedTransactionError) Error() string {
	return fmt.Sprintf("malformed transaction %s: %s (%s)", e.TransactionID, e.Field, e.Reason)
}

func (e *MalformedTransactionError) Unwrap() error { return ErrMalformedTransaction }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing span or account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSpanNotFound) ||
		errors.Is(err, ErrPremiumSpanNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// rather than engine or storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedTransaction) ||
		errors.Is(err, ErrNoHouseholdHead)
}

// IsConflict returns true if the error indicates inconsistent timeline
// state that a retry cannot fix without operator intervention.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAmbiguousOverlap)
}
