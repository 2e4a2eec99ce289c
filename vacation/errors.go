/*
errors.go - Centralized error types for the workflow engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Every failure surfaces as a single human-readable message; retryable
  conditions say so explicitly.

ERROR CATEGORIES:
  1. Identity errors - Unauthenticated / Unauthorized
  2. Validation errors - Bad dates, malformed ranges, notice violations
  3. Workflow errors - Conflicts, balance shortfalls, bad transitions
  4. Infrastructure errors - Lock timeout, rate limiting

External-service failures (mail, calendar) are NOT in this taxonomy: they
are caught at the point of use and reported as warnings alongside an
otherwise-successful result, never returned to the caller as errors.

USAGE:
  if errors.Is(err, vacation.ErrConflict) { ... }

  var balErr *vacation.InsufficientBalanceError
  if errors.As(err, &balErr) { ... balErr.Remaining ... }
*/
package vacation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthenticated is returned when no verified identity is present.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrUnauthorized is returned when the caller lacks the right to act:
	// a non-manager deciding, or a non-owner editing another's request.
	ErrUnauthorized = errors.New("not authorized")

	// ErrValidation is returned for malformed input: past start date, end
	// before start, or an advance-notice violation.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a request overlaps another active
	// request by the same employee.
	ErrConflict = errors.New("conflicting request")

	// ErrInsufficientBalance is returned when a plain approval would drive
	// the remaining balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned for an unknown request id.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidTransition is returned when the current status does not
	// permit the attempted operation.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBusy is returned when the engine lock cannot be acquired within
	// its bounded wait. The caller should retry shortly.
	ErrBusy = errors.New("server busy, please retry shortly")

	// ErrRateLimited is returned when an identity exceeds its per-action
	// mutation budget inside the rolling window.
	ErrRateLimited = errors.New("too many requests")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError describes a same-employee overlap.
type ConflictError struct {
	RequestID RequestID
	Status    Status
	Start     Day
	End       Day
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dates overlap your existing %s request #%d (%s to %s)",
		e.Status, e.RequestID, e.Start, e.End)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientBalanceError reports the shortfall and suggests the override.
type InsufficientBalanceError struct {
	Remaining decimal.Decimal
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: %s days remaining, %d requested; use an exception approval to override",
		e.Remaining, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// NotFoundError names the missing request.
type NotFoundError struct {
	ID RequestID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request #%d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError names the attempted action and the current status.
type InvalidTransitionError struct {
	Action string
	From   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a request in status %s", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// RateLimitedError tells the caller when to retry.
type RateLimitedError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many %s requests, retry in %s", e.Action, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the same call might succeed shortly.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrRateLimited)
}

// IsClientError returns true if the error is the caller's to fix.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition)
}
