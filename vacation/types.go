/*
Package vacation implements the vacation-request workflow engine.

PURPOSE:
  This package contains the domain core: the request lifecycle state
  machine, the conflict detector, and the balance ledger. Employees submit
  date-range requests; a request is validated, checked for overlaps against
  the rest of the table, routed for manager approval, and on approval
  materialized as an all-day calendar event with email notifications at
  each state change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: one row per vacation request, with its lifecycle status
  - Employee: roster entry with allowance and derived used/remaining days
  - Status: the six lifecycle states and their classification helpers
  - BalanceTotals: the computed total/used/remaining view

DESIGN PRINCIPLES:
  1. Derived balances: used/remaining days are recomputed from approved
     requests on every mutation, never incrementally adjusted
  2. Precision: decimal.Decimal for allowance arithmetic (half-days exist)
  3. Coarse serialization: all mutations run under one engine-wide lock

SEE ALSO:
  - engine.go: Lifecycle operations (create, edit, cancel, decide)
  - conflict.go: Overlap detection
  - ledger.go: Balance computation and recompute
*/
package vacation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Request lifecycle states
// =============================================================================

type Status string

const (
	StatusPending           Status = "Pending"
	StatusNeedsReview       Status = "NeedsReview"
	StatusApproved          Status = "Approved"
	StatusApprovedException Status = "ApprovedException"
	StatusRejected          Status = "Rejected"
	StatusCancelled         Status = "Cancelled"
)

// IsApproved reports whether the status is one of the approved variants.
func (s Status) IsApproved() bool {
	return s == StatusApproved || s == StatusApprovedException
}

// IsActive reports whether a request in this status still occupies its date
// range for overlap purposes.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusNeedsReview || s.IsApproved()
}

// IsOpen reports whether the request may still be edited, cancelled, or
// decided by a manager.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusNeedsReview
}

// ValidDecision reports whether the status is an acceptable manager decision.
func (s Status) ValidDecision() bool {
	return s == StatusApproved || s == StatusApprovedException || s == StatusRejected
}

// =============================================================================
// REQUEST - One row per vacation request
// =============================================================================

type RequestID int64

// Request holds one vacation request. IDs are assigned by the store,
// monotonically increasing and never reused. RequesterName is resolved from
// the directory once at creation time and frozen on the row.
type Request struct {
	ID             RequestID
	SubmittedAt    time.Time
	RequesterEmail string
	RequesterName  string
	StartDate      Day
	EndDate        Day
	Status         Status

	// BusinessDays is derived from the date range and recomputed whenever
	// the dates change.
	BusinessDays int

	// Note carries a free-text annotation, e.g. a conflict explanation.
	Note string

	// CalendarEventRef holds the external calendar event id while the
	// request is in an approved state; cleared when the event is deleted.
	CalendarEventRef string
}

// =============================================================================
// EMPLOYEE - Roster entry
// =============================================================================

// Employee is a directory row. Name and email are both usable as lookup
// keys, matched case-insensitively after trimming. UsedDays is a derived
// aggregate owned by the ledger recompute, never mutated by lifecycle
// transitions directly.
type Employee struct {
	ID    string
	Name  string
	Email string
	Team  string

	AllowanceTotal decimal.Decimal
	UsedDays       decimal.Decimal

	// RemainingOverride, when non-nil, is authoritative for the remaining
	// balance instead of AllowanceTotal - UsedDays.
	RemainingOverride *decimal.Decimal
}

// =============================================================================
// BALANCE TOTALS - Computed allowance view
// =============================================================================

type BalanceTotals struct {
	Total     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
}

// ZeroTotals is returned for unknown employees: lookups tolerate missing
// directory rows rather than failing.
func ZeroTotals() BalanceTotals {
	return BalanceTotals{Total: decimal.Zero, Used: decimal.Zero, Remaining: decimal.Zero}
}
