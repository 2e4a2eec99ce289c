/*
store.go - Collaborator interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the domain core and its external
  collaborators: the request table, the employee directory, the manager
  roster, identity resolution, outbound mail, and the external calendar.
  Every interface here is small enough to fake in tests.

KEY INTERFACES:
  RequestStore:      Minimal table abstraction over vacation requests
  EmployeeDirectory: Roster lookup + batch write-back of derived used-days
  ManagerRoster:     Ordered set of emails with approval authority
  IdentityProvider:  Verified caller identity
  Mailer:            Outbound email; NEVER returns an error to the engine
  CalendarAdapter:   All-day event CRUD (end-exclusive convention)
  RateLimiter:       Keyed, time-windowed mutation throttle

IMPLEMENTATIONS:
  - store/sqlite:  production table store (requests, employees, managers)
  - store/memory:  in-memory store for tests and development
  - calendar/:     ICS file, Google Calendar, and in-memory adapters
  - mail/:         SMTP mailer
  - limiter/:      Redis sliding-window limiter (in-memory one lives here)
  - api/:          JWT authenticator (IdentityProvider)

SEE ALSO:
  - engine.go: The only consumer of these interfaces
*/
package vacation

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REQUEST STORE - Minimal table abstraction
// =============================================================================

// RequestUpdate is a field mask for partial row updates. Nil fields are
// left untouched; a non-nil pointer overwrites, including to the zero
// value (e.g. clearing the calendar event reference).
type RequestUpdate struct {
	Status           *Status
	StartDate        *Day
	EndDate          *Day
	BusinessDays     *int
	Note             *string
	CalendarEventRef *string
}

// RequestStore persists request rows. Append assigns monotonically
// increasing ids that are never reused.
type RequestStore interface {
	Append(ctx context.Context, req Request) (RequestID, error)
	Get(ctx context.Context, id RequestID) (*Request, error)
	All(ctx context.Context) ([]Request, error)
	Update(ctx context.Context, id RequestID, upd RequestUpdate) error

	// SortByStartDate orders the table by ascending start date. Stable and
	// cosmetic: it aids manual inspection and is not relied on for
	// correctness anywhere.
	SortByStartDate(ctx context.Context) error
}

// =============================================================================
// EMPLOYEE DIRECTORY AND MANAGER ROSTER
// =============================================================================

// EmployeeDirectory resolves employees and accepts the ledger's recomputed
// used-day aggregates. Unknown keys return (nil, nil), not an error.
type EmployeeDirectory interface {
	// FindByNameOrEmail matches on trimmed, case-insensitive name or email.
	FindByNameOrEmail(ctx context.Context, key string) (*Employee, error)

	Employees(ctx context.Context) ([]Employee, error)

	// SetUsedDays writes recomputed used-day totals in one batch, keyed by
	// trimmed employee name.
	SetUsedDays(ctx context.Context, usedByName map[string]decimal.Decimal) error
}

// ManagerRoster lists emails with approval authority, in notification
// order: the first entry is the primary recipient, the rest are copied.
// Implementations may cache with a bounded TTL.
type ManagerRoster interface {
	List(ctx context.Context) ([]string, error)
}

// IdentityProvider resolves the verified caller. Fails with
// ErrUnauthenticated when no identity is present.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (string, error)
}

// =============================================================================
// MAILER - Best-effort outbound email
// =============================================================================

// Message is a composed notification.
type Message struct {
	To       string
	CC       []string
	Subject  string
	HTMLBody string
}

// Delivery reports the outcome of a send attempt.
type Delivery struct {
	Delivered bool
	Err       error
}

// Mailer sends a message. Implementations never return an error through a
// second channel: failures are captured inside the Delivery result so the
// engine's transaction is never failed by mail problems.
type Mailer interface {
	Send(ctx context.Context, msg Message) Delivery
}

// =============================================================================
// CALENDAR ADAPTER - All-day event CRUD
// =============================================================================

// CalendarAdapter mutates the shared external calendar. All-day events use
// the end-exclusive convention: an event covering [start, end] inclusive
// spans [start, end+1day) on the calendar.
type CalendarAdapter interface {
	CreateAllDayEvent(ctx context.Context, title string, start, endExclusive Day) (string, error)
	UpdateAllDayEvent(ctx context.Context, eventID, title string, start, endExclusive Day) error
	DeleteEvent(ctx context.Context, eventID string) error
	FindEvent(ctx context.Context, eventID string) (bool, error)
}

// =============================================================================
// RATE LIMITER - Keyed rolling-window throttle
// =============================================================================

// RateLimiter bounds how many mutations a key may issue inside a rolling
// window. Checked before the engine lock is requested. Implementations
// degrade open on infrastructure errors.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
