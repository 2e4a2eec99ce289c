/*
engine.go - Request lifecycle state machine

PURPOSE:
  Orchestrates every mutation of the request table: create, edit, cancel,
  and manager decisions. Each mutation is one transaction - validation,
  conflict detection, balance checks, the row write, best-effort
  notification/calendar side effects, and the ledger recompute - executed
  under a single engine-wide lock.

LIFECYCLE:

    create/edit ──▶ Pending ────────────▶ Approved / ApprovedException
                      │        decide         │
                      ▼                       ▼ (manager decision only)
                  NeedsReview ──────────▶ Rejected
                      │
                      ▼ (owner or manager)
                  Cancelled

CONCURRENCY:
  One coarse lock serializes all mutations. The dataset is small and the
  dominant correctness requirement is eliminating lost-update races on
  overlap and balance checks, not throughput. Lock acquisition waits a
  bounded time; timing out surfaces ErrBusy. Read-only queries skip the
  lock and may observe a table mid-mutation - acceptable for display, and
  never used for authoritative decisions.

SIDE EFFECTS:
  Mailer and CalendarAdapter failures never fail the transaction: once the
  row write succeeds the operation is a success, and external-service
  problems are reported as warnings in the result payload.

SEE ALSO:
  - conflict.go, ledger.go, notify.go
*/
package vacation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config carries the workflow knobs.
type Config struct {
	// MinAdvanceNoticeDays rejects requests starting sooner than this many
	// days from today. Zero disables the check.
	MinAdvanceNoticeDays int

	// EnforceBalance makes plain approvals fail when the remaining balance
	// would go negative. ApprovedException always bypasses this.
	EnforceBalance bool

	// LockTimeout bounds the wait for the engine lock.
	LockTimeout time.Duration

	// RateWindow is the rolling window the limiter uses; only echoed back
	// to throttled callers as a retry hint.
	RateWindow time.Duration
}

// Deps are the engine's collaborators. Mailer, Calendar, and Limiter may
// be nil to disable the corresponding concern.
type Deps struct {
	Store     RequestStore
	Directory EmployeeDirectory
	Roster    ManagerRoster
	Mailer    Mailer
	Calendar  CalendarAdapter
	Limiter   RateLimiter
	Log       *zap.Logger
}

// Engine is the request lifecycle state machine.
type Engine struct {
	cfg Config

	store     RequestStore
	directory EmployeeDirectory
	roster    ManagerRoster
	mailer    Mailer
	calendar  CalendarAdapter
	limiter   RateLimiter

	detector *ConflictDetector
	ledger   *BalanceLedger

	lock chan struct{}
	log  *zap.Logger
	now  func() time.Time
}

// NewEngine wires an engine from its collaborators.
func NewEngine(cfg Config, d Deps) *Engine {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:       cfg,
		store:     d.Store,
		directory: d.Directory,
		roster:    d.Roster,
		mailer:    d.Mailer,
		calendar:  d.Calendar,
		limiter:   d.Limiter,
		detector:  &ConflictDetector{Store: d.Store, Directory: d.Directory},
		ledger:    &BalanceLedger{Store: d.Store, Directory: d.Directory, Log: log},
		lock:      make(chan struct{}, 1),
		log:       log,
		now:       time.Now,
	}
}

// Ledger exposes the balance ledger for read paths and the reconciliation
// scheduler.
func (e *Engine) Ledger() *BalanceLedger { return e.ledger }

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result is the payload of a successful mutation. Warnings carry
// external-service failures (mail, calendar) that did not fail the
// transaction.
type Result struct {
	Request  Request
	Warnings []string
}

// EmployeeSummary is the read-only balance view for one employee.
type EmployeeSummary struct {
	Name    string
	Email   string
	Team    string
	Balance BalanceTotals
}

// Dashboard is the read-only landing view: the caller's requests plus, for
// managers, everything awaiting a decision.
type Dashboard struct {
	Requests         []Request
	Balance          BalanceTotals
	IsManager        bool
	AwaitingDecision []Request
}

// =============================================================================
// LOCKING AND THROTTLING
// =============================================================================

func (e *Engine) acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(e.cfg.LockTimeout)
	defer timer.Stop()

	select {
	case e.lock <- struct{}{}:
		return func() { <-e.lock }, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// throttle checks the per-identity, per-action mutation budget. Limiter
// errors degrade open: throttling is protective, not authoritative.
func (e *Engine) throttle(ctx context.Context, identity, action string) error {
	if e.limiter == nil {
		return nil
	}
	allowed, err := e.limiter.Allow(ctx, action+":"+normalizeKey(identity))
	if err != nil {
		e.log.Warn("rate limiter unavailable, allowing", zap.String("action", action), zap.Error(err))
		return nil
	}
	if !allowed {
		return &RateLimitedError{Action: action, RetryAfter: e.cfg.RateWindow}
	}
	return nil
}

func (e *Engine) isManager(ctx context.Context, email string) (bool, error) {
	list, err := e.roster.List(ctx)
	if err != nil {
		return false, err
	}
	key := normalizeKey(email)
	for _, m := range list {
		if normalizeKey(m) == key {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// READ-ONLY OPERATIONS (lock-free)
// =============================================================================

// GetEmployeeSummary returns the balance view for the calling identity.
func (e *Engine) GetEmployeeSummary(ctx context.Context, identity string) (*EmployeeSummary, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	emp, err := e.directory.FindByNameOrEmail(ctx, identity)
	if err != nil {
		return nil, err
	}
	totals, err := e.ledger.ComputeTotals(ctx, identity)
	if err != nil {
		return nil, err
	}

	summary := &EmployeeSummary{Email: identity, Balance: totals}
	if emp != nil {
		summary.Name = emp.Name
		summary.Email = emp.Email
		summary.Team = emp.Team
	}
	return summary, nil
}

// GetDashboard returns the caller's requests and balance; managers also see
// everything awaiting a decision. Lock-free: may observe a table
// mid-mutation, which is accepted for display purposes.
func (e *Engine) GetDashboard(ctx context.Context, identity string) (*Dashboard, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	rows, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := e.ledger.ComputeTotals(ctx, identity)
	if err != nil {
		return nil, err
	}
	manager, err := e.isManager(ctx, identity)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{Balance: totals, IsManager: manager}
	key := normalizeKey(identity)
	for _, r := range rows {
		if normalizeKey(r.RequesterEmail) == key {
			dash.Requests = append(dash.Requests, r)
		}
		if manager && r.Status.IsOpen() {
			dash.AwaitingDecision = append(dash.AwaitingDecision, r)
		}
	}
	sort.SliceStable(dash.Requests, func(i, j int) bool {
		return dash.Requests[i].StartDate.Before(dash.Requests[j].StartDate)
	})
	sort.SliceStable(dash.AwaitingDecision, func(i, j int) bool {
		return dash.AwaitingDecision[i].StartDate.Before(dash.AwaitingDecision[j].StartDate)
	})
	return dash, nil
}

// =============================================================================
// CREATE
// =============================================================================

// CreateRequest validates a new date-range request, rejects duplicates,
// inserts the row as Pending, and runs row processing on it.
func (e *Engine) CreateRequest(ctx context.Context, identity string, start, end Day) (*Result, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if err := e.throttle(ctx, identity, "create"); err != nil {
		return nil, err
	}
	if err := e.validateDates(start, end); err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	overlap, err := e.detector.FindSelfOverlap(ctx, identity, start, end, 0)
	if err != nil {
		return nil, err
	}
	if overlap != nil {
		return nil, &ConflictError{RequestID: overlap.RequestID, Status: overlap.Status, Start: overlap.Start, End: overlap.End}
	}

	// Name is resolved once at creation and frozen on the row.
	name := identity
	if emp, err := e.directory.FindByNameOrEmail(ctx, identity); err != nil {
		return nil, err
	} else if emp != nil && emp.Name != "" {
		name = emp.Name
	}

	id, err := e.store.Append(ctx, Request{
		SubmittedAt:    e.now(),
		RequesterEmail: identity,
		RequesterName:  name,
		StartDate:      start,
		EndDate:        end,
		Status:         StatusPending,
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("request created",
		zap.Int64("id", int64(id)),
		zap.String("requester", identity),
		zap.String("start", start.String()),
		zap.String("end", end.String()))

	return e.processRow(ctx, id)
}

func (e *Engine) validateDates(start, end Day) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Message: "end date before start date"}
	}
	today := DayOf(e.now())
	if start.Before(today) {
		return &ValidationError{Field: "start_date", Message: "start date is in the past"}
	}
	if n := e.cfg.MinAdvanceNoticeDays; n > 0 && start.Before(today.AddDays(n)) {
		return &ValidationError{Field: "start_date", Message: fmt.Sprintf("requests need at least %d days advance notice", n)}
	}
	return nil
}

// =============================================================================
// ROW PROCESSING (post create/edit)
// =============================================================================

// processRow runs the deterministic post-write sequence: default the
// status, validate, compute business days, classify conflicts, notify,
// recompute the ledger, and re-sort the table.
func (e *Engine) processRow(ctx context.Context, id RequestID) (*Result, error) {
	row, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{ID: id}
	}

	if row.Status == "" {
		st := StatusPending
		if err := e.store.Update(ctx, id, RequestUpdate{Status: &st}); err != nil {
			return nil, err
		}
		row.Status = st
	}

	// Invalid rows are annotated and abandoned: no business-day count, no
	// notifications.
	if row.RequesterEmail == "" || row.StartDate.IsZero() || row.EndDate.IsZero() || row.EndDate.Before(row.StartDate) {
		note := "invalid data: missing fields or end date before start date"
		if err := e.store.Update(ctx, id, RequestUpdate{Note: &note}); err != nil {
			return nil, err
		}
		row.Note = note
		return &Result{Request: *row}, nil
	}

	bd := CountBusinessDays(row.StartDate, row.EndDate)
	if err := e.store.Update(ctx, id, RequestUpdate{BusinessDays: &bd}); err != nil {
		return nil, err
	}
	row.BusinessDays = bd

	var warnings []string
	var requesterMsg Message
	var managerMsg *Message

	team, err := e.detector.FindTeamOverlap(ctx, row.RequesterEmail, row.StartDate, row.EndDate, id)
	if err != nil {
		return nil, err
	}
	switch {
	case team != nil:
		st := StatusNeedsReview
		note := fmt.Sprintf("coverage conflict: %s (%s) on team %s has overlapping dates", team.EmployeeName, team.Status, team.Team)
		if err := e.store.Update(ctx, id, RequestUpdate{Status: &st, Note: &note}); err != nil {
			return nil, err
		}
		row.Status, row.Note = st, note
		requesterMsg = composeRequesterUnderReview(row, "your team has overlapping vacation; a manager will check coverage")
		m := composeManagerConflict(row, team)
		managerMsg = &m

	default:
		self, err := e.detector.FindSelfOverlap(ctx, row.RequesterEmail, row.StartDate, row.EndDate, id)
		if err != nil {
			return nil, err
		}
		if self != nil {
			// Duplicate requests are a user-side mistake, not a coverage
			// risk: the requester is told, but no manager email is composed.
			st := StatusNeedsReview
			note := fmt.Sprintf("duplicate request: overlaps request #%d (%s)", self.RequestID, self.Status)
			if err := e.store.Update(ctx, id, RequestUpdate{Status: &st, Note: &note}); err != nil {
				return nil, err
			}
			row.Status, row.Note = st, note
			requesterMsg = composeRequesterUnderReview(row, "it overlaps another of your requests")
		} else {
			requesterMsg = composeRequesterReceived(row)
			m := composeManagerNewRequest(row)
			managerMsg = &m
		}
	}

	e.send(ctx, requesterMsg, &warnings)
	if managerMsg != nil {
		e.sendToRoster(ctx, *managerMsg, &warnings)
	}

	e.finishMutation(ctx, &warnings)

	final, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Request: *final, Warnings: warnings}, nil
}

// =============================================================================
// EDIT
// =============================================================================

// EditRequest moves a Pending/NeedsReview request to new dates, resets it
// to Pending, and re-runs row processing as if newly created. Only the
// owning requester may edit.
func (e *Engine) EditRequest(ctx context.Context, identity string, id RequestID, start, end Day) (*Result, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if err := e.throttle(ctx, identity, "edit"); err != nil {
		return nil, err
	}
	if err := e.validateDates(start, end); err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	row, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{ID: id}
	}
	if normalizeKey(row.RequesterEmail) != normalizeKey(identity) {
		return nil, fmt.Errorf("%w: only the requester may edit this request", ErrUnauthorized)
	}
	if !row.Status.IsOpen() {
		return nil, &InvalidTransitionError{Action: "edit", From: row.Status}
	}

	overlap, err := e.detector.FindSelfOverlap(ctx, row.RequesterEmail, start, end, id)
	if err != nil {
		return nil, err
	}
	if overlap != nil {
		return nil, &ConflictError{RequestID: overlap.RequestID, Status: overlap.Status, Start: overlap.Start, End: overlap.End}
	}

	st := StatusPending
	note := ""
	if err := e.store.Update(ctx, id, RequestUpdate{StartDate: &start, EndDate: &end, Status: &st, Note: &note}); err != nil {
		return nil, err
	}
	e.log.Info("request edited", zap.Int64("id", int64(id)), zap.String("start", start.String()), zap.String("end", end.String()))

	return e.processRow(ctx, id)
}

// =============================================================================
// CANCEL
// =============================================================================

// CancelRequest cancels a Pending/NeedsReview request. The owning requester
// or any manager may cancel; any other current status yields an explicit
// cannot-cancel error naming it.
func (e *Engine) CancelRequest(ctx context.Context, identity string, id RequestID) (*Result, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if err := e.throttle(ctx, identity, "cancel"); err != nil {
		return nil, err
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	row, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{ID: id}
	}

	if normalizeKey(row.RequesterEmail) != normalizeKey(identity) {
		manager, err := e.isManager(ctx, identity)
		if err != nil {
			return nil, err
		}
		if !manager {
			return nil, fmt.Errorf("%w: only the requester or a manager may cancel", ErrUnauthorized)
		}
	}
	if !row.Status.IsOpen() {
		return nil, &InvalidTransitionError{Action: "cancel", From: row.Status}
	}

	st := StatusCancelled
	if err := e.store.Update(ctx, id, RequestUpdate{Status: &st}); err != nil {
		return nil, err
	}
	row.Status = st
	e.log.Info("request cancelled", zap.Int64("id", int64(id)), zap.String("by", identity))

	var warnings []string
	e.applyStateChange(ctx, row, &warnings)
	e.finishMutation(ctx, &warnings)

	final, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Request: *final, Warnings: warnings}, nil
}

// =============================================================================
// DECIDE
// =============================================================================

// DecideRequest records a manager decision: Approved, ApprovedException,
// or Rejected. Plain approvals are checked against the remaining balance
// when enforcement is on; the exception variant is the designated override
// and always bypasses the check.
func (e *Engine) DecideRequest(ctx context.Context, identity string, id RequestID, decision Status) (*Result, error) {
	if identity == "" {
		return nil, ErrUnauthenticated
	}
	if err := e.throttle(ctx, identity, "decide"); err != nil {
		return nil, err
	}
	if !decision.ValidDecision() {
		return nil, &ValidationError{Field: "decision", Message: fmt.Sprintf("unknown decision %q", decision)}
	}

	release, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	manager, err := e.isManager(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !manager {
		return nil, fmt.Errorf("%w: only managers may decide requests", ErrUnauthorized)
	}

	row, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &NotFoundError{ID: id}
	}
	if !row.Status.IsOpen() {
		return nil, &InvalidTransitionError{Action: "decide", From: row.Status}
	}

	if decision == StatusApproved && e.cfg.EnforceBalance {
		key := row.RequesterName
		if key == "" {
			key = row.RequesterEmail
		}
		totals, err := e.ledger.ComputeTotals(ctx, key)
		if err != nil {
			return nil, err
		}
		if totals.Remaining.Sub(decimal.NewFromInt(int64(row.BusinessDays))).IsNegative() {
			return nil, &InsufficientBalanceError{Remaining: totals.Remaining, Requested: row.BusinessDays}
		}
	}

	if err := e.store.Update(ctx, id, RequestUpdate{Status: &decision}); err != nil {
		return nil, err
	}
	row.Status = decision
	e.log.Info("request decided",
		zap.Int64("id", int64(id)),
		zap.String("decision", string(decision)),
		zap.String("by", identity))

	var warnings []string
	e.applyStateChange(ctx, row, &warnings)
	e.finishMutation(ctx, &warnings)

	final, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Request: *final, Warnings: warnings}, nil
}

// =============================================================================
// STATE-CHANGE SIDE EFFECTS (approval / rejection / cancellation)
// =============================================================================

// applyStateChange synchronizes the external calendar and notifies the
// requester after a decision or cancellation. Everything here is
// best-effort: failures become warnings, never errors.
func (e *Engine) applyStateChange(ctx context.Context, row *Request, warnings *[]string) {
	if row.Status.IsApproved() {
		title := row.RequesterName + " vacation"
		if row.Status == StatusApprovedException {
			title += " (EXCEPTION)"
		}
		endExclusive := row.EndDate.AddDays(1)

		if e.calendar != nil {
			if row.CalendarEventRef != "" {
				if err := e.calendar.UpdateAllDayEvent(ctx, row.CalendarEventRef, title, row.StartDate, endExclusive); err != nil {
					e.warnExternal(warnings, "calendar update failed", err)
				}
			} else {
				ref, err := e.calendar.CreateAllDayEvent(ctx, title, row.StartDate, endExclusive)
				if err != nil {
					e.warnExternal(warnings, "calendar event creation failed", err)
				} else if err := e.store.Update(ctx, row.ID, RequestUpdate{CalendarEventRef: &ref}); err != nil {
					e.warnExternal(warnings, "calendar reference not persisted", err)
				} else {
					row.CalendarEventRef = ref
				}
			}
		}
		e.send(ctx, composeRequesterDecision(row, row.Status), warnings)
		return
	}

	// Rejected or cancelled: tear down the event if one exists, clear the
	// reference regardless of deletion outcome, then tell the requester.
	if row.Status == StatusRejected || row.Status == StatusCancelled {
		if row.CalendarEventRef != "" {
			if e.calendar != nil {
				if err := e.calendar.DeleteEvent(ctx, row.CalendarEventRef); err != nil {
					e.warnExternal(warnings, "calendar event deletion failed", err)
				}
			}
			cleared := ""
			if err := e.store.Update(ctx, row.ID, RequestUpdate{CalendarEventRef: &cleared}); err != nil {
				e.warnExternal(warnings, "calendar reference not cleared", err)
			} else {
				row.CalendarEventRef = ""
			}
		}
		e.send(ctx, composeRequesterDecision(row, row.Status), warnings)
	}
}

// finishMutation runs the trailing steps common to every mutation: the
// ledger recompute and the cosmetic table re-sort. The row write already
// succeeded, so failures here are reported, not raised.
func (e *Engine) finishMutation(ctx context.Context, warnings *[]string) {
	if err := e.ledger.RecomputeUsedDays(ctx); err != nil {
		e.warnExternal(warnings, "balance recompute failed", err)
	}
	if err := e.store.SortByStartDate(ctx); err != nil {
		e.warnExternal(warnings, "table re-sort failed", err)
	}
}

func (e *Engine) send(ctx context.Context, msg Message, warnings *[]string) {
	if e.mailer == nil || msg.To == "" {
		return
	}
	if d := e.mailer.Send(ctx, msg); !d.Delivered {
		e.warnExternal(warnings, fmt.Sprintf("notification to %s not delivered", msg.To), d.Err)
	}
}

// sendToRoster dispatches a manager notification: first manager in roster
// order is the primary recipient, the rest are copied.
func (e *Engine) sendToRoster(ctx context.Context, msg Message, warnings *[]string) {
	if e.mailer == nil {
		return
	}
	managers, err := e.roster.List(ctx)
	if err != nil {
		e.warnExternal(warnings, "manager roster unavailable", err)
		return
	}
	if len(managers) == 0 {
		return
	}
	msg.To = managers[0]
	msg.CC = managers[1:]
	if d := e.mailer.Send(ctx, msg); !d.Delivered {
		e.warnExternal(warnings, "manager notification not delivered", d.Err)
	}
}

func (e *Engine) warnExternal(warnings *[]string, msg string, err error) {
	e.log.Warn(msg, zap.Error(err))
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	*warnings = append(*warnings, msg)
}

// Reconcile re-runs the ledger recompute and table sort under the engine
// lock. The cron scheduler calls this periodically as a drift sweep.
func (e *Engine) Reconcile(ctx context.Context) error {
	release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := e.ledger.RecomputeUsedDays(ctx); err != nil {
		return err
	}
	return e.store.SortByStartDate(ctx)
}
