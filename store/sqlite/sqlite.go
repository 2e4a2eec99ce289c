/*
Package sqlite provides the SQLite-backed table store.

PURPOSE:
  Implements the persistence interfaces the engine consumes
  (vacation.RequestStore, vacation.EmployeeDirectory,
  vacation.ManagerRoster) on one database file. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  requests:   One row per vacation request. AUTOINCREMENT keeps ids
              monotonically increasing and never reused.
  employees:  Roster rows with allowance and recomputed used-days.
  managers:   Ordered list of approval-authority emails.

CONCURRENCY:
  The engine serializes mutations behind its own lock; WAL mode keeps
  readers from blocking on the single writer.

USAGE:
  store, err := sqlite.New("./vacation.db")
  if err != nil { ... }
  defer store.Close()

SEE ALSO:
  - vacation/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/vacation-engine/vacation"
)

// Store implements the table-store interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Vacation requests. AUTOINCREMENT: ids are monotonic, never reused.
	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submitted_at TEXT NOT NULL,
		requester_email TEXT NOT NULL,
		requester_name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		business_days INTEGER NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		calendar_event_ref TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_requests_requester
		ON requests(requester_email);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_start
		ON requests(start_date);

	-- Employee roster. used_days is derived, rewritten by the ledger.
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		allowance_total TEXT NOT NULL DEFAULT '0',
		used_days TEXT NOT NULL DEFAULT '0',
		remaining_override TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_employees_email
		ON employees(email);

	-- Manager roster, in notification order.
	CREATE TABLE IF NOT EXISTS managers (
		position INTEGER PRIMARY KEY,
		email TEXT NOT NULL UNIQUE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// Append inserts a request row and returns its assigned id.
func (s *Store) Append(ctx context.Context, req vacation.Request) (vacation.RequestID, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests
			(submitted_at, requester_email, requester_name, start_date, end_date, status, business_days, note, calendar_event_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.SubmittedAt.UTC().Format(time.RFC3339),
		req.RequesterEmail,
		req.RequesterName,
		req.StartDate.String(),
		req.EndDate.String(),
		string(req.Status),
		req.BusinessDays,
		req.Note,
		req.CalendarEventRef,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return vacation.RequestID(id), nil
}

const requestColumns = `id, submitted_at, requester_email, requester_name, start_date, end_date, status, business_days, note, calendar_event_ref`

func scanRequest(row interface{ Scan(...any) error }) (vacation.Request, error) {
	var (
		r           vacation.Request
		submittedAt string
		start, end  string
		status      string
	)
	err := row.Scan(&r.ID, &submittedAt, &r.RequesterEmail, &r.RequesterName,
		&start, &end, &status, &r.BusinessDays, &r.Note, &r.CalendarEventRef)
	if err != nil {
		return r, err
	}
	if t, perr := time.Parse(time.RFC3339, submittedAt); perr == nil {
		r.SubmittedAt = t
	}
	if d, perr := vacation.ParseDay(start); perr == nil {
		r.StartDate = d
	}
	if d, perr := vacation.ParseDay(end); perr == nil {
		r.EndDate = d
	}
	r.Status = vacation.Status(status)
	return r, nil
}

func (s *Store) Get(ctx context.Context, id vacation.RequestID) (*vacation.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, int64(id))
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", id, err)
	}
	return &req, nil
}

// All returns every request, ordered by start date ascending then id.
func (s *Store) All(ctx context.Context) ([]vacation.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests ORDER BY start_date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []vacation.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields of upd to the row.
func (s *Store) Update(ctx context.Context, id vacation.RequestID, upd vacation.RequestUpdate) error {
	var sets []string
	var args []any

	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.StartDate != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, upd.StartDate.String())
	}
	if upd.EndDate != nil {
		sets = append(sets, "end_date = ?")
		args = append(args, upd.EndDate.String())
	}
	if upd.BusinessDays != nil {
		sets = append(sets, "business_days = ?")
		args = append(args, *upd.BusinessDays)
	}
	if upd.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *upd.Note)
	}
	if upd.CalendarEventRef != nil {
		sets = append(sets, "calendar_event_ref = ?")
		args = append(args, *upd.CalendarEventRef)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, int64(id))
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update request %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &vacation.NotFoundError{ID: id}
	}
	return nil
}

// SortByStartDate is a no-op here: All already returns rows ordered by
// start date, so there is no physical order to materialize.
func (s *Store) SortByStartDate(context.Context) error { return nil }

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

const employeeColumns = `id, name, email, team, allowance_total, used_days, remaining_override`

func scanEmployee(row interface{ Scan(...any) error }) (vacation.Employee, error) {
	var (
		e                 vacation.Employee
		allowance, used   string
		remainingOverride sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Team, &allowance, &used, &remainingOverride); err != nil {
		return e, err
	}
	e.AllowanceTotal, _ = decimal.NewFromString(allowance)
	e.UsedDays, _ = decimal.NewFromString(used)
	if remainingOverride.Valid {
		if d, err := decimal.NewFromString(remainingOverride.String); err == nil {
			e.RemainingOverride = &d
		}
	}
	return e, nil
}

// FindByNameOrEmail matches on trimmed, case-insensitive name or email.
// Unknown keys return (nil, nil).
func (s *Store) FindByNameOrEmail(ctx context.Context, key string) (*vacation.Employee, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	row := s.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees
		 WHERE LOWER(TRIM(name)) = ? OR LOWER(TRIM(email)) = ?`, k, k)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up employee %q: %w", key, err)
	}
	return &emp, nil
}

func (s *Store) Employees(ctx context.Context) ([]vacation.Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []vacation.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// SetUsedDays writes recomputed used-day totals in one transaction, keyed
// by trimmed employee name.
func (s *Store) SetUsedDays(ctx context.Context, usedByName map[string]decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE employees SET used_days = ? WHERE TRIM(name) = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for name, used := range usedByName {
		if _, err := stmt.ExecContext(ctx, used.String(), name); err != nil {
			return fmt.Errorf("failed to write used days for %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// SaveEmployee inserts or replaces a roster row. used_days is only written
// on insert; the ledger owns it afterwards.
func (s *Store) SaveEmployee(ctx context.Context, emp vacation.Employee) error {
	var override any
	if emp.RemainingOverride != nil {
		override = emp.RemainingOverride.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, team, allowance_total, used_days, remaining_override)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			team = excluded.team,
			allowance_total = excluded.allowance_total,
			remaining_override = excluded.remaining_override`,
		emp.ID, emp.Name, emp.Email, emp.Team,
		emp.AllowanceTotal.String(), emp.UsedDays.String(), override)
	if err != nil {
		return fmt.Errorf("failed to save employee %q: %w", emp.Name, err)
	}
	return nil
}

// =============================================================================
// MANAGER ROSTER
// =============================================================================

// List returns manager emails in roster order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email FROM managers ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// SetManagers replaces the roster, preserving the given order.
func (s *Store) SetManagers(ctx context.Context, emails ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM managers`); err != nil {
		return err
	}
	for i, email := range emails {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO managers (position, email) VALUES (?, ?)`, i, email); err != nil {
			return err
		}
	}
	return tx.Commit()
}
