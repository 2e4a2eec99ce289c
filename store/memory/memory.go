// Package memory provides in-memory store implementations for tests and
// development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// MEMORY STORE - RequestStore + EmployeeDirectory + ManagerRoster
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	requests  []vacation.Request
	nextID    vacation.RequestID
	employees []vacation.Employee
	managers  []string
}

func New() *Store {
	return &Store{nextID: 1}
}

// -----------------------------------------------------------------------------
// RequestStore
// -----------------------------------------------------------------------------

// Append inserts a row and assigns the next id. IDs are monotonically
// increasing and never reused, matching the persistent store.
func (s *Store) Append(_ context.Context, req vacation.Request) (vacation.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.ID = s.nextID
	s.nextID++
	s.requests = append(s.requests, req)
	return req.ID, nil
}

func (s *Store) Get(_ context.Context, id vacation.RequestID) (*vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.requests {
		if s.requests[i].ID == id {
			row := s.requests[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (s *Store) All(_ context.Context) ([]vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]vacation.Request, len(s.requests))
	copy(out, s.requests)
	return out, nil
}

func (s *Store) Update(_ context.Context, id vacation.RequestID, upd vacation.RequestUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.requests {
		if s.requests[i].ID != id {
			continue
		}
		r := &s.requests[i]
		if upd.Status != nil {
			r.Status = *upd.Status
		}
		if upd.StartDate != nil {
			r.StartDate = *upd.StartDate
		}
		if upd.EndDate != nil {
			r.EndDate = *upd.EndDate
		}
		if upd.BusinessDays != nil {
			r.BusinessDays = *upd.BusinessDays
		}
		if upd.Note != nil {
			r.Note = *upd.Note
		}
		if upd.CalendarEventRef != nil {
			r.CalendarEventRef = *upd.CalendarEventRef
		}
		return nil
	}
	return &vacation.NotFoundError{ID: id}
}

// SortByStartDate stably orders the backing slice by ascending start date.
func (s *Store) SortByStartDate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.requests, func(i, j int) bool {
		return s.requests[i].StartDate.Before(s.requests[j].StartDate)
	})
	return nil
}

// -----------------------------------------------------------------------------
// EmployeeDirectory
// -----------------------------------------------------------------------------

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Store) FindByNameOrEmail(_ context.Context, lookup string) (*vacation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key(lookup)
	for i := range s.employees {
		if key(s.employees[i].Name) == k || key(s.employees[i].Email) == k {
			emp := s.employees[i]
			return &emp, nil
		}
	}
	return nil, nil
}

// Employees implements vacation.EmployeeDirectory.
func (s *Store) Employees(_ context.Context) ([]vacation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]vacation.Employee, len(s.employees))
	copy(out, s.employees)
	return out, nil
}

func (s *Store) SetUsedDays(_ context.Context, usedByName map[string]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.employees {
		if used, ok := usedByName[strings.TrimSpace(s.employees[i].Name)]; ok {
			s.employees[i].UsedDays = used
		}
	}
	return nil
}

// AddEmployee seeds a directory row.
func (s *Store) AddEmployee(emp vacation.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = append(s.employees, emp)
}

// -----------------------------------------------------------------------------
// ManagerRoster
// -----------------------------------------------------------------------------

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.managers))
	copy(out, s.managers)
	return out, nil
}

// SetManagers replaces the roster, preserving order.
func (s *Store) SetManagers(emails ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers = append([]string(nil), emails...)
}
