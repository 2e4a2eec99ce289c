/*
Package calendar provides adapters for the shared team calendar.

PURPOSE:
  Implements vacation.CalendarAdapter three ways:
    - Memory: in-process map, for tests and calendar-less deployments
    - ICS:    a local iCalendar file served to subscribers
    - Google: a Google Calendar via the official API

CONVENTIONS:
  All events are all-day. Callers pass the end date EXCLUSIVE: a vacation
  covering Mar 3..Mar 7 inclusive is stored as an event spanning
  Mar 3..Mar 8, matching how iCalendar and Google Calendar model all-day
  ranges.

SEE ALSO:
  - vacation/store.go: CalendarAdapter interface
  - vacation/engine.go: where event refs are attached to requests
*/
package calendar

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/warp/vacation-engine/vacation"
)

// Event is the adapter-internal all-day event record.
type Event struct {
	ID           string
	Title        string
	Start        vacation.Day
	EndExclusive vacation.Day
}

// =============================================================================
// MEMORY ADAPTER
// =============================================================================

// Memory is an in-process calendar adapter. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events map[string]Event
}

// NewMemory creates an empty in-memory calendar.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]Event)}
}

func (m *Memory) CreateAllDayEvent(_ context.Context, title string, start, endExclusive vacation.Day) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.events[id] = Event{ID: id, Title: title, Start: start, EndExclusive: endExclusive}
	return id, nil
}

func (m *Memory) UpdateAllDayEvent(_ context.Context, eventID, title string, start, endExclusive vacation.Day) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("calendar event %q not found", eventID)
	}
	m.events[eventID] = Event{ID: eventID, Title: title, Start: start, EndExclusive: endExclusive}
	return nil
}

func (m *Memory) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.events, eventID)
	return nil
}

func (m *Memory) FindEvent(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.events[eventID]
	return ok, nil
}

// Events returns a snapshot of all events. Test helper.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	return out
}
