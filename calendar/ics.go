package calendar

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/warp/vacation-engine/vacation"
)

// ICSFile is a calendar adapter backed by an iCalendar file on disk. The
// file can be served to subscribers directly; every mutation rewrites it
// atomically via a temp file.
type ICSFile struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewICSFile creates an adapter writing to path. The file is created on
// first mutation if it does not exist.
func NewICSFile(path string) *ICSFile {
	return &ICSFile{path: path, now: time.Now}
}

func (f *ICSFile) load() (*ics.Calendar, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		cal := ics.NewCalendar()
		cal.SetMethod(ics.MethodPublish)
		cal.SetProductId("-//vacation-engine//EN")
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar file: %w", err)
	}
	return cal, nil
}

func (f *ICSFile) save(cal *ics.Calendar) error {
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(cal.Serialize()), 0o644); err != nil {
		return fmt.Errorf("failed to write calendar file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace calendar file: %w", err)
	}
	return nil
}

func setAllDay(ev *ics.VEvent, title string, start, endExclusive vacation.Day, now time.Time) {
	ev.SetSummary(title)
	ev.SetAllDayStartAt(start.Time)
	ev.SetAllDayEndAt(endExclusive.Time)
	ev.SetDtStampTime(now.UTC())
}

func (f *ICSFile) CreateAllDayEvent(_ context.Context, title string, start, endExclusive vacation.Day) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	ev := cal.AddEvent(id)
	setAllDay(ev, title, start, endExclusive, f.now())

	if err := f.save(cal); err != nil {
		return "", err
	}
	return id, nil
}

func (f *ICSFile) UpdateAllDayEvent(_ context.Context, eventID, title string, start, endExclusive vacation.Day) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return err
	}

	for _, ev := range cal.Events() {
		if ev.Id() == eventID {
			setAllDay(ev, title, start, endExclusive, f.now())
			return f.save(cal)
		}
	}
	return fmt.Errorf("calendar event %q not found", eventID)
}

func (f *ICSFile) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return err
	}

	// The library has no removal helper; rebuild the component list
	// without the matching VEVENT.
	kept := cal.Components[:0]
	removed := false
	for _, c := range cal.Components {
		if ev, ok := c.(*ics.VEvent); ok && ev.Id() == eventID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	cal.Components = kept

	if !removed {
		// Already gone; deleting twice is fine.
		return nil
	}
	return f.save(cal)
}

func (f *ICSFile) FindEvent(_ context.Context, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cal, err := f.load()
	if err != nil {
		return false, err
	}
	for _, ev := range cal.Events() {
		if ev.Id() == eventID {
			return true, nil
		}
	}
	return false, nil
}
