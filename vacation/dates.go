package vacation

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar-day abstraction (requests are whole-day ranges)
// =============================================================================

// Day is a calendar date normalized to UTC midnight. The same calendar date
// always normalizes identically regardless of the instant or zone it was
// derived from, so comparisons never drift across timezones.
type Day struct {
	Time time.Time
}

// NewDay constructs a Day from calendar components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf normalizes an instant to its calendar day, discarding time-of-day
// and timezone offset.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day.
func Today() Day {
	return DayOf(time.Now())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DayOf(t), nil
}

func (d Day) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Day) Before(other Day) bool        { return d.normalize().Before(other.normalize()) }
func (d Day) After(other Day) bool         { return d.normalize().After(other.normalize()) }
func (d Day) Equal(other Day) bool         { return d.normalize().Equal(other.normalize()) }
func (d Day) BeforeOrEqual(other Day) bool { return d.Before(other) || d.Equal(other) }
func (d Day) AfterOrEqual(other Day) bool  { return d.After(other) || d.Equal(other) }

// Arithmetic
func (d Day) AddDays(n int) Day { return DayOf(d.Time.AddDate(0, 0, n)) }

// Properties
func (d Day) Weekday() time.Weekday { return d.normalize().Weekday() }
func (d Day) IsZero() bool          { return d.Time.IsZero() }
func (d Day) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Day) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// BUSINESS-DAY AND OVERLAP HELPERS
// =============================================================================

// CountBusinessDays counts weekdays (Mon-Fri) in the closed range
// [start, end]. Returns 0 when end precedes start. Weekends are the only
// exclusion; there is no holiday calendar.
func CountBusinessDays(start, end Day) int {
	if end.Before(start) {
		return 0
	}
	count := 0
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if !d.IsWeekend() {
			count++
		}
	}
	return count
}

// RangesOverlap reports whether the closed ranges [s0, e0] and [s1, e1]
// intersect. Boundaries are inclusive: ranges that merely touch overlap.
func RangesOverlap(s0, e0, s1, e1 Day) bool {
	return s0.BeforeOrEqual(e1) && s1.BeforeOrEqual(e0)
}
