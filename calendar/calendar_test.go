package calendar_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/calendar"
	"github.com/warp/vacation-engine/vacation"
)

func day(y int, m time.Month, d int) vacation.Day {
	return vacation.NewDay(y, m, d)
}

// =============================================================================
// MEMORY ADAPTER
// =============================================================================

func TestMemory_EventLifecycle(t *testing.T) {
	cal := calendar.NewMemory()
	ctx := context.Background()

	id, err := cal.CreateAllDayEvent(ctx, "Alice Archer vacation",
		day(2025, time.March, 3), day(2025, time.March, 8))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := cal.FindEvent(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, cal.UpdateAllDayEvent(ctx, id, "Alice Archer vacation",
		day(2025, time.March, 10), day(2025, time.March, 12)))
	events := cal.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Start.Equal(day(2025, time.March, 10)))

	require.NoError(t, cal.DeleteEvent(ctx, id))
	found, err = cal.FindEvent(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

// =============================================================================
// ICS FILE ADAPTER
// =============================================================================

func newICSFixture(t *testing.T) (*calendar.ICSFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vacation.ics")
	return calendar.NewICSFile(path), path
}

func TestICSFile_CreatePersistsAllDayEvent(t *testing.T) {
	// GIVEN: No calendar file exists yet
	// WHEN: An event is created
	// THEN: The file appears and carries date-valued (all-day) bounds
	cal, path := newICSFixture(t)
	ctx := context.Background()

	id, err := cal.CreateAllDayEvent(ctx, "Alice Archer vacation",
		day(2025, time.March, 3), day(2025, time.March, 8))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "BEGIN:VEVENT")
	assert.Contains(t, content, "SUMMARY:Alice Archer vacation")
	assert.Contains(t, content, id)
	assert.Contains(t, content, "20250303")
	assert.Contains(t, content, "20250308")
	assert.NotContains(t, content, "20250303T", "all-day events carry no time component")
}

func TestICSFile_FindSurvivesReopen(t *testing.T) {
	// GIVEN: An event written by one adapter instance
	// WHEN: A fresh instance opens the same file
	// THEN: The event is found
	cal, path := newICSFixture(t)
	ctx := context.Background()

	id, err := cal.CreateAllDayEvent(ctx, "Bob Breeze vacation",
		day(2025, time.June, 2), day(2025, time.June, 7))
	require.NoError(t, err)

	reopened := calendar.NewICSFile(path)
	found, err := reopened.FindEvent(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestICSFile_UpdateRewritesEvent(t *testing.T) {
	cal, path := newICSFixture(t)
	ctx := context.Background()

	id, err := cal.CreateAllDayEvent(ctx, "Alice Archer vacation",
		day(2025, time.March, 3), day(2025, time.March, 8))
	require.NoError(t, err)

	require.NoError(t, cal.UpdateAllDayEvent(ctx, id, "Alice Archer vacation (EXCEPTION)",
		day(2025, time.March, 10), day(2025, time.March, 15)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "EXCEPTION")
	assert.Contains(t, content, "20250310")
	assert.Equal(t, 1, strings.Count(content, "BEGIN:VEVENT"), "update must not duplicate the event")
}

func TestICSFile_UpdateUnknownEventFails(t *testing.T) {
	cal, _ := newICSFixture(t)
	err := cal.UpdateAllDayEvent(context.Background(), "nope", "x",
		day(2025, time.March, 3), day(2025, time.March, 4))
	assert.Error(t, err)
}

func TestICSFile_DeleteRemovesOnlyTargetEvent(t *testing.T) {
	cal, path := newICSFixture(t)
	ctx := context.Background()

	keep, err := cal.CreateAllDayEvent(ctx, "Alice Archer vacation",
		day(2025, time.March, 3), day(2025, time.March, 8))
	require.NoError(t, err)
	drop, err := cal.CreateAllDayEvent(ctx, "Bob Breeze vacation",
		day(2025, time.June, 2), day(2025, time.June, 7))
	require.NoError(t, err)

	require.NoError(t, cal.DeleteEvent(ctx, drop))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), keep)
	assert.NotContains(t, string(data), drop)

	// Deleting an already-deleted event is not an error.
	assert.NoError(t, cal.DeleteEvent(ctx, drop))
}
