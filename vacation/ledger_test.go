package vacation_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/store/memory"
	"github.com/warp/vacation-engine/vacation"
)

func newLedgerFixture(t *testing.T) (*vacation.BalanceLedger, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.AddEmployee(vacation.Employee{
		ID: "e1", Name: "Alice Archer", Email: "alice@example.com", Team: "Platform",
		AllowanceTotal: decimal.NewFromInt(25),
	})
	store.AddEmployee(vacation.Employee{
		ID: "e2", Name: "Bob Breeze", Email: "bob@example.com", Team: "Platform",
		AllowanceTotal: decimal.NewFromInt(20),
	})
	return &vacation.BalanceLedger{Store: store, Directory: store}, store
}

func approvedDays(t *testing.T, store *memory.Store, email, name string, status vacation.Status, start, end vacation.Day) {
	t.Helper()
	_, err := store.Append(context.Background(), vacation.Request{
		SubmittedAt:    time.Now(),
		RequesterEmail: email,
		RequesterName:  name,
		StartDate:      start,
		EndDate:        end,
		Status:         status,
		BusinessDays:   vacation.CountBusinessDays(start, end),
	})
	require.NoError(t, err)
}

// =============================================================================
// TOTALS
// =============================================================================

func TestComputeTotals_ByNameAndByEmail(t *testing.T) {
	ledger, _ := newLedgerFixture(t)

	byName, err := ledger.ComputeTotals(context.Background(), "Alice Archer")
	require.NoError(t, err)
	byEmail, err := ledger.ComputeTotals(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.True(t, byName.Total.Equal(decimal.NewFromInt(25)))
	assert.True(t, byName.Remaining.Equal(decimal.NewFromInt(25)))
	assert.True(t, byEmail.Total.Equal(byName.Total))
}

func TestComputeTotals_UnknownEmployeeIsZero(t *testing.T) {
	// GIVEN: A key matching nobody in the directory
	// THEN: All-zero totals, not an error
	ledger, _ := newLedgerFixture(t)

	totals, err := ledger.ComputeTotals(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
	assert.True(t, totals.Used.IsZero())
	assert.True(t, totals.Remaining.IsZero())
}

func TestComputeTotals_OverrideWins(t *testing.T) {
	// GIVEN: An employee with an HR-set remaining override
	// THEN: The override is authoritative over total minus used
	ledger, store := newLedgerFixture(t)
	override := decimal.NewFromInt(3)
	store.AddEmployee(vacation.Employee{
		ID: "e9", Name: "Dana Dunes", Email: "dana@example.com",
		AllowanceTotal:    decimal.NewFromInt(25),
		UsedDays:          decimal.NewFromInt(5),
		RemainingOverride: &override,
	})

	totals, err := ledger.ComputeTotals(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.True(t, totals.Remaining.Equal(override))
}

// =============================================================================
// RECOMPUTE
// =============================================================================

func TestRecomputeUsedDays_SumsApprovedOnly(t *testing.T) {
	// GIVEN: Alice has one approved week (5 days), one exception-approved
	// friday (1 day), and one pending week
	// WHEN: Recomputing
	// THEN: Used = 6; pending rows do not consume balance
	ledger, store := newLedgerFixture(t)
	approvedDays(t, store, "alice@example.com", "Alice Archer",
		vacation.StatusApproved, day(2025, time.March, 3), day(2025, time.March, 7))
	approvedDays(t, store, "alice@example.com", "Alice Archer",
		vacation.StatusApprovedException, day(2025, time.March, 14), day(2025, time.March, 14))
	approvedDays(t, store, "alice@example.com", "Alice Archer",
		vacation.StatusPending, day(2025, time.April, 7), day(2025, time.April, 11))

	require.NoError(t, ledger.RecomputeUsedDays(context.Background()))

	totals, err := ledger.ComputeTotals(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, totals.Used.Equal(decimal.NewFromInt(6)), "used = %s", totals.Used)
	assert.True(t, totals.Remaining.Equal(decimal.NewFromInt(19)))
}

func TestRecomputeUsedDays_ResetsToZeroWhenNothingApproved(t *testing.T) {
	// GIVEN: Bob's only approved request later became cancelled
	// WHEN: Recomputing
	// THEN: His used days return to zero; the recompute is a full rebuild,
	// not an increment
	ledger, store := newLedgerFixture(t)
	approvedDays(t, store, "bob@example.com", "Bob Breeze",
		vacation.StatusApproved, day(2025, time.March, 3), day(2025, time.March, 7))
	require.NoError(t, ledger.RecomputeUsedDays(context.Background()))

	st := vacation.StatusCancelled
	require.NoError(t, store.Update(context.Background(), 1, vacation.RequestUpdate{Status: &st}))
	require.NoError(t, ledger.RecomputeUsedDays(context.Background()))

	totals, err := ledger.ComputeTotals(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.True(t, totals.Used.IsZero())
}

func TestRecomputeUsedDays_KeyedByTrimmedName(t *testing.T) {
	// GIVEN: A request row whose name carries stray whitespace
	// THEN: It still joins to the roster entry
	ledger, store := newLedgerFixture(t)
	approvedDays(t, store, "alice@example.com", "  Alice Archer ",
		vacation.StatusApproved, day(2025, time.March, 3), day(2025, time.March, 3))

	require.NoError(t, ledger.RecomputeUsedDays(context.Background()))

	totals, err := ledger.ComputeTotals(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, totals.Used.Equal(decimal.NewFromInt(1)))
}
