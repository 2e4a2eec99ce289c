/*
ledger.go - Derived balance computation

PURPOSE:
  Computes each employee's total/used/remaining allowance. Used days are a
  materialized recompute: after every state-changing mutation the ledger
  rescans all approved requests and writes the aggregates back in one
  batch. Recomputing is O(n) but idempotent and immune to drift from
  partial failures - do not replace with incremental deltas without also
  adding reconciliation.

JOIN KEYS:
  Lookup (ComputeTotals) accepts name or email, trimmed and
  case-insensitive. The recompute joins requests to employees by trimmed
  display name, matching how the roster is keyed.

SEE ALSO:
  - engine.go: Invokes RecomputeUsedDays after every mutation
  - store.go: EmployeeDirectory.SetUsedDays
*/
package vacation

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceLedger derives allowance totals from the request table.
type BalanceLedger struct {
	Store     RequestStore
	Directory EmployeeDirectory
	Log       *zap.Logger
}

// ComputeTotals returns {total, used, remaining} for the employee matched
// by name or email. Unknown employees yield all-zero totals rather than an
// error: identity resolution is owned by an external directory, so missing
// rows are tolerated here.
func (l *BalanceLedger) ComputeTotals(ctx context.Context, employeeKey string) (BalanceTotals, error) {
	emp, err := l.Directory.FindByNameOrEmail(ctx, employeeKey)
	if err != nil {
		return BalanceTotals{}, err
	}
	if emp == nil {
		return ZeroTotals(), nil
	}

	remaining := emp.AllowanceTotal.Sub(emp.UsedDays)
	if emp.RemainingOverride != nil {
		remaining = *emp.RemainingOverride
	}
	return BalanceTotals{
		Total:     emp.AllowanceTotal,
		Used:      emp.UsedDays,
		Remaining: remaining,
	}, nil
}

// RecomputeUsedDays rebuilds every employee's used-day aggregate from the
// request table: one full pass, summing BusinessDays over requests in an
// approved state (the exception variant included), keyed by trimmed
// requester name. Employees with no approved requests are reset to zero.
// The whole result is written back in one batch.
func (l *BalanceLedger) RecomputeUsedDays(ctx context.Context) error {
	employees, err := l.Directory.Employees(ctx)
	if err != nil {
		return err
	}

	used := make(map[string]decimal.Decimal, len(employees))
	for _, emp := range employees {
		used[strings.TrimSpace(emp.Name)] = decimal.Zero
	}

	rows, err := l.Store.All(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !r.Status.IsApproved() {
			continue
		}
		name := strings.TrimSpace(r.RequesterName)
		if name == "" {
			continue
		}
		// Requests by names missing from the roster are accumulated too:
		// the directory decides whether to persist them.
		used[name] = used[name].Add(decimal.NewFromInt(int64(r.BusinessDays)))
	}

	if err := l.Directory.SetUsedDays(ctx, used); err != nil {
		return err
	}
	if l.Log != nil {
		l.Log.Debug("ledger recomputed", zap.Int("employees", len(used)), zap.Int("requests", len(rows)))
	}
	return nil
}
