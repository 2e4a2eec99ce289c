/*
conflict.go - Overlap detection against the request table

PURPOSE:
  Two independent checks, both full scans of the request table. Table
  sizes are small; no index is maintained.

  Same-employee overlap: another active request by the same requester whose
  range intersects the candidate range. Blocking - this is a duplicate.

  Team overlap: an active request by a DIFFERENT employee on the SAME team.
  Advisory - the request degrades to NeedsReview so a manager can weigh the
  coverage risk, it is never rejected outright.

SEE ALSO:
  - engine.go: Consults both checks during row processing
  - dates.go: RangesOverlap
*/
package vacation

import (
	"context"
	"strings"
)

// ConflictDetector scans the request table for overlapping date ranges.
type ConflictDetector struct {
	Store     RequestStore
	Directory EmployeeDirectory
}

// SelfOverlap describes a same-employee duplicate.
type SelfOverlap struct {
	RequestID RequestID
	Status    Status
	Start     Day
	End       Day
}

// TeamOverlap describes a coverage conflict with a teammate.
type TeamOverlap struct {
	EmployeeName string
	Status       Status
	Team         string
	Start        Day
	End          Day
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FindSelfOverlap returns the first active request by the same requester
// that intersects [start, end], or nil. The request identified by excludeID
// is skipped so edits do not collide with themselves. Active means Pending,
// NeedsReview, or either approved state.
func (d *ConflictDetector) FindSelfOverlap(ctx context.Context, requesterEmail string, start, end Day, excludeID RequestID) (*SelfOverlap, error) {
	rows, err := d.Store.All(ctx)
	if err != nil {
		return nil, err
	}

	key := normalizeKey(requesterEmail)
	for _, r := range rows {
		if r.ID == excludeID {
			continue
		}
		if normalizeKey(r.RequesterEmail) != key {
			continue
		}
		if !r.Status.IsActive() {
			continue
		}
		if RangesOverlap(start, end, r.StartDate, r.EndDate) {
			// First match wins.
			return &SelfOverlap{RequestID: r.ID, Status: r.Status, Start: r.StartDate, End: r.EndDate}, nil
		}
	}
	return nil, nil
}

// FindTeamOverlap returns the first Pending or approved request by a
// different employee on the requester's team that intersects [start, end],
// or nil. Returns nil without scanning when the requester is not in the
// directory or has no team.
func (d *ConflictDetector) FindTeamOverlap(ctx context.Context, requesterEmail string, start, end Day, excludeID RequestID) (*TeamOverlap, error) {
	requester, err := d.Directory.FindByNameOrEmail(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}
	if requester == nil || strings.TrimSpace(requester.Team) == "" {
		return nil, nil
	}

	rows, err := d.Store.All(ctx)
	if err != nil {
		return nil, err
	}

	selfKey := normalizeKey(requesterEmail)
	teammates := map[string]*Employee{} // per-call lookup cache

	for _, r := range rows {
		if r.ID == excludeID {
			continue
		}
		otherKey := normalizeKey(r.RequesterEmail)
		if otherKey == selfKey {
			continue
		}
		if r.Status != StatusPending && !r.Status.IsApproved() {
			continue
		}
		if !RangesOverlap(start, end, r.StartDate, r.EndDate) {
			continue
		}

		other, ok := teammates[otherKey]
		if !ok {
			other, err = d.Directory.FindByNameOrEmail(ctx, r.RequesterEmail)
			if err != nil {
				return nil, err
			}
			teammates[otherKey] = other
		}
		if other == nil || other.Team != requester.Team {
			continue
		}

		name := r.RequesterName
		if name == "" {
			name = other.Name
		}
		return &TeamOverlap{
			EmployeeName: name,
			Status:       r.Status,
			Team:         requester.Team,
			Start:        r.StartDate,
			End:          r.EndDate,
		}, nil
	}
	return nil, nil
}
