package repository

import (
	"context"
	"time"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// EligibilityQuery selects staff who may take one (date, session).
type EligibilityQuery struct {
	Date      time.Time
	Session   domain.Session
	Policy    domain.ConflictPolicy
	ExcludeID string
}

// RosterRepository is the authoritative store of staff records.
// Every mutation is atomic per record; driver failures surface as STORE_UNAVAILABLE.
type RosterRepository interface {
	Get(ctx context.Context, id string) (*domain.StaffRecord, error)
	// List returns the full roster ordered by Position.
	List(ctx context.Context) ([]domain.StaffRecord, error)
	FindEligible(ctx context.Context, q EligibilityQuery) ([]domain.StaffRecord, error)
	// Commit appends one duty after re-checking capacity, availability and conflicts.
	Commit(ctx context.Context, id string, duty domain.DutyAssignment, policy domain.ConflictPolicy) error
	// Append adds all duties or none.
	Append(ctx context.Context, id string, duties []domain.DutyAssignment, policy domain.ConflictPolicy) error
	// Clear empties duties and zeroes the counter. Unavailable dates are kept.
	Clear(ctx context.Context, id string) error
	// Reset empties duties and unavailable dates.
	Reset(ctx context.Context, id string) error
	ResetAll(ctx context.Context) error
	// ClearPastDuties drops duties and unavailable dates strictly before cutoff.
	// It returns the number of duties removed.
	ClearPastDuties(ctx context.Context, cutoff time.Time) (int, error)
	// Upsert creates or replaces name and capacity, wiping duties and unavailability.
	Upsert(ctx context.Context, records []domain.StaffRecord) error
	SetUnavailable(ctx context.Context, id string, days []time.Time) error
	AddUnavailable(ctx context.Context, id string, days []time.Time) error
	Ping(ctx context.Context) error
}

func staffNotFound(id string) error {
	return apperrors.NewNotFound("staff", map[string]any{"staff_id": id})
}

// checkCommit explains why rec cannot take duty, or returns nil.
func checkCommit(rec *domain.StaffRecord, duty domain.DutyAssignment, policy domain.ConflictPolicy) error {
	details := map[string]any{"staff_id": rec.ID, "duty": duty.Label()}
	if !rec.HasCapacity() {
		details["max_duties"] = rec.MaxDuties
		details["assigned_duties"] = rec.AssignedDuties
		return apperrors.NewCapacityExceeded("staff has no remaining capacity", details)
	}
	if rec.IsUnavailable(duty.Date) {
		return apperrors.NewConflict("staff is unavailable on that date", details)
	}
	if rec.Conflicts(duty.Date, duty.Session, policy) {
		return apperrors.NewConflict("staff already has a duty on that date", details)
	}
	return nil
}

// checkAppend validates a whole group of duties against rec before any write.
func checkAppend(rec *domain.StaffRecord, duties []domain.DutyAssignment, policy domain.ConflictPolicy) error {
	if len(duties) > rec.Headroom() {
		return apperrors.NewCapacityExceeded("target cannot absorb the duties", map[string]any{
			"staff_id":  rec.ID,
			"headroom":  max(rec.Headroom(), 0),
			"requested": len(duties),
		})
	}
	probe := rec.Clone()
	for _, duty := range duties {
		if probe.IsUnavailable(duty.Date) {
			return apperrors.NewConflict("target is unavailable on a transferred date",
				map[string]any{"staff_id": rec.ID, "duty": duty.Label()})
		}
		if probe.Conflicts(duty.Date, duty.Session, policy) {
			return apperrors.NewConflict("target already has a duty on a transferred date",
				map[string]any{"staff_id": rec.ID, "duty": duty.Label()})
		}
		probe.AddDuty(duty)
	}
	return nil
}

// prunePast removes entries dated before cutoff and reports how many duties went.
func prunePast(rec *domain.StaffRecord, cutoff time.Time) int {
	cutoff = dates.Anchor(cutoff)
	kept := rec.Duties[:0:0]
	for _, d := range rec.Duties {
		if !d.Date.Before(cutoff) {
			kept = append(kept, d)
		}
	}
	removed := len(rec.Duties) - len(kept)
	rec.Duties = kept
	rec.AssignedDuties = len(kept)

	days := rec.UnavailableDates[:0:0]
	for _, d := range rec.UnavailableDates {
		if !d.Before(cutoff) {
			days = append(days, d)
		}
	}
	rec.UnavailableDates = days
	return removed
}

// mergeDays returns the set union of existing and extra, by calendar day.
func mergeDays(existing, extra []time.Time) []time.Time {
	out := make([]time.Time, 0, len(existing)+len(extra))
	seen := make(map[time.Time]struct{}, len(existing)+len(extra))
	for _, group := range [][]time.Time{existing, extra} {
		for _, d := range group {
			d = dates.Anchor(d)
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
