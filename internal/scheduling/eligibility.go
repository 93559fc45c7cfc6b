// Package scheduling holds the pure parts of duty allocation: who may take a
// slot, and in which order candidates are offered.
package scheduling

import (
	"cmp"
	"slices"
	"time"

	"github.com/examcell/duty-roster/internal/domain"
)

// Eligible reports whether rec may legally receive (date, session).
// Capacity is judged on the record as given, which for a batch is the
// snapshot value before this slot's picks.
func Eligible(rec *domain.StaffRecord, date time.Time, session domain.Session, policy domain.ConflictPolicy) bool {
	if !rec.HasCapacity() {
		return false
	}
	if rec.IsUnavailable(date) {
		return false
	}
	return !rec.Conflicts(date, session, policy)
}

// Candidate is a staff member offered for a slot, with the load used for ordering.
type Candidate struct {
	Record *domain.StaffRecord
	Load   int
	seq    int
}

// Rank filters pool down to eligible staff and orders them least-loaded
// first. Ties fall back to roster position, then to pool order.
func Rank(pool []*domain.StaffRecord, date time.Time, session domain.Session, policy domain.ConflictPolicy, exclude ...string) []Candidate {
	out := make([]Candidate, 0, len(pool))
	for i, rec := range pool {
		if rec == nil || slices.Contains(exclude, rec.ID) {
			continue
		}
		if !Eligible(rec, date, session, policy) {
			continue
		}
		out = append(out, Candidate{Record: rec, Load: rec.AssignedDuties, seq: i})
	}
	slices.SortStableFunc(out, compareCandidates)
	return out
}

func compareCandidates(a, b Candidate) int {
	if c := cmp.Compare(a.Load, b.Load); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Record.Position, b.Record.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}
