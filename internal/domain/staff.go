package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/examcell/duty-roster/internal/dates"
)

// DutyAssignment is one (date, session) duty held by a staff member.
type DutyAssignment struct {
	Date    time.Time `json:"date"`
	Session Session   `json:"session"`
}

// Compare orders by date, then session.
func (d DutyAssignment) Compare(other DutyAssignment) int {
	if c := d.Date.Compare(other.Date); c != 0 {
		return c
	}
	return d.Session.Compare(other.Session)
}

// Label renders DATE(SESSION).
func (d DutyAssignment) Label() string {
	return fmt.Sprintf("%s(%s)", dates.Format(d.Date), d.Session)
}

// ConflictPolicy decides which existing duties disqualify a staff member from a slot.
type ConflictPolicy string

const (
	// SameDay excludes anyone already on duty that date, in any session.
	SameDay ConflictPolicy = "same_day"
	// SameSession excludes only an identical (date, session) duty.
	SameSession ConflictPolicy = "same_session"
)

func (p ConflictPolicy) Valid() bool {
	return p == SameDay || p == SameSession
}

// Blocks reports whether an existing duty prevents taking (date, session).
func (p ConflictPolicy) Blocks(existing DutyAssignment, date time.Time, session Session) bool {
	if !dates.SameDay(existing.Date, date) {
		return false
	}
	if p == SameSession {
		return existing.Session == session
	}
	return true
}

// StaffRecord is the roster entry for one invigilator.
// AssignedDuties is a denormalized count of Duties kept in sync by every mutation.
type StaffRecord struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	MaxDuties        int              `json:"max_duties"`
	AssignedDuties   int              `json:"assigned_duties"`
	UnavailableDates []time.Time      `json:"unavailable_dates"`
	Duties           []DutyAssignment `json:"duty_assignments"`
	// Position is the roster order used to break load ties.
	Position int64 `json:"position"`
}

func (s *StaffRecord) Headroom() int {
	return s.MaxDuties - s.AssignedDuties
}

func (s *StaffRecord) HasCapacity() bool {
	return s.MaxDuties > 0 && s.AssignedDuties < s.MaxDuties
}

func (s *StaffRecord) IsUnavailable(date time.Time) bool {
	return slices.ContainsFunc(s.UnavailableDates, func(d time.Time) bool {
		return dates.SameDay(d, date)
	})
}

func (s *StaffRecord) HasDutyOn(date time.Time) bool {
	return slices.ContainsFunc(s.Duties, func(d DutyAssignment) bool {
		return dates.SameDay(d.Date, date)
	})
}

func (s *StaffRecord) HasDuty(date time.Time, session Session) bool {
	return slices.ContainsFunc(s.Duties, func(d DutyAssignment) bool {
		return dates.SameDay(d.Date, date) && d.Session == session
	})
}

// Conflicts reports whether policy forbids adding (date, session).
func (s *StaffRecord) Conflicts(date time.Time, session Session, policy ConflictPolicy) bool {
	return slices.ContainsFunc(s.Duties, func(d DutyAssignment) bool {
		return policy.Blocks(d, date, session)
	})
}

// AddDuty appends a duty and bumps the counter. Callers check eligibility first.
func (s *StaffRecord) AddDuty(d DutyAssignment) {
	s.Duties = append(s.Duties, d)
	s.AssignedDuties = len(s.Duties)
}

// ClearDuties empties duties and zeroes the counter.
func (s *StaffRecord) ClearDuties() {
	s.Duties = nil
	s.AssignedDuties = 0
}

// SortedDuties returns a chronological copy of Duties.
func (s *StaffRecord) SortedDuties() []DutyAssignment {
	out := slices.Clone(s.Duties)
	slices.SortStableFunc(out, DutyAssignment.Compare)
	return out
}

func (s StaffRecord) Clone() StaffRecord {
	s.UnavailableDates = slices.Clone(s.UnavailableDates)
	s.Duties = slices.Clone(s.Duties)
	return s
}

// CheckInvariants verifies counter sync, capacity and uniqueness of duties.
func (s *StaffRecord) CheckInvariants(policy ConflictPolicy) error {
	if s.AssignedDuties != len(s.Duties) {
		return fmt.Errorf("staff %s: assigned_duties %d != %d duties", s.ID, s.AssignedDuties, len(s.Duties))
	}
	if s.AssignedDuties > s.MaxDuties {
		return fmt.Errorf("staff %s: assigned_duties %d exceeds max %d", s.ID, s.AssignedDuties, s.MaxDuties)
	}
	for i, a := range s.Duties {
		for _, b := range s.Duties[i+1:] {
			if policy.Blocks(a, b.Date, b.Session) {
				return fmt.Errorf("staff %s: conflicting duties %s and %s", s.ID, a.Label(), b.Label())
			}
		}
	}
	return nil
}

// CompareRosterOrder orders records by Position then ID.
func CompareRosterOrder(a, b StaffRecord) int {
	if c := cmp.Compare(a.Position, b.Position); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
