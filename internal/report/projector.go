// Package report projects the roster into read-only duty listings.
//
// Every projection orders duties by date, then session (FN, AN, then
// numbered periods), then staff id.
package report

import (
	"cmp"
	"slices"
	"strings"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
)

// Kind names a projection.
type Kind string

const (
	KindDateWise  Kind = "datewise"
	KindStaffWise Kind = "staffwise"
	KindDuties    Kind = "duties"
)

// ParseKind accepts the projection names used by the HTTP and CLI surfaces.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindDateWise, KindStaffWise, KindDuties:
		return k, true
	}
	return "", false
}

type StaffRef struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
}

type SessionGroup struct {
	Session string     `json:"session"`
	Staff   []StaffRef `json:"staff"`
}

// DateGroup lists everyone on duty for one date, session by session.
type DateGroup struct {
	Date     string         `json:"date"`
	Sessions []SessionGroup `json:"sessions"`
}

// StaffDuties is one staff member's chronological duties. DutyList joins
// Duties with ", " for delimited output.
type StaffDuties struct {
	StaffID  string   `json:"staff_id"`
	Name     string   `json:"name"`
	Duties   []string `json:"duties"`
	DutyList string   `json:"duty_list"`
}

// DutyRow is one duty in the flat table.
type DutyRow struct {
	Date      string `json:"date"`
	Session   string `json:"session"`
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}

type placement struct {
	duty domain.DutyAssignment
	id   string
	name string
}

func comparePlacements(a, b placement) int {
	if c := a.duty.Compare(b.duty); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func placements(records []domain.StaffRecord) []placement {
	var out []placement
	for _, rec := range records {
		for _, d := range rec.Duties {
			out = append(out, placement{duty: d, id: rec.ID, name: rec.Name})
		}
	}
	slices.SortStableFunc(out, comparePlacements)
	return out
}

// Flatten returns one row per held duty.
func Flatten(records []domain.StaffRecord) []DutyRow {
	ps := placements(records)
	rows := make([]DutyRow, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, DutyRow{
			Date:      dates.Format(p.duty.Date),
			Session:   p.duty.Session.String(),
			StaffID:   p.id,
			StaffName: p.name,
		})
	}
	return rows
}

// DateWise groups duties by date and then session.
func DateWise(records []domain.StaffRecord) []DateGroup {
	groups := []DateGroup{}
	for _, p := range placements(records) {
		date := dates.Format(p.duty.Date)
		session := p.duty.Session.String()
		if n := len(groups); n == 0 || groups[n-1].Date != date {
			groups = append(groups, DateGroup{Date: date})
		}
		g := &groups[len(groups)-1]
		if n := len(g.Sessions); n == 0 || g.Sessions[n-1].Session != session {
			g.Sessions = append(g.Sessions, SessionGroup{Session: session})
		}
		s := &g.Sessions[len(g.Sessions)-1]
		s.Staff = append(s.Staff, StaffRef{StaffID: p.id, Name: p.name})
	}
	return groups
}

// StaffWise lists each staff member holding at least one duty, by staff id.
func StaffWise(records []domain.StaffRecord) []StaffDuties {
	out := []StaffDuties{}
	for _, rec := range records {
		if len(rec.Duties) == 0 {
			continue
		}
		sd := StaffDuties{StaffID: rec.ID, Name: rec.Name}
		for _, d := range rec.SortedDuties() {
			sd.Duties = append(sd.Duties, d.Label())
		}
		sd.DutyList = strings.Join(sd.Duties, ", ")
		out = append(out, sd)
	}
	slices.SortStableFunc(out, func(a, b StaffDuties) int { return cmp.Compare(a.StaffID, b.StaffID) })
	return out
}

// Report is a published projection.
type Report struct {
	Kind        Kind   `json:"kind"`
	GeneratedAt string `json:"generated_at"`
	Rows        any    `json:"rows"`
}

// Project builds the named projection.
func Project(kind Kind, records []domain.StaffRecord) any {
	switch kind {
	case KindDateWise:
		return DateWise(records)
	case KindStaffWise:
		return StaffWise(records)
	default:
		return Flatten(records)
	}
}
