package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// RosterEntry is one row of roster population. Faculty carries the combined
// "ID-Name" form (e.g. "C037-Kannan, K"); explicit ID and Name win over it.
type RosterEntry struct {
	Faculty   string `json:"faculty_details" yaml:"faculty_details"`
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	MaxDuties int    `json:"max_duties" yaml:"max_duties"`
}

// UnavailabilityEntry adds unavailable dates to one staff member.
type UnavailabilityEntry struct {
	StaffID string `json:"staff_id" yaml:"staff_id"`
	Dates   []any  `json:"unavailable_dates" yaml:"unavailable_dates"`
}

// CleanupReport summarizes a past-duty cleanup.
type CleanupReport struct {
	Cutoff  string `json:"cutoff"`
	Removed int    `json:"removed"`
}

// RosterService manages the roster outside the scheduling engines.
type RosterService struct {
	base
}

// NewRosterService creates the service.
func NewRosterService(deps Dependencies) *RosterService {
	return &RosterService{base: newBase(deps)}
}

// ParseRosterEntry resolves an entry to a StaffRecord with empty duties.
func ParseRosterEntry(e RosterEntry) (domain.StaffRecord, error) {
	id, name := strings.TrimSpace(e.ID), strings.TrimSpace(e.Name)
	if id == "" && e.Faculty != "" {
		head, tail, _ := strings.Cut(e.Faculty, "-")
		id = strings.TrimSpace(head)
		if name == "" {
			name = strings.TrimSpace(tail)
		}
	}
	if id == "" {
		return domain.StaffRecord{}, apperrors.NewInvalidInput("staff id is required",
			map[string]any{"faculty_details": e.Faculty})
	}
	if e.MaxDuties < 0 {
		return domain.StaffRecord{}, apperrors.NewInvalidInput("max duties must not be negative",
			map[string]any{"staff_id": id, "max_duties": e.MaxDuties})
	}
	return domain.StaffRecord{ID: id, Name: name, MaxDuties: e.MaxDuties}, nil
}

// Populate validates every entry, then creates or replaces them. Replaced
// staff lose their duties and unavailable dates.
func (s *RosterService) Populate(ctx context.Context, entries []RosterEntry) (int, error) {
	if len(entries) == 0 {
		return 0, apperrors.NewInvalidInput("no roster rows supplied", nil)
	}
	records := make([]domain.StaffRecord, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		rec, err := ParseRosterEntry(e)
		if err != nil {
			return 0, err
		}
		if j, dup := seen[rec.ID]; dup {
			// Later rows override earlier ones with the same id.
			records[j] = rec
			continue
		}
		seen[rec.ID] = len(records)
		records = append(records, rec)
	}

	err := s.exclusive(ctx, func() error {
		return s.roster.Upsert(ctx, records)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("roster populated", zap.Int("count", len(records)))
	s.publish(ctx, events.NewEvent(events.EventRosterPopulated, uuid.NewString(), "", events.RosterPopulatedPayload{Count: len(records)}))
	return len(records), nil
}

// SetUnavailability replaces the unavailable dates of one staff member.
func (s *RosterService) SetUnavailability(ctx context.Context, staffID string, raw []any) (*domain.StaffRecord, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, apperrors.NewInvalidInput("staff id is required", nil)
	}
	days, err := dates.NormalizeAll(raw)
	if err != nil {
		return nil, err
	}

	var rec *domain.StaffRecord
	err = s.exclusive(ctx, func() error {
		if err := s.roster.SetUnavailable(ctx, staffID, days); err != nil {
			return err
		}
		rec, err = s.roster.Get(ctx, staffID)
		return err
	})
	return rec, err
}

// AddUnavailability unions future dates into each listed staff member.
// Everything is validated, including that each staff member exists, before
// the first write.
func (s *RosterService) AddUnavailability(ctx context.Context, entries []UnavailabilityEntry) (int, error) {
	if len(entries) == 0 {
		return 0, apperrors.NewInvalidInput("no unavailability rows supplied", nil)
	}
	today := s.today()
	parsed := make([][]time.Time, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.StaffID) == "" {
			return 0, apperrors.NewInvalidInput("missing staff id", map[string]any{"row": i + 1})
		}
		if len(e.Dates) == 0 {
			return 0, apperrors.NewInvalidInput(
				fmt.Sprintf("unavailable dates for %s must be a non-empty list", e.StaffID),
				map[string]any{"staff_id": e.StaffID})
		}
		days, err := dates.NormalizeAll(e.Dates)
		if err != nil {
			return 0, err
		}
		for _, d := range days {
			if !d.After(today) {
				return 0, apperrors.NewInvalidInput(
					fmt.Sprintf("unavailable date for %s must be in the future", e.StaffID),
					map[string]any{"staff_id": e.StaffID, "date": dates.Format(d)})
			}
		}
		parsed[i] = days
	}

	err := s.exclusive(ctx, func() error {
		for _, e := range entries {
			if _, err := s.roster.Get(ctx, strings.TrimSpace(e.StaffID)); err != nil {
				return err
			}
		}
		for i, e := range entries {
			if err := s.roster.AddUnavailable(ctx, strings.TrimSpace(e.StaffID), parsed[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ClearPastDuties drops duties and unavailable dates before today. Running it
// twice changes nothing the second time.
func (s *RosterService) ClearPastDuties(ctx context.Context) (CleanupReport, error) {
	cutoff := s.today()
	report := CleanupReport{Cutoff: dates.Format(cutoff)}
	err := s.exclusive(ctx, func() error {
		removed, err := s.roster.ClearPastDuties(ctx, cutoff)
		report.Removed = removed
		return err
	})
	if err != nil {
		return report, err
	}
	s.metrics.RecordPastDutiesCleared(report.Removed)
	s.logger.Info("past duties cleared", zap.String("cutoff", report.Cutoff), zap.Int("removed", report.Removed))
	if report.Removed > 0 {
		s.publish(ctx, events.NewEvent(events.EventPastDutiesCleared, uuid.NewString(), "", events.PastDutiesClearedPayload{
			Cutoff:  report.Cutoff,
			Removed: report.Removed,
		}))
	}
	return report, nil
}

// ResetStaff empties one staff member's duties and unavailable dates.
func (s *RosterService) ResetStaff(ctx context.Context, staffID string) error {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return apperrors.NewInvalidInput("staff id is required", nil)
	}
	return s.exclusive(ctx, func() error {
		return s.roster.Reset(ctx, staffID)
	})
}

// ResetAll empties duties and unavailable dates for the whole roster.
func (s *RosterService) ResetAll(ctx context.Context) error {
	return s.exclusive(ctx, func() error {
		return s.roster.ResetAll(ctx)
	})
}

func (s *RosterService) Get(ctx context.Context, staffID string) (*domain.StaffRecord, error) {
	return s.roster.Get(ctx, strings.TrimSpace(staffID))
}

func (s *RosterService) List(ctx context.Context) ([]domain.StaffRecord, error) {
	return s.roster.List(ctx)
}
