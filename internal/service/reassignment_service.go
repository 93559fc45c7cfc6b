package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/repository"
	"github.com/examcell/duty-roster/internal/scheduling"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// ReassignmentStatus is the fate of one duty during redistribution.
type ReassignmentStatus string

const (
	DutyReassigned ReassignmentStatus = "reassigned"
	DutyUnplaced   ReassignmentStatus = "failed"
	DutyRetained   ReassignmentStatus = "retained"
)

// ReassignmentOutcome reports one duty of the source.
type ReassignmentOutcome struct {
	Date         string             `json:"date"`
	Session      string             `json:"session"`
	Status       ReassignmentStatus `json:"status"`
	NewStaffID   string             `json:"new_staff_id,omitempty"`
	NewStaffName string             `json:"new_staff_name,omitempty"`
	Message      string             `json:"message"`
}

// RedistributionReport summarizes a bulk redistribution.
type RedistributionReport struct {
	RunID         string                `json:"run_id"`
	StaffID       string                `json:"staff_id"`
	StaffName     string                `json:"staff_name"`
	Total         int                   `json:"total"`
	Reassigned    int                   `json:"reassigned"`
	Failed        int                   `json:"failed"`
	Retained      int                   `json:"retained"`
	SourceCleared bool                  `json:"source_cleared"`
	Outcomes      []ReassignmentOutcome `json:"outcomes"`
	Message       string                `json:"message"`
}

// TransferReport summarizes a manual transfer.
type TransferReport struct {
	RunID         string   `json:"run_id"`
	SourceID      string   `json:"source_staff_id"`
	SourceName    string   `json:"source_staff_name"`
	TargetID      string   `json:"target_staff_id"`
	TargetName    string   `json:"target_staff_name"`
	Duties        []string `json:"duties"`
	Transferred   int      `json:"transferred"`
	SourceCleared bool     `json:"source_cleared"`
	Message       string   `json:"message"`
}

// ReassignmentService moves committed duties between staff.
type ReassignmentService struct {
	base
}

// NewReassignmentService creates the service.
func NewReassignmentService(deps Dependencies) *ReassignmentService {
	return &ReassignmentService{base: newBase(deps)}
}

// Redistribute hands each of the source's duties, oldest first, to the
// least-loaded eligible colleague, then clears the source. Under the retain
// policy duties nobody could take are put back on the source.
//
// A store failure stops the run without clearing the source; the report
// lists what was already moved.
func (s *ReassignmentService) Redistribute(ctx context.Context, sourceID string) (RedistributionReport, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return RedistributionReport{}, apperrors.NewInvalidInput("staff id is required", nil)
	}

	report := RedistributionReport{RunID: uuid.NewString(), StaffID: sourceID, Outcomes: []ReassignmentOutcome{}}
	err := s.exclusive(ctx, func() error {
		source, err := s.roster.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		report.StaffName = source.Name

		duties := source.SortedDuties()
		report.Total = len(duties)
		if len(duties) == 0 {
			report.SourceCleared = true
			report.Message = fmt.Sprintf("%s has no duties to redistribute", source.ID)
			return nil
		}

		var unplaced []domain.DutyAssignment
		for _, duty := range duties {
			outcome, err := s.placeElsewhere(ctx, source.ID, duty)
			if err != nil {
				report.Message = fmt.Sprintf("stopped after %d of %d duties; source not cleared", len(report.Outcomes), report.Total)
				return err
			}
			if outcome.Status == DutyReassigned {
				report.Reassigned++
			} else {
				report.Failed++
				unplaced = append(unplaced, duty)
			}
			report.Outcomes = append(report.Outcomes, outcome)
			s.metrics.RecordReassignment(string(outcome.Status))
			s.logger.Info("duty redistributed",
				zap.String("run_id", report.RunID),
				zap.String("source_staff_id", source.ID),
				zap.String("duty", outcome.Date+"("+outcome.Session+")"),
				zap.String("status", string(outcome.Status)),
				zap.String("new_staff_id", outcome.NewStaffID))
		}

		if err := s.roster.Clear(ctx, source.ID); err != nil {
			report.Message = "duties moved but source could not be cleared"
			return err
		}
		report.SourceCleared = true

		if s.policy.Redistribution == RetainUnplaced && len(unplaced) > 0 {
			s.retain(ctx, source.ID, unplaced, &report)
		}
		report.Message = fmt.Sprintf("reassigned %d of %d duties", report.Reassigned, report.Total)
		if report.Retained > 0 {
			report.Message += fmt.Sprintf("; %d kept on %s for manual attention", report.Retained, source.ID)
		} else if report.Failed > 0 {
			report.Message += fmt.Sprintf("; %d dropped with no eligible replacement", report.Failed)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	s.publish(ctx, events.NewEvent(events.EventDutyRedistributed, report.RunID, report.StaffID, events.DutyRedistributedPayload{
		Total:      report.Total,
		Reassigned: report.Reassigned,
		Failed:     report.Failed,
		Retained:   report.Retained,
	}))
	return report, nil
}

// placeElsewhere is the single-slot pick with required count 1, excluding the source.
func (s *ReassignmentService) placeElsewhere(ctx context.Context, sourceID string, duty domain.DutyAssignment) (ReassignmentOutcome, error) {
	outcome := ReassignmentOutcome{Date: dates.Format(duty.Date), Session: duty.Session.String()}

	pool, err := s.roster.FindEligible(ctx, repository.EligibilityQuery{
		Date:      duty.Date,
		Session:   duty.Session,
		Policy:    s.policy.Conflict,
		ExcludeID: sourceID,
	})
	if err != nil {
		return outcome, err
	}
	records := make([]*domain.StaffRecord, len(pool))
	for i := range pool {
		records[i] = &pool[i]
	}

	for _, c := range scheduling.Rank(records, duty.Date, duty.Session, s.policy.Conflict, sourceID) {
		err := s.roster.Commit(ctx, c.Record.ID, duty, s.policy.Conflict)
		if err != nil {
			if !apperrors.IsDomain(err) {
				return outcome, err
			}
			continue
		}
		outcome.Status = DutyReassigned
		outcome.NewStaffID = c.Record.ID
		outcome.NewStaffName = c.Record.Name
		outcome.Message = fmt.Sprintf("moved to %s", c.Record.ID)
		return outcome, nil
	}

	outcome.Status = DutyUnplaced
	outcome.Message = "no eligible replacement"
	return outcome, nil
}

// retain re-adds unplaced duties to the cleared source. Failure here is
// logged and leaves those duties reported as failed.
func (s *ReassignmentService) retain(ctx context.Context, sourceID string, unplaced []domain.DutyAssignment, report *RedistributionReport) {
	if err := s.roster.Append(ctx, sourceID, unplaced, s.policy.Conflict); err != nil {
		s.logger.Warn("could not retain unplaced duties", zap.String("staff_id", sourceID), zap.Error(err))
		return
	}
	for i := range report.Outcomes {
		if report.Outcomes[i].Status == DutyUnplaced {
			report.Outcomes[i].Status = DutyRetained
			report.Outcomes[i].Message = "no eligible replacement; kept on source"
			s.metrics.RecordReassignment(string(DutyRetained))
		}
	}
	report.Retained = len(unplaced)
	report.Failed -= len(unplaced)
}

// Transfer moves every duty of source to target, or nothing. All checks run
// before the first write. If the target is written but the source cannot be
// cleared the error is TRANSFER_INCOMPLETE and CompleteTransfer finishes the job.
func (s *ReassignmentService) Transfer(ctx context.Context, sourceID, targetID string) (TransferReport, error) {
	sourceID, targetID = strings.TrimSpace(sourceID), strings.TrimSpace(targetID)
	if sourceID == "" || targetID == "" {
		return TransferReport{}, apperrors.NewInvalidInput("source and target staff ids are required",
			map[string]any{"source_staff_id": sourceID, "target_staff_id": targetID})
	}
	if sourceID == targetID {
		return TransferReport{}, apperrors.NewInvalidInput("source and target must differ",
			map[string]any{"staff_id": sourceID})
	}

	report := TransferReport{RunID: uuid.NewString(), SourceID: sourceID, TargetID: targetID, Duties: []string{}}
	err := s.exclusive(ctx, func() error {
		source, err := s.roster.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := s.roster.Get(ctx, targetID)
		if err != nil {
			return err
		}
		report.SourceName, report.TargetName = source.Name, target.Name

		duties := source.SortedDuties()
		for _, d := range duties {
			report.Duties = append(report.Duties, d.Label())
		}
		if len(duties) == 0 {
			report.SourceCleared = true
			report.Message = fmt.Sprintf("%s has no duties to transfer", source.ID)
			return nil
		}

		if err := s.precheckTransfer(target, duties); err != nil {
			return err
		}
		if err := s.roster.Append(ctx, target.ID, duties, s.policy.Conflict); err != nil {
			return err
		}
		report.Transferred = len(duties)

		if err := s.roster.Clear(ctx, source.ID); err != nil {
			report.Message = fmt.Sprintf("%d duties copied to %s but %s still holds them", len(duties), target.ID, source.ID)
			s.publish(ctx, events.NewEvent(events.EventTransferIncomplete, report.RunID, source.ID, events.DutyTransferredPayload{
				TargetStaffID: target.ID,
				Count:         len(duties),
			}))
			return apperrors.NewTransferIncomplete(source.ID, err)
		}
		report.SourceCleared = true
		report.Message = fmt.Sprintf("transferred %d duties from %s to %s", len(duties), source.ID, target.ID)
		return nil
	})
	s.metrics.RecordTransfer(transferOutcome(err))
	if err != nil {
		s.logger.Warn("transfer failed",
			zap.String("source_staff_id", sourceID),
			zap.String("target_staff_id", targetID),
			zap.Error(err))
		return report, err
	}

	s.logger.Info("transfer completed",
		zap.String("run_id", report.RunID),
		zap.String("source_staff_id", sourceID),
		zap.String("target_staff_id", targetID),
		zap.Int("duties", report.Transferred))
	s.publish(ctx, events.NewEvent(events.EventDutyTransferred, report.RunID, sourceID, events.DutyTransferredPayload{
		TargetStaffID: targetID,
		Count:         report.Transferred,
		SourceCleared: true,
	}))
	return report, nil
}

// precheckTransfer validates headroom and every date before anything is written.
func (s *ReassignmentService) precheckTransfer(target *domain.StaffRecord, duties []domain.DutyAssignment) error {
	if target.Headroom() < len(duties) {
		return apperrors.NewCapacityExceeded("target cannot absorb all duties", map[string]any{
			"target_staff_id": target.ID,
			"headroom":        max(target.Headroom(), 0),
			"requested":       len(duties),
		})
	}
	for _, d := range duties {
		if target.IsUnavailable(d.Date) {
			return apperrors.NewConflict("target is unavailable on a transferred date",
				map[string]any{"target_staff_id": target.ID, "duty": d.Label()})
		}
		if target.Conflicts(d.Date, d.Session, s.policy.Conflict) {
			return apperrors.NewConflict("target already has a duty on a transferred date",
				map[string]any{"target_staff_id": target.ID, "duty": d.Label()})
		}
	}
	return nil
}

// CompleteTransfer retries the source clear of an incomplete transfer. It
// only clears when target already holds every duty still on the source.
func (s *ReassignmentService) CompleteTransfer(ctx context.Context, sourceID, targetID string) (TransferReport, error) {
	sourceID, targetID = strings.TrimSpace(sourceID), strings.TrimSpace(targetID)
	if sourceID == "" || targetID == "" || sourceID == targetID {
		return TransferReport{}, apperrors.NewInvalidInput("distinct source and target staff ids are required",
			map[string]any{"source_staff_id": sourceID, "target_staff_id": targetID})
	}

	report := TransferReport{RunID: uuid.NewString(), SourceID: sourceID, TargetID: targetID, Duties: []string{}}
	err := s.exclusive(ctx, func() error {
		source, err := s.roster.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		target, err := s.roster.Get(ctx, targetID)
		if err != nil {
			return err
		}
		report.SourceName, report.TargetName = source.Name, target.Name

		for _, d := range source.SortedDuties() {
			if !target.HasDuty(d.Date, d.Session) {
				return apperrors.NewConflict("source holds a duty the target does not; transfer was not started",
					map[string]any{"duty": d.Label(), "target_staff_id": target.ID})
			}
			report.Duties = append(report.Duties, d.Label())
		}
		if err := s.roster.Clear(ctx, source.ID); err != nil {
			return apperrors.NewTransferIncomplete(source.ID, err)
		}
		report.Transferred = len(report.Duties)
		report.SourceCleared = true
		report.Message = fmt.Sprintf("cleared %d duties from %s", report.Transferred, source.ID)
		return nil
	})
	if err != nil {
		return report, err
	}
	s.publish(ctx, events.NewEvent(events.EventDutyTransferred, report.RunID, sourceID, events.DutyTransferredPayload{
		TargetStaffID: targetID,
		Count:         report.Transferred,
		SourceCleared: true,
	}))
	return report, nil
}

func transferOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(apperrors.ToDomainError(err).Code)
}
