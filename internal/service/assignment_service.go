package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/scheduling"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// SlotStatus is the outcome of one slot. A partial slot is not an error.
type SlotStatus string

const (
	SlotFulfilled SlotStatus = "fulfilled"
	SlotPartial   SlotStatus = "partial"
	SlotFailed    SlotStatus = "failed"
)

// AssignmentResult is one placement.
type AssignmentResult struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
}

// Failure is the serializable form of an error attached to a result.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func failureOf(err error) *Failure {
	if err == nil {
		return nil
	}
	domainErr := apperrors.ToDomainError(err)
	return &Failure{Code: domainErr.Code, Message: domainErr.Message}
}

// SlotResult reports one batch row.
type SlotResult struct {
	Row      int                `json:"row"`
	Date     string             `json:"date,omitempty"`
	Session  string             `json:"session,omitempty"`
	Required int                `json:"required"`
	Assigned []AssignmentResult `json:"assigned"`
	Status   SlotStatus         `json:"status"`
	Message  string             `json:"message"`
	Error    *Failure           `json:"error,omitempty"`
}

// AssignedCount is len(Assigned).
func (r SlotResult) AssignedCount() int { return len(r.Assigned) }

// BatchReport covers a whole batch. Slots processed before an abort stay
// committed and are listed here.
type BatchReport struct {
	RunID     string       `json:"run_id"`
	Slots     []SlotResult `json:"slots"`
	Processed int          `json:"processed"`
	Total     int          `json:"total"`
	Aborted   bool         `json:"aborted"`
	Error     *Failure     `json:"error,omitempty"`
	// Err is the fatal error that stopped the batch, if any.
	Err error `json:"-"`
}

// AssignmentService is the greedy duty scheduler.
type AssignmentService struct {
	base
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps Dependencies) *AssignmentService {
	return &AssignmentService{base: newBase(deps)}
}

// batchRun is the mutable roster snapshot one batch works against. Records
// are updated in place as picks are committed, so later slots see new loads.
type batchRun struct {
	id   string
	pool *scheduling.Queue
}

func (s *AssignmentService) startRun(ctx context.Context) (*batchRun, error) {
	records, err := s.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make([]*domain.StaffRecord, len(records))
	for i := range records {
		snapshot[i] = &records[i]
	}
	return &batchRun{id: uuid.NewString(), pool: scheduling.NewPool(snapshot)}, nil
}

// Assign fills a single slot. Invalid input is returned as an error;
// running out of eligible staff is reported through the result status.
func (s *AssignmentService) Assign(ctx context.Context, date time.Time, session domain.Session, required int) (SlotResult, error) {
	slot, err := domain.NewSlot(date, session, required, s.today())
	if err != nil {
		return SlotResult{}, err
	}

	var result SlotResult
	err = s.exclusive(ctx, func() error {
		run, err := s.startRun(ctx)
		if err != nil {
			return err
		}
		result, err = s.fillSlot(ctx, run, 1, slot)
		return err
	})
	return result, err
}

// AssignBatch processes rows in input order, committing each slot before the
// next is considered.
func (s *AssignmentService) AssignBatch(ctx context.Context, rows []domain.SlotRequest) BatchReport {
	report := BatchReport{Total: len(rows), Slots: make([]SlotResult, 0, len(rows))}

	err := s.exclusive(ctx, func() error {
		run, err := s.startRun(ctx)
		if err != nil {
			return err
		}
		report.RunID = run.id
		today := s.today()

		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return apperrors.NewStoreUnavailable("assign batch", err)
			}
			slot, err := domain.ParseSlot(row, today)
			if err != nil {
				report.Slots = append(report.Slots, invalidRow(i+1, row, err))
				report.Processed++
				s.metrics.RecordSlot(string(SlotFailed), 0)
				s.logger.Warn("invalid slot row", zap.Int("row", i+1), zap.Error(err))
				if s.policy.AbortOnInvalidRow {
					report.Aborted = true
					report.Error = failureOf(err)
					return nil
				}
				continue
			}

			result, err := s.fillSlot(ctx, run, i+1, slot)
			report.Slots = append(report.Slots, result)
			report.Processed++
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		report.Aborted = true
		report.Err = err
		report.Error = failureOf(err)
		s.logger.Error("assignment batch aborted",
			zap.String("run_id", report.RunID),
			zap.Int("processed", report.Processed),
			zap.Int("total", report.Total),
			zap.Error(err))
	}
	return report
}

// fillSlot pops candidates least-loaded first until the slot is full or the
// pool is exhausted. Anyone popped is held out until the slot is done, so
// nobody fills the same slot twice; those with capacity left are pushed back
// with their new load for later slots.
func (s *AssignmentService) fillSlot(ctx context.Context, run *batchRun, row int, slot domain.DutySlot) (SlotResult, error) {
	result := SlotResult{
		Row:      row,
		Date:     dates.Format(slot.Date),
		Session:  slot.Session.String(),
		Required: slot.Required,
		Assigned: []AssignmentResult{},
	}
	duty := slot.Assignment()

	var held []scheduling.Candidate
	defer func() {
		for _, c := range held {
			run.pool.Push(c)
		}
	}()

	for len(result.Assigned) < slot.Required {
		c, ok := run.pool.Pop()
		if !ok {
			break
		}
		if !scheduling.Eligible(c.Record, slot.Date, slot.Session, s.policy.Conflict) {
			held = append(held, c)
			continue
		}

		err := s.roster.Commit(ctx, c.Record.ID, duty, s.policy.Conflict)
		if err != nil {
			if !apperrors.IsDomain(err) {
				result.Status = SlotFailed
				result.Message = fmt.Sprintf("roster store failed after %d of %d placements", len(result.Assigned), slot.Required)
				result.Error = failureOf(err)
				s.metrics.RecordSlot(string(SlotFailed), len(result.Assigned))
				return result, err
			}
			// The store saw a write the snapshot missed. Skip this candidate for
			// the slot; only keep them around if they may still have room.
			s.logger.Warn("commit rejected, trying next candidate",
				zap.String("staff_id", c.Record.ID),
				zap.String("duty", duty.Label()),
				zap.Error(err))
			if !errors.Is(err, apperrors.ErrCapacityExceeded) && !errors.Is(err, apperrors.ErrNotFound) {
				held = append(held, c)
			}
			continue
		}

		c.Record.AddDuty(duty)
		result.Assigned = append(result.Assigned, AssignmentResult{StaffID: c.Record.ID, StaffName: c.Record.Name})
		if c.Record.HasCapacity() {
			held = append(held, c.Refresh())
		}
		s.publish(ctx, events.NewEvent(events.EventDutyAssigned, run.id, c.Record.ID, events.DutyAssignedPayload{
			Date:      result.Date,
			Session:   result.Session,
			StaffName: c.Record.Name,
		}))
	}

	if len(result.Assigned) == slot.Required {
		result.Status = SlotFulfilled
		result.Message = fmt.Sprintf("assigned %d of %d", len(result.Assigned), slot.Required)
	} else {
		result.Status = SlotPartial
		result.Message = fmt.Sprintf("partial fulfillment: assigned %d of %d", len(result.Assigned), slot.Required)
		s.publish(ctx, events.NewEvent(events.EventSlotUnderfilled, run.id, "", events.SlotUnderfilledPayload{
			Date:     result.Date,
			Session:  result.Session,
			Required: slot.Required,
			Assigned: len(result.Assigned),
		}))
	}
	s.metrics.RecordSlot(string(result.Status), len(result.Assigned))
	s.logger.Info("slot processed",
		zap.String("run_id", run.id),
		zap.String("date", result.Date),
		zap.String("session", result.Session),
		zap.Int("required", slot.Required),
		zap.Int("assigned", len(result.Assigned)))
	return result, nil
}

func invalidRow(row int, req domain.SlotRequest, err error) SlotResult {
	result := SlotResult{
		Row:      row,
		Session:  req.Session,
		Required: req.Required,
		Assigned: []AssignmentResult{},
		Status:   SlotFailed,
		Error:    failureOf(err),
	}
	if d, derr := dates.Normalize(req.Date); derr == nil {
		result.Date = dates.Format(d)
	} else if str, ok := req.Date.(string); ok {
		result.Date = str
	}
	result.Message = fmt.Sprintf("row %d rejected: %s", row, result.Error.Message)
	return result
}
