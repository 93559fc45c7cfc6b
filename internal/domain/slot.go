package domain

import (
	"time"

	"github.com/examcell/duty-roster/internal/dates"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// SlotRequest is the raw boundary form of one batch row.
type SlotRequest struct {
	Date     any    `json:"date" yaml:"date"`
	Session  string `json:"session" yaml:"session"`
	Required int    `json:"required" yaml:"required"`
}

// DutySlot is a validated staffing requirement for one (date, session).
type DutySlot struct {
	Date     time.Time
	Session  Session
	Required int
}

// ParseSlot normalizes and validates a request against the reference day.
// Duties are only scheduled strictly after today.
func ParseSlot(req SlotRequest, today time.Time) (DutySlot, error) {
	date, err := dates.Normalize(req.Date)
	if err != nil {
		return DutySlot{}, err
	}
	session, err := ParseSession(req.Session)
	if err != nil {
		return DutySlot{}, err
	}
	return NewSlot(date, session, req.Required, today)
}

// NewSlot validates already-typed slot values.
func NewSlot(date time.Time, session Session, required int, today time.Time) (DutySlot, error) {
	if required <= 0 {
		return DutySlot{}, apperrors.NewInvalidInput("required count must be positive",
			map[string]any{"required": required})
	}
	if !session.IsValid() {
		return DutySlot{}, apperrors.NewInvalidInput("session is required", nil)
	}
	date = dates.Anchor(date)
	if !date.After(dates.Anchor(today)) {
		return DutySlot{}, apperrors.NewInvalidInput("duty date must be in the future",
			map[string]any{"date": dates.Format(date), "today": dates.Format(today)})
	}
	return DutySlot{Date: date, Session: session, Required: required}, nil
}

func (s DutySlot) Assignment() DutyAssignment {
	return DutyAssignment{Date: s.Date, Session: s.Session}
}
