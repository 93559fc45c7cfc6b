package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDutyAssigned       EventType = "duty.assigned"
	EventSlotUnderfilled    EventType = "duty.slot_underfilled"
	EventDutyRedistributed  EventType = "duty.redistributed"
	EventDutyTransferred    EventType = "duty.transferred"
	EventTransferIncomplete EventType = "duty.transfer_incomplete"
	EventPastDutiesCleared  EventType = "roster.past_duties_cleared"
	EventRosterPopulated    EventType = "roster.populated"
)

// Event represents a domain event emitted by services.
// RunID ties together everything one batch or reassignment produced.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	StaffID   string    `json:"staff_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh ID.
func NewEvent(eventType EventType, runID, staffID string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		StaffID:   staffID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// DutyAssignedPayload payload.
type DutyAssignedPayload struct {
	Date      string `json:"date"`
	Session   string `json:"session"`
	StaffName string `json:"staff_name"`
}

// SlotUnderfilledPayload payload.
type SlotUnderfilledPayload struct {
	Date     string `json:"date"`
	Session  string `json:"session"`
	Required int    `json:"required"`
	Assigned int    `json:"assigned"`
}

// DutyRedistributedPayload payload.
type DutyRedistributedPayload struct {
	Total      int `json:"total"`
	Reassigned int `json:"reassigned"`
	Failed     int `json:"failed"`
	Retained   int `json:"retained"`
}

// DutyTransferredPayload payload. Also used for incomplete transfers.
type DutyTransferredPayload struct {
	TargetStaffID string `json:"target_staff_id"`
	Count         int    `json:"count"`
	SourceCleared bool   `json:"source_cleared"`
}

// PastDutiesClearedPayload payload.
type PastDutiesClearedPayload struct {
	Cutoff  string `json:"cutoff"`
	Removed int    `json:"removed"`
}

// RosterPopulatedPayload payload.
type RosterPopulatedPayload struct {
	Count int `json:"count"`
}
