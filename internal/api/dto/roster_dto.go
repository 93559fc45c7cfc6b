package dto

// RosterEntryRequest is one roster row. Either faculty_details ("C037-Kannan, K")
// or an explicit id is required.
type RosterEntryRequest struct {
	FacultyDetails string `json:"faculty_details" validate:"required_without=ID"`
	ID             string `json:"id" validate:"required_without=FacultyDetails"`
	Name           string `json:"name"`
	MaxDuties      int    `json:"max_duties" validate:"gte=0"`
}

// PopulateRosterRequest payload for POST /staff/populate.
type PopulateRosterRequest struct {
	Staff []RosterEntryRequest `json:"staff" validate:"required,min=1,dive"`
}

// SetUnavailabilityRequest payload for PUT /staff/unavailability.
// An empty list clears the staff member's unavailable dates.
type SetUnavailabilityRequest struct {
	StaffID          string   `json:"staff_id" validate:"required"`
	UnavailableDates []string `json:"unavailable_dates" validate:"dive,required"`
}

// UnavailabilityRow is one row of an unavailability upload.
type UnavailabilityRow struct {
	StaffID          string   `json:"staff_id" validate:"required"`
	UnavailableDates []string `json:"unavailable_dates" validate:"required,min=1,dive,required"`
}

// AddUnavailabilityRequest payload for POST /staff/unavailability.
type AddUnavailabilityRequest struct {
	Entries []UnavailabilityRow `json:"entries" validate:"required,min=1,dive"`
}

// SlotRow is one requested duty slot. Rows are validated by the scheduler so
// that a bad row is reported in place.
type SlotRow struct {
	Date     string `json:"date"`
	Session  string `json:"session"`
	Required int    `json:"required"`
}

// ScheduleRequest payload for POST /schedule.
type ScheduleRequest struct {
	Slots []SlotRow `json:"slots" validate:"required,min=1"`
}

// TransferRequest payload for POST /reassign/transfer.
type TransferRequest struct {
	SourceStaffID string `json:"source_staff_id" validate:"required"`
	TargetStaffID string `json:"target_staff_id" validate:"required,nefield=SourceStaffID"`
}

// CompleteTransferRequest payload for POST /reassign/transfer/:staffId/complete.
type CompleteTransferRequest struct {
	TargetStaffID string `json:"target_staff_id" validate:"required"`
}
