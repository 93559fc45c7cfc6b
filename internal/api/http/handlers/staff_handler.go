package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/examcell/duty-roster/internal/api/dto"
	"github.com/examcell/duty-roster/internal/service"
)

// StaffHandler exposes roster maintenance endpoints.
type StaffHandler struct {
	roster *service.RosterService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(roster *service.RosterService) *StaffHandler {
	return &StaffHandler{roster: roster}
}

// Populate handles POST /staff/populate.
func (h *StaffHandler) Populate(c *fiber.Ctx) error {
	var req dto.PopulateRosterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entries := make([]service.RosterEntry, 0, len(req.Staff))
	for _, row := range req.Staff {
		entries = append(entries, service.RosterEntry{
			Faculty:   row.FacultyDetails,
			ID:        row.ID,
			Name:      row.Name,
			MaxDuties: row.MaxDuties,
		})
	}

	n, err := h.roster.Populate(c.UserContext(), entries)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"populated": n},
	})
}

// List handles GET /staff.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	records, err := h.roster.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": records})
}

// Get handles GET /staff/:staffId.
func (h *StaffHandler) Get(c *fiber.Ctx) error {
	id, err := staffParam(c)
	if err != nil {
		return err
	}
	rec, err := h.roster.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rec})
}

// SetUnavailability handles PUT /staff/unavailability.
func (h *StaffHandler) SetUnavailability(c *fiber.Ctx) error {
	var req dto.SetUnavailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rec, err := h.roster.SetUnavailability(c.UserContext(), req.StaffID, stringsToAny(req.UnavailableDates))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rec})
}

// AddUnavailability handles POST /staff/unavailability.
func (h *StaffHandler) AddUnavailability(c *fiber.Ctx) error {
	var req dto.AddUnavailabilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	entries := make([]service.UnavailabilityEntry, 0, len(req.Entries))
	for _, row := range req.Entries {
		entries = append(entries, service.UnavailabilityEntry{
			StaffID: row.StaffID,
			Dates:   stringsToAny(row.UnavailableDates),
		})
	}

	n, err := h.roster.AddUnavailability(c.UserContext(), entries)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"updated": n},
	})
}
