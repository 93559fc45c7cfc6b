package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/examcell/duty-roster/internal/service"
)

// CleanupHandler exposes roster resets and past-duty cleanup.
type CleanupHandler struct {
	roster *service.RosterService
}

// NewCleanupHandler constructs handler.
func NewCleanupHandler(roster *service.RosterService) *CleanupHandler {
	return &CleanupHandler{roster: roster}
}

// ResetAll handles DELETE /cleanup.
func (h *CleanupHandler) ResetAll(c *fiber.Ctx) error {
	if err := h.roster.ResetAll(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"message": "all duties and unavailable dates cleared"},
	})
}

// ResetStaff handles DELETE /cleanup/:staffId.
func (h *CleanupHandler) ResetStaff(c *fiber.Ctx) error {
	id, err := staffParam(c)
	if err != nil {
		return err
	}
	if err := h.roster.ResetStaff(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"staff_id": id, "message": "duties and unavailable dates cleared"},
	})
}

// ClearPast handles POST /cleanup/past.
func (h *CleanupHandler) ClearPast(c *fiber.Ctx) error {
	report, err := h.roster.ClearPastDuties(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
