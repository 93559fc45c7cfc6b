package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/examcell/duty-roster/internal/api/dto"
	"github.com/examcell/duty-roster/internal/service"
)

// ReassignHandler exposes redistribution and manual transfer.
type ReassignHandler struct {
	reassignments *service.ReassignmentService
}

// NewReassignHandler constructs handler.
func NewReassignHandler(reassignments *service.ReassignmentService) *ReassignHandler {
	return &ReassignHandler{reassignments: reassignments}
}

// Redistribute handles POST /reassign/:staffId.
func (h *ReassignHandler) Redistribute(c *fiber.Ctx) error {
	id, err := staffParam(c)
	if err != nil {
		return err
	}
	report, err := h.reassignments.Redistribute(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Transfer handles POST /reassign/transfer.
func (h *ReassignHandler) Transfer(c *fiber.Ctx) error {
	var req dto.TransferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	report, err := h.reassignments.Transfer(c.UserContext(), req.SourceStaffID, req.TargetStaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// CompleteTransfer handles POST /reassign/transfer/:staffId/complete.
func (h *ReassignHandler) CompleteTransfer(c *fiber.Ctx) error {
	id, err := staffParam(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTransferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	report, err := h.reassignments.CompleteTransfer(c.UserContext(), id, req.TargetStaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}
