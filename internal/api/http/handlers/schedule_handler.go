package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/examcell/duty-roster/internal/api/dto"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/service"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// ScheduleHandler runs assignment batches.
type ScheduleHandler struct {
	assignments *service.AssignmentService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(assignments *service.AssignmentService) *ScheduleHandler {
	return &ScheduleHandler{assignments: assignments}
}

// Schedule handles POST /schedule. The batch report is always returned, even
// when the batch stopped early; the status code tells the caller why.
func (h *ScheduleHandler) Schedule(c *fiber.Ctx) error {
	var req dto.ScheduleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rows := make([]domain.SlotRequest, 0, len(req.Slots))
	for _, s := range req.Slots {
		rows = append(rows, domain.SlotRequest{Date: s.Date, Session: s.Session, Required: s.Required})
	}

	report := h.assignments.AssignBatch(c.UserContext(), rows)
	status := http.StatusOK
	switch {
	case report.Err != nil:
		status = apperrors.ToDomainError(report.Err).HTTPStatus
	case report.Aborted:
		status = http.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"data": report})
}
