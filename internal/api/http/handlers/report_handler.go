package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/examcell/duty-roster/internal/report"
	"github.com/examcell/duty-roster/internal/service"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// ReportHandler serves roster projections.
type ReportHandler struct {
	reports *service.ReportService
	cache   *report.RedisSink
}

// NewReportHandler constructs handler. cache may be nil.
func NewReportHandler(reports *service.ReportService, cache *report.RedisSink) *ReportHandler {
	return &ReportHandler{reports: reports, cache: cache}
}

// Get handles GET /reports/:kind. With ?cached=true and a cache configured
// the last published report is served instead of a fresh projection.
func (h *ReportHandler) Get(c *fiber.Ctx) error {
	kind, ok := report.ParseKind(c.Params("kind"))
	if !ok {
		return apperrors.NewNotFound("report", map[string]any{"kind": c.Params("kind")})
	}

	if h.cache != nil && c.QueryBool("cached") {
		raw, err := h.cache.Latest(c.UserContext(), kind)
		switch {
		case err == nil:
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(append(append([]byte(`{"data":`), raw...), '}'))
		case !errors.Is(err, report.ErrNoReport):
			return apperrors.NewStoreUnavailable("load cached report", err)
		}
	}

	r, err := h.reports.Build(c.UserContext(), kind)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": r})
}
