package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/examcell/duty-roster/internal/api/http/handlers"
	"github.com/examcell/duty-roster/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Staff    *handlers.StaffHandler
	Schedule *handlers.ScheduleHandler
	Reassign *handlers.ReassignHandler
	Cleanup  *handlers.CleanupHandler
	Reports  *handlers.ReportHandler
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	staff := app.Group("/staff")
	staff.Post("/populate", cfg.Staff.Populate)
	staff.Put("/unavailability", cfg.Staff.SetUnavailability)
	staff.Post("/unavailability", cfg.Staff.AddUnavailability)
	staff.Get("/", cfg.Staff.List)
	staff.Get("/:staffId", cfg.Staff.Get)

	app.Post("/schedule", cfg.Schedule.Schedule)

	reassign := app.Group("/reassign")
	reassign.Post("/transfer", cfg.Reassign.Transfer)
	reassign.Post("/transfer/:staffId/complete", cfg.Reassign.CompleteTransfer)
	reassign.Post("/:staffId", cfg.Reassign.Redistribute)

	cleanup := app.Group("/cleanup")
	cleanup.Post("/past", cfg.Cleanup.ClearPast)
	cleanup.Delete("/", cfg.Cleanup.ResetAll)
	cleanup.Delete("/:staffId", cfg.Cleanup.ResetStaff)

	app.Get("/reports/:kind", cfg.Reports.Get)
}
