package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/examcell/duty-roster/internal/api/http"
	"github.com/examcell/duty-roster/internal/api/http/handlers"
	"github.com/examcell/duty-roster/internal/app"
	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/observability"
	"github.com/examcell/duty-roster/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	worker.StartNotificationWorker(a.Notifications)
	cleanupDone := worker.StartCleanupWorker(ctx, a.RosterService, cfg.Schedule.CleanupInterval, logger)

	fiberApp := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(fiberApp, logger, a.Metrics, cfg.App.RequestTimeout())

	checks := make(map[string]handlers.Pinger, len(a.Checks))
	for name, c := range a.Checks {
		checks[name] = c
	}
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Staff:    handlers.NewStaffHandler(a.RosterService),
		Schedule: handlers.NewScheduleHandler(a.Assignments),
		Reassign: handlers.NewReassignHandler(a.Reassignments),
		Cleanup:  handlers.NewCleanupHandler(a.RosterService),
		Reports:  handlers.NewReportHandler(a.Reports, a.ReportCache),
		Metrics:  a.Metrics,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	<-cleanupDone
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
