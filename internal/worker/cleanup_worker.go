package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/service"
)

// PastDutyCleaner is the part of RosterService the cleanup loop needs.
type PastDutyCleaner interface {
	ClearPastDuties(ctx context.Context) (service.CleanupReport, error)
}

// StartCleanupWorker clears past duties once immediately and then every
// interval until ctx is cancelled. The returned channel closes when the loop
// has exited. A non-positive interval disables the worker.
func StartCleanupWorker(ctx context.Context, cleaner PastDutyCleaner, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cleaner == nil || interval <= 0 {
		close(done)
		return done
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if report, err := cleaner.ClearPastDuties(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("scheduled past-duty cleanup failed", zap.Error(err))
			} else if report.Removed > 0 {
				logger.Info("scheduled past-duty cleanup", zap.String("cutoff", report.Cutoff), zap.Int("removed", report.Removed))
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}
