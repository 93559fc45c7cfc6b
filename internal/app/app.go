// Package app wires configuration into a ready set of roster services.
// Both the HTTP server and dutyctl build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/lock"
	"github.com/examcell/duty-roster/internal/observability"
	"github.com/examcell/duty-roster/internal/persistence"
	"github.com/examcell/duty-roster/internal/report"
	"github.com/examcell/duty-roster/internal/repository"
	"github.com/examcell/duty-roster/internal/service"
)

// Pinger is anything a readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds the wired services and the resources behind them.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
	Roster     repository.RosterRepository
	Locker     lock.Locker
	// ReportCache is nil unless Redis was reachable at startup.
	ReportCache *report.RedisSink

	Assignments   *service.AssignmentService
	Reassignments *service.ReassignmentService
	RosterService *service.RosterService
	Reports       *service.ReportService
	Notifications *service.NotificationService

	// Checks lists the dependencies readiness should ping, by name.
	Checks map[string]Pinger

	closers []func()
}

// New connects the configured backends and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Checks:     map[string]Pinger{},
	}

	roster, err := a.openRoster(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Roster = roster
	a.Checks["roster_store"] = roster

	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	deps := service.Dependencies{
		Roster:     a.Roster,
		Locker:     a.Locker,
		Dispatcher: a.Dispatcher,
		Metrics:    a.Metrics,
		Logger:     logger,
		Policy:     service.PolicyFromConfig(cfg.Schedule),
	}
	sinks := report.MultiSink{report.LogSink{Logger: logger}}
	if a.ReportCache != nil {
		sinks = append(sinks, a.ReportCache)
	}

	a.Assignments = service.NewAssignmentService(deps)
	a.Reassignments = service.NewReassignmentService(deps)
	a.RosterService = service.NewRosterService(deps)
	a.Reports = service.NewReportService(deps, sinks)
	a.Notifications = service.NewNotificationService(a.Dispatcher, logger, cfg.Notification)
	return a, nil
}

func (a *App) openRoster(ctx context.Context) (repository.RosterRepository, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, a.Logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return repository.NewPostgresRoster(pg.PoolHandle()), nil

	case config.StoreMongo:
		m, err := persistence.NewMongo(ctx, cfg.Mongo, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() { m.Close(context.Background()) })
		roster := repository.NewMongoRoster(m.DB, cfg.Mongo.Collection)
		if err := roster.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return roster, nil

	default:
		a.Logger.Warn("using in-memory roster store; data is lost on restart")
		return repository.NewMemoryRoster(), nil
	}
}

// openRedis picks the lock backend and, when Redis answers, the report cache.
// Redis is only mandatory for the redis lock backend.
func (a *App) openRedis(ctx context.Context) error {
	cfg := a.Config
	if cfg.Redis.Addr == "" {
		if cfg.Lock.Backend == config.LockRedis {
			return errors.New("LOCK_BACKEND=redis requires REDIS_ADDR")
		}
		a.Locker = lock.NewLocal()
		return nil
	}

	r := persistence.NewRedis(cfg.Redis, a.Logger)
	a.closers = append(a.closers, r.Close)
	reachable := r.Ping(ctx) == nil

	switch {
	case cfg.Lock.Backend == config.LockRedis && !reachable:
		return errors.New("LOCK_BACKEND=redis but redis is unreachable")
	case cfg.Lock.Backend == config.LockRedis:
		a.Locker = lock.NewRedisLocker(r.Client, cfg.Lock.KeyPrefix, cfg.Lock.TTL, cfg.Lock.RetryInterval, a.Logger)
	default:
		a.Locker = lock.NewLocal()
	}
	if reachable {
		a.ReportCache = report.NewRedisSink(r.Client, cfg.Redis.ReportKey, cfg.Redis.ReportTTL)
		a.Checks["redis"] = r
	}
	return nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
