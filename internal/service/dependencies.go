package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/lock"
	"github.com/examcell/duty-roster/internal/observability"
	"github.com/examcell/duty-roster/internal/repository"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// RedistributionPolicy decides what happens to duties nobody can take over.
type RedistributionPolicy string

const (
	// DropUnplaced clears the source regardless of outcome.
	DropUnplaced RedistributionPolicy = "drop"
	// RetainUnplaced puts unplaced duties back on the source and flags them.
	RetainUnplaced RedistributionPolicy = "retain"
)

// Policy carries the engine switches.
type Policy struct {
	Conflict          domain.ConflictPolicy
	Redistribution    RedistributionPolicy
	AbortOnInvalidRow bool
	// Location decides which calendar day "today" is.
	Location *time.Location
}

// DefaultPolicy is same-day exclusion, drop on failure, abort on bad rows, UTC.
func DefaultPolicy() Policy {
	return Policy{
		Conflict:          domain.SameDay,
		Redistribution:    DropUnplaced,
		AbortOnInvalidRow: true,
		Location:          time.UTC,
	}
}

// PolicyFromConfig maps schedule settings onto a Policy.
func PolicyFromConfig(cfg config.ScheduleConfig) Policy {
	return Policy{
		Conflict:          domain.ConflictPolicy(cfg.ConflictPolicy),
		Redistribution:    RedistributionPolicy(cfg.RedistributionPolicy),
		AbortOnInvalidRow: cfg.AbortOnInvalidRow,
		Location:          cfg.Location(),
	}
}

// Dependencies bundles collaborators shared by the roster services.
// Only Roster is required.
type Dependencies struct {
	Roster     repository.RosterRepository
	Locker     lock.Locker
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Policy     Policy
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// base holds the wiring every service shares.
type base struct {
	roster     repository.RosterRepository
	locker     lock.Locker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     Policy
	clock      func() time.Time
}

func newBase(deps Dependencies) base {
	b := base{
		roster:     deps.Roster,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		policy:     deps.Policy,
		clock:      deps.Clock,
	}
	if b.locker == nil {
		b.locker = lock.NewLocal()
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if !b.policy.Conflict.Valid() {
		b.policy.Conflict = domain.SameDay
	}
	if b.policy.Redistribution != RetainUnplaced {
		b.policy.Redistribution = DropUnplaced
	}
	if b.policy.Location == nil {
		b.policy.Location = time.UTC
	}
	return b
}

// today is the normalized current day in the reference timezone.
func (b *base) today() time.Time {
	return dates.Today(b.clock(), b.policy.Location)
}

// exclusive runs fn while holding the process-wide roster lock.
func (b *base) exclusive(ctx context.Context, fn func() error) error {
	release, err := b.locker.Acquire(ctx, lock.RosterKey)
	if err != nil {
		return apperrors.NewStoreUnavailable("acquire roster lock", err)
	}
	defer release()
	return fn()
}

func (b *base) publish(ctx context.Context, event events.Event) {
	if b.dispatcher == nil {
		return
	}
	if err := b.dispatcher.Publish(ctx, event); err != nil {
		b.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
