package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/repository"
	"github.com/examcell/duty-roster/internal/service"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// now is 1 January 2026 in every test; duties from the 2nd onwards are schedulable.
var now = time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

var (
	day10 = dates.MustParse("10-01-2026")
	day11 = dates.MustParse("11-01-2026")
	day12 = dates.MustParse("12-01-2026")
)

func fn(day time.Time) domain.DutyAssignment { return domain.DutyAssignment{Date: day, Session: domain.Forenoon} }
func an(day time.Time) domain.DutyAssignment { return domain.DutyAssignment{Date: day, Session: domain.Afternoon} }

type fixture struct {
	repo   *repository.MemoryRoster
	events *recorder
	deps   service.Dependencies
}

func newFixture(t *testing.T, records ...domain.StaffRecord) *fixture {
	t.Helper()
	repo := repository.NewMemoryRoster()
	if len(records) > 0 {
		require.NoError(t, repo.Upsert(context.Background(), records))
	}
	rec := newRecorder()
	return &fixture{
		repo:   repo,
		events: rec,
		deps: service.Dependencies{
			Roster:     repo,
			Dispatcher: rec.dispatcher,
			Policy:     service.DefaultPolicy(),
			Clock:      func() time.Time { return now },
		},
	}
}

// commit places duties directly through the store, bypassing the engine.
func (f *fixture) commit(t *testing.T, id string, duties ...domain.DutyAssignment) {
	t.Helper()
	for _, d := range duties {
		require.NoError(t, f.repo.Commit(context.Background(), id, d, domain.SameSession))
	}
}

func (f *fixture) get(t *testing.T, id string) *domain.StaffRecord {
	t.Helper()
	rec, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

// checkRoster asserts the roster-wide invariants: counter sync, capacity,
// no conflicting duties, no duty on an unavailable date.
func (f *fixture) checkRoster(t *testing.T, policy domain.ConflictPolicy) {
	t.Helper()
	all, err := f.repo.List(context.Background())
	require.NoError(t, err)
	for _, rec := range all {
		require.NoError(t, rec.CheckInvariants(policy))
		for _, d := range rec.Duties {
			require.False(t, rec.IsUnavailable(d.Date), "%s holds %s on an unavailable date", rec.ID, d.Label())
		}
	}
}

type recorder struct {
	dispatcher events.Dispatcher
	mu         sync.Mutex
	seen       []events.Event
}

func newRecorder() *recorder {
	r := &recorder{dispatcher: events.NewInMemoryDispatcher()}
	for _, et := range []events.EventType{
		events.EventDutyAssigned,
		events.EventSlotUnderfilled,
		events.EventDutyRedistributed,
		events.EventDutyTransferred,
		events.EventTransferIncomplete,
		events.EventPastDutiesCleared,
		events.EventRosterPopulated,
	} {
		r.dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.seen = append(r.seen, e)
			return nil
		})
	}
	return r
}

func (r *recorder) count(et events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.seen {
		if e.Type == et {
			n++
		}
	}
	return n
}

var errStoreDown = errors.New("connection refused")

// flakyRoster wraps the memory store and fails chosen operations.
type flakyRoster struct {
	*repository.MemoryRoster
	failCommitAfter int // commits allowed before failing; -1 never fails
	commits         int
	failClear       bool
}

func (r *flakyRoster) Commit(ctx context.Context, id string, duty domain.DutyAssignment, policy domain.ConflictPolicy) error {
	if r.failCommitAfter >= 0 && r.commits >= r.failCommitAfter {
		return apperrors.NewStoreUnavailable("commit duty", errStoreDown)
	}
	r.commits++
	return r.MemoryRoster.Commit(ctx, id, duty, policy)
}

func (r *flakyRoster) Clear(ctx context.Context, id string) error {
	if r.failClear {
		return apperrors.NewStoreUnavailable("clear duties", errStoreDown)
	}
	return r.MemoryRoster.Clear(ctx, id)
}
