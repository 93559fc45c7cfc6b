package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/repository"
	"github.com/examcell/duty-roster/internal/service"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

func statuses(report service.RedistributionReport) []service.ReassignmentStatus {
	out := make([]service.ReassignmentStatus, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		out = append(out, o.Status)
	}
	return out
}

func TestRedistribute_MovesDutiesAndDrainsSource(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "S", Name: "Source", MaxDuties: 3},
		domain.StaffRecord{ID: "A", Name: "Anand", MaxDuties: 1},
		domain.StaffRecord{ID: "B", Name: "Bala", MaxDuties: 1},
	)
	f.commit(t, "S", fn(day11), fn(day10))
	svc := service.NewReassignmentService(f.deps)

	report, err := svc.Redistribute(context.Background(), "S")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Reassigned)
	assert.True(t, report.SourceCleared)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "10-01-2026", report.Outcomes[0].Date, "duties move oldest first")
	assert.Equal(t, "A", report.Outcomes[0].NewStaffID)
	assert.Equal(t, "B", report.Outcomes[1].NewStaffID)

	s := f.get(t, "S")
	assert.Empty(t, s.Duties)
	assert.Zero(t, s.AssignedDuties)
	assert.True(t, f.get(t, "A").HasDuty(day10, domain.Forenoon))
	assert.True(t, f.get(t, "B").HasDuty(day11, domain.Forenoon))
	assert.Equal(t, 1, f.events.count(events.EventDutyRedistributed))
	f.checkRoster(t, domain.SameDay)
}

func TestRedistribute_UnplacedDuties(t *testing.T) {
	setup := func(t *testing.T, policy service.RedistributionPolicy) *fixture {
		f := newFixture(t,
			domain.StaffRecord{ID: "S", MaxDuties: 3},
			domain.StaffRecord{ID: "A", MaxDuties: 1},
			domain.StaffRecord{ID: "B", MaxDuties: 2},
		)
		f.commit(t, "S", fn(day10), fn(day11), fn(day12))
		require.NoError(t, f.repo.SetUnavailable(context.Background(), "B", []time.Time{day10, day11, day12}))
		f.deps.Policy.Redistribution = policy
		return f
	}

	t.Run("drop", func(t *testing.T) {
		f := setup(t, service.DropUnplaced)
		report, err := service.NewReassignmentService(f.deps).Redistribute(context.Background(), "S")
		require.NoError(t, err)
		assert.Equal(t, []service.ReassignmentStatus{service.DutyReassigned, service.DutyUnplaced, service.DutyUnplaced}, statuses(report))
		assert.Equal(t, 1, report.Reassigned)
		assert.Equal(t, 2, report.Failed)
		assert.True(t, report.SourceCleared)
		assert.Zero(t, f.get(t, "S").AssignedDuties)
		assert.Contains(t, report.Message, "2 dropped")
	})

	t.Run("retain", func(t *testing.T) {
		f := setup(t, service.RetainUnplaced)
		report, err := service.NewReassignmentService(f.deps).Redistribute(context.Background(), "S")
		require.NoError(t, err)
		assert.Equal(t, []service.ReassignmentStatus{service.DutyReassigned, service.DutyRetained, service.DutyRetained}, statuses(report))
		assert.Equal(t, 2, report.Retained)
		assert.Zero(t, report.Failed)

		s := f.get(t, "S")
		assert.Equal(t, 2, s.AssignedDuties)
		assert.True(t, s.HasDuty(day11, domain.Forenoon))
		assert.True(t, s.HasDuty(day12, domain.Forenoon))
		assert.False(t, s.HasDuty(day10, domain.Forenoon))
		f.checkRoster(t, domain.SameDay)
	})
}

func TestRedistribute_EdgeCases(t *testing.T) {
	f := newFixture(t, domain.StaffRecord{ID: "S", MaxDuties: 2})
	svc := service.NewReassignmentService(f.deps)

	_, err := svc.Redistribute(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Redistribute(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	report, err := svc.Redistribute(context.Background(), "S")
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.True(t, report.SourceCleared)
}

func TestRedistribute_StoreFailureLeavesSource(t *testing.T) {
	repo := &flakyRoster{MemoryRoster: repository.NewMemoryRoster(), failCommitAfter: -1}
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, []domain.StaffRecord{
		{ID: "S", MaxDuties: 2},
		{ID: "A", MaxDuties: 2},
	}))
	require.NoError(t, repo.MemoryRoster.Commit(ctx, "S", fn(day10), domain.SameDay))
	require.NoError(t, repo.MemoryRoster.Commit(ctx, "S", fn(day11), domain.SameDay))
	repo.failCommitAfter = 1

	svc := service.NewReassignmentService(service.Dependencies{Roster: repo, Clock: func() time.Time { return now }})
	report, err := svc.Redistribute(ctx, "S")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.False(t, report.SourceCleared)
	assert.Equal(t, 1, report.Reassigned)
	assert.Contains(t, report.Message, "source not cleared")

	s, err := repo.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, 2, s.AssignedDuties)
}

func TestTransfer_MovesEverything(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "S", Name: "Source", MaxDuties: 2},
		domain.StaffRecord{ID: "T", Name: "Target", MaxDuties: 3},
	)
	f.commit(t, "S", an(day11), fn(day10))
	svc := service.NewReassignmentService(f.deps)

	report, err := svc.Transfer(context.Background(), "S", "T")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Transferred)
	assert.True(t, report.SourceCleared)
	assert.Equal(t, []string{"10-01-2026(FN)", "11-01-2026(AN)"}, report.Duties)

	assert.Zero(t, f.get(t, "S").AssignedDuties)
	target := f.get(t, "T")
	assert.Equal(t, 2, target.AssignedDuties)
	assert.True(t, target.HasDuty(day11, domain.Afternoon))
	assert.Equal(t, 1, f.events.count(events.EventDutyTransferred))
	f.checkRoster(t, domain.SameDay)
}

func TestTransfer_AllOrNothing(t *testing.T) {
	cases := []struct {
		name    string
		prepare func(t *testing.T, f *fixture)
		want    error
	}{
		{
			name: "target lacks headroom",
			prepare: func(t *testing.T, f *fixture) {
				f.commit(t, "S", fn(day10), fn(day11), fn(day12))
			},
			want: apperrors.ErrCapacityExceeded,
		},
		{
			name: "target already on duty that day",
			prepare: func(t *testing.T, f *fixture) {
				f.commit(t, "S", fn(day11))
				f.commit(t, "T", an(day11))
			},
			want: apperrors.ErrConflict,
		},
		{
			name: "target unavailable",
			prepare: func(t *testing.T, f *fixture) {
				f.commit(t, "S", fn(day10))
				require.NoError(t, f.repo.SetUnavailable(context.Background(), "T", []time.Time{day10}))
			},
			want: apperrors.ErrConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t,
				domain.StaffRecord{ID: "S", MaxDuties: 3},
				domain.StaffRecord{ID: "T", MaxDuties: 2},
			)
			tc.prepare(t, f)
			before := []*domain.StaffRecord{f.get(t, "S"), f.get(t, "T")}

			_, err := service.NewReassignmentService(f.deps).Transfer(context.Background(), "S", "T")
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, []*domain.StaffRecord{f.get(t, "S"), f.get(t, "T")})
		})
	}
}

func TestTransfer_InvalidArguments(t *testing.T) {
	f := newFixture(t, domain.StaffRecord{ID: "S", MaxDuties: 1})
	svc := service.NewReassignmentService(f.deps)

	_, err := svc.Transfer(context.Background(), "S", "S")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.Transfer(context.Background(), "", "S")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.Transfer(context.Background(), "S", "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTransfer_IncompleteThenComplete(t *testing.T) {
	repo := &flakyRoster{MemoryRoster: repository.NewMemoryRoster(), failCommitAfter: -1, failClear: true}
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, []domain.StaffRecord{
		{ID: "S", MaxDuties: 2},
		{ID: "T", MaxDuties: 2},
	}))
	require.NoError(t, repo.Commit(ctx, "S", fn(day10), domain.SameDay))
	rec := newRecorder()
	svc := service.NewReassignmentService(service.Dependencies{
		Roster:     repo,
		Dispatcher: rec.dispatcher,
		Clock:      func() time.Time { return now },
	})

	report, err := svc.Transfer(ctx, "S", "T")
	require.ErrorIs(t, err, apperrors.ErrTransferIncomplete)
	assert.False(t, apperrors.IsDomain(err))
	assert.Equal(t, 1, report.Transferred)
	assert.False(t, report.SourceCleared)
	assert.Equal(t, 1, rec.count(events.EventTransferIncomplete))

	s, err := repo.Get(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, 1, s.AssignedDuties)

	repo.failClear = false
	report, err = svc.CompleteTransfer(ctx, "S", "T")
	require.NoError(t, err)
	assert.True(t, report.SourceCleared)
	assert.Equal(t, []string{"10-01-2026(FN)"}, report.Duties)

	s, err = repo.Get(ctx, "S")
	require.NoError(t, err)
	assert.Zero(t, s.AssignedDuties)
	tgt, err := repo.Get(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, 1, tgt.AssignedDuties)
}

func TestCompleteTransfer_RefusesWhenTargetMissingDuties(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "S", MaxDuties: 2},
		domain.StaffRecord{ID: "T", MaxDuties: 2},
	)
	f.commit(t, "S", fn(day10))

	_, err := service.NewReassignmentService(f.deps).CompleteTransfer(context.Background(), "S", "T")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 1, f.get(t, "S").AssignedDuties)
}
