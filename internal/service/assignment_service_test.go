package service_test

import (
	"context"
	"sync"
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

func assignedIDs(r service.SlotResult) []string {
	out := make([]string, 0, len(r.Assigned))
	for _, a := range r.Assigned {
		out = append(out, a.StaffID)
	}
	return out
}

func TestAssign_TwoStaffOneSlot(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "A", Name: "Anand", MaxDuties: 2},
		domain.StaffRecord{ID: "B", Name: "Bala", MaxDuties: 1},
	)
	svc := service.NewAssignmentService(f.deps)

	result, err := svc.Assign(context.Background(), day10, domain.Forenoon, 2)
	require.NoError(t, err)
	assert.Equal(t, service.SlotFulfilled, result.Status)
	assert.Equal(t, []string{"A", "B"}, assignedIDs(result))
	assert.Equal(t, "10-01-2026", result.Date)
	assert.Equal(t, "FN", result.Session)

	assert.Equal(t, 1, f.get(t, "A").AssignedDuties)
	b := f.get(t, "B")
	assert.Equal(t, 1, b.AssignedDuties)
	assert.False(t, b.HasCapacity())
	assert.Equal(t, 2, f.events.count(events.EventDutyAssigned))
	f.checkRoster(t, domain.SameDay)
}

func TestAssign_PartialFulfillmentIsNotAnError(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "A", MaxDuties: 1},
		domain.StaffRecord{ID: "B", MaxDuties: 1},
		domain.StaffRecord{ID: "C", MaxDuties: 1},
		domain.StaffRecord{ID: "D", MaxDuties: 0},
	)
	svc := service.NewAssignmentService(f.deps)

	result, err := svc.Assign(context.Background(), day10, domain.Forenoon, 5)
	require.NoError(t, err)
	assert.Equal(t, service.SlotPartial, result.Status)
	assert.Equal(t, 3, result.AssignedCount())
	assert.Equal(t, 5, result.Required)
	assert.Contains(t, result.Message, "3 of 5")
	assert.Equal(t, 1, f.events.count(events.EventSlotUnderfilled))
	assert.Zero(t, f.get(t, "D").AssignedDuties)
}

func TestAssign_RejectsInvalidSlot(t *testing.T) {
	f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 1})
	svc := service.NewAssignmentService(f.deps)

	_, err := svc.Assign(context.Background(), day10, domain.Forenoon, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Assign(context.Background(), now, domain.Forenoon, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "today is not a future date")

	_, err = svc.Assign(context.Background(), day10, domain.Session{}, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, f.get(t, "A").AssignedDuties)
}

func TestAssign_SkipsUnavailableAndBooked(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "A", MaxDuties: 3},
		domain.StaffRecord{ID: "B", MaxDuties: 3},
		domain.StaffRecord{ID: "C", MaxDuties: 3},
		domain.StaffRecord{ID: "D", MaxDuties: 3},
	)
	require.NoError(t, f.repo.SetUnavailable(context.Background(), "A", []time.Time{day10}))
	f.commit(t, "B", an(day10))
	svc := service.NewAssignmentService(f.deps)

	result, err := svc.Assign(context.Background(), day10, domain.Forenoon, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, assignedIDs(result))
	f.checkRoster(t, domain.SameDay)
}

func TestAssignBatch_LeastLoadedFirstAcrossSlots(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "A", MaxDuties: 3},
		domain.StaffRecord{ID: "B", MaxDuties: 3},
		domain.StaffRecord{ID: "C", MaxDuties: 3},
	)
	svc := service.NewAssignmentService(f.deps)

	report := svc.AssignBatch(context.Background(), []domain.SlotRequest{
		{Date: "10-01-2026", Session: "FN", Required: 1},
		{Date: "11-01-2026", Session: "FN", Required: 2},
		{Date: "12-01-2026", Session: "FN", Required: 2},
	})
	require.NoError(t, report.Err)
	require.Len(t, report.Slots, 3)
	assert.Equal(t, 3, report.Processed)
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.RunID)

	assert.Equal(t, []string{"A"}, assignedIDs(report.Slots[0]))
	// A carries one duty, so the two idle staff go first.
	assert.Equal(t, []string{"B", "C"}, assignedIDs(report.Slots[1]))
	// Everyone is at one duty; ties fall back to roster order.
	assert.Equal(t, []string{"A", "B"}, assignedIDs(report.Slots[2]))

	assert.Equal(t, 2, f.get(t, "A").AssignedDuties)
	assert.Equal(t, 2, f.get(t, "B").AssignedDuties)
	assert.Equal(t, 1, f.get(t, "C").AssignedDuties)
	f.checkRoster(t, domain.SameDay)
}

func TestAssignBatch_SameDayPolicyBlocksSecondSession(t *testing.T) {
	rows := []domain.SlotRequest{
		{Date: "10-01-2026", Session: "FN", Required: 1},
		{Date: "10-01-2026", Session: "AN", Required: 1},
	}

	t.Run("same day", func(t *testing.T) {
		f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 2})
		report := service.NewAssignmentService(f.deps).AssignBatch(context.Background(), rows)
		require.NoError(t, report.Err)
		assert.Equal(t, service.SlotFulfilled, report.Slots[0].Status)
		assert.Equal(t, service.SlotPartial, report.Slots[1].Status)
		assert.Equal(t, 1, f.get(t, "A").AssignedDuties)
	})

	t.Run("same session", func(t *testing.T) {
		f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 2})
		f.deps.Policy.Conflict = domain.SameSession
		report := service.NewAssignmentService(f.deps).AssignBatch(context.Background(), rows)
		require.NoError(t, report.Err)
		assert.Equal(t, service.SlotFulfilled, report.Slots[1].Status)
		assert.Equal(t, 2, f.get(t, "A").AssignedDuties)
		f.checkRoster(t, domain.SameSession)
	})
}

func TestAssignBatch_InvalidRow(t *testing.T) {
	rows := []domain.SlotRequest{
		{Date: "10-01-2026", Session: "FN", Required: 1},
		{Date: "not-a-date", Session: "FN", Required: 1},
		{Date: "11-01-2026", Session: "FN", Required: 1},
	}

	t.Run("aborts and keeps earlier rows", func(t *testing.T) {
		f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 5})
		report := service.NewAssignmentService(f.deps).AssignBatch(context.Background(), rows)

		assert.True(t, report.Aborted)
		assert.NoError(t, report.Err, "validation aborts are not store failures")
		require.NotNil(t, report.Error)
		assert.Equal(t, apperrors.CodeInvalidDate, report.Error.Code)
		assert.Equal(t, 2, report.Processed)
		assert.Equal(t, 3, report.Total)
		require.Len(t, report.Slots, 2)
		assert.Equal(t, service.SlotFailed, report.Slots[1].Status)
		assert.Equal(t, "not-a-date", report.Slots[1].Date)
		assert.Equal(t, 1, f.get(t, "A").AssignedDuties, "row 1 stays committed")
	})

	t.Run("continues when configured", func(t *testing.T) {
		f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 5})
		f.deps.Policy.AbortOnInvalidRow = false
		report := service.NewAssignmentService(f.deps).AssignBatch(context.Background(), rows)

		assert.False(t, report.Aborted)
		assert.Equal(t, 3, report.Processed)
		assert.Equal(t, service.SlotFailed, report.Slots[1].Status)
		assert.Equal(t, service.SlotFulfilled, report.Slots[2].Status)
		assert.Equal(t, 2, f.get(t, "A").AssignedDuties)
	})

	t.Run("past dates and bad counts", func(t *testing.T) {
		f := newFixture(t, domain.StaffRecord{ID: "A", MaxDuties: 5})
		f.deps.Policy.AbortOnInvalidRow = false
		report := service.NewAssignmentService(f.deps).AssignBatch(context.Background(), []domain.SlotRequest{
			{Date: "01-01-2026", Session: "FN", Required: 1},
			{Date: "10-01-2026", Session: "FN", Required: -1},
			{Date: "10-01-2026", Session: "night", Required: 1},
		})
		for _, slot := range report.Slots {
			assert.Equal(t, service.SlotFailed, slot.Status)
			require.NotNil(t, slot.Error)
			assert.Equal(t, apperrors.CodeInvalidInput, slot.Error.Code)
		}
		assert.Zero(t, f.get(t, "A").AssignedDuties)
	})
}

func TestAssignBatch_StoreFailureAbortsBatch(t *testing.T) {
	repo := &flakyRoster{MemoryRoster: repository.NewMemoryRoster(), failCommitAfter: 1}
	require.NoError(t, repo.Upsert(context.Background(), []domain.StaffRecord{
		{ID: "A", MaxDuties: 2},
		{ID: "B", MaxDuties: 2},
	}))
	svc := service.NewAssignmentService(service.Dependencies{
		Roster: repo,
		Policy: service.DefaultPolicy(),
		Clock:  func() time.Time { return now },
	})

	report := svc.AssignBatch(context.Background(), []domain.SlotRequest{
		{Date: "10-01-2026", Session: "FN", Required: 2},
		{Date: "11-01-2026", Session: "FN", Required: 1},
	})
	assert.True(t, report.Aborted)
	require.Error(t, report.Err)
	assert.ErrorIs(t, report.Err, apperrors.ErrStoreUnavailable)
	assert.False(t, apperrors.IsDomain(report.Err))
	require.Len(t, report.Slots, 1)
	assert.Equal(t, service.SlotFailed, report.Slots[0].Status)
	assert.Equal(t, []string{"A"}, assignedIDs(report.Slots[0]))

	a, err := repo.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1, a.AssignedDuties, "the placement before the failure is kept")
}

func TestAssignBatch_ConcurrentBatchesRespectCapacity(t *testing.T) {
	f := newFixture(t,
		domain.StaffRecord{ID: "A", MaxDuties: 2},
		domain.StaffRecord{ID: "B", MaxDuties: 2},
		domain.StaffRecord{ID: "C", MaxDuties: 1},
	)
	svc := service.NewAssignmentService(f.deps)
	rows := []domain.SlotRequest{
		{Date: "10-01-2026", Session: "FN", Required: 2},
		{Date: "11-01-2026", Session: "FN", Required: 2},
		{Date: "12-01-2026", Session: "FN", Required: 2},
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report := svc.AssignBatch(context.Background(), rows)
			assert.NoError(t, report.Err)
		}()
	}
	wg.Wait()

	total := 0
	for _, id := range []string{"A", "B", "C"} {
		total += f.get(t, id).AssignedDuties
	}
	assert.Equal(t, 5, total, "every unit of capacity is used exactly once")
	f.checkRoster(t, domain.SameDay)
}
