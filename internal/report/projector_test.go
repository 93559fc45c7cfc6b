package report

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/examcell/duty-roster/internal/dates"
	"github.com/examcell/duty-roster/internal/domain"
)

func duty(day, session string) domain.DutyAssignment {
	return domain.DutyAssignment{Date: dates.MustParse(day), Session: domain.MustSession(session)}
}

func roster() []domain.StaffRecord {
	return []domain.StaffRecord{
		{ID: "C9", Name: "Zara", Duties: []domain.DutyAssignment{duty("11-01-2026", "FN"), duty("10-01-2026", "AN")}},
		{ID: "C1", Name: "Anand", Duties: []domain.DutyAssignment{duty("10-01-2026", "AN"), duty("10-01-2026", "2")}},
		{ID: "C5", Name: "Meena", Duties: []domain.DutyAssignment{duty("10-01-2026", "FN")}},
		{ID: "C7", Name: "Idle"},
	}
}

func TestFlatten_OrderAndFormat(t *testing.T) {
	want := []DutyRow{
		{Date: "10-01-2026", Session: "FN", StaffID: "C5", StaffName: "Meena"},
		{Date: "10-01-2026", Session: "AN", StaffID: "C1", StaffName: "Anand"},
		{Date: "10-01-2026", Session: "AN", StaffID: "C9", StaffName: "Zara"},
		{Date: "10-01-2026", Session: "2", StaffID: "C1", StaffName: "Anand"},
		{Date: "11-01-2026", Session: "FN", StaffID: "C9", StaffName: "Zara"},
	}
	if diff := cmp.Diff(want, Flatten(roster())); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestDateWise(t *testing.T) {
	want := []DateGroup{
		{Date: "10-01-2026", Sessions: []SessionGroup{
			{Session: "FN", Staff: []StaffRef{{StaffID: "C5", Name: "Meena"}}},
			{Session: "AN", Staff: []StaffRef{{StaffID: "C1", Name: "Anand"}, {StaffID: "C9", Name: "Zara"}}},
			{Session: "2", Staff: []StaffRef{{StaffID: "C1", Name: "Anand"}}},
		}},
		{Date: "11-01-2026", Sessions: []SessionGroup{
			{Session: "FN", Staff: []StaffRef{{StaffID: "C9", Name: "Zara"}}},
		}},
	}
	if diff := cmp.Diff(want, DateWise(roster())); diff != "" {
		t.Errorf("DateWise mismatch (-want +got):\n%s", diff)
	}
}

func TestStaffWise(t *testing.T) {
	want := []StaffDuties{
		{StaffID: "C1", Name: "Anand", Duties: []string{"10-01-2026(AN)", "10-01-2026(2)"}, DutyList: "10-01-2026(AN), 10-01-2026(2)"},
		{StaffID: "C5", Name: "Meena", Duties: []string{"10-01-2026(FN)"}, DutyList: "10-01-2026(FN)"},
		{StaffID: "C9", Name: "Zara", Duties: []string{"10-01-2026(AN)", "11-01-2026(FN)"}, DutyList: "10-01-2026(AN), 11-01-2026(FN)"},
	}
	if diff := cmp.Diff(want, StaffWise(roster())); diff != "" {
		t.Errorf("StaffWise mismatch (-want +got):\n%s", diff)
	}
}

func TestProjections_EmptyRoster(t *testing.T) {
	assert.Empty(t, Flatten(nil))
	assert.NotNil(t, DateWise(nil))
	assert.NotNil(t, StaffWise(nil))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" StaffWise ")
	assert.True(t, ok)
	assert.Equal(t, KindStaffWise, k)
	_, ok = ParseKind("weekly")
	assert.False(t, ok)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := MultiSink{LogSink{Logger: zap.New(core)}, LogSink{}}

	err := sink.Publish(context.Background(), Report{Kind: KindDuties, Rows: Flatten(roster())})
	require.NoError(t, err)
	entries := logs.FilterMessage("report published").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].ContextMap()["rows"])
}

func TestRedisSink(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	sink := NewRedisSink(client, "duty-roster-test:"+t.Name(), time.Minute)
	ctx := context.Background()
	_, err := sink.Latest(ctx, KindDateWise)
	require.ErrorIs(t, err, ErrNoReport)

	require.NoError(t, sink.Publish(ctx, Report{Kind: KindDateWise, GeneratedAt: "t0", Rows: DateWise(roster())}))
	raw, err := sink.Latest(ctx, KindDateWise)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"datewise"`)
	assert.Contains(t, string(raw), `"staff_id":"C5"`)
}
