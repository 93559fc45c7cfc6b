package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/app"
	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/events"
	"github.com/examcell/duty-roster/internal/lock"
	"github.com/examcell/duty-roster/internal/observability"
	"github.com/examcell/duty-roster/internal/report"
	"github.com/examcell/duty-roster/internal/repository"
	"github.com/examcell/duty-roster/internal/service"
)

// testCLI returns a cli bound to a memory-backed App frozen at 2026-01-01.
func testCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreMemory}}
	deps := service.Dependencies{
		Roster:     repository.NewMemoryRoster(),
		Locker:     lock.NewLocal(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
		Policy:     service.DefaultPolicy(),
		Clock:      func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC) },
	}
	a := &app.App{
		Config:        cfg,
		Logger:        logger,
		Roster:        deps.Roster,
		Assignments:   service.NewAssignmentService(deps),
		Reassignments: service.NewReassignmentService(deps),
		RosterService: service.NewRosterService(deps),
		Reports:       service.NewReportService(deps, report.LogSink{Logger: logger}),
	}
	out := &bytes.Buffer{}
	return &cli{out: out, cfg: cfg, logger: logger, app: a}, out
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, c *cli, out *bytes.Buffer, args ...string) ([]byte, error) {
	t.Helper()
	out.Reset()
	cmd := c.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.Bytes(), err
}

const rosterYAML = `
staff:
  - faculty_details: C001-Anand
    max_duties: 2
  - faculty_details: C002-Bala
    max_duties: 2
  - id: C003
    name: Chitra
    max_duties: 1
unavailability:
  - staff_id: C003
    unavailable_dates: ["10-01-2026"]
`

const slotsYAML = `
slots:
  - date: 10-01-2026
    session: FN
    required: 2
  - date: 11-01-2026
    session: AN
    required: 1
`

func TestSeedAssignReport(t *testing.T) {
	c, out := testCLI(t)

	raw, err := run(t, c, out, "seed", "--file", writeFile(t, "roster.yaml", rosterYAML))
	require.NoError(t, err)
	var seeded map[string]int
	require.NoError(t, json.Unmarshal(raw, &seeded))
	assert.Equal(t, 3, seeded["populated"])
	assert.Equal(t, 1, seeded["unavailability_updated"])

	raw, err = run(t, c, out, "assign", "-f", writeFile(t, "slots.yaml", slotsYAML))
	require.NoError(t, err)
	var batch service.BatchReport
	require.NoError(t, json.Unmarshal(raw, &batch))
	require.Len(t, batch.Slots, 2)
	assert.Equal(t, service.SlotFulfilled, batch.Slots[0].Status)
	assert.Equal(t, service.SlotFulfilled, batch.Slots[1].Status)
	// C003 is away on the 10th, so the first slot goes to C001 and C002.
	for _, a := range batch.Slots[0].Assigned {
		assert.NotEqual(t, "C003", a.StaffID)
	}

	raw, err = run(t, c, out, "report", "staffwise")
	require.NoError(t, err)
	var r struct {
		Kind string `json:"kind"`
		Rows []struct {
			StaffID string `json:"staff_id"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(raw, &r))
	assert.Equal(t, "staffwise", r.Kind)
	assert.Len(t, r.Rows, 3)

	_, err = run(t, c, out, "report", "weekly")
	assert.Error(t, err)
}

func TestAssignAbortsOnInvalidRow(t *testing.T) {
	c, out := testCLI(t)
	_, err := run(t, c, out, "seed", "--file", writeFile(t, "roster.yaml", rosterYAML))
	require.NoError(t, err)

	raw, err := run(t, c, out, "assign", "--file", writeFile(t, "slots.yaml", `
slots:
  - date: 31-12-2025
    session: FN
    required: 1
`))
	require.Error(t, err)
	var batch service.BatchReport
	require.NoError(t, json.Unmarshal(raw, &batch))
	assert.True(t, batch.Aborted)
	require.NotNil(t, batch.Error)
	assert.Equal(t, "INVALID_INPUT", batch.Error.Code, "past dates are rejected as input, not as unparseable")
}

func TestTransferAndCleanup(t *testing.T) {
	c, out := testCLI(t)
	_, err := run(t, c, out, "seed", "--file", writeFile(t, "roster.yaml", rosterYAML))
	require.NoError(t, err)
	_, err = run(t, c, out, "assign", "--file", writeFile(t, "slots.yaml", `
slots:
  - date: 12-01-2026
    session: FN
    required: 1
`))
	require.NoError(t, err)

	// Loads tie, so the first staff in roster order holds the duty.
	raw, err := run(t, c, out, "transfer", "C001", "C002")
	require.NoError(t, err)
	var tr service.TransferReport
	require.NoError(t, json.Unmarshal(raw, &tr))
	assert.Equal(t, 1, tr.Transferred)
	assert.True(t, tr.SourceCleared)

	_, err = run(t, c, out, "transfer", "C001")
	assert.Error(t, err, "transfer needs two ids")

	raw, err = run(t, c, out, "cleanup")
	require.NoError(t, err)
	var cr service.CleanupReport
	require.NoError(t, json.Unmarshal(raw, &cr))
	assert.Equal(t, "01-01-2026", cr.Cutoff)

	_, err = run(t, c, out, "cleanup", "--staff", "C002")
	require.NoError(t, err)
	rec, err := c.app.RosterService.Get(t.Context(), "C002")
	require.NoError(t, err)
	assert.Empty(t, rec.Duties)

	_, err = run(t, c, out, "cleanup", "--staff", "C002", "--all")
	assert.Error(t, err)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	c, out := testCLI(t)
	_, err := run(t, c, out, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND=postgres")
}
