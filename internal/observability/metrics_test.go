package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordSlot("fulfilled", 2)
	m.RecordSlot("partial", 3)
	m.RecordReassignment("failed")
	m.RecordTransfer("ok")
	m.RecordRequest("/schedule", "POST", 200, 15*time.Millisecond)
	m.RecordError("/schedule", "POST", "INVALID_INPUT")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.slotsProcessed.WithLabelValues("partial")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.dutiesAssigned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reassignments.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues("POST", "/schedule", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorCount.WithLabelValues("POST", "/schedule", "INVALID_INPUT")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSlot("failed", 0)
		m.RecordReassignment("reassigned")
		m.RecordTransfer("ok")
		m.RecordPastDutiesCleared(3)
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "NOT_FOUND")
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}
