package api

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alertRecorder struct {
	mu     sync.Mutex
	alerts []AlertEvent
}

func (r *alertRecorder) record(e AlertEvent) {
	r.mu.Lock()
	r.alerts = append(r.alerts, e)
	r.mu.Unlock()
}

func (r *alertRecorder) snapshot() []AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AlertEvent(nil), r.alerts...)
}

func TestVerifyFailureSpikeAlert(t *testing.T) {
	rec := &alertRecorder{}
	collector := newMetricsCollector(rec.record)
	collector.failures.threshold = 5

	for i := 0; i < 4; i++ {
		collector.recordEvent(AuditVerifyFailure)
	}
	assert.Empty(t, rec.snapshot(), "no alert below threshold")

	collector.recordEvent(AuditVerifyFailure)
	alerts := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertVerifyFailureSpike, alerts[0].Type)
	assert.Equal(t, 5, alerts[0].Count)
	assert.Equal(t, 5, alerts[0].Threshold)

	// The counter resets after firing.
	collector.recordEvent(AuditVerifyFailure)
	assert.Len(t, rec.snapshot(), 1)
}

func TestRateLimitSpikeAlert(t *testing.T) {
	rec := &alertRecorder{}
	collector := newMetricsCollector(rec.record)
	collector.rateLimited.threshold = 3

	for i := 0; i < 3; i++ {
		collector.recordEvent(AuditVerifyRateLimited)
	}
	alerts := rec.snapshot()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRateLimitSpike, alerts[0].Type)
}

func TestMetrics_IgnoresOtherEvents(t *testing.T) {
	rec := &alertRecorder{}
	collector := newMetricsCollector(rec.record)
	collector.failures.threshold = 1
	collector.rateLimited.threshold = 1

	collector.recordEvent(AuditVerifySuccess)
	collector.recordEvent(AuditBirthdateRequired)
	collector.recordEvent(AuditLogout)
	assert.Empty(t, rec.snapshot())
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metricsCollector
	m.recordEvent(AuditVerifyFailure)

	noCallback := newMetricsCollector(nil)
	noCallback.recordEvent(AuditVerifyFailure)
}

func TestMetrics_WindowExpiry(t *testing.T) {
	rec := &alertRecorder{}
	collector := newMetricsCollector(rec.record)
	collector.failures.threshold = 3
	collector.failures.window = 50 * time.Millisecond

	collector.recordEvent(AuditVerifyFailure)
	collector.recordEvent(AuditVerifyFailure)
	time.Sleep(80 * time.Millisecond)
	collector.recordEvent(AuditVerifyFailure)
	assert.Empty(t, rec.snapshot(), "events outside the window do not count")
}

func TestTrimWindow(t *testing.T) {
	now := time.Now()
	times := []time.Time{now.Add(-3 * time.Minute), now.Add(-2 * time.Minute), now.Add(-30 * time.Second), now}
	got := trimWindow(times, now, time.Minute)
	assert.Len(t, got, 2)
}
