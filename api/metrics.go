package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertVerifyFailureSpike AlertType = "verify_failure_spike"
	AlertRateLimitSpike     AlertType = "rate_limit_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// slidingCounter fires once the number of events within window reaches
// threshold, then starts counting afresh.
type slidingCounter struct {
	alert     AlertType
	message   string
	window    time.Duration
	threshold int
	events    []time.Time
}

func (c *slidingCounter) add(now time.Time) (AlertEvent, bool) {
	c.events = trimWindow(append(c.events, now), now, c.window)
	if len(c.events) < c.threshold {
		return AlertEvent{}, false
	}
	evt := AlertEvent{
		Type:      c.alert,
		Message:   c.message,
		Count:     len(c.events),
		Threshold: c.threshold,
		Timestamp: now,
	}
	c.events = c.events[:0]
	return evt, true
}

// metricsCollector tracks sliding window counters for anomaly detection.
type metricsCollector struct {
	mu          sync.Mutex
	failures    slidingCounter
	rateLimited slidingCounter
	alertFn     AlertFunc
}

const (
	defaultFailureWindow        = 1 * time.Minute
	defaultFailureThreshold     = 50
	defaultRateLimitWindow      = 5 * time.Minute
	defaultRateLimitedThreshold = 20
)

func newMetricsCollector(alertFn AlertFunc) *metricsCollector {
	return &metricsCollector{
		failures: slidingCounter{
			alert:     AlertVerifyFailureSpike,
			message:   "access code failure rate exceeds threshold",
			window:    defaultFailureWindow,
			threshold: defaultFailureThreshold,
		},
		rateLimited: slidingCounter{
			alert:     AlertRateLimitSpike,
			message:   "rate-limited verification attempts exceed threshold",
			window:    defaultRateLimitWindow,
			threshold: defaultRateLimitedThreshold,
		},
		alertFn: alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
// The alert callback runs outside the lock.
func (m *metricsCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	var counter *slidingCounter
	switch event {
	case AuditVerifyFailure:
		counter = &m.failures
	case AuditVerifyRateLimited:
		counter = &m.rateLimited
	default:
		return
	}

	m.mu.Lock()
	evt, fire := counter.add(time.Now())
	m.mu.Unlock()
	if fire {
		m.alertFn(evt)
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
