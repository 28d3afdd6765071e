package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initActivityMetrics(cfg Config) {
	m.activityAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "activity_attempts_total",
			Help:      "Total number of activity attempts by name and status",
		},
		[]string{"activity", "status"},
	)

	m.activityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dishpatch",
			Name:      "activity_duration_seconds",
			Help:      "Activity attempt duration in seconds",
			Buckets:   cfg.ActivityDurationBuckets,
		},
		[]string{"activity", "status"},
	)

	m.activityRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "activity_retries_total",
			Help:      "Total number of activity retries",
		},
		[]string{"activity"},
	)

	m.registry.MustRegister(m.activityAttempts)
	m.registry.MustRegister(m.activityDuration)
	m.registry.MustRegister(m.activityRetries)
}

// RecordActivityAttempt records one activity attempt outcome.
func (m *Manager) RecordActivityAttempt(name string, status string) {
	if !m.enabled {
		return
	}
	m.activityAttempts.WithLabelValues(name, status).Inc()
}

// RecordActivityDuration records activity attempt latency.
func (m *Manager) RecordActivityDuration(name string, status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.activityDuration.WithLabelValues(name, status).Observe(duration.Seconds())
}

// RecordActivityRetry records one activity retry.
func (m *Manager) RecordActivityRetry(name string) {
	if !m.enabled {
		return
	}
	m.activityRetries.WithLabelValues(name).Inc()
}
