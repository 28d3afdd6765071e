package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func (m *Manager) initSagaMetrics(cfg Config) {
	m.sagaStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "saga_started_total",
			Help:      "Total number of saga executions started",
		},
	)

	m.sagaFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "saga_finished_total",
			Help:      "Total number of saga executions by terminal outcome",
		},
		[]string{"outcome"},
	)

	m.sagaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dishpatch",
			Name:      "saga_duration_seconds",
			Help:      "Saga execution duration in seconds",
			Buckets:   cfg.SagaDurationBuckets,
		},
		[]string{"outcome"},
	)

	m.sagaActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dishpatch",
			Name:      "saga_active_count",
			Help:      "Current number of active saga executions",
		},
	)

	m.registry.MustRegister(m.sagaStarted)
	m.registry.MustRegister(m.sagaFinished)
	m.registry.MustRegister(m.sagaDuration)
	m.registry.MustRegister(m.sagaActive)
}

// RecordSagaStarted records one saga launch.
func (m *Manager) RecordSagaStarted() {
	if !m.enabled {
		return
	}
	m.sagaStarted.Inc()
}

// RecordSagaCompleted records one saga terminal outcome with its latency.
func (m *Manager) RecordSagaCompleted(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.sagaFinished.WithLabelValues(outcome).Inc()
	m.sagaDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncActiveSagas increments current active saga count.
func (m *Manager) IncActiveSagas() {
	if !m.enabled {
		return
	}
	m.sagaActive.Inc()
}

// DecActiveSagas decrements current active saga count.
func (m *Manager) DecActiveSagas() {
	if !m.enabled {
		return
	}
	m.sagaActive.Dec()
}
