package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initSignalMetrics() {
	m.signalSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "signal_sent_total",
			Help:      "Total number of signals published",
		},
		[]string{"transport", "kind"},
	)

	m.signalDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "signal_delivered_total",
			Help:      "Total number of signals delivered to subscribers",
		},
		[]string{"transport", "kind"},
	)

	m.signalDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "signal_dropped_total",
			Help:      "Total number of signals dropped by reason",
		},
		[]string{"transport", "kind", "reason"},
	)

	m.registry.MustRegister(m.signalSent)
	m.registry.MustRegister(m.signalDelivered)
	m.registry.MustRegister(m.signalDropped)
}

// RecordSignalSent records a signal publish.
func (m *Manager) RecordSignalSent(transport string, kind string) {
	if !m.enabled {
		return
	}
	m.signalSent.WithLabelValues(transport, kind).Inc()
}

// RecordSignalDelivered records a signal reaching its subscriber.
func (m *Manager) RecordSignalDelivered(transport string, kind string) {
	if !m.enabled {
		return
	}
	m.signalDelivered.WithLabelValues(transport, kind).Inc()
}

// RecordSignalDropped records a signal that could not be delivered.
func (m *Manager) RecordSignalDropped(transport string, kind string, reason string) {
	if !m.enabled {
		return
	}
	m.signalDropped.WithLabelValues(transport, kind, reason).Inc()
}
