package metrics

import "github.com/prometheus/client_golang/prometheus"

func (m *Manager) initOrderMetrics() {
	m.orderStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "order_started_total",
			Help:      "Total number of orders placed by product",
		},
		[]string{"product"},
	)

	m.orderOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "order_outcomes_total",
			Help:      "Total number of orders by terminal state",
		},
		[]string{"outcome"},
	)

	m.orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dishpatch",
			Name:      "order_state_transitions_total",
			Help:      "Total number of order state transitions",
		},
		[]string{"from", "to"},
	)

	m.registry.MustRegister(m.orderStarted)
	m.registry.MustRegister(m.orderOutcomes)
	m.registry.MustRegister(m.orderTransitions)
}

// RecordOrderStarted records one order placement.
func (m *Manager) RecordOrderStarted(productName string) {
	if !m.enabled {
		return
	}
	m.orderStarted.WithLabelValues(productName).Inc()
}

// RecordOrderOutcome records one order reaching a terminal state.
func (m *Manager) RecordOrderOutcome(outcome string) {
	if !m.enabled {
		return
	}
	m.orderOutcomes.WithLabelValues(outcome).Inc()
}

// RecordStateTransition records one order state transition.
func (m *Manager) RecordStateTransition(from, to string) {
	if !m.enabled {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}
