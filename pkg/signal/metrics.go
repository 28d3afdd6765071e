package signal

import "sync"

// MetricsRecorder defines metrics hooks for signal operations.
type MetricsRecorder interface {
	RecordSignalSent(transport string, kind string)
	RecordSignalDelivered(transport string, kind string)
	RecordSignalDropped(transport string, kind string, reason string)
}

type nopMetrics struct{}

func (n *nopMetrics) RecordSignalSent(transport string, kind string)                 {}
func (n *nopMetrics) RecordSignalDelivered(transport string, kind string)            {}
func (n *nopMetrics) RecordSignalDropped(transport string, kind string, reason string) {}

var (
	metricsMu sync.RWMutex
	metrics   MetricsRecorder = &nopMetrics{}
)

// SetMetricsRecorder sets the package-level signal metrics recorder.
func SetMetricsRecorder(recorder MetricsRecorder) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if recorder == nil {
		metrics = &nopMetrics{}
		return
	}
	metrics = recorder
}

func metricsRecorder() MetricsRecorder {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return metrics
}
