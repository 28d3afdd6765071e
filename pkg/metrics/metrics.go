// Package metrics provides Prometheus metrics instrumentation for Dishpatch.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for Dishpatch.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Saga metrics
	sagaStarted  prometheus.Counter
	sagaFinished *prometheus.CounterVec
	sagaDuration *prometheus.HistogramVec
	sagaActive   prometheus.Gauge

	// Order metrics
	orderStarted     *prometheus.CounterVec
	orderOutcomes    *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec

	// Activity metrics
	activityAttempts *prometheus.CounterVec
	activityDuration *prometheus.HistogramVec
	activityRetries  *prometheus.CounterVec

	// Signal metrics
	signalSent      *prometheus.CounterVec
	signalDelivered *prometheus.CounterVec
	signalDropped   *prometheus.CounterVec

	// HTTP metrics
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpConnections prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Path    string `koanf:"path"`

	// Histogram bucket configurations
	SagaDurationBuckets     []float64 `koanf:"saga_duration_buckets"`
	ActivityDurationBuckets []float64 `koanf:"activity_duration_buckets"`
	HTTPDurationBuckets     []float64 `koanf:"http_duration_buckets"`
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Port:    9091,
		Path:    "/metrics",
		SagaDurationBuckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600},
		ActivityDurationBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		HTTPDurationBuckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()

	// Register Go runtime metrics
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}

	m.initSagaMetrics(cfg)
	m.initOrderMetrics()
	m.initActivityMetrics(cfg)
	m.initSignalMetrics()
	m.initHTTPMetrics(cfg)

	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server on the configured port.
func (m *Manager) StartServer(ctx context.Context, port int, path string) error {
	if !m.enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server.ListenAndServe()
}

// NoOpManager returns a no-op metrics manager for when metrics are disabled.
func NoOpManager() *Manager {
	return &Manager{enabled: false}
}
