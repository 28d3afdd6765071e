// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/dishpatch/dishpatch/config"
	"github.com/dishpatch/dishpatch/pkg/api/handlers"
	"github.com/dishpatch/dishpatch/pkg/api/middleware"
	"github.com/dishpatch/dishpatch/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Order handles order lifecycle endpoints
	Order *handlers.OrderHandler

	// Catalog serves the product listing
	Catalog *handlers.CatalogHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// WebSocket streams order events
	WebSocket *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Order != nil {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", handlers.Order.CreateOrder)
				r.Get("/", handlers.Order.ListOrders)
				r.Get("/{id}", handlers.Order.GetOrder)
				r.Get("/{id}/history", handlers.Order.GetHistory)
				r.Post("/{id}/signals", handlers.Order.SendSignal)
				r.Post("/{id}/cancel", handlers.Order.CancelOrder)
			})
		}

		if handlers.Catalog != nil {
			r.Get("/products", handlers.Catalog.ListProducts)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	// Event stream
	if handlers.WebSocket != nil {
		r.Get("/ws/events", handlers.WebSocket.ServeHTTP)
	}
}
