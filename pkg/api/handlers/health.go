// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/dishpatch/dishpatch/pkg/api/response"
	"github.com/dishpatch/dishpatch/pkg/engine"
	"github.com/dishpatch/dishpatch/pkg/order"
	"github.com/dishpatch/dishpatch/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	engine  *engine.Engine
	service *order.Service
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(eng *engine.Engine, svc *order.Service) *HealthHandler {
	return &HealthHandler{
		engine:  eng,
		service: svc,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.engine.IsHealthy() {
		response.JSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
		})
	}
}

// Ready handles the /ready endpoint (readiness probe).
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine.IsReady() {
		response.JSON(w, http.StatusOK, map[string]bool{
			"ready": true,
		})
	} else {
		response.JSON(w, http.StatusServiceUnavailable, map[string]bool{
			"ready": false,
		})
	}
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"version":       version.Version,
		"healthy":       h.engine.IsHealthy(),
		"ready":         h.engine.IsReady(),
		"active_orders": h.service.ActiveOrders(),
	})
}
