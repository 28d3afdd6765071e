package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler_Health(t *testing.T) {
	svc, eng := createTestService(t)
	handler := NewHealthHandler(eng, svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Health() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("Response status = %v, want ok", resp["status"])
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	svc, eng := createTestService(t)
	handler := NewHealthHandler(eng, svc)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	handler.Ready(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Ready() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp["ready"] {
		t.Error("Expected ready to be true")
	}
}

func TestHealthHandler_Status(t *testing.T) {
	svc, eng := createTestService(t)
	handler := NewHealthHandler(eng, svc)
	placeOrder(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, ok := resp["version"]; !ok {
		t.Error("Expected version in status response")
	}
	if healthy, ok := resp["healthy"].(bool); !ok || !healthy {
		t.Error("Expected healthy to be true")
	}
	if _, ok := resp["active_orders"]; !ok {
		t.Error("Expected active_orders in status response")
	}
}
