package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/engine"
	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/order"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage/memory"
)

type stubGateway struct{}

func (stubGateway) Charge(ctx context.Context, product catalog.Product) (string, error) {
	return "charged", nil
}

func (stubGateway) Refund(ctx context.Context, product catalog.Product) (string, error) {
	return "refunded", nil
}

type stubNotifier struct{}

func (stubNotifier) Send(ctx context.Context, text string) error { return nil }

func testLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "text",
		Output: "stderr",
	})
}

// createTestService wires a real engine and order service on in-memory
// storage. Saga timers run on a fake clock so orders stay in their wait
// states for the duration of a test.
func createTestService(t *testing.T) (*order.Service, *engine.Engine) {
	t.Helper()

	registry := activity.NewRegistry()
	policy := order.ActivityPolicy{
		StartToCloseTimeout: 5 * time.Second,
		RetryInterval:       time.Millisecond,
		MaximumAttempts:     2,
	}
	if err := order.RegisterActivities(registry, stubGateway{}, stubNotifier{}, policy); err != nil {
		t.Fatalf("RegisterActivities failed: %v", err)
	}

	log := testLogger()
	store := memory.NewMemoryStorage()
	bus := signal.NewLocalBus(16)
	clock := engine.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	eng := engine.New(store, bus, activity.NewExecutor(registry, log), log, engine.WithClock(clock))
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		eng.Stop(ctx)
		bus.Close()
	})

	return order.NewService(eng, store, bus, order.DefaultTimings(), log), eng
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func placeOrder(t *testing.T, svc *order.Service) string {
	t.Helper()
	orderID, err := svc.StartOrder(context.Background(), 1)
	if err != nil {
		t.Fatalf("StartOrder failed: %v", err)
	}
	return orderID
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())

	body, _ := json.Marshal(CreateOrderRequest{ProductID: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.CreateOrder(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("CreateOrder() status = %v, want %v, body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp CreateOrderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.OrderID == "" {
		t.Error("Expected order ID in response")
	}
	if resp.State != string(order.StateCharging) {
		t.Errorf("Response state = %v, want %v", resp.State, order.StateCharging)
	}
}

func TestOrderHandler_CreateOrder_InvalidJSON(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{invalid json")))
	w := httptest.NewRecorder()

	handler.CreateOrder(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("CreateOrder() with invalid JSON status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestOrderHandler_CreateOrder_UnknownProduct(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())

	body, _ := json.Marshal(CreateOrderRequest{ProductID: 999})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.CreateOrder(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("CreateOrder() with unknown product status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestOrderHandler_CreateOrder_MissingProductID(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader([]byte("{}")))
	w := httptest.NewRecorder()

	handler.CreateOrder(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("CreateOrder() without product_id status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestOrderHandler_GetOrder_Success(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID, nil)
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.GetOrder(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GetOrder() status = %v, want %v, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp OrderView
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.OrderID != orderID {
		t.Errorf("Response order_id = %v, want %v", resp.OrderID, orderID)
	}
	if resp.ProductID != 1 {
		t.Errorf("Response product_id = %v, want 1", resp.ProductID)
	}
	if resp.State == "" {
		t.Error("Expected a state in response")
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil)
	req = withURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.GetOrder(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("GetOrder() for missing order status = %v, want %v", w.Code, http.StatusNotFound)
	}
}

func TestOrderHandler_ListOrders(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	placeOrder(t, svc)
	placeOrder(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=50", nil)
	w := httptest.NewRecorder()

	handler.ListOrders(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ListOrders() status = %v, want %v, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp OrderListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Total < 2 {
		t.Errorf("Expected at least 2 orders, got %d", resp.Total)
	}
	if len(resp.Orders) < 2 {
		t.Errorf("Expected at least 2 order views, got %d", len(resp.Orders))
	}
}

func TestOrderHandler_GetHistory(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID+"/history", nil)
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.GetHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GetHistory() status = %v, want %v, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		OrderID string             `json:"order_id"`
		Events  []HistoryEventView `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.OrderID != orderID {
		t.Errorf("Response order_id = %v, want %v", resp.OrderID, orderID)
	}
	if len(resp.Events) == 0 {
		t.Error("Expected at least one history event")
	}
}

func TestOrderHandler_SendSignal_Accepted(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	body, _ := json.Marshal(SignalRequest{Kind: "pickup"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/signals", bytes.NewReader(body))
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.SendSignal(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("SendSignal() status = %v, want %v, body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}
}

func TestOrderHandler_SendSignal_InvalidKind(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	body, _ := json.Marshal(SignalRequest{Kind: "teleport"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/signals", bytes.NewReader(body))
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.SendSignal(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("SendSignal() with invalid kind status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}

func TestOrderHandler_CancelOrder(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	body, _ := json.Marshal(CancelRequest{Reason: "Changed my mind."})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", bytes.NewReader(body))
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.CancelOrder(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("CancelOrder() status = %v, want %v, body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "cancel_requested" {
		t.Errorf("Response status = %v, want cancel_requested", resp["status"])
	}
}

func TestOrderHandler_CancelOrder_EmptyBody(t *testing.T) {
	svc, _ := createTestService(t)
	handler := NewOrderHandler(svc, testLogger())
	orderID := placeOrder(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/cancel", nil)
	req = withURLParam(req, "id", orderID)
	w := httptest.NewRecorder()

	handler.CancelOrder(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("CancelOrder() with empty body status = %v, want %v", w.Code, http.StatusAccepted)
	}
}
