package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dishpatch/dishpatch/pkg/api/middleware"
	"github.com/dishpatch/dishpatch/pkg/api/response"
	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/logger"
	"github.com/dishpatch/dishpatch/pkg/order"
	"github.com/dishpatch/dishpatch/pkg/signal"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	ProductID int `json:"product_id" validate:"required,gt=0"`
}

// CreateOrderResponse confirms an accepted order.
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
}

// SignalRequest is the payload for the signal ingress endpoint.
type SignalRequest struct {
	Kind string `json:"kind" validate:"required,oneof=pickup delivery"`
}

// CancelRequest is the payload for cancelling an order.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// OrderView is the status representation returned by order endpoints.
type OrderView struct {
	OrderID     string `json:"order_id"`
	ProductID   int    `json:"product_id"`
	State       string `json:"state"`
	DeliveredAt string `json:"delivered_at,omitempty"`
	Result      string `json:"result,omitempty"`
}

// OrderListResponse is the paginated order listing.
type OrderListResponse struct {
	Orders []OrderView `json:"orders"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// HistoryEventView is one journal entry in an order's history.
type HistoryEventView struct {
	Sequence  uint64 `json:"sequence"`
	Type      string `json:"type"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// OrderHandler handles order-related endpoints.
type OrderHandler struct {
	service   *order.Service
	logger    logger.Logger
	validator *validator.Validate
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(svc *order.Service, log logger.Logger) *OrderHandler {
	return &OrderHandler{
		service:   svc,
		logger:    log,
		validator: validator.New(),
	}
}

// CreateOrder handles POST /api/v1/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	orderID, err := h.service.StartOrder(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProduct) {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Unknown product", getRequestID(ctx))
			return
		}
		h.logger.Error("order placement failed", "product_id", req.ProductID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to place order", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID: orderID,
		State:   string(order.StateCharging),
	})
}

// GetOrder handles GET /api/v1/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")

	view, err := h.service.Status(ctx, orderID)
	if err != nil {
		h.writeLookupError(w, ctx, orderID, err)
		return
	}

	out := OrderView{
		OrderID:   view.OrderID,
		ProductID: view.ProductID,
		State:     string(view.State),
	}
	if view.DeliveredAt != nil {
		out.DeliveredAt = view.DeliveredAt.UTC().Format(time.RFC3339Nano)
	}
	if view.State.IsTerminal() {
		if result, err := h.service.Result(ctx, orderID); err == nil {
			out.Result = result
		}
	}

	response.JSON(w, http.StatusOK, out)
}

// ListOrders handles GET /api/v1/orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := &storage.OrderFilter{Limit: 10}
	if state := r.URL.Query().Get("state"); state != "" {
		filter.States = []string{state}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	records, total, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.Error("order listing failed", "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to list orders", getRequestID(ctx))
		return
	}

	out := OrderListResponse{
		Orders: make([]OrderView, 0, len(records)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for _, record := range records {
		view := OrderView{
			OrderID:   record.ID,
			ProductID: record.ProductID,
			State:     record.State,
			Result:    record.Result,
		}
		if record.DeliveredAt != nil {
			view.DeliveredAt = record.DeliveredAt.UTC().Format(time.RFC3339Nano)
		}
		out.Orders = append(out.Orders, view)
	}

	response.JSON(w, http.StatusOK, out)
}

// GetHistory handles GET /api/v1/orders/{id}/history.
func (h *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")

	events, err := h.service.History(ctx, orderID)
	if err != nil {
		h.writeLookupError(w, ctx, orderID, err)
		return
	}

	out := make([]HistoryEventView, 0, len(events))
	for _, event := range events {
		out = append(out, HistoryEventView{
			Sequence:  event.Sequence,
			Type:      string(event.Type),
			Detail:    event.Detail,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"order_id": orderID,
		"events":   out,
	})
}

// SendSignal handles POST /api/v1/orders/{id}/signals.
func (h *OrderHandler) SendSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")

	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	if err := h.service.Signal(ctx, orderID, signal.Kind(req.Kind)); err != nil {
		h.logger.Error("signal publish failed", "order_id", orderID, "kind", req.Kind, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to deliver signal", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusAccepted, map[string]string{
		"order_id": orderID,
		"kind":     req.Kind,
	})
}

// CancelOrder handles POST /api/v1/orders/{id}/cancel.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "id")

	var req CancelRequest
	if r.Body != nil {
		// An empty body means cancel with the default reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Cancel(ctx, orderID, req.Reason); err != nil {
		h.logger.Error("cancel publish failed", "order_id", orderID, "error", err)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to cancel order", getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusAccepted, map[string]string{
		"order_id": orderID,
		"status":   "cancel_requested",
	})
}

func (h *OrderHandler) writeLookupError(w http.ResponseWriter, ctx context.Context, orderID string, err error) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Order not found", getRequestID(ctx))
		return
	}
	h.logger.Error("order lookup failed", "order_id", orderID, "error", err)
	response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, "Failed to load order", getRequestID(ctx))
}

// getRequestID extracts the request ID from the request context.
func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}
