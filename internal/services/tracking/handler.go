package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

const timeLayout = time.RFC3339

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// Register adds the read endpoints to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /orders/{id}", h.GetOrder)
	mux.HandleFunc("GET /orders/{id}/history", h.GetOrderHistory)
	mux.HandleFunc("GET /kitchen/orders", h.GetKitchenOrders)
	mux.HandleFunc("GET /waiter/queue", h.GetWaiterQueue)
	mux.HandleFunc("GET /waiter/approvals", h.GetApprovals)
	mux.HandleFunc("GET /staff/{role}", h.GetStaff)
}

// GetOrder handles GET /orders/{id} requests
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.orderID(w, r, requestID)
	if !ok {
		return
	}

	h.logger.Debug("request_received", "Get order summary request", requestID, map[string]interface{}{
		"order_id": orderID,
		"endpoint": "summary",
	})

	summary, err := h.service.Summary(r.Context(), orderID, requestID)
	h.respond(w, summary, err, requestID)
}

// GetOrderHistory handles GET /orders/{id}/history requests
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.orderID(w, r, requestID)
	if !ok {
		return
	}

	h.logger.Debug("request_received", "Get order history request", requestID, map[string]interface{}{
		"order_id": orderID,
		"endpoint": "history",
	})

	history, err := h.service.History(r.Context(), orderID, requestID)
	h.respond(w, history, err, requestID)
}

func (h *Handler) GetKitchenOrders(w http.ResponseWriter, r *http.Request) {
	h.queue(w, r, h.service.KitchenQueue)
}

func (h *Handler) GetWaiterQueue(w http.ResponseWriter, r *http.Request) {
	h.queue(w, r, h.service.WaiterQueue)
}

func (h *Handler) GetApprovals(w http.ResponseWriter, r *http.Request) {
	h.queue(w, r, h.service.Approvals)
}

// GetStaff handles GET /staff/{role} requests
func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	members, err := h.service.Staff(r.Context(), models.Role(r.PathValue("role")), requestID)
	h.respond(w, members, err, requestID)
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request, list func(context.Context, string) ([]QueueEntry, error)) {
	requestID := logger.RequestIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	entries, err := list(ctx, requestID)
	h.respond(w, entries, err, requestID)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, string(order.ReasonValidation), "Invalid order id", requestID)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respond(w http.ResponseWriter, v interface{}, err error, requestID string) {
	if err != nil {
		code := order.StatusCode(err)
		message := err.Error()
		if code == http.StatusInternalServerError {
			message = "Internal server error"
		}
		h.writeErrorResponse(w, code, string(order.ReasonOf(err)), message, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, reason, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error":      reason,
		"message":    message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	}

	json.NewEncoder(w).Encode(errorResponse)
}
