package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

const requestTimeout = 30 * time.Second

// Routes is implemented by handlers that add endpoints to the shared mux
type Routes interface {
	Register(mux *http.ServeMux)
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handler handles HTTP requests for the order service
type Handler struct {
	service *Service
	logger  *logger.Logger
	checks  map[string]HealthCheck
}

// NewHandler creates a new order handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
		checks:  map[string]HealthCheck{"store": service.HealthCheck},
	}
}

// AddHealthCheck includes another dependency in GET /health
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// SetupRoutes builds the mux for this handler and any extra route sets
func (h *Handler) SetupRoutes(extra ...Routes) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	for _, r := range extra {
		r.Register(mux)
	}
	return h.withLogging(mux)
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.CreateOrder)
	mux.HandleFunc("POST /orders/{id}/approve", h.ApproveOrder)
	mux.HandleFunc("POST /orders/{id}/items", h.AddItems)
	mux.HandleFunc("POST /orders/{id}/cancel", h.CancelOrder)
	mux.HandleFunc("POST /orders/{id}/ready", h.MarkOrderReady)
	mux.HandleFunc("POST /orders/{id}/items/{itemId}/ready", h.MarkItemReady)
	mux.HandleFunc("POST /orders/{id}/served", h.MarkOrderServed)
	mux.HandleFunc("POST /orders/{id}/items/{itemId}/served", h.MarkItemServed)
	mux.HandleFunc("POST /orders/{id}/pay", h.Pay)
	mux.HandleFunc("POST /payments/{id}/confirm", h.ConfirmPayment)
	mux.HandleFunc("GET /health", h.HealthCheck)
}

// CreateOrder handles POST /orders requests
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())

	var req models.CreateOrderRequest
	if err := h.decode(r, &req, false); err != nil {
		h.logger.Warn("validation_failed", "Failed to parse request body", requestID, map[string]interface{}{
			"error": err.Error(),
		})
		h.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.service.CreateOrder(ctx, &req, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusCreated, o, requestID)
}

// ApproveOrder handles POST /orders/{id}/approve
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	var req models.ApproveRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.service.ApproveOrder(ctx, orderID, &req, requestID)
	h.respond(w, o, err, requestID)
}

// AddItems handles POST /orders/{id}/items
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	var req models.AddItemsRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.service.AddItems(ctx, orderID, &req, requestID)
	h.respond(w, o, err, requestID)
}

// CancelOrder handles POST /orders/{id}/cancel; the body is optional
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	var req models.CancelRequest
	if err := h.decode(r, &req, true); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.service.CancelOrder(ctx, orderID, &req, requestID)
	h.respond(w, o, err, requestID)
}

func (h *Handler) MarkOrderReady(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.service.MarkOrderReady)
}

func (h *Handler) MarkOrderServed(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, h.service.MarkOrderServed)
}

func (h *Handler) MarkItemReady(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.service.MarkItemReady)
}

func (h *Handler) MarkItemServed(w http.ResponseWriter, r *http.Request) {
	h.itemAction(w, r, h.service.MarkItemServed)
}

// Pay handles POST /orders/{id}/pay. A payment waiting on the customer is
// answered with 202.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	var req models.PayRequest
	if err := h.decode(r, &req, false); err != nil {
		h.writeError(w, err, requestID)
		return
	}

	res, err := h.service.Pay(r.Context(), orderID, &req, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, paymentStatusCode(res), res, requestID)
}

// ConfirmPayment handles POST /payments/{id}/confirm
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	requestID := logger.RequestIDFrom(r.Context())
	paymentID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	res, err := h.service.ConfirmPayment(r.Context(), paymentID, requestID)
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, paymentStatusCode(res), res, requestID)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	response := map[string]interface{}{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"service":      "order-service",
		"healthy":      healthy,
		"dependencies": deps,
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, code, response, "")
}

type orderActionFunc func(ctx context.Context, orderID uuid.UUID, requestID string) (*models.Order, error)

type itemActionFunc func(ctx context.Context, orderID, itemID uuid.UUID, requestID string) (*models.Order, error)

func (h *Handler) orderAction(w http.ResponseWriter, r *http.Request, action orderActionFunc) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := action(ctx, orderID, requestID)
	h.respond(w, o, err, requestID)
}

func (h *Handler) itemAction(w http.ResponseWriter, r *http.Request, action itemActionFunc) {
	requestID := logger.RequestIDFrom(r.Context())
	orderID, ok := h.pathID(w, r, "id", requestID)
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemId", requestID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := action(ctx, orderID, itemID, requestID)
	h.respond(w, o, err, requestID)
}

func paymentStatusCode(res *PaymentResult) int {
	if res.Payment.Status == models.PaymentPending {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.writeError(w, ValidationError{Field: name, Message: "must be a valid UUID"}, requestID)
		return uuid.Nil, false
	}
	return id, true
}

// decode reads a JSON body. Unknown fields are rejected.
func (h *Handler) decode(r *http.Request, v interface{}, optional bool) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return ValidationError{Field: "Content-Type", Message: "must be application/json"}
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		return ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, o *models.Order, err error, requestID string) {
	if err != nil {
		h.writeError(w, err, requestID)
		return
	}
	h.writeJSON(w, http.StatusOK, o, requestID)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", requestID, err, nil)
	}
}

// writeError maps service errors to status codes and writes the error body
func (h *Handler) writeError(w http.ResponseWriter, err error, requestID string) {
	statusCode := StatusCode(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		message = "Internal server error"
	}
	h.writeErrorResponse(w, statusCode, string(ReasonOf(err)), message, requestID)
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

// StatusCode maps an error from the service to its HTTP status
func StatusCode(err error) int {
	var (
		ve ValidationError
		ce *ConflictError
		ne *NotFoundError
		se *StockError
		ge *GatewayError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &ne):
		return http.StatusNotFound
	case errors.As(err, &ce):
		if ce.Reason == ReasonItemNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusConflict
	case errors.As(err, &ge):
		switch {
		case errors.Is(ge.Err, ErrPaymentDeclined):
			return http.StatusPaymentRequired
		case errors.Is(ge.Err, ErrGatewayTimeout):
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))
		w.Header().Set("X-Request-ID", requestID)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
