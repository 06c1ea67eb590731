package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

func newServer(t *testing.T, f *fixture) http.Handler {
	t.Helper()
	return order.NewHandler(f.svc, logger.Nop()).SetupRoutes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHandlerCreateOrder(t *testing.T) {
	f := newFixture(t)
	h := newServer(t, f)

	body := `{"tableId":"3","sessionId":"s-1","requiresApproval":false,"items":[{"itemId":"` + f.burger.ID.String() + `","quantity":2}]}`
	rec := do(t, h, http.MethodPost, "/orders", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var o models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if o.Status != models.StatusKitchen || o.Total != 2380 {
		t.Errorf("order = %s/%d, want kitchen/2380", o.Status, o.Total)
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	h := newServer(t, f)
	kitchen := f.create(t, false)
	unknown := uuid.NewString()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantCode   int
		wantReason string
	}{
		{
			name: "unknown field", method: http.MethodPost, path: "/orders",
			body: `{"tableId":"1","sessionId":"s","bogus":true}`, wantCode: http.StatusBadRequest, wantReason: "VALIDATION_ERROR",
		},
		{
			name: "bad uuid", method: http.MethodPost, path: "/orders/nope/ready",
			wantCode: http.StatusBadRequest, wantReason: "VALIDATION_ERROR",
		},
		{
			name: "missing order", method: http.MethodPost, path: "/orders/" + unknown + "/ready",
			wantCode: http.StatusNotFound, wantReason: "ORDER_NOT_FOUND",
		},
		{
			name: "missing item", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/items/" + unknown + "/ready",
			wantCode: http.StatusNotFound, wantReason: "ITEM_NOT_FOUND",
		},
		{
			name: "pay before served", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/pay",
			body: `{"method":"cash"}`, wantCode: http.StatusConflict, wantReason: "ORDER_NOT_SERVED",
		},
		{
			name: "overflowing tip", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/pay",
			body: `{"method":"cash","tip":9223372036854775807}`, wantCode: http.StatusBadRequest, wantReason: "VALIDATION_ERROR",
		},
		{
			name: "served before ready", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/served",
			wantCode: http.StatusConflict, wantReason: "ORDER_NOT_READY",
		},
		{
			name: "wrong pin", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/approve",
			body: `{"waiterPin":"0000"}`, wantCode: http.StatusUnauthorized, wantReason: "INVALID_CREDENTIALS",
		},
		{
			name: "out of stock", method: http.MethodPost, path: "/orders/" + kitchen.ID.String() + "/items",
			body:     `{"requiresApproval":false,"items":[{"itemId":"` + f.fries.ID.String() + `","quantity":5}]}`,
			wantCode: http.StatusConflict, wantReason: "INSUFFICIENT_STOCK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body["error"] != tt.wantReason {
				t.Errorf("error = %v, want %s", body["error"], tt.wantReason)
			}
			if body["request_id"] == "" {
				t.Error("missing request_id")
			}
		})
	}
}

func TestHandlerPayFlow(t *testing.T) {
	f := newFixture(t)
	h := newServer(t, f)
	o := f.served(t)

	rec := do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/pay", `{"method":"cash","tip":200}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res order.PaymentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Order.Status != models.StatusPaid {
		t.Errorf("status = %s, want paid", res.Order.Status)
	}
	if res.PayableAmount != res.Order.Total+200 {
		t.Errorf("payable = %d, want total+tip", res.PayableAmount)
	}
}

func TestHandlerPayPendingReturnsAccepted(t *testing.T) {
	f := newFixture(t)
	h := newServer(t, f)
	o := f.served(t)
	f.gateway.set(func(g *fakeGateway) { g.status = models.PaymentPending })

	rec := do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/pay", `{"method":"webpay"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res order.PaymentResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	f.gateway.set(func(g *fakeGateway) { g.status = models.PaymentSuccess })
	rec = do(t, h, http.MethodPost, "/payments/"+res.Payment.ID.String()+"/confirm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlerCancelWithoutBody(t *testing.T) {
	f := newFixture(t)
	h := newServer(t, f)
	o := f.create(t, false)

	rec := do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/orders/"+o.ID.String()+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", rec.Code)
	}
}

func TestHandlerHealth(t *testing.T) {
	f := newFixture(t)
	handler := order.NewHandler(f.svc, logger.Nop())
	h := handler.SetupRoutes()

	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	handler.AddHealthCheck("broker", func(context.Context) error { return errors.New("down") })
	rec = do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", order.ValidationError{Field: "x"}, http.StatusBadRequest},
		{"not found", &order.NotFoundError{Reason: order.ReasonOrderNotFound}, http.StatusNotFound},
		{"conflict", &order.ConflictError{Reason: order.ReasonOrderAlreadyPaid}, http.StatusConflict},
		{"stock", &order.StockError{}, http.StatusConflict},
		{"declined", &order.GatewayError{Err: order.ErrPaymentDeclined}, http.StatusPaymentRequired},
		{"timeout", &order.GatewayError{Err: order.ErrGatewayTimeout}, http.StatusGatewayTimeout},
		{"gateway", &order.GatewayError{Err: errors.New("503")}, http.StatusBadGateway},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := order.StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
