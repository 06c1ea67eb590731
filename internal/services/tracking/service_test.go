package tracking_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/adapter/memory"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
	"github.com/Arielutooo/restaurant-app/internal/services/tracking"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func put(t *testing.T, store *memory.Store, status models.OrderStatus, created, updated int, items ...models.ItemStatus) models.Order {
	t.Helper()
	o := models.Order{
		ID:        uuid.New(),
		TableID:   "5",
		SessionID: "s",
		Status:    status,
		Subtotal:  2000,
		Tax:       380,
		Total:     2380,
		CreatedAt: base.Add(time.Duration(created) * time.Minute),
		UpdatedAt: base.Add(time.Duration(updated) * time.Minute),
	}
	for _, st := range items {
		o.Items = append(o.Items, models.LineItem{ID: uuid.New(), Name: "Burger", Price: 1000, Quantity: 1, Status: st})
	}
	err := store.WithTx(context.Background(), func(tx order.Tx) error {
		if err := tx.Orders().Insert(context.Background(), &o); err != nil {
			return err
		}
		return tx.Orders().AppendStatusLog(context.Background(), o.ID, models.StatusLogEntry{
			Status: status, ChangedBy: "customer", ChangedAt: o.CreatedAt,
		})
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return o
}

func ids(entries []tracking.QueueEntry) []uuid.UUID {
	out := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		out[i] = e.OrderID
	}
	return out
}

func TestSummary(t *testing.T) {
	store := memory.NewStore()
	svc := tracking.NewService(store, store, logger.Nop())

	served := put(t, store, models.StatusServed, 0, 1, models.ItemServed, models.ItemServed)
	paid := put(t, store, models.StatusPaid, 0, 1, models.ItemServed)

	tests := []struct {
		name        string
		id          uuid.UUID
		canPay      bool
		canAddItems bool
	}{
		{"served", served.ID, true, true},
		{"paid", paid.ID, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := svc.Summary(context.Background(), tt.id, "test")
			if err != nil {
				t.Fatalf("Summary() error = %v", err)
			}
			if sum.CanPay != tt.canPay || sum.CanAddItems != tt.canAddItems {
				t.Errorf("canPay/canAddItems = %v/%v, want %v/%v", sum.CanPay, sum.CanAddItems, tt.canPay, tt.canAddItems)
			}
			if sum.PayableAmount != 2380 {
				t.Errorf("payable = %d, want 2380", sum.PayableAmount)
			}
		})
	}

	sum, _ := svc.Summary(context.Background(), served.ID, "test")
	if sum.ItemsByStatus[models.ItemServed] != 2 || sum.ItemsByStatus[models.ItemPending] != 0 {
		t.Errorf("itemsByStatus = %v", sum.ItemsByStatus)
	}

	_, err := svc.Summary(context.Background(), uuid.New(), "test")
	if order.ReasonOf(err) != order.ReasonOrderNotFound {
		t.Errorf("missing order error = %v", err)
	}
}

func TestQueues(t *testing.T) {
	store := memory.NewStore()
	svc := tracking.NewService(store, store, logger.Nop())
	ctx := context.Background()

	oldKitchen := put(t, store, models.StatusKitchen, 0, 5, models.ItemKitchen, models.ItemReadyToServe)
	readyLate := put(t, store, models.StatusReadyToServe, 1, 9, models.ItemReadyToServe)
	readyEarly := put(t, store, models.StatusReadyToServe, 2, 3, models.ItemReadyToServe)
	awaiting := put(t, store, models.StatusAwaitingApproval, 3, 3, models.ItemPending)
	lateItems := put(t, store, models.StatusServed, 4, 4, models.ItemServed, models.ItemPending)
	put(t, store, models.StatusPaid, 5, 5, models.ItemServed)

	kitchen, err := svc.KitchenQueue(ctx, "test")
	if err != nil {
		t.Fatalf("KitchenQueue() error = %v", err)
	}
	want := []uuid.UUID{oldKitchen.ID, readyLate.ID, readyEarly.ID}
	if got := ids(kitchen); !equal(got, want) {
		t.Errorf("kitchen queue = %v, want %v", got, want)
	}
	if kitchen[0].PendingItems != 1 {
		t.Errorf("kitchen pending items = %d, want 1", kitchen[0].PendingItems)
	}

	waiter, err := svc.WaiterQueue(ctx, "test")
	if err != nil {
		t.Fatalf("WaiterQueue() error = %v", err)
	}
	want = []uuid.UUID{readyEarly.ID, readyLate.ID}
	if got := ids(waiter); !equal(got, want) {
		t.Errorf("waiter queue = %v, want %v", got, want)
	}

	approvals, err := svc.Approvals(ctx, "test")
	if err != nil {
		t.Fatalf("Approvals() error = %v", err)
	}
	want = []uuid.UUID{awaiting.ID, lateItems.ID}
	if got := ids(approvals); !equal(got, want) {
		t.Errorf("approvals = %v, want %v", got, want)
	}
}

func TestHandlerRoutes(t *testing.T) {
	store := memory.NewStore()
	svc := tracking.NewService(store, store, logger.Nop())
	o := put(t, store, models.StatusKitchen, 0, 0, models.ItemKitchen)

	mux := http.NewServeMux()
	tracking.NewHandler(svc, logger.Nop()).Register(mux)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"summary", "/orders/" + o.ID.String(), http.StatusOK},
		{"history", "/orders/" + o.ID.String() + "/history", http.StatusOK},
		{"missing", "/orders/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/orders/abc/history", http.StatusBadRequest},
		{"kitchen", "/kitchen/orders", http.StatusOK},
		{"waiter", "/waiter/queue", http.StatusOK},
		{"approvals", "/waiter/approvals", http.StatusOK},
		{"staff", "/staff/waiter", http.StatusOK},
		{"bad role", "/staff/chef", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+o.ID.String()+"/history", nil))
	var history []models.StatusLogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Status != models.StatusKitchen {
		t.Errorf("history = %+v", history)
	}
}

func equal(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
