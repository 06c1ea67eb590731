//go:build integration

package db_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Arielutooo/restaurant-app/internal/adapter/crm"
	"github.com/Arielutooo/restaurant-app/internal/adapter/db"
	"github.com/Arielutooo/restaurant-app/internal/adapter/notify"
	"github.com/Arielutooo/restaurant-app/internal/adapter/payment"
	"github.com/Arielutooo/restaurant-app/internal/database"
	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("restaurant_test"),
		tcpostgres.WithUsername("restaurant"),
		tcpostgres.WithPassword("restaurant"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	conn, err := database.Connect(ctx, url, logger.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(conn.Close)

	if err := conn.RunMigrations(ctx, "../../../migrations"); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db.NewStore(conn)
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	burger := models.MenuItem{ID: uuid.New(), Name: "Test Burger", Price: 1000, Available: true, Stock: 3}
	if err := store.UpsertMenuItem(ctx, burger); err != nil {
		t.Fatalf("UpsertMenuItem() error = %v", err)
	}

	svc := order.NewService(store, notify.Noop{}, payment.NewSimulated(0), nil, crm.Noop{}, logger.Nop(), order.Options{TaxRate: 0.19})
	approval := false
	o, err := svc.CreateOrder(ctx, &models.CreateOrderRequest{
		TableID:          "4",
		SessionID:        "s-1",
		Items:            []models.ItemRequest{{MenuItemID: burger.ID, Quantity: 2}},
		RequiresApproval: &approval,
	}, "test")
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if _, err := svc.MarkItemReady(ctx, o.ID, o.Items[0].ID, "test"); err != nil {
		t.Fatalf("MarkItemReady() error = %v", err)
	}

	got, err := store.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != models.StatusReadyToServe || got.Items[0].Status != models.ItemReadyToServe {
		t.Errorf("order = %s/%s, want ready_to_serve", got.Status, got.Items[0].Status)
	}
	if got.Total != 2380 {
		t.Errorf("total = %d, want 2380", got.Total)
	}

	history, err := store.StatusHistory(ctx, o.ID)
	if err != nil {
		t.Fatalf("StatusHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}

	ready, err := store.ListOrders(ctx, models.StatusReadyToServe)
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(ready) != 1 || len(ready[0].Items) != 1 {
		t.Errorf("ListOrders() = %+v", ready)
	}
}

func TestPostgresStockNeverOversells(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := models.MenuItem{ID: uuid.New(), Name: "Limited", Price: 500, Available: true, Stock: 5}
	if err := store.UpsertMenuItem(ctx, item); err != nil {
		t.Fatalf("UpsertMenuItem() error = %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithTx(ctx, func(tx order.Tx) error {
				return tx.Catalog().DecrementStock(ctx, item.ID, 1)
			})
			if err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			} else if !errors.Is(err, order.ErrInsufficientStock) {
				t.Errorf("DecrementStock() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if reserved != 5 {
		t.Errorf("reserved = %d, want 5", reserved)
	}
}

func TestPostgresRollbackRestoresStock(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	item := models.MenuItem{ID: uuid.New(), Name: "Soup", Price: 700, Available: true, Stock: 2}
	if err := store.UpsertMenuItem(ctx, item); err != nil {
		t.Fatalf("UpsertMenuItem() error = %v", err)
	}

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx order.Tx) error {
		if err := tx.Catalog().DecrementStock(ctx, item.ID, 2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	menu, err := store.ListMenu(ctx)
	if err != nil {
		t.Fatalf("ListMenu() error = %v", err)
	}
	for _, m := range menu {
		if m.ID == item.ID && m.Stock != 2 {
			t.Errorf("stock = %d after rollback, want 2", m.Stock)
		}
	}
}

func TestPostgresMissingPayment(t *testing.T) {
	store := newStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := store.GetPayment(ctx, uuid.New())
	if !errors.Is(err, order.ErrPaymentNotFound) {
		t.Errorf("GetPayment() error = %v, want ErrPaymentNotFound", err)
	}
}
