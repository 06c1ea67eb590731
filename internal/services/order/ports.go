package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Store is the persistence boundary of the lifecycle engine.
// Everything done through a Tx commits or rolls back as a unit.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Ping(ctx context.Context) error
}

// Tx exposes the repositories bound to one transaction
type Tx interface {
	Orders() OrderRepository
	Catalog() MenuCatalog
	Payments() PaymentRepository
}

type OrderRepository interface {
	// Lock loads the order and holds it until the transaction ends
	Lock(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Insert(ctx context.Context, o *models.Order) error
	Update(ctx context.Context, o *models.Order) error
	AppendStatusLog(ctx context.Context, orderID uuid.UUID, entry models.StatusLogEntry) error
}

type MenuCatalog interface {
	GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	// DecrementStock fails with ErrInsufficientStock without touching stock
	// when fewer than qty units remain
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
	RestoreStock(ctx context.Context, id uuid.UUID, qty int) error
}

type PaymentRepository interface {
	Insert(ctx context.Context, p *models.Payment) error
	Lock(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Update(ctx context.Context, p *models.Payment) error
	// Pending returns the open payment of an order, or ErrPaymentNotFound
	Pending(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

// Dispatcher delivers notifications. Failures never fail the transition
// that produced them.
type Dispatcher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// GatewayResult is the outcome reported by a payment provider
type GatewayResult struct {
	Status        models.PaymentStatus
	TransactionID string
}

type PaymentGateway interface {
	Initiate(ctx context.Context, amount int64, orderID uuid.UUID, method models.PaymentMethod) (string, error)
	Verify(ctx context.Context, intentRef string) (GatewayResult, error)
}

// WaiterVerifier resolves a waiter PIN to the staff member who approves
type WaiterVerifier interface {
	VerifyWaiter(ctx context.Context, pin string) (uuid.UUID, error)
}

type CRMSink interface {
	Track(ctx context.Context, event models.CRMEvent) error
}
