package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

// Reader is the read side of the order store
type Reader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error)
	StatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusLogEntry, error)
}

// StaffLister lists staff on duty for a role
type StaffLister interface {
	ActiveStaff(ctx context.Context, role models.Role) ([]models.Staff, error)
}

// Summary is the customer facing view of one order
type Summary struct {
	Order         models.Order              `json:"order"`
	ItemsByStatus map[models.ItemStatus]int `json:"itemsByStatus"`
	Totals        order.Totals              `json:"totals"`
	CanPay        bool                      `json:"canPay"`
	CanAddItems   bool                      `json:"canAddItems"`
	PayableAmount int64                     `json:"payableAmount"`
}

// QueueEntry is one order on a staff screen
type QueueEntry struct {
	OrderID      uuid.UUID          `json:"orderId"`
	TableID      string             `json:"tableId"`
	Status       models.OrderStatus `json:"status"`
	Items        []models.LineItem  `json:"items"`
	PendingItems int                `json:"pendingItems"`
	CreatedAt    string             `json:"createdAt"`
	UpdatedAt    string             `json:"updatedAt"`
}

// Service provides tracking functionality
type Service struct {
	reader Reader
	staff  StaffLister
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(reader Reader, staff StaffLister, log *logger.Logger) *Service {
	return &Service{
		reader: reader,
		staff:  staff,
		logger: log,
	}
}

// Summary builds the order view with what the customer may do next
func (s *Service) Summary(ctx context.Context, orderID uuid.UUID, requestID string) (*Summary, error) {
	o, err := s.reader.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.readError(err, "order", orderID, requestID)
	}

	sum := &Summary{
		Order:         *o,
		ItemsByStatus: o.CountByStatus(),
		Totals: order.Totals{
			Subtotal:   o.Subtotal,
			Tax:        o.Tax,
			Tip:        o.Tip,
			GrandTotal: o.Total + o.Tip,
		},
		CanPay:      o.CanPay(),
		CanAddItems: o.CanAddItems(),
	}
	sum.PayableAmount = sum.Totals.GrandTotal
	return sum, nil
}

// History returns the committed status changes of an order, oldest first
func (s *Service) History(ctx context.Context, orderID uuid.UUID, requestID string) ([]models.StatusLogEntry, error) {
	history, err := s.reader.StatusHistory(ctx, orderID)
	if err != nil {
		return nil, s.readError(err, "history", orderID, requestID)
	}
	return history, nil
}

// KitchenQueue lists orders the kitchen still works on, oldest first
func (s *Service) KitchenQueue(ctx context.Context, requestID string) ([]QueueEntry, error) {
	orders, err := s.list(ctx, requestID, models.StatusKitchen, models.StatusReadyToServe)
	if err != nil {
		return nil, err
	}
	return entries(orders, func(it models.LineItem) bool { return it.Status == models.ItemKitchen }), nil
}

// WaiterQueue lists orders ready to serve, the longest waiting first
func (s *Service) WaiterQueue(ctx context.Context, requestID string) ([]QueueEntry, error) {
	orders, err := s.list(ctx, requestID, models.StatusReadyToServe)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].UpdatedAt.Before(orders[j].UpdatedAt)
	})
	return entries(orders, func(it models.LineItem) bool { return it.Status == models.ItemReadyToServe }), nil
}

// Approvals lists orders holding items that wait for a waiter
func (s *Service) Approvals(ctx context.Context, requestID string) ([]QueueEntry, error) {
	orders, err := s.list(ctx, requestID)
	if err != nil {
		return nil, err
	}

	pending := orders[:0]
	for _, o := range orders {
		if o.Status == models.StatusAwaitingApproval {
			pending = append(pending, o)
			continue
		}
		if !o.Status.IsTerminal() && o.CountByStatus()[models.ItemPending] > 0 {
			pending = append(pending, o)
		}
	}
	return entries(pending, func(it models.LineItem) bool { return it.Status == models.ItemPending }), nil
}

// Staff lists active staff for a role without their credentials
func (s *Service) Staff(ctx context.Context, role models.Role, requestID string) ([]models.Staff, error) {
	if !role.IsValid() {
		return nil, order.ValidationError{Field: "role", Message: "must be kitchen, waiter or owner"}
	}
	members, err := s.staff.ActiveStaff(ctx, role)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to list staff", requestID, err, map[string]interface{}{
			"role": role,
		})
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return members, nil
}

func (s *Service) list(ctx context.Context, requestID string, statuses ...models.OrderStatus) ([]models.Order, error) {
	orders, err := s.reader.ListOrders(ctx, statuses...)
	if err != nil {
		s.logger.Error("db_query_failed", "Failed to list orders", requestID, err, map[string]interface{}{
			"statuses": statuses,
		})
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) readError(err error, what string, orderID uuid.UUID, requestID string) error {
	if errors.Is(err, order.ErrOrderNotFound) {
		return &order.NotFoundError{Reason: order.ReasonOrderNotFound, ID: orderID}
	}
	s.logger.Error("db_query_failed", fmt.Sprintf("Failed to load %s", what), requestID, err, map[string]interface{}{
		"order_id": orderID,
	})
	return fmt.Errorf("load %s: %w", what, err)
}

func entries(orders []models.Order, pending func(models.LineItem) bool) []QueueEntry {
	out := make([]QueueEntry, 0, len(orders))
	for _, o := range orders {
		e := QueueEntry{
			OrderID:   o.ID,
			TableID:   o.TableID,
			Status:    o.Status,
			Items:     o.Items,
			CreatedAt: o.CreatedAt.Format(timeLayout),
			UpdatedAt: o.UpdatedAt.Format(timeLayout),
		}
		for _, it := range o.Items {
			if pending(it) {
				e.PendingItems++
			}
		}
		out = append(out, e)
	}
	return out
}
