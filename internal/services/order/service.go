package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/logger"
	"github.com/Arielutooo/restaurant-app/internal/models"
)

const (
	actorCustomer = "customer"
	actorKitchen  = "kitchen"
	actorWaiter   = "waiter"
	actorPayment  = "payment"
)

type Options struct {
	TaxRate         float64
	PaymentTimeout  time.Duration
	DispatchTimeout time.Duration

	// SkipApprovalByDefault applies when a request omits requiresApproval
	SkipApprovalByDefault bool
}

// Service is the order lifecycle engine. Transitions on one order are
// serialized; different orders proceed independently.
type Service struct {
	store      Store
	dispatcher Dispatcher
	gateway    PaymentGateway
	waiters    WaiterVerifier
	crm        CRMSink
	logger     *logger.Logger
	locks      *orderLocks
	opts       Options
	now        func() time.Time
	newID      func() uuid.UUID
}

func NewService(store Store, dispatcher Dispatcher, gateway PaymentGateway, waiters WaiterVerifier, crm CRMSink, log *logger.Logger, opts Options) *Service {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 10 * time.Second
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 5 * time.Second
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		gateway:    gateway,
		waiters:    waiters,
		crm:        crm,
		logger:     log,
		locks:      newOrderLocks(),
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.New,
	}
}

// SetClock replaces the time source used for timestamps
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) env() Env {
	return Env{Now: s.now(), TaxRate: s.opts.TaxRate}
}

func (s *Service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, requestID string) (*models.Order, error) {
	if err := ValidateCreateOrderRequest(req); err != nil {
		s.logger.Warn("validation_failed", err.Error(), requestID, nil)
		return nil, err
	}

	var created models.Order
	var events []models.Event
	err := s.store.WithTx(ctx, func(tx Tx) error {
		items, err := s.reserve(ctx, tx.Catalog(), req.Items)
		if err != nil {
			return err
		}

		o, evs, err := NewOrder(Create{
			ID:               s.newID(),
			TableID:          req.TableID,
			SessionID:        req.SessionID,
			RequiresApproval: requiresApproval(req.RequiresApproval, !s.opts.SkipApprovalByDefault),
			Items:            items,
		}, s.env())
		if err != nil {
			return err
		}

		if err := tx.Orders().Insert(ctx, &o); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		if err := tx.Orders().AppendStatusLog(ctx, o.ID, s.logEntry(o.Status, actorCustomer, "order created")); err != nil {
			return fmt.Errorf("failed to log status: %w", err)
		}
		created, events = o, evs
		return nil
	})
	if err != nil {
		s.logFailure("order_create_failed", "Failed to create order", requestID, err, map[string]interface{}{
			"table_id": req.TableID,
		})
		return nil, err
	}

	s.logger.Info("order_created", "Order created", requestID, map[string]interface{}{
		"order_id":   created.ID,
		"table_id":   created.TableID,
		"status":     created.Status,
		"total":      created.Total,
		"item_count": len(created.Items),
	})
	s.dispatch(ctx, requestID, events)
	s.track(ctx, requestID, models.CRMOrderCreated, map[string]interface{}{
		"orderId":          created.ID,
		"tableId":          created.TableID,
		"sessionId":        created.SessionID,
		"total":            created.Total,
		"itemCount":        len(created.Items),
		"requiresApproval": created.RequiresApproval,
	})
	return &created, nil
}

func (s *Service) ApproveOrder(ctx context.Context, orderID uuid.UUID, req *models.ApproveRequest, requestID string) (*models.Order, error) {
	if err := ValidateApproveRequest(req); err != nil {
		return nil, err
	}
	staffID, err := s.waiters.VerifyWaiter(ctx, req.WaiterPIN)
	if err != nil {
		s.logFailure("approval_rejected", "Waiter credential rejected", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	o, err := s.transition(ctx, orderID, actorWaiter, requestID, fixed(Approve{StaffID: staffID}))
	if err != nil {
		return nil, err
	}
	s.track(ctx, requestID, models.CRMOrderApproved, map[string]interface{}{
		"orderId":    o.ID,
		"approvedBy": staffID,
	})
	return o, nil
}

func (s *Service) AddItems(ctx context.Context, orderID uuid.UUID, req *models.AddItemsRequest, requestID string) (*models.Order, error) {
	if err := ValidateAddItemsRequest(req); err != nil {
		s.logger.Warn("validation_failed", err.Error(), requestID, nil)
		return nil, err
	}

	return s.transition(ctx, orderID, actorCustomer, requestID, func(ctx context.Context, tx Tx, current models.Order) (Command, error) {
		if err := ensureOpen(&current); err != nil {
			return nil, err
		}
		if err := ensureNoPendingPayment(ctx, tx, current); err != nil {
			return nil, err
		}
		items, err := s.reserve(ctx, tx.Catalog(), req.Items)
		if err != nil {
			return nil, err
		}
		return AddItems{Items: items, RequiresApproval: requiresApproval(req.RequiresApproval, !s.opts.SkipApprovalByDefault)}, nil
	})
}

func (s *Service) MarkItemReady(ctx context.Context, orderID, itemID uuid.UUID, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, actorKitchen, requestID, fixed(MarkItemReady{ItemID: itemID}))
}

func (s *Service) MarkOrderReady(ctx context.Context, orderID uuid.UUID, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, actorKitchen, requestID, fixed(MarkOrderReady{}))
}

func (s *Service) MarkItemServed(ctx context.Context, orderID, itemID uuid.UUID, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, actorWaiter, requestID, fixed(MarkItemServed{ItemID: itemID}))
}

func (s *Service) MarkOrderServed(ctx context.Context, orderID uuid.UUID, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, actorWaiter, requestID, fixed(MarkOrderServed{}))
}

// CancelOrder cancels an unpaid order and returns stock held by items the
// kitchen never received.
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, req *models.CancelRequest, requestID string) (*models.Order, error) {
	return s.transition(ctx, orderID, actorWaiter, requestID, func(ctx context.Context, tx Tx, current models.Order) (Command, error) {
		if err := ensureOpen(&current); err != nil {
			return nil, err
		}
		if err := ensureNoPendingPayment(ctx, tx, current); err != nil {
			return nil, err
		}
		for _, it := range current.Items {
			if it.Status != models.ItemPending {
				continue
			}
			if err := tx.Catalog().RestoreStock(ctx, it.MenuItemID, it.Quantity); err != nil && !errors.Is(err, ErrMenuItemNotFound) {
				return nil, fmt.Errorf("failed to restore stock: %w", err)
			}
		}
		return Cancel{}, nil
	}, withNotes(req.Reason))
}

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, &NotFoundError{Reason: ReasonOrderNotFound, ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type prepareFunc func(ctx context.Context, tx Tx, current models.Order) (Command, error)

func fixed(cmd Command) prepareFunc {
	return func(context.Context, Tx, models.Order) (Command, error) {
		return cmd, nil
	}
}

type transitionOption func(*models.StatusLogEntry)

func withNotes(notes string) transitionOption {
	return func(e *models.StatusLogEntry) {
		if notes != "" {
			e.Notes = &notes
		}
	}
}

// transition locks the order, applies the prepared command and commits the
// result. Events are dispatched only after the commit succeeded.
func (s *Service) transition(ctx context.Context, orderID uuid.UUID, actor, requestID string, prepare prepareFunc, opts ...transitionOption) (*models.Order, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	var (
		next    models.Order
		prev    models.OrderStatus
		cmdName string
		events  []models.Event
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		current, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		cmd, err := prepare(ctx, tx, *current)
		if err != nil {
			return err
		}
		cmdName = cmd.Name()

		n, evs, err := Apply(*current, cmd, s.env())
		if err != nil {
			return err
		}
		if err := tx.Orders().Update(ctx, &n); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		if n.Status != current.Status {
			entry := s.logEntry(n.Status, actor, "")
			for _, opt := range opts {
				opt(&entry)
			}
			if err := tx.Orders().AppendStatusLog(ctx, n.ID, entry); err != nil {
				return fmt.Errorf("failed to log status: %w", err)
			}
		}
		next, prev, events = n, current.Status, evs
		return nil
	})
	if err != nil {
		s.logFailure("order_transition_failed", "Order transition rejected", requestID, err, map[string]interface{}{
			"order_id": orderID,
			"command":  cmdName,
		})
		return nil, err
	}

	s.logger.Info("order_transition_applied", "Order transition committed", requestID, map[string]interface{}{
		"order_id":   next.ID,
		"command":    cmdName,
		"old_status": prev,
		"new_status": next.Status,
		"total":      next.Total,
	})
	s.dispatch(ctx, requestID, events)
	if prev != next.Status {
		s.track(ctx, requestID, models.CRMOrderStatusChanged, map[string]interface{}{
			"orderId":   next.ID,
			"oldStatus": prev,
			"newStatus": next.Status,
		})
	}
	return &next, nil
}

func (s *Service) lockOrder(ctx context.Context, tx Tx, orderID uuid.UUID) (*models.Order, error) {
	o, err := tx.Orders().Lock(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, &NotFoundError{Reason: ReasonOrderNotFound, ID: orderID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return o, nil
}

// ensureNoPendingPayment rejects changes while a gateway charge for the
// order may still complete
func ensureNoPendingPayment(ctx context.Context, tx Tx, o models.Order) error {
	_, err := tx.Payments().Pending(ctx, o.ID)
	switch {
	case err == nil:
		return conflict(ReasonPaymentInProgress, o.Status)
	case errors.Is(err, ErrPaymentNotFound):
		return nil
	default:
		return fmt.Errorf("failed to look up pending payment: %w", err)
	}
}

// reserve prices each requested item from the catalog and takes its stock.
// The surrounding transaction undoes every decrement when one fails.
func (s *Service) reserve(ctx context.Context, catalog MenuCatalog, reqs []models.ItemRequest) ([]NewItem, error) {
	items := make([]NewItem, 0, len(reqs))
	for _, r := range reqs {
		mi, err := catalog.GetItem(ctx, r.MenuItemID)
		if errors.Is(err, ErrMenuItemNotFound) {
			return nil, &NotFoundError{Reason: ReasonMenuItemNotFound, ID: r.MenuItemID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load menu item %s: %w", r.MenuItemID, err)
		}
		if !mi.Available {
			return nil, &StockError{MenuItemID: mi.ID, Name: mi.Name, Requested: r.Quantity, Unavailable: true}
		}

		err = catalog.DecrementStock(ctx, mi.ID, r.Quantity)
		switch {
		case errors.Is(err, ErrInsufficientStock):
			return nil, &StockError{MenuItemID: mi.ID, Name: mi.Name, Requested: r.Quantity, Available: mi.Stock}
		case errors.Is(err, ErrMenuItemUnavailable):
			return nil, &StockError{MenuItemID: mi.ID, Name: mi.Name, Requested: r.Quantity, Unavailable: true}
		case err != nil:
			return nil, fmt.Errorf("failed to decrement stock for %s: %w", mi.ID, err)
		}

		items = append(items, NewItem{
			ID:         s.newID(),
			MenuItemID: mi.ID,
			Name:       mi.Name,
			Price:      mi.Price,
			Quantity:   r.Quantity,
			Notes:      r.Notes,
		})
	}
	return items, nil
}

func (s *Service) logEntry(status models.OrderStatus, actor, notes string) models.StatusLogEntry {
	entry := models.StatusLogEntry{
		Status:    status,
		ChangedBy: actor,
		ChangedAt: s.now(),
	}
	if notes != "" {
		entry.Notes = &notes
	}
	return entry
}

// dispatch publishes events after commit. Delivery is best effort.
func (s *Service) dispatch(ctx context.Context, requestID string, events []models.Event) {
	if len(events) == 0 {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.DispatchTimeout)
	defer cancel()

	for _, ev := range events {
		if err := s.dispatcher.Publish(dctx, ev.Channel, ev.Name, ev.Payload); err != nil {
			s.logger.Error("notification_failed", "Failed to dispatch notification", requestID, err, map[string]interface{}{
				"channel": ev.Channel,
				"event":   ev.Name,
			})
		}
	}
}

func (s *Service) track(ctx context.Context, requestID, eventType string, payload map[string]interface{}) {
	ev := models.CRMEvent{Type: eventType, Payload: payload, CreatedAt: s.now()}
	if err := s.crm.Track(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("crm_track_failed", "Failed to record CRM event", requestID, map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

// logFailure keeps rejected requests at warn level and reserves error for
// infrastructure faults.
func (s *Service) logFailure(action, message, requestID string, err error, fields map[string]interface{}) {
	if IsClientError(err) {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["reason"] = ReasonOf(err)
		fields["error"] = err.Error()
		s.logger.Warn(action, message, requestID, fields)
		return
	}
	s.logger.Error(action, message, requestID, err, fields)
}

// IsClientError reports whether err was caused by the request rather than
// by the service or its dependencies
func IsClientError(err error) bool {
	switch ReasonOf(err) {
	case ReasonInternal, ReasonGateway:
		return false
	}
	return err != nil
}
