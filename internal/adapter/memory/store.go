// Package memory keeps orders, menu stock and payments in process memory.
// It backs tests and single instance deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

type Store struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]models.Order
	history  map[uuid.UUID][]models.StatusLogEntry
	menu     map[uuid.UUID]models.MenuItem
	payments map[uuid.UUID]models.Payment
	staff    map[uuid.UUID]models.Staff
}

func NewStore() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]models.Order),
		history:  make(map[uuid.UUID][]models.StatusLogEntry),
		menu:     make(map[uuid.UUID]models.MenuItem),
		payments: make(map[uuid.UUID]models.Payment),
		staff:    make(map[uuid.UUID]models.Staff),
	}
}

// PutMenuItem inserts or replaces a catalog entry
func (s *Store) PutMenuItem(item models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menu[item.ID] = item
}

func (s *Store) MenuItem(id uuid.UUID) (models.MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.menu[id]
	return item, ok
}

func (s *Store) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.MenuItem, 0, len(s.menu))
	for _, item := range s.menu {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	c := o.Clone()
	return &c, nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, order.ErrPaymentNotFound
	}
	return &p, nil
}

// ListOrders returns orders in any of the given statuses, oldest first
func (s *Store) ListOrders(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	want := make(map[models.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if len(want) == 0 || want[o.Status] {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) StatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return nil, order.ErrOrderNotFound
	}
	return append([]models.StatusLogEntry(nil), s.history[orderID]...), nil
}

// WithTx buffers order and payment writes until fn returns nil. Stock moves
// happen immediately so concurrent requests observe them, and are reverted
// when fn fails.
func (s *Store) WithTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx := &memTx{
		store:    s,
		orders:   make(map[uuid.UUID]models.Order),
		payments: make(map[uuid.UUID]models.Payment),
		logs:     make(map[uuid.UUID][]models.StatusLogEntry),
	}

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

type stockMove struct {
	id  uuid.UUID
	qty int
}

type memTx struct {
	store    *Store
	orders   map[uuid.UUID]models.Order
	payments map[uuid.UUID]models.Payment
	logs     map[uuid.UUID][]models.StatusLogEntry
	moves    []stockMove
}

func (tx *memTx) Orders() order.OrderRepository     { return orderRepo{tx} }
func (tx *memTx) Catalog() order.MenuCatalog        { return catalog{tx} }
func (tx *memTx) Payments() order.PaymentRepository { return paymentRepo{tx} }

func (tx *memTx) commit() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	for id, p := range tx.payments {
		s.payments[id] = p
	}
	for id, entries := range tx.logs {
		s.history[id] = append(s.history[id], entries...)
	}
}

func (tx *memTx) rollback() {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.moves) - 1; i >= 0; i-- {
		m := tx.moves[i]
		if item, ok := s.menu[m.id]; ok {
			item.Stock -= m.qty
			s.menu[m.id] = item
		}
	}
}

type orderRepo struct{ tx *memTx }

func (r orderRepo) Lock(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := r.tx.orders[id]; ok {
		c := o.Clone()
		return &c, nil
	}
	return r.tx.store.GetOrder(ctx, id)
}

func (r orderRepo) Insert(ctx context.Context, o *models.Order) error {
	r.tx.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) Update(ctx context.Context, o *models.Order) error {
	if _, err := r.Lock(ctx, o.ID); err != nil {
		return err
	}
	r.tx.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) AppendStatusLog(ctx context.Context, orderID uuid.UUID, entry models.StatusLogEntry) error {
	r.tx.logs[orderID] = append(r.tx.logs[orderID], entry)
	return nil
}

type catalog struct{ tx *memTx }

func (c catalog) GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	item, ok := c.tx.store.MenuItem(id)
	if !ok {
		return nil, order.ErrMenuItemNotFound
	}
	return &item, nil
}

func (c catalog) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	s := c.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	switch {
	case !ok:
		return order.ErrMenuItemNotFound
	case !item.Available:
		return order.ErrMenuItemUnavailable
	case item.Stock < qty:
		return order.ErrInsufficientStock
	}
	item.Stock -= qty
	s.menu[id] = item
	c.tx.moves = append(c.tx.moves, stockMove{id: id, qty: -qty})
	return nil
}

func (c catalog) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	s := c.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.menu[id]
	if !ok {
		return order.ErrMenuItemNotFound
	}
	item.Stock += qty
	s.menu[id] = item
	c.tx.moves = append(c.tx.moves, stockMove{id: id, qty: qty})
	return nil
}

type paymentRepo struct{ tx *memTx }

func (r paymentRepo) Insert(ctx context.Context, p *models.Payment) error {
	r.tx.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Lock(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if p, ok := r.tx.payments[id]; ok {
		return &p, nil
	}
	return r.tx.store.GetPayment(ctx, id)
}

func (r paymentRepo) Update(ctx context.Context, p *models.Payment) error {
	if _, err := r.Lock(ctx, p.ID); err != nil {
		return err
	}
	r.tx.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Pending(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	for _, p := range r.tx.payments {
		if p.OrderID == orderID && p.Status == models.PaymentPending {
			return &p, nil
		}
	}

	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if _, shadowed := r.tx.payments[id]; shadowed {
			continue
		}
		if p.OrderID == orderID && p.Status == models.PaymentPending {
			return &p, nil
		}
	}
	return nil, order.ErrPaymentNotFound
}
