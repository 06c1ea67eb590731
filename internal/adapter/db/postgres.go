// Package db implements the order store on PostgreSQL through pgx.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Arielutooo/restaurant-app/internal/database"
	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store persists orders, menu stock, payments and staff
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// WithTx runs fn in one database transaction. Row locks taken through the
// repositories are held until it returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		return fn(pgTx{q: tx})
	})
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return loadOrder(ctx, s.db, database.GetOrderSQL, id)
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return loadPayment(ctx, s.db, database.GetPaymentSQL, id)
}

// ListOrders returns orders in any of the given statuses, oldest first
func (s *Store) ListOrders(ctx context.Context, statuses ...models.OrderStatus) ([]models.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.Query(ctx, database.ListOrdersSQL)
	} else {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		rows, err = s.db.Query(ctx, database.ListOrdersByStatusSQL, names)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Order, error) {
		o, err := scanOrder(row)
		if err != nil {
			return models.Order{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := s.db.Query(ctx, database.GetOrderItemsBatchSQL, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			item    models.LineItem
			status  string
		)
		if err := rows.Scan(&orderID, &item.ID, &item.MenuItemID, &item.Name, &item.Price,
			&item.Quantity, &item.Notes, &status, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		item.Status = models.ItemStatus(status)
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func (s *Store) StatusHistory(ctx context.Context, orderID uuid.UUID) ([]models.StatusLogEntry, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, database.OrderExistsSQL, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, order.ErrOrderNotFound
	}

	rows, err := s.db.Query(ctx, database.GetOrderStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StatusLogEntry, error) {
		var (
			e      models.StatusLogEntry
			status string
		)
		err := row.Scan(&status, &e.ChangedBy, &e.ChangedAt, &e.Notes)
		e.Status = models.OrderStatus(status)
		return e, err
	})
}

func (s *Store) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := s.db.Query(ctx, database.ListMenuSQL)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MenuItem, error) {
		var m models.MenuItem
		err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.Stock, &m.UpdatedAt)
		return m, err
	})
}

// UpsertMenuItem inserts or replaces a catalog entry
func (s *Store) UpsertMenuItem(ctx context.Context, item models.MenuItem) error {
	_, err := s.db.Exec(ctx, database.UpsertMenuItemSQL, item.ID, item.Name, item.Price, item.Available, item.Stock)
	if err != nil {
		return fmt.Errorf("upsert menu item: %w", err)
	}
	return nil
}

type pgTx struct{ q querier }

func (t pgTx) Orders() order.OrderRepository     { return orderRepo{t.q} }
func (t pgTx) Catalog() order.MenuCatalog        { return catalog{t.q} }
func (t pgTx) Payments() order.PaymentRepository { return paymentRepo{t.q} }

type orderRepo struct{ q querier }

func (r orderRepo) Lock(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return loadOrder(ctx, r.q, database.LockOrderSQL, id)
}

func (r orderRepo) Insert(ctx context.Context, o *models.Order) error {
	_, err := r.q.Exec(ctx, database.InsertOrderSQL,
		o.ID, o.TableID, o.SessionID, string(o.Status), o.RequiresApproval,
		o.Subtotal, o.Tax, o.Tip, o.Total,
		methodArg(o.PaymentMethod), o.ApprovedBy, o.ServedAt, o.PaidAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return r.saveItems(ctx, o)
}

func (r orderRepo) Update(ctx context.Context, o *models.Order) error {
	tag, err := r.q.Exec(ctx, database.UpdateOrderSQL,
		o.ID, string(o.Status), o.RequiresApproval,
		o.Subtotal, o.Tax, o.Tip, o.Total,
		methodArg(o.PaymentMethod), o.ApprovedBy, o.ServedAt, o.PaidAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNotFound
	}
	return r.saveItems(ctx, o)
}

// saveItems writes new line items and the status of existing ones.
// Line items are never removed from an order.
func (r orderRepo) saveItems(ctx context.Context, o *models.Order) error {
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(database.UpsertOrderItemSQL,
			it.ID, o.ID, it.MenuItemID, it.Name, it.Price, it.Quantity, it.Notes, string(it.Status), i, it.CreatedAt)
	}
	if batch.Len() == 0 {
		return nil
	}

	tx, ok := r.q.(pgx.Tx)
	if !ok {
		return errors.New("order items must be written inside a transaction")
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save order items: %w", err)
	}
	return nil
}

func (r orderRepo) AppendStatusLog(ctx context.Context, orderID uuid.UUID, entry models.StatusLogEntry) error {
	_, err := r.q.Exec(ctx, database.InsertOrderStatusLogSQL,
		orderID, string(entry.Status), entry.ChangedBy, entry.ChangedAt, entry.Notes)
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

type catalog struct{ q querier }

func (c catalog) GetItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var m models.MenuItem
	err := c.q.QueryRow(ctx, database.GetMenuItemSQL, id).
		Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.Stock, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return &m, nil
}

// DecrementStock reserves qty units in a single conditional update. When the
// update matches nothing the row is read back to report why.
func (c catalog) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	var remaining int
	err := c.q.QueryRow(ctx, database.DecrementStockSQL, id, qty).Scan(&remaining)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("decrement stock: %w", err)
	}

	item, err := c.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if !item.Available {
		return order.ErrMenuItemUnavailable
	}
	return order.ErrInsufficientStock
}

func (c catalog) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	tag, err := c.q.Exec(ctx, database.RestoreStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrMenuItemNotFound
	}
	return nil
}

type paymentRepo struct{ q querier }

func (r paymentRepo) Insert(ctx context.Context, p *models.Payment) error {
	_, err := r.q.Exec(ctx, database.InsertPaymentSQL,
		p.ID, p.OrderID, string(p.Method), p.Amount, p.Tip, string(p.Status),
		p.IntentRef, p.TransactionID, p.ConfirmedAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r paymentRepo) Lock(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return loadPayment(ctx, r.q, database.LockPaymentSQL, id)
}

func (r paymentRepo) Pending(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return loadPayment(ctx, r.q, database.PendingPaymentSQL, orderID)
}

func (r paymentRepo) Update(ctx context.Context, p *models.Payment) error {
	tag, err := r.q.Exec(ctx, database.UpdatePaymentSQL,
		p.ID, string(p.Status), p.IntentRef, p.TransactionID, p.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrPaymentNotFound
	}
	return nil
}

func loadOrder(ctx context.Context, q querier, sql string, id uuid.UUID) (*models.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}

	rows, err := q.Query(ctx, database.GetOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LineItem, error) {
		var (
			it     models.LineItem
			status string
		)
		err := row.Scan(&it.ID, &it.MenuItemID, &it.Name, &it.Price, &it.Quantity, &it.Notes, &status, &it.CreatedAt)
		it.Status = models.ItemStatus(status)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o      models.Order
		status string
		method *string
	)
	err := row.Scan(&o.ID, &o.TableID, &o.SessionID, &status, &o.RequiresApproval,
		&o.Subtotal, &o.Tax, &o.Tip, &o.Total,
		&method, &o.ApprovedBy, &o.ServedAt, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	if method != nil {
		m := models.PaymentMethod(*method)
		o.PaymentMethod = &m
	}
	return &o, nil
}

func loadPayment(ctx context.Context, q querier, sql string, id uuid.UUID) (*models.Payment, error) {
	var (
		p              models.Payment
		method, status string
	)
	err := q.QueryRow(ctx, sql, id).Scan(&p.ID, &p.OrderID, &method, &p.Amount, &p.Tip, &status,
		&p.IntentRef, &p.TransactionID, &p.ConfirmedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	return &p, nil
}

func methodArg(m *models.PaymentMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}
