package database

// Order queries
const (
	orderColumns = `id, table_id, session_id, status, requires_approval, subtotal, tax, tip, total,
			   payment_method, approved_by, served_at, paid_at, created_at, updated_at`

	InsertOrderSQL = `
		INSERT INTO orders (id, table_id, session_id, status, requires_approval, subtotal, tax, tip, total,
			payment_method, approved_by, served_at, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	UpdateOrderSQL = `
		UPDATE orders SET status = $2, requires_approval = $3, subtotal = $4, tax = $5, tip = $6, total = $7,
			payment_method = $8, approved_by = $9, served_at = $10, paid_at = $11, updated_at = $12
		WHERE id = $1`

	GetOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	LockOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	ListOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at ASC`

	ListOrdersByStatusSQL = `SELECT ` + orderColumns + ` FROM orders WHERE status = ANY($1) ORDER BY created_at ASC`

	UpsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, menu_item_id, name, price, quantity, notes, status, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()
		WHERE order_items.status <> EXCLUDED.status`

	GetOrderItemsSQL = `
		SELECT id, menu_item_id, name, price, quantity, notes, status, created_at
		FROM order_items WHERE order_id = $1
		ORDER BY position ASC`

	GetOrderItemsBatchSQL = `
		SELECT order_id, id, menu_item_id, name, price, quantity, notes, status, created_at
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position ASC`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, notes)
		VALUES ($1, $2, $3, $4, $5)`

	GetOrderStatusHistorySQL = `
		SELECT status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	OrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// Menu queries
const (
	GetMenuItemSQL = `
		SELECT id, name, price, available, stock, updated_at
		FROM menu_items WHERE id = $1`

	ListMenuSQL = `
		SELECT id, name, price, available, stock, updated_at
		FROM menu_items ORDER BY name ASC`

	UpsertMenuItemSQL = `
		INSERT INTO menu_items (id, name, price, available, stock, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			available = EXCLUDED.available,
			stock = EXCLUDED.stock,
			updated_at = NOW()`

	// DecrementStockSQL only matches when enough units remain, so concurrent
	// reservations can never drive stock negative
	DecrementStockSQL = `
		UPDATE menu_items SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND available AND stock >= $2
		RETURNING stock`

	RestoreStockSQL = `
		UPDATE menu_items SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`
)

// Payment queries
const (
	paymentColumns = `id, order_id, method, amount, tip, status, intent_ref, transaction_id, confirmed_at, created_at`

	InsertPaymentSQL = `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	UpdatePaymentSQL = `
		UPDATE payments SET status = $2, intent_ref = $3, transaction_id = $4, confirmed_at = $5
		WHERE id = $1`

	GetPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	LockPaymentSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`

	PendingPaymentSQL = `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
)

// Staff queries
const (
	InsertStaffSQL = `
		INSERT INTO staff (id, name, role, pin_hash, active)
		VALUES ($1, $2, $3, $4, $5)`

	ListActiveStaffSQL = `
		SELECT id, name, role, pin_hash, active
		FROM staff WHERE role = $1 AND active
		ORDER BY name ASC`
)
