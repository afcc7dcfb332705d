package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	Status     string
	CustomerID int64
	Limit      int
	Offset     int
}

// CreateOrder creates an order with its items in one transaction, checking
// and decrementing stock for every line. Insufficient stock aborts the
// whole order.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range items {
		var available int
		err = tx.GetContext(ctx, &available,
			"SELECT stock FROM products WHERE id = $1 FOR UPDATE", items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to lock product %d: %w", items[i].ProductID, err)
		}
		if available < items[i].Quantity {
			return fmt.Errorf("insufficient stock for product %d: available=%d, requested=%d",
				items[i].ProductID, available, items[i].Quantity)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2",
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
	}

	query := `
		INSERT INTO orders (order_number, customer_id, guest_email, guest_name, status,
			payment_status, payment_method, subtotal, tax_amount, shipping_amount,
			discount_amount, total, currency, notes, idempotency_key,
			shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.CustomerID, order.GuestEmail, order.GuestName,
		order.Status, order.PaymentStatus, order.PaymentMethod,
		order.Subtotal, order.TaxAmount, order.ShippingAmount, order.DiscountAmount,
		order.Total, order.Currency, order.Notes, order.IdempotencyKey,
		order.ShippingAddress, order.BillingAddress,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, product_sku,
			quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.QueryRowxContext(ctx, itemQuery,
			items[i].OrderID, items[i].ProductID, items[i].ProductName, items[i].ProductSKU,
			items[i].Quantity, items[i].UnitPrice, items[i].LineTotal,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	order.Items = items
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadOrderItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its human-facing reference
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", number)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadOrderItems(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey returns the order for a key, or nil when unseen
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) loadOrderItems(ctx context.Context, order *models.Order) error {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", order.ID)
	if err != nil {
		return err
	}
	order.Items = items
	return nil
}

// ListOrders retrieves orders with customer summaries join-fetched for
// admin list views
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `
		SELECT o.*, c.email AS customer_email,
			c.first_name || ' ' || c.last_name AS customer_name
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE 1=1`
	args := []interface{}{}
	n := 0

	if f.Status != "" {
		n++
		query += fmt.Sprintf(" AND o.status = $%d", n)
		args = append(args, f.Status)
	}
	if f.CustomerID > 0 {
		n++
		query += fmt.Sprintf(" AND o.customer_id = $%d", n)
		args = append(args, f.CustomerID)
	}

	query += " ORDER BY o.created_at DESC"
	if f.Limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, f.Offset)
	}

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// MarkOrderPaid sets the order confirmed and paid in one statement
func (s *Store) MarkOrderPaid(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, payment_status = $2, updated_at = NOW() WHERE id = $3",
		models.OrderStatusConfirmed, models.PaymentStatusPaid, orderID)
	return err
}

// CancelOrderTx cancels an order and restocks its items in one
// transaction. The reason is appended to the order notes.
func (s *Store) CancelOrderTx(ctx context.Context, orderID int64, status, paymentStatus, reason string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var items []models.OrderItem
	if err := tx.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to restock product %d: %w", item.ProductID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, payment_status = $2,
			notes = TRIM(COALESCE(notes, '') || E'\n' || $3), updated_at = NOW()
		WHERE id = $4`,
		status, paymentStatus, reason, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return tx.Commit()
}

// ListStalePendingOrders finds pending orders created before the cutoff,
// for the reconciler
func (s *Store) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE status = $1 AND payment_status = $2 AND created_at < $3
		ORDER BY created_at`,
		models.OrderStatusPending, models.PaymentStatusPending, cutoff)
	return orders, err
}

// CountOrdersByCustomer returns how many orders a customer has placed
func (s *Store) CountOrdersByCustomer(ctx context.Context, customerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM orders WHERE customer_id = $1", customerID)
	return count, err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (order_id, provider, method_type, status, provider_tx_id,
			amount, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		payment.OrderID, payment.Provider, payment.MethodType, payment.Status,
		payment.ProviderTxID, payment.Amount, payment.FailureReason,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
}

// GetPaymentByOrderID retrieves the latest payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1", orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment not found for order: %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus updates payment status
func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID, failureReason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, provider_tx_id = $2, failure_reason = $3, updated_at = NOW()
		WHERE id = $4`,
		status, providerTxID, failureReason, paymentID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
