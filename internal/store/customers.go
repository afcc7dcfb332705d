package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// ErrCustomerHasOrders blocks deletion of customers with order history.
var ErrCustomerHasOrders = fmt.Errorf("customer has existing orders")

// CreateCustomer inserts a customer account
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (email, first_name, last_name, phone, marketing_consent,
			provider_customer_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, active, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		c.Email, c.FirstName, c.LastName, c.Phone, c.MarketingConsent, c.ProviderCustomerID,
	).Scan(&c.ID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
}

// GetCustomerByID retrieves a customer with derived counts
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, customerWithCountsQuery+" WHERE c.id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByEmail retrieves a customer by unique email
func (s *Store) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, customerWithCountsQuery+" WHERE c.email = $1", email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Counts are computed at query time, never stored.
const customerWithCountsQuery = `
	SELECT c.*,
		(SELECT COUNT(*) FROM addresses a WHERE a.customer_id = c.id) AS address_count,
		(SELECT COUNT(*) FROM payment_methods pm WHERE pm.customer_id = c.id AND pm.active) AS payment_method_count,
		(SELECT COUNT(*) FROM orders o WHERE o.customer_id = c.id) AS order_count
	FROM customers c`

// ListCustomers retrieves customers with derived counts
func (s *Store) ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	query := customerWithCountsQuery + " ORDER BY c.created_at DESC"
	args := []interface{}{}
	n := 0

	if limit > 0 {
		n++
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, limit)
	}
	if offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, offset)
	}

	customers := []models.Customer{}
	err := s.db.SelectContext(ctx, &customers, query, args...)
	return customers, err
}

// UpdateCustomer updates account fields
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers
		SET email = $1, first_name = $2, last_name = $3, phone = $4,
			marketing_consent = $5, provider_customer_id = $6, updated_at = NOW()
		WHERE id = $7`

	res, err := s.db.ExecContext(ctx, query,
		c.Email, c.FirstName, c.LastName, c.Phone, c.MarketingConsent,
		c.ProviderCustomerID, c.ID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("customer not found: %d", c.ID)
	}
	return nil
}

// DeleteCustomerTx deletes a customer in one transaction: refused while the
// customer has any orders; otherwise payment methods are deactivated,
// addresses removed and the account deleted.
func (s *Store) DeleteCustomerTx(ctx context.Context, customerID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var orderCount int
	err = tx.GetContext(ctx, &orderCount,
		"SELECT COUNT(*) FROM orders WHERE customer_id = $1", customerID)
	if err != nil {
		return fmt.Errorf("failed to count orders: %w", err)
	}
	if orderCount > 0 {
		return ErrCustomerHasOrders
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE payment_methods SET active = FALSE, is_default = FALSE, updated_at = NOW() WHERE customer_id = $1",
		customerID); err != nil {
		return fmt.Errorf("failed to deactivate payment methods: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"DELETE FROM addresses WHERE customer_id = $1", customerID); err != nil {
		return fmt.Errorf("failed to delete addresses: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", customerID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("customer not found: %d", customerID)
	}

	return tx.Commit()
}
