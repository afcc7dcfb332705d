package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// CreatePaymentMethod inserts a saved payment method. The customer's first
// active method becomes the default automatically.
func (s *Store) CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var siblings int
	err = tx.GetContext(ctx, &siblings,
		"SELECT COUNT(*) FROM payment_methods WHERE customer_id = $1 AND active",
		pm.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to count payment methods: %w", err)
	}
	if siblings == 0 {
		pm.IsDefault = true
	}

	if pm.IsDefault {
		if _, err = tx.ExecContext(ctx,
			"UPDATE payment_methods SET is_default = FALSE, updated_at = NOW() WHERE customer_id = $1 AND is_default",
			pm.CustomerID); err != nil {
			return fmt.Errorf("failed to clear defaults: %w", err)
		}
	}

	query := `
		INSERT INTO payment_methods (customer_id, type, provider, provider_method_id,
			provider_customer_id, brand, last4, exp_month, exp_year, paypal_email,
			is_default, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		RETURNING id, active, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		pm.CustomerID, pm.Type, pm.Provider, pm.ProviderMethodID, pm.ProviderCustomerID,
		pm.Brand, pm.Last4, pm.ExpMonth, pm.ExpYear, pm.PayPalEmail, pm.IsDefault,
	).Scan(&pm.ID, &pm.Active, &pm.CreatedAt, &pm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment method: %w", err)
	}

	return tx.Commit()
}

// GetPaymentMethodByID retrieves a payment method
func (s *Store) GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := s.db.GetContext(ctx, &pm, "SELECT * FROM payment_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment method not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// ListPaymentMethods retrieves a customer's active methods, default first
func (s *Store) ListPaymentMethods(ctx context.Context, customerID int64) ([]models.PaymentMethod, error) {
	methods := []models.PaymentMethod{}
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM payment_methods WHERE customer_id = $1 AND active ORDER BY is_default DESC, created_at DESC",
		customerID)
	return methods, err
}

// GetDefaultPaymentMethod retrieves the customer's default method, or nil
func (s *Store) GetDefaultPaymentMethod(ctx context.Context, customerID int64) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	err := s.db.GetContext(ctx, &pm,
		"SELECT * FROM payment_methods WHERE customer_id = $1 AND active AND is_default",
		customerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}

// SetDefaultPaymentMethodTx makes the target the customer's sole default
// in one transaction, same shape as the address default update.
func (s *Store) SetDefaultPaymentMethodTx(ctx context.Context, customerID, methodID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active bool
	err = tx.GetContext(ctx, &active,
		"SELECT active FROM payment_methods WHERE id = $1 AND customer_id = $2 FOR UPDATE",
		methodID, customerID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payment method not found: %d", methodID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock payment method: %w", err)
	}
	if !active {
		return fmt.Errorf("payment method inactive: %d", methodID)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = FALSE, updated_at = NOW() WHERE customer_id = $1 AND is_default",
		customerID); err != nil {
		return fmt.Errorf("failed to clear defaults: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE payment_methods SET is_default = TRUE, updated_at = NOW() WHERE id = $1",
		methodID); err != nil {
		return fmt.Errorf("failed to set default: %w", err)
	}

	return tx.Commit()
}

// DeactivatePaymentMethod soft-deletes a method; a default is handed to
// the most recent remaining sibling.
func (s *Store) DeactivatePaymentMethod(ctx context.Context, customerID, methodID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var wasDefault bool
	err = tx.GetContext(ctx, &wasDefault,
		"SELECT is_default FROM payment_methods WHERE id = $1 AND customer_id = $2 AND active FOR UPDATE",
		methodID, customerID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("payment method not found: %d", methodID)
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE payment_methods SET active = FALSE, is_default = FALSE, updated_at = NOW() WHERE id = $1",
		methodID); err != nil {
		return fmt.Errorf("failed to deactivate payment method: %w", err)
	}

	if wasDefault {
		_, err = tx.ExecContext(ctx, `
			UPDATE payment_methods SET is_default = TRUE, updated_at = NOW()
			WHERE id = (
				SELECT id FROM payment_methods
				WHERE customer_id = $1 AND active
				ORDER BY created_at DESC LIMIT 1
			)`, customerID)
		if err != nil {
			return fmt.Errorf("failed to promote sibling: %w", err)
		}
	}

	return tx.Commit()
}
