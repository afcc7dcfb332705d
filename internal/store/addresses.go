package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"
)

// CreateAddress inserts an address. The first address of its type for a
// customer becomes the default automatically.
func (s *Store) CreateAddress(ctx context.Context, a *models.Address) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var siblings int
	err = tx.GetContext(ctx, &siblings,
		"SELECT COUNT(*) FROM addresses WHERE customer_id = $1 AND type = $2",
		a.CustomerID, a.Type)
	if err != nil {
		return fmt.Errorf("failed to count addresses: %w", err)
	}
	if siblings == 0 {
		a.IsDefault = true
	}

	if a.IsDefault {
		if _, err = tx.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE customer_id = $1 AND type = $2 AND is_default",
			a.CustomerID, a.Type); err != nil {
			return fmt.Errorf("failed to clear defaults: %w", err)
		}
	}

	query := `
		INSERT INTO addresses (customer_id, type, label, first_name, last_name,
			line1, line2, city, county, postcode, country, phone, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowxContext(ctx, query,
		a.CustomerID, a.Type, a.Label, a.FirstName, a.LastName,
		a.Line1, a.Line2, a.City, a.County, a.Postcode, a.Country, a.Phone, a.IsDefault,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert address: %w", err)
	}

	return tx.Commit()
}

// GetAddressByID retrieves an address
func (s *Store) GetAddressByID(ctx context.Context, id int64) (*models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a, "SELECT * FROM addresses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("address not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAddresses retrieves a customer's addresses, defaults first
func (s *Store) ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT * FROM addresses WHERE customer_id = $1 ORDER BY is_default DESC, created_at DESC",
		customerID)
	return addresses, err
}

// GetDefaultAddress retrieves the default address of a type, or nil
func (s *Store) GetDefaultAddress(ctx context.Context, customerID int64, addrType string) (*models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a,
		"SELECT * FROM addresses WHERE customer_id = $1 AND type = $2 AND is_default",
		customerID, addrType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAddress updates address fields (not the default flag)
func (s *Store) UpdateAddress(ctx context.Context, a *models.Address) error {
	query := `
		UPDATE addresses
		SET label = $1, first_name = $2, last_name = $3, line1 = $4, line2 = $5,
			city = $6, county = $7, postcode = $8, country = $9, phone = $10,
			updated_at = NOW()
		WHERE id = $11 AND customer_id = $12`

	res, err := s.db.ExecContext(ctx, query,
		a.Label, a.FirstName, a.LastName, a.Line1, a.Line2,
		a.City, a.County, a.Postcode, a.Country, a.Phone, a.ID, a.CustomerID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("address not found: %d", a.ID)
	}
	return nil
}

// SetDefaultAddressTx makes the target address the sole default of its
// (customer, type) in one transaction, so two tabs can't race to zero or
// two defaults.
func (s *Store) SetDefaultAddressTx(ctx context.Context, customerID, addressID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var addrType string
	err = tx.GetContext(ctx, &addrType,
		"SELECT type FROM addresses WHERE id = $1 AND customer_id = $2 FOR UPDATE",
		addressID, customerID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("address not found: %d", addressID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock address: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE customer_id = $1 AND type = $2 AND is_default",
		customerID, addrType); err != nil {
		return fmt.Errorf("failed to clear defaults: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE addresses SET is_default = TRUE, updated_at = NOW() WHERE id = $1",
		addressID); err != nil {
		return fmt.Errorf("failed to set default: %w", err)
	}

	return tx.Commit()
}

// DeleteAddress removes an address; when it was the default the most
// recent sibling of the same type is promoted.
func (s *Store) DeleteAddress(ctx context.Context, customerID, addressID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var a models.Address
	err = tx.GetContext(ctx, &a,
		"SELECT * FROM addresses WHERE id = $1 AND customer_id = $2 FOR UPDATE",
		addressID, customerID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("address not found: %d", addressID)
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM addresses WHERE id = $1", addressID); err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if a.IsDefault {
		_, err = tx.ExecContext(ctx, `
			UPDATE addresses SET is_default = TRUE, updated_at = NOW()
			WHERE id = (
				SELECT id FROM addresses
				WHERE customer_id = $1 AND type = $2
				ORDER BY created_at DESC LIMIT 1
			)`, customerID, a.Type)
		if err != nil {
			return fmt.Errorf("failed to promote sibling: %w", err)
		}
	}

	return tx.Commit()
}
