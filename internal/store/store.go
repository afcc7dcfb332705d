package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Status     string
	Visibility string
	Category   string
	Limit      int
	Offset     int
}

// CreateProduct inserts a catalog item
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (sku, name, description, regular_price, sale_price, stock,
			category, subcategory, arabic_text, transliteration, translation,
			historical_context, images, models_3d, hdri_files, status, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		p.SKU, p.Name, p.Description, p.RegularPrice, p.SalePrice, p.Stock,
		p.Category, p.Subcategory, p.ArabicText, p.Transliteration, p.Translation,
		p.HistoricalContext, p.Images, p.Models3D, p.HDRIFiles, p.Status, p.Visibility,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves products matching the filter
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := "SELECT * FROM products WHERE 1=1"
	args := []interface{}{}
	n := 0

	if f.Status != "" {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, f.Status)
	}
	if f.Visibility != "" {
		n++
		query += fmt.Sprintf(" AND visibility = $%d", n)
		args = append(args, f.Visibility)
	}
	if f.Category != "" {
		n++
		query += fmt.Sprintf(" AND category = $%d", n)
		args = append(args, f.Category)
	}

	query += " ORDER BY id"
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

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct updates a catalog item
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET sku = $1, name = $2, description = $3, regular_price = $4,
			sale_price = $5, stock = $6, category = $7, subcategory = $8,
			arabic_text = $9, transliteration = $10, translation = $11,
			historical_context = $12, images = $13, models_3d = $14, hdri_files = $15,
			status = $16, visibility = $17, updated_at = NOW()
		WHERE id = $18`

	res, err := s.db.ExecContext(ctx, query,
		p.SKU, p.Name, p.Description, p.RegularPrice, p.SalePrice, p.Stock,
		p.Category, p.Subcategory, p.ArabicText, p.Transliteration, p.Translation,
		p.HistoricalContext, p.Images, p.Models3D, p.HDRIFiles, p.Status, p.Visibility, p.ID)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("product not found: %d", p.ID)
	}
	return nil
}

// DeleteProduct removes a catalog item
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("product not found: %d", id)
	}
	return nil
}
