package cart

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Storage persists carts keyed by session id
type Storage interface {
	GetCart(ctx context.Context, sessionID string, dest interface{}) (bool, error)
	SaveCart(ctx context.Context, sessionID string, cart interface{}, ttl time.Duration) error
	DeleteCart(ctx context.Context, sessionID string) error
}

// ProductGetter resolves catalog items for snapshotting
type ProductGetter interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

var (
	ErrProductUnavailable = fmt.Errorf("product unavailable")
	ErrInvalidQuantity    = fmt.Errorf("quantity must be at least 1")
)

// Service manages session carts
type Service struct {
	storage  Storage
	products ProductGetter
	pricing  Pricing
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates a cart service
func NewService(storage Storage, products ProductGetter, pricing Pricing, ttl time.Duration) *Service {
	return &Service{
		storage:  storage,
		products: products,
		pricing:  pricing,
		ttl:      ttl,
		logger:   util.GetLogger(),
	}
}

// Pricing exposes the configured pricing rules
func (s *Service) Pricing() Pricing {
	return s.pricing
}

// Get loads the cart for a session, empty if none exists
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	var c Cart
	found, err := s.storage.GetCart(ctx, sessionID, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Cart{SessionID: sessionID, Items: []Item{}}, nil
	}
	return &c, nil
}

// AddItem snapshots the product and adds (or accumulates) a line
func (s *Service) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductStatusActive {
		return nil, ErrProductUnavailable
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	image := ""
	if len(product.Images) > 0 {
		image = product.Images[0]
	}

	if i := c.Find(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].UnitPrice = product.CurrentPrice()
	} else {
		c.Items = append(c.Items, Item{
			ProductID:   product.ID,
			ProductName: product.Name,
			ProductSKU:  product.SKU,
			UnitPrice:   product.CurrentPrice(),
			Quantity:    quantity,
			Image:       image,
		})
	}

	if err := s.storage.SaveCart(ctx, sessionID, c, s.ttl); err != nil {
		return nil, err
	}

	s.logger.Debug("Cart item added",
		zap.String("session_id", sessionID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))
	return c, nil
}

// UpdateQuantity sets a line's quantity; zero removes the line
func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := c.Find(productID)
	if i < 0 {
		return nil, fmt.Errorf("product not in cart: %d", productID)
	}

	if quantity == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
	}

	if err := s.storage.SaveCart(ctx, sessionID, c, s.ttl); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem deletes a line
func (s *Service) RemoveItem(ctx context.Context, sessionID string, productID int64) (*Cart, error) {
	return s.UpdateQuantity(ctx, sessionID, productID, 0)
}

// Clear drops the whole cart
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.storage.DeleteCart(ctx, sessionID)
}

// Totals computes the derived amounts for a session's cart
func (s *Service) Totals(ctx context.Context, sessionID string) (*Cart, Totals, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, Totals{}, err
	}
	return c, c.Totals(s.pricing), nil
}
