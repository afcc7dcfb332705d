package service

import (
	"context"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// ProfileStore is the slice of the store for address and payment-method
// management
type ProfileStore interface {
	CreateAddress(ctx context.Context, a *models.Address) error
	GetAddressByID(ctx context.Context, id int64) (*models.Address, error)
	ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error)
	UpdateAddress(ctx context.Context, a *models.Address) error
	SetDefaultAddressTx(ctx context.Context, customerID, addressID int64) error
	DeleteAddress(ctx context.Context, customerID, addressID int64) error

	CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error
	ListPaymentMethods(ctx context.Context, customerID int64) ([]models.PaymentMethod, error)
	SetDefaultPaymentMethodTx(ctx context.Context, customerID, methodID int64) error
	DeactivatePaymentMethod(ctx context.Context, customerID, methodID int64) error
}

// ProfileService manages a customer's addresses and saved payment methods
type ProfileService struct {
	store  ProfileStore
	logger *zap.Logger
}

// NewProfileService creates a profile service
func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store, logger: util.GetLogger()}
}

// AddAddress saves an address; the first of its type becomes the default
func (s *ProfileService) AddAddress(ctx context.Context, a *models.Address) error {
	return s.store.CreateAddress(ctx, a)
}

// ListAddresses returns the customer's addresses, defaults first
func (s *ProfileService) ListAddresses(ctx context.Context, customerID int64) ([]models.Address, error) {
	return s.store.ListAddresses(ctx, customerID)
}

// UpdateAddress updates address fields
func (s *ProfileService) UpdateAddress(ctx context.Context, a *models.Address) error {
	return s.store.UpdateAddress(ctx, a)
}

// SetDefaultAddress makes the target the sole default of its type. The
// store does the clear-and-set in one transaction, so the old two-tab
// race cannot leave zero or two defaults.
func (s *ProfileService) SetDefaultAddress(ctx context.Context, customerID, addressID int64) error {
	if err := s.store.SetDefaultAddressTx(ctx, customerID, addressID); err != nil {
		return err
	}
	s.logger.Info("Default address updated",
		zap.Int64("customer_id", customerID),
		zap.Int64("address_id", addressID))
	return nil
}

// DeleteAddress removes an address, promoting a sibling default if needed
func (s *ProfileService) DeleteAddress(ctx context.Context, customerID, addressID int64) error {
	return s.store.DeleteAddress(ctx, customerID, addressID)
}

// AddPaymentMethod saves a tokenized payment method
func (s *ProfileService) AddPaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	return s.store.CreatePaymentMethod(ctx, pm)
}

// ListPaymentMethods returns the customer's active methods, default first
func (s *ProfileService) ListPaymentMethods(ctx context.Context, customerID int64) ([]models.PaymentMethod, error) {
	return s.store.ListPaymentMethods(ctx, customerID)
}

// SetDefaultPaymentMethod makes the target the customer's sole default
func (s *ProfileService) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID int64) error {
	if err := s.store.SetDefaultPaymentMethodTx(ctx, customerID, methodID); err != nil {
		return err
	}
	s.logger.Info("Default payment method updated",
		zap.Int64("customer_id", customerID),
		zap.Int64("method_id", methodID))
	return nil
}

// RemovePaymentMethod deactivates a saved method
func (s *ProfileService) RemovePaymentMethod(ctx context.Context, customerID, methodID int64) error {
	return s.store.DeactivatePaymentMethod(ctx, customerID, methodID)
}
