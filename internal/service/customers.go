package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrCustomerHasOrders    = errors.New("cannot delete customer with existing orders")
	ErrConfirmationMismatch = errors.New(`confirmation text must be "DELETE"`)
	ErrEmailTaken           = errors.New("email already registered")
)

// CustomerStore is the slice of the store the customer service needs
type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, error)
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	CountOrdersByCustomer(ctx context.Context, customerID int64) (int, error)
	DeleteCustomerTx(ctx context.Context, customerID int64) error
}

// CustomerPublisher is the event surface for account lifecycle mails
type CustomerPublisher interface {
	PublishCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error
	PublishPasswordReset(ctx context.Context, event *models.PasswordResetEvent) error
	PublishAccountActivation(ctx context.Context, event *models.AccountActivationEvent) error
}

// CustomerService handles account management
type CustomerService struct {
	store    CustomerStore
	events   CustomerPublisher
	storeURL string
	logger   *zap.Logger
}

// NewCustomerService creates a customer service
func NewCustomerService(store CustomerStore, events CustomerPublisher, storeURL string) *CustomerService {
	return &CustomerService{
		store:    store,
		events:   events,
		storeURL: storeURL,
		logger:   util.GetLogger(),
	}
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Email            string `json:"email" binding:"required,email"`
	FirstName        string `json:"first_name" binding:"required"`
	LastName         string `json:"last_name" binding:"required"`
	Phone            string `json:"phone"`
	MarketingConsent bool   `json:"marketing_consent"`
}

// Register creates the account and fires the welcome mail event
func (s *CustomerService) Register(ctx context.Context, req *RegisterRequest) (*models.Customer, error) {
	existing, err := s.store.GetCustomerByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	customer := &models.Customer{
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		MarketingConsent: req.MarketingConsent,
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("Customer registered",
		zap.Int64("customer_id", customer.ID),
		zap.String("email", customer.Email))

	event := &models.CustomerRegisteredEvent{
		BaseEvent:  newBaseEvent(models.EventTypeCustomerRegistered),
		CustomerID: customer.ID,
		Email:      customer.Email,
		FirstName:  customer.FirstName,
	}
	if err := s.events.PublishCustomerRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish CustomerRegistered event", zap.Error(err))
	}

	return customer, nil
}

// Get retrieves a customer with derived counts
func (s *CustomerService) Get(ctx context.Context, id int64) (*models.Customer, error) {
	return s.store.GetCustomerByID(ctx, id)
}

// List retrieves customers with derived counts
func (s *CustomerService) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	return s.store.ListCustomers(ctx, limit, offset)
}

// Update updates account fields
func (s *CustomerService) Update(ctx context.Context, c *models.Customer) error {
	return s.store.UpdateCustomer(ctx, c)
}

// Delete removes a customer. Requires the typed confirmation "DELETE" and
// zero orders; deletion cascades (payment methods deactivated, addresses
// deleted) inside the store transaction.
func (s *CustomerService) Delete(ctx context.Context, customerID int64, confirmation string) error {
	if confirmation != "DELETE" {
		return ErrConfirmationMismatch
	}

	count, err := s.store.CountOrdersByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("failed to count orders: %w", err)
	}
	if count > 0 {
		return ErrCustomerHasOrders
	}

	if err := s.store.DeleteCustomerTx(ctx, customerID); err != nil {
		if errors.Is(err, store.ErrCustomerHasOrders) {
			return ErrCustomerHasOrders
		}
		return err
	}

	util.CustomersDeletedTotal.Inc()
	s.logger.Info("Customer deleted", zap.Int64("customer_id", customerID))
	return nil
}

// RequestPasswordReset fires the reset mail event
func (s *CustomerService) RequestPasswordReset(ctx context.Context, customerID int64, token string) error {
	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}

	event := &models.PasswordResetEvent{
		BaseEvent:  newBaseEvent(models.EventTypePasswordReset),
		CustomerID: customer.ID,
		Email:      customer.Email,
		FirstName:  customer.FirstName,
		ResetURL:   fmt.Sprintf("%s/account/reset-password?token=%s", s.storeURL, token),
	}
	return s.events.PublishPasswordReset(ctx, event)
}

// RequestActivation fires the activation mail event
func (s *CustomerService) RequestActivation(ctx context.Context, customerID int64, token string) error {
	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}

	event := &models.AccountActivationEvent{
		BaseEvent:     newBaseEvent(models.EventTypeAccountActivation),
		CustomerID:    customer.ID,
		Email:         customer.Email,
		FirstName:     customer.FirstName,
		ActivationURL: fmt.Sprintf("%s/account/activate?token=%s", s.storeURL, token),
	}
	return s.events.PublishAccountActivation(ctx, event)
}
