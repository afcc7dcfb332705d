package service

import (
	"context"
	"fmt"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCustomerStore struct {
	customers  map[int64]*models.Customer
	orderCount map[int64]int
	deleted    []int64
	nextID     int64
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{
		customers:  map[int64]*models.Customer{},
		orderCount: map[int64]int{},
	}
}

func (f *fakeCustomerStore) CreateCustomer(_ context.Context, c *models.Customer) error {
	f.nextID++
	c.ID = f.nextID
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerStore) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer not found: %d", id)
	}
	return c, nil
}

func (f *fakeCustomerStore) GetCustomerByEmail(_ context.Context, email string) (*models.Customer, error) {
	for _, c := range f.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerStore) ListCustomers(_ context.Context, _, _ int) ([]models.Customer, error) {
	out := []models.Customer{}
	for _, c := range f.customers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCustomerStore) UpdateCustomer(_ context.Context, c *models.Customer) error {
	f.customers[c.ID] = c
	return nil
}

func (f *fakeCustomerStore) CountOrdersByCustomer(_ context.Context, customerID int64) (int, error) {
	return f.orderCount[customerID], nil
}

func (f *fakeCustomerStore) DeleteCustomerTx(_ context.Context, customerID int64) error {
	delete(f.customers, customerID)
	f.deleted = append(f.deleted, customerID)
	return nil
}

type fakeCustomerPublisher struct {
	registered  []*models.CustomerRegisteredEvent
	resets      []*models.PasswordResetEvent
	activations []*models.AccountActivationEvent
}

func (f *fakeCustomerPublisher) PublishCustomerRegistered(_ context.Context, e *models.CustomerRegisteredEvent) error {
	f.registered = append(f.registered, e)
	return nil
}

func (f *fakeCustomerPublisher) PublishPasswordReset(_ context.Context, e *models.PasswordResetEvent) error {
	f.resets = append(f.resets, e)
	return nil
}

func (f *fakeCustomerPublisher) PublishAccountActivation(_ context.Context, e *models.AccountActivationEvent) error {
	f.activations = append(f.activations, e)
	return nil
}

func newCustomerFixture() (*CustomerService, *fakeCustomerStore, *fakeCustomerPublisher) {
	fs := newFakeCustomerStore()
	pub := &fakeCustomerPublisher{}
	return NewCustomerService(fs, pub, "https://qalamarts.example"), fs, pub
}

func TestRegisterPublishesWelcomeEvent(t *testing.T) {
	svc, fs, pub := newCustomerFixture()

	customer, err := svc.Register(context.Background(), &RegisterRequest{
		Email:     "yusuf@example.com",
		FirstName: "Yusuf",
		LastName:  "Ali",
	})
	require.NoError(t, err)
	assert.NotZero(t, customer.ID)
	assert.Contains(t, fs.customers, customer.ID)

	require.Len(t, pub.registered, 1)
	assert.Equal(t, "yusuf@example.com", pub.registered[0].Email)
	assert.Equal(t, "Yusuf", pub.registered[0].FirstName)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newCustomerFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Yusuf", LastName: "Ali",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Someone", LastName: "Else",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteRequiresTypedConfirmation(t *testing.T) {
	svc, fs, _ := newCustomerFixture()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Yusuf", LastName: "Ali",
	})
	require.NoError(t, err)

	err = svc.Delete(ctx, customer.ID, "delete")
	assert.ErrorIs(t, err, ErrConfirmationMismatch)
	assert.Contains(t, fs.customers, customer.ID)

	err = svc.Delete(ctx, customer.ID, "DELETE")
	require.NoError(t, err)
	assert.NotContains(t, fs.customers, customer.ID)
}

func TestDeleteBlockedByExistingOrders(t *testing.T) {
	svc, fs, _ := newCustomerFixture()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Yusuf", LastName: "Ali",
	})
	require.NoError(t, err)
	fs.orderCount[customer.ID] = 3

	err = svc.Delete(ctx, customer.ID, "DELETE")
	assert.ErrorIs(t, err, ErrCustomerHasOrders)
	assert.Contains(t, fs.customers, customer.ID)
	assert.Empty(t, fs.deleted)
}

func TestRequestPasswordResetBuildsLink(t *testing.T) {
	svc, _, pub := newCustomerFixture()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Yusuf", LastName: "Ali",
	})
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, customer.ID, "tok123"))
	require.Len(t, pub.resets, 1)
	assert.Equal(t, "https://qalamarts.example/account/reset-password?token=tok123", pub.resets[0].ResetURL)
}

func TestRequestActivationBuildsLink(t *testing.T) {
	svc, _, pub := newCustomerFixture()
	ctx := context.Background()

	customer, err := svc.Register(ctx, &RegisterRequest{
		Email: "yusuf@example.com", FirstName: "Yusuf", LastName: "Ali",
	})
	require.NoError(t, err)

	require.NoError(t, svc.RequestActivation(ctx, customer.ID, "tok456"))
	require.Len(t, pub.activations, 1)
	assert.Equal(t, "https://qalamarts.example/account/activate?token=tok456", pub.activations[0].ActivationURL)
}
