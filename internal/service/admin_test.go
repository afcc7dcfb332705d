package service

import (
	"context"
	"fmt"
	"testing"

	"storefront-service/internal/models"
	"storefront-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdminStore struct {
	orders map[int64]*models.Order
}

func newFakeAdminStore(orders ...*models.Order) *fakeAdminStore {
	f := &fakeAdminStore{orders: map[int64]*models.Order{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeAdminStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	return o, nil
}

func (f *fakeAdminStore) ListOrders(_ context.Context, _ store.OrderFilter) ([]models.Order, error) {
	out := []models.Order{}
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeAdminStore) UpdateOrderStatus(_ context.Context, orderID int64, status string) error {
	f.orders[orderID].Status = status
	return nil
}

func (f *fakeAdminStore) MarkOrderPaid(_ context.Context, orderID int64) error {
	o := f.orders[orderID]
	o.Status = models.OrderStatusConfirmed
	o.PaymentStatus = models.PaymentStatusPaid
	return nil
}

func (f *fakeAdminStore) CancelOrderTx(_ context.Context, orderID int64, status, paymentStatus, _ string) error {
	o := f.orders[orderID]
	o.Status = status
	o.PaymentStatus = paymentStatus
	return nil
}

func TestBulkCancelSkipsShippedAndDelivered(t *testing.T) {
	fs := newFakeAdminStore(
		&models.Order{ID: 1, Status: models.OrderStatusConfirmed, PaymentStatus: models.PaymentStatusPaid},
		&models.Order{ID: 2, Status: models.OrderStatusShipped, PaymentStatus: models.PaymentStatusPaid},
		&models.Order{ID: 3, Status: models.OrderStatusDelivered, PaymentStatus: models.PaymentStatusPaid},
		&models.Order{ID: 4, Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending},
	)
	svc := NewAdminService(fs)

	result, err := svc.BulkAction(context.Background(), BulkActionCancel, []int64{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 2, result.Blocked)
	assert.Empty(t, result.Errors)

	assert.Equal(t, models.OrderStatusCancelled, fs.orders[1].Status)
	assert.Equal(t, models.OrderStatusShipped, fs.orders[2].Status)
	assert.Equal(t, models.OrderStatusDelivered, fs.orders[3].Status)
	assert.Equal(t, models.OrderStatusCancelled, fs.orders[4].Status)
}

func TestBulkCancelKeepsPaymentStatus(t *testing.T) {
	fs := newFakeAdminStore(
		&models.Order{ID: 1, Status: models.OrderStatusConfirmed, PaymentStatus: models.PaymentStatusPaid},
	)
	svc := NewAdminService(fs)

	_, err := svc.BulkAction(context.Background(), BulkActionCancel, []int64{1})
	require.NoError(t, err)

	// Cancelling a paid order must not rewrite its payment record;
	// refunds are a separate manual step.
	assert.Equal(t, models.PaymentStatusPaid, fs.orders[1].PaymentStatus)
}

func TestBulkMarkPaid(t *testing.T) {
	fs := newFakeAdminStore(
		&models.Order{ID: 1, Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending},
		&models.Order{ID: 2, Status: models.OrderStatusPending, PaymentStatus: models.PaymentStatusPending},
	)
	svc := NewAdminService(fs)

	result, err := svc.BulkAction(context.Background(), BulkActionMarkPaid, []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, models.PaymentStatusPaid, fs.orders[1].PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, fs.orders[2].Status)
}

func TestBulkActionMissingOrderDoesNotAbortBatch(t *testing.T) {
	fs := newFakeAdminStore(
		&models.Order{ID: 1, Status: models.OrderStatusConfirmed},
	)
	svc := NewAdminService(fs)

	result, err := svc.BulkAction(context.Background(), BulkActionMarkShipped, []int64{99, 1})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, []int64{99}, result.Errors)
	assert.Equal(t, models.OrderStatusShipped, fs.orders[1].Status)
}

func TestBulkActionUnknown(t *testing.T) {
	svc := NewAdminService(newFakeAdminStore())
	_, err := svc.BulkAction(context.Background(), "explode", []int64{1})
	assert.ErrorIs(t, err, ErrUnknownBulkAction)
}

func TestUpdateStatusRejectsTerminalOrders(t *testing.T) {
	fs := newFakeAdminStore(
		&models.Order{ID: 1, Status: models.OrderStatusCancelled},
		&models.Order{ID: 2, Status: models.OrderStatusProcessing},
	)
	svc := NewAdminService(fs)

	err := svc.UpdateStatus(context.Background(), 1, models.OrderStatusShipped)
	assert.Error(t, err)
	assert.Equal(t, models.OrderStatusCancelled, fs.orders[1].Status)

	err = svc.UpdateStatus(context.Background(), 2, models.OrderStatusReady)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReady, fs.orders[2].Status)
}
