package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconcilerStore struct {
	stale     []models.Order
	cancelled []int64
	failOn    int64
}

func (f *fakeReconcilerStore) ListStalePendingOrders(_ context.Context, _ time.Time) ([]models.Order, error) {
	return f.stale, nil
}

func (f *fakeReconcilerStore) CancelOrderTx(_ context.Context, orderID int64, status, paymentStatus, _ string) error {
	if orderID == f.failOn {
		return fmt.Errorf("deadlock detected")
	}
	if status != models.OrderStatusCancelled || paymentStatus != models.PaymentStatusFailed {
		return fmt.Errorf("unexpected cancel args: %s/%s", status, paymentStatus)
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakeCancelPublisher struct {
	events []*models.OrderCancelledEvent
}

func (f *fakeCancelPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.events = append(f.events, e)
	return nil
}

func TestSweepCancelsStalePendingOrders(t *testing.T) {
	fs := &fakeReconcilerStore{
		stale: []models.Order{
			{ID: 1, OrderNumber: "QA-20260829-0001", CreatedAt: time.Now().Add(-time.Hour)},
			{ID: 2, OrderNumber: "QA-20260829-0002", CreatedAt: time.Now().Add(-time.Hour)},
		},
	}
	pub := &fakeCancelPublisher{}

	r := NewReconciler(fs, pub, 15*time.Minute)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, []int64{1, 2}, fs.cancelled)
	require.Len(t, pub.events, 2)
	assert.Equal(t, models.EventTypeOrderCancelled, pub.events[0].EventType)
	assert.Equal(t, "QA-20260829-0001", pub.events[0].OrderNumber)
}

func TestSweepContinuesPastCancelFailure(t *testing.T) {
	fs := &fakeReconcilerStore{
		stale: []models.Order{
			{ID: 1, OrderNumber: "QA-20260829-0001"},
			{ID: 2, OrderNumber: "QA-20260829-0002"},
		},
		failOn: 1,
	}
	pub := &fakeCancelPublisher{}

	r := NewReconciler(fs, pub, 15*time.Minute)
	require.NoError(t, r.Sweep(context.Background()))

	assert.Equal(t, []int64{2}, fs.cancelled)
	assert.Len(t, pub.events, 1)
}

func TestSweepNothingStale(t *testing.T) {
	fs := &fakeReconcilerStore{}
	pub := &fakeCancelPublisher{}

	r := NewReconciler(fs, pub, 15*time.Minute)
	require.NoError(t, r.Sweep(context.Background()))
	assert.Empty(t, fs.cancelled)
	assert.Empty(t, pub.events)
}
