package worker

import (
	"context"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcilerStore is the slice of the store the reconciler needs
type ReconcilerStore interface {
	ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	CancelOrderTx(ctx context.Context, orderID int64, status, paymentStatus, reason string) error
}

// CancelPublisher publishes order cancellations
type CancelPublisher interface {
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// Reconciler sweeps orders stuck pending past the checkout timeout:
// abandoned payment popups, crashes between order creation and capture.
// Cancelling restocks the items, closing the create/charge gap without a
// client-side best-effort call.
type Reconciler struct {
	store    ReconcilerStore
	events   CancelPublisher
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates the pending-order reconciler
func NewReconciler(store ReconcilerStore, events CancelPublisher, timeout time.Duration) *Reconciler {
	interval := timeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Reconciler{
		store:    store,
		events:   events,
		timeout:  timeout,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs sweeps until the context is cancelled
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting order reconciler",
		zap.Duration("timeout", r.timeout),
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reconciler sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep cancels every pending order older than the timeout
func (r *Reconciler) Sweep(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.Sweep")
	defer span.End()

	cutoff := time.Now().Add(-r.timeout)
	stale, err := r.store.ListStalePendingOrders(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, order := range stale {
		reason := "payment not completed within checkout window"
		err := r.store.CancelOrderTx(ctx, order.ID,
			models.OrderStatusCancelled, models.PaymentStatusFailed, reason)
		if err != nil {
			r.logger.Error("Failed to cancel stale order",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			continue
		}

		util.StaleOrdersReconciledTotal.Inc()
		util.OrdersCancelledTotal.WithLabelValues("reconciled").Inc()
		r.logger.Warn("Stale pending order cancelled",
			zap.Int64("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
			zap.Time("created_at", order.CreatedAt))

		event := &models.OrderCancelledEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCancelled,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Reason:      reason,
		}
		if err := r.events.PublishOrderCancelled(ctx, event); err != nil {
			r.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}

	if len(stale) > 0 {
		r.logger.Info("Reconciler sweep completed", zap.Int("cancelled", len(stale)))
	}
	return nil
}
