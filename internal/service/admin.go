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

// Bulk actions
const (
	BulkActionMarkPaid        = "mark_paid"
	BulkActionMarkShipped     = "mark_shipped"
	BulkActionStartProduction = "start_production"
	BulkActionCancel          = "cancel"
)

var ErrUnknownBulkAction = errors.New("unknown bulk action")

// AdminOrderStore is the slice of the store for admin order management
type AdminOrderStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	MarkOrderPaid(ctx context.Context, orderID int64) error
	CancelOrderTx(ctx context.Context, orderID int64, status, paymentStatus, reason string) error
}

// BulkResult reports how a bulk action landed: orders updated, and orders
// the precondition blocked.
type BulkResult struct {
	Updated int     `json:"updated"`
	Blocked int     `json:"blocked"`
	Errors  []int64 `json:"errors,omitempty"`
}

// AdminService handles back-office order management
type AdminService struct {
	store  AdminOrderStore
	logger *zap.Logger
}

// NewAdminService creates an admin service
func NewAdminService(store AdminOrderStore) *AdminService {
	return &AdminService{store: store, logger: util.GetLogger()}
}

// ListOrders lists orders for the admin views
func (s *AdminService) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, f)
}

// GetOrder retrieves an order with items
func (s *AdminService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, id)
}

// UpdateStatus applies a single status transition; terminal orders are
// immutable.
func (s *AdminService) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if models.TerminalStatus(order.Status) {
		return fmt.Errorf("order %d is in terminal state %s", orderID, order.Status)
	}
	return s.store.UpdateOrderStatus(ctx, orderID, status)
}

// BulkAction applies an action to each selected order. Cancel skips any
// order already shipped or delivered and reports it in Blocked; the
// others fail the individual order into Errors rather than aborting the
// batch.
func (s *AdminService) BulkAction(ctx context.Context, action string, orderIDs []int64) (*BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.BulkAction")
	defer span.End()

	switch action {
	case BulkActionMarkPaid, BulkActionMarkShipped, BulkActionStartProduction, BulkActionCancel:
	default:
		return nil, ErrUnknownBulkAction
	}

	result := &BulkResult{}
	for _, id := range orderIDs {
		order, err := s.store.GetOrderByID(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, id)
			continue
		}

		switch action {
		case BulkActionMarkPaid:
			err = s.store.MarkOrderPaid(ctx, id)

		case BulkActionMarkShipped:
			err = s.store.UpdateOrderStatus(ctx, id, models.OrderStatusShipped)

		case BulkActionStartProduction:
			err = s.store.UpdateOrderStatus(ctx, id, models.OrderStatusProcessing)

		case BulkActionCancel:
			if order.Status == models.OrderStatusShipped || order.Status == models.OrderStatusDelivered {
				result.Blocked++
				util.BulkActionOrdersTotal.WithLabelValues(action, "blocked").Inc()
				continue
			}
			err = s.store.CancelOrderTx(ctx, id,
				models.OrderStatusCancelled, order.PaymentStatus, "cancelled by admin")
			if err == nil {
				util.OrdersCancelledTotal.WithLabelValues("admin").Inc()
			}
		}

		if err != nil {
			s.logger.Error("Bulk action failed for order",
				zap.String("action", action),
				zap.Int64("order_id", id),
				zap.Error(err))
			result.Errors = append(result.Errors, id)
			util.BulkActionOrdersTotal.WithLabelValues(action, "error").Inc()
			continue
		}

		result.Updated++
		util.BulkActionOrdersTotal.WithLabelValues(action, "updated").Inc()
	}

	s.logger.Info("Bulk action completed",
		zap.String("action", action),
		zap.Int("updated", result.Updated),
		zap.Int("blocked", result.Blocked),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}
