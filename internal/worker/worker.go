package worker

import (
	"context"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/notify"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// EventLedger provides consumer idempotency
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes storefront events and sends transactional
// mail. Sends are fire-and-forget: a failed send is logged and the event
// still committed, so a broken mail provider can't wedge the topic.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	mailer       *notify.Mailer
	ledger       EventLedger
	logger       *zap.Logger
}

// NewNotificationWorker wires mail sends to the event stream
func NewNotificationWorker(consumer *broker.Consumer, mailer *notify.Mailer, ledger EventLedger) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		mailer:   mailer,
		ledger:   ledger,
		logger:   util.GetLogger(),
	}

	handler := broker.NewEventHandler()
	handler.OnOrderPaid(w.handleOrderPaid)
	handler.OnCustomerRegistered(w.handleCustomerRegistered)
	handler.OnPasswordReset(w.handlePasswordReset)
	handler.OnAccountActivation(w.handleAccountActivation)
	w.eventHandler = handler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// alreadyProcessed dedupes redelivered events; marking happens after the
// sends so a crash re-sends rather than drops.
func (w *NotificationWorker) alreadyProcessed(ctx context.Context, event models.BaseEvent) bool {
	processed, err := w.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		w.logger.Warn("Failed to check processed event", zap.Error(err))
		return false
	}
	return processed
}

func (w *NotificationWorker) markProcessed(ctx context.Context, event models.BaseEvent) {
	if err := w.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Warn("Failed to mark event processed", zap.Error(err))
	}
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	if w.alreadyProcessed(ctx, event.BaseEvent) {
		return nil
	}

	if event.Email != "" {
		if err := w.mailer.SendOrderConfirmation(ctx, event); err != nil {
			w.logger.Error("Failed to send order confirmation",
				zap.String("order_number", event.OrderNumber),
				zap.Error(err))
		}
	}

	if err := w.mailer.SendAdminNewOrderAlert(ctx, event); err != nil {
		w.logger.Error("Failed to send admin order alert",
			zap.String("order_number", event.OrderNumber),
			zap.Error(err))
	}

	w.markProcessed(ctx, event.BaseEvent)
	return nil
}

func (w *NotificationWorker) handleCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error {
	if w.alreadyProcessed(ctx, event.BaseEvent) {
		return nil
	}

	if err := w.mailer.SendWelcome(ctx, event); err != nil {
		w.logger.Error("Failed to send welcome email",
			zap.String("email", event.Email),
			zap.Error(err))
	}

	w.markProcessed(ctx, event.BaseEvent)
	return nil
}

func (w *NotificationWorker) handlePasswordReset(ctx context.Context, event *models.PasswordResetEvent) error {
	if w.alreadyProcessed(ctx, event.BaseEvent) {
		return nil
	}

	if err := w.mailer.SendPasswordReset(ctx, event); err != nil {
		w.logger.Error("Failed to send password reset email",
			zap.String("email", event.Email),
			zap.Error(err))
	}

	w.markProcessed(ctx, event.BaseEvent)
	return nil
}

func (w *NotificationWorker) handleAccountActivation(ctx context.Context, event *models.AccountActivationEvent) error {
	if w.alreadyProcessed(ctx, event.BaseEvent) {
		return nil
	}

	if err := w.mailer.SendAccountActivation(ctx, event); err != nil {
		w.logger.Error("Failed to send activation email",
			zap.String("email", event.Email),
			zap.Error(err))
	}

	w.markProcessed(ctx, event.BaseEvent)
	return nil
}
