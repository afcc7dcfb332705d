package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing storefront domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

func customerKey(customerID int64) string {
	return fmt.Sprintf("customer-%d", customerID)
}

// PublishOrderCreated publishes OrderCreated
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderPaid publishes OrderPaid
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCancelled publishes OrderCancelled
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishCustomerRegistered publishes CustomerRegistered
func (ep *EventPublisher) PublishCustomerRegistered(ctx context.Context, event *models.CustomerRegisteredEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// PublishPasswordReset publishes PasswordResetRequested
func (ep *EventPublisher) PublishPasswordReset(ctx context.Context, event *models.PasswordResetEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// PublishAccountActivation publishes AccountActivationRequested
func (ep *EventPublisher) PublishAccountActivation(ctx context.Context, event *models.AccountActivationEvent) error {
	return ep.producer.PublishEvent(ctx, customerKey(event.CustomerID), event)
}

// EventHandler routes consumed events to registered callbacks
type EventHandler struct {
	onOrderPaid          func(context.Context, *models.OrderPaidEvent) error
	onOrderCancelled     func(context.Context, *models.OrderCancelledEvent) error
	onCustomerRegistered func(context.Context, *models.CustomerRegisteredEvent) error
	onPasswordReset      func(context.Context, *models.PasswordResetEvent) error
	onAccountActivation  func(context.Context, *models.AccountActivationEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPaid registers a handler for OrderPaid events
func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *models.OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

// OnOrderCancelled registers a handler for OrderCancelled events
func (eh *EventHandler) OnOrderCancelled(handler func(context.Context, *models.OrderCancelledEvent) error) {
	eh.onOrderCancelled = handler
}

// OnCustomerRegistered registers a handler for CustomerRegistered events
func (eh *EventHandler) OnCustomerRegistered(handler func(context.Context, *models.CustomerRegisteredEvent) error) {
	eh.onCustomerRegistered = handler
}

// OnPasswordReset registers a handler for PasswordReset events
func (eh *EventHandler) OnPasswordReset(handler func(context.Context, *models.PasswordResetEvent) error) {
	eh.onPasswordReset = handler
}

// OnAccountActivation registers a handler for AccountActivation events
func (eh *EventHandler) OnAccountActivation(handler func(context.Context, *models.AccountActivationEvent) error) {
	eh.onAccountActivation = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPaid:
		if eh.onOrderPaid != nil {
			var event models.OrderPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPaid event: %w", err)
			}
			return eh.onOrderPaid(ctx, &event)
		}

	case models.EventTypeOrderCancelled:
		if eh.onOrderCancelled != nil {
			var event models.OrderCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCancelled event: %w", err)
			}
			return eh.onOrderCancelled(ctx, &event)
		}

	case models.EventTypeCustomerRegistered:
		if eh.onCustomerRegistered != nil {
			var event models.CustomerRegisteredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CustomerRegistered event: %w", err)
			}
			return eh.onCustomerRegistered(ctx, &event)
		}

	case models.EventTypePasswordReset:
		if eh.onPasswordReset != nil {
			var event models.PasswordResetEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PasswordReset event: %w", err)
			}
			return eh.onPasswordReset(ctx, &event)
		}

	case models.EventTypeAccountActivation:
		if eh.onAccountActivation != nil {
			var event models.AccountActivationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal AccountActivation event: %w", err)
			}
			return eh.onAccountActivation(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
