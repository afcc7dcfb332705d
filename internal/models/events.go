package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderPaid          = "ORDER_PAID"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeCustomerRegistered = "CUSTOMER_REGISTERED"
	EventTypePasswordReset      = "PASSWORD_RESET_REQUESTED"
	EventTypeAccountActivation  = "ACCOUNT_ACTIVATION_REQUESTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// OrderCreatedEvent published when a pending order is created at checkout
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Email       string          `json:"email"`
	Total       int64           `json:"total"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent published when payment is captured and the order confirmed
type OrderPaidEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Subtotal    int64           `json:"subtotal"`
	TaxAmount   int64           `json:"tax_amount"`
	Shipping    int64           `json:"shipping"`
	Total       int64           `json:"total"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderCancelledEvent published on compensation or admin cancellation
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"`
}

// CustomerRegisteredEvent published on account creation
type CustomerRegisteredEvent struct {
	BaseEvent
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
}

// PasswordResetEvent published when a reset is requested
type PasswordResetEvent struct {
	BaseEvent
	CustomerID int64  `json:"customer_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	ResetURL   string `json:"reset_url"`
}

// AccountActivationEvent published when an activation mail is requested
type AccountActivationEvent struct {
	BaseEvent
	CustomerID    int64  `json:"customer_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	ActivationURL string `json:"activation_url"`
}
