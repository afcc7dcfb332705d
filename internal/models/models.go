package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Customer represents a storefront account
type Customer struct {
	ID                 int64          `db:"id" json:"id"`
	Email              string         `db:"email" json:"email"`
	FirstName          string         `db:"first_name" json:"first_name"`
	LastName           string         `db:"last_name" json:"last_name"`
	Phone              string         `db:"phone" json:"phone,omitempty"`
	MarketingConsent   bool           `db:"marketing_consent" json:"marketing_consent"`
	ProviderCustomerID sql.NullString `db:"provider_customer_id" json:"provider_customer_id,omitempty"`
	Active             bool           `db:"active" json:"active"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`

	// Derived at query time, never stored
	AddressCount       int `db:"address_count" json:"address_count,omitempty"`
	PaymentMethodCount int `db:"payment_method_count" json:"payment_method_count,omitempty"`
	OrderCount         int `db:"order_count" json:"order_count,omitempty"`
}

// Address types
const (
	AddressTypeBilling  = "billing"
	AddressTypeShipping = "shipping"
)

// Address represents a saved billing or shipping address
type Address struct {
	ID         int64     `db:"id" json:"id"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	Type       string    `db:"type" json:"type"`
	Label      string    `db:"label" json:"label,omitempty"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Line1      string    `db:"line1" json:"line1"`
	Line2      string    `db:"line2" json:"line2,omitempty"`
	City       string    `db:"city" json:"city"`
	County     string    `db:"county" json:"county,omitempty"`
	Postcode   string    `db:"postcode" json:"postcode"`
	Country    string    `db:"country" json:"country"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	IsDefault  bool      `db:"is_default" json:"is_default"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Payment method types
const (
	PaymentMethodCard      = "card"
	PaymentMethodPayPal    = "paypal"
	PaymentMethodApplePay  = "apple_pay"
	PaymentMethodGooglePay = "google_pay"
)

// PaymentMethod represents a saved payment instrument
type PaymentMethod struct {
	ID                 int64     `db:"id" json:"id"`
	CustomerID         int64     `db:"customer_id" json:"customer_id"`
	Type               string    `db:"type" json:"type"`
	Provider           string    `db:"provider" json:"provider"`
	ProviderMethodID   string    `db:"provider_method_id" json:"provider_method_id"`
	ProviderCustomerID string    `db:"provider_customer_id" json:"provider_customer_id,omitempty"`
	Brand              string    `db:"brand" json:"brand,omitempty"`
	Last4              string    `db:"last4" json:"last4,omitempty"`
	ExpMonth           int       `db:"exp_month" json:"exp_month,omitempty"`
	ExpYear            int       `db:"exp_year" json:"exp_year,omitempty"`
	PayPalEmail        string    `db:"paypal_email" json:"paypal_email,omitempty"`
	IsDefault          bool      `db:"is_default" json:"is_default"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Product statuses and visibility
const (
	ProductStatusActive   = "active"
	ProductStatusDraft    = "draft"
	ProductStatusArchived = "archived"

	ProductVisible = "visible"
	ProductHidden  = "hidden"
)

// Product represents a catalog item. Prices are minor units (pence).
type Product struct {
	ID                int64          `db:"id" json:"id"`
	SKU               string         `db:"sku" json:"sku"`
	Name              string         `db:"name" json:"name"`
	Description       string         `db:"description" json:"description,omitempty"`
	RegularPrice      int64          `db:"regular_price" json:"regular_price"`
	SalePrice         sql.NullInt64  `db:"sale_price" json:"sale_price,omitempty"`
	Stock             int            `db:"stock" json:"stock"`
	Category          string         `db:"category" json:"category,omitempty"`
	Subcategory       string         `db:"subcategory" json:"subcategory,omitempty"`
	ArabicText        string         `db:"arabic_text" json:"arabic_text,omitempty"`
	Transliteration   string         `db:"transliteration" json:"transliteration,omitempty"`
	Translation       string         `db:"translation" json:"translation,omitempty"`
	HistoricalContext string         `db:"historical_context" json:"historical_context,omitempty"`
	Images            pq.StringArray `db:"images" json:"images,omitempty"`
	Models3D          pq.StringArray `db:"models_3d" json:"models_3d,omitempty"`
	HDRIFiles         pq.StringArray `db:"hdri_files" json:"hdri_files,omitempty"`
	Status            string         `db:"status" json:"status"`
	Visibility        string         `db:"visibility" json:"visibility"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// CurrentPrice returns the sale price when set, otherwise the regular price.
func (p *Product) CurrentPrice() int64 {
	if p.SalePrice.Valid && p.SalePrice.Int64 > 0 {
		return p.SalePrice.Int64
	}
	return p.RegularPrice
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusReady      = "ready"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
	OrderStatusOnHold     = "on_hold"
	OrderStatusFailed     = "failed"
)

// Payment statuses
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// AddressSnapshot is the address as captured on an order, stored as JSONB.
type AddressSnapshot struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	County    string `json:"county,omitempty"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

func (a AddressSnapshot) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *AddressSnapshot) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into AddressSnapshot", src)
	}
}

// FromAddress captures a saved address into a snapshot.
func (a *AddressSnapshot) FromAddress(addr *Address) {
	a.FirstName = addr.FirstName
	a.LastName = addr.LastName
	a.Line1 = addr.Line1
	a.Line2 = addr.Line2
	a.City = addr.City
	a.County = addr.County
	a.Postcode = addr.Postcode
	a.Country = addr.Country
	a.Phone = addr.Phone
}

// Order represents a customer order. All amounts are minor units.
// Invariant: Total = Subtotal + TaxAmount + ShippingAmount - DiscountAmount,
// fixed at creation time.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	OrderNumber     string          `db:"order_number" json:"order_number"`
	CustomerID      sql.NullInt64   `db:"customer_id" json:"customer_id,omitempty"`
	GuestEmail      string          `db:"guest_email" json:"guest_email,omitempty"`
	GuestName       string          `db:"guest_name" json:"guest_name,omitempty"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"payment_status"`
	PaymentMethod   string          `db:"payment_method" json:"payment_method"`
	Subtotal        int64           `db:"subtotal" json:"subtotal"`
	TaxAmount       int64           `db:"tax_amount" json:"tax_amount"`
	ShippingAmount  int64           `db:"shipping_amount" json:"shipping_amount"`
	DiscountAmount  int64           `db:"discount_amount" json:"discount_amount"`
	Total           int64           `db:"total" json:"total"`
	Currency        string          `db:"currency" json:"currency"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ShippingAddress AddressSnapshot `db:"shipping_address" json:"shipping_address"`
	BillingAddress  AddressSnapshot `db:"billing_address" json:"billing_address"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`

	// Join-fetched for admin list views
	CustomerEmail sql.NullString `db:"customer_email" json:"customer_email,omitempty"`
	CustomerName  sql.NullString `db:"customer_name" json:"customer_name,omitempty"`
}

// TerminalStatus reports whether an order can no longer transition.
func TerminalStatus(status string) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// OrderItem is a line item with the product name/sku snapshotted at
// creation, so later catalog edits don't rewrite order history.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	ProductSKU  string `db:"product_sku" json:"product_sku"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	LineTotal   int64  `db:"line_total" json:"line_total"`
}

// Payment represents a payment transaction against an order
type Payment struct {
	ID            int64     `db:"id" json:"id"`
	OrderID       int64     `db:"order_id" json:"order_id"`
	Provider      string    `db:"provider" json:"provider"`
	MethodType    string    `db:"method_type" json:"method_type"`
	Status        string    `db:"status" json:"status"`
	ProviderTxID  string    `db:"provider_tx_id" json:"provider_tx_id,omitempty"`
	Amount        int64     `db:"amount" json:"amount"`
	FailureReason string    `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
