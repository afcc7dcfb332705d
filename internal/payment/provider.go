package payment

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

// Charge outcomes
const (
	StatusCaptured        = "captured"
	StatusPendingApproval = "pending_approval"
)

// ChargeRequest describes a single payment attempt for an order.
// Amount is minor units.
type ChargeRequest struct {
	OrderID            int64
	OrderNumber        string
	Amount             int64
	Currency           string
	MethodType         string
	SavedMethodID      string // provider-side id of a saved payment method
	ProviderCustomerID string
	PaymentToken       string // client-side token (card confirmation / wallet session)
	ProviderOrderID    string // provider order ref, set when capturing an approval
	Description        string
}

// ChargeResult is the provider outcome. PendingApproval results carry the
// URL the client must open (PayPal popup/redirect).
type ChargeResult struct {
	ProviderTxID string
	Status       string
	ApprovalURL  string
}

// DeclinedError distinguishes provider declines from transport failures;
// declines trigger the compensating cancel, transport failures surface
// as-is.
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s (%s)", e.Message, e.Code)
}

// Provider authorizes and captures funds for an order
type Provider interface {
	Name() string
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
}

// Capturer completes a previously approved charge (PayPal flow)
type Capturer interface {
	Capture(ctx context.Context, providerOrderID string) (*ChargeResult, error)
}

// StatusPoller reports the provider-side state of an order still
// awaiting approval
type StatusPoller interface {
	GetOrderStatus(ctx context.Context, providerOrderID string) (string, error)
}

// Registry maps payment method types to providers
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register binds a provider to a payment method type
func (r *Registry) Register(methodType string, p Provider) {
	r.providers[methodType] = p
}

// For returns the provider for a payment method type
func (r *Registry) For(methodType string) (Provider, error) {
	p, ok := r.providers[methodType]
	if !ok {
		return nil, fmt.Errorf("unsupported payment method: %s", methodType)
	}
	return p, nil
}

// ValidMethodType reports whether the type is one the storefront accepts
func ValidMethodType(t string) bool {
	switch t {
	case models.PaymentMethodCard, models.PaymentMethodPayPal,
		models.PaymentMethodApplePay, models.PaymentMethodGooglePay:
		return true
	}
	return false
}
