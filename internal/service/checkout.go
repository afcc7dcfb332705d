package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutStore is the slice of the store the orchestrator needs
type CheckoutStore interface {
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID int64) error
	CancelOrderTx(ctx context.Context, orderID int64, status, paymentStatus, reason string) error
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID int64, status, providerTxID, failureReason string) error
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetAddressByID(ctx context.Context, id int64) (*models.Address, error)
	GetDefaultAddress(ctx context.Context, customerID int64, addrType string) (*models.Address, error)
	GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error)
	GetDefaultPaymentMethod(ctx context.Context, customerID int64) (*models.PaymentMethod, error)
}

// Locker serializes checkout per session
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Publisher is the event surface checkout emits on
type Publisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

var (
	ErrCartEmpty          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this session")
	ErrOrderNotPending    = errors.New("order is not awaiting payment")
)

// ValidationError carries a field -> message map for inline form errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// AddressInput is an inline address entered at checkout
type AddressInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	County    string `json:"county"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// GuestContact identifies a guest shopper
type GuestContact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CheckoutRequest drives a cart to a paid order
type CheckoutRequest struct {
	SessionID         string        `json:"session_id" binding:"required"`
	CustomerID        int64         `json:"customer_id"`
	Guest             *GuestContact `json:"guest,omitempty"`
	ShippingAddressID int64         `json:"shipping_address_id"`
	BillingAddressID  int64         `json:"billing_address_id"`
	ShippingAddress   *AddressInput `json:"shipping_address,omitempty"`
	BillingAddress    *AddressInput `json:"billing_address,omitempty"`
	PaymentMethodType string        `json:"payment_method_type" binding:"required"`
	SavedMethodID     int64         `json:"saved_method_id"`
	PaymentToken      string        `json:"payment_token"`
	Discount          int64         `json:"discount"`
	Notes             string        `json:"notes"`
	IdempotencyKey    string        `json:"idempotency_key,omitempty"`
}

// CheckoutResponse is returned to the client; ApprovalURL is set for
// flows that finish out-of-band (PayPal popup).
type CheckoutResponse struct {
	OrderID       int64       `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	ApprovalURL   string      `json:"approval_url,omitempty"`
	Totals        cart.Totals `json:"totals"`
}

// ProcessPaymentRequest completes a deferred capture (PayPal approval,
// wallet session)
type ProcessPaymentRequest struct {
	OrderNumber     string `json:"order_number" binding:"required"`
	SessionID       string `json:"session_id"`
	MethodType      string `json:"method_type" binding:"required"`
	ProviderOrderID string `json:"provider_order_id"`
	PaymentToken    string `json:"payment_token"`
}

// PaymentStatusResponse is what the storefront polls after the approval
// popup closes
type PaymentStatusResponse struct {
	OrderNumber    string `json:"order_number"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	ProviderStatus string `json:"provider_status,omitempty"`
}

// CheckoutService drives the customer from a populated cart to a paid,
// confirmed order
type CheckoutService struct {
	store     CheckoutStore
	carts     *cart.Service
	locks     Locker
	providers *payment.Registry
	events    Publisher
	currency  string
	logger    *zap.Logger
}

// NewCheckoutService creates the checkout orchestrator
func NewCheckoutService(
	store CheckoutStore,
	carts *cart.Service,
	locks Locker,
	providers *payment.Registry,
	events Publisher,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		store:     store,
		carts:     carts,
		locks:     locks,
		providers: providers,
		events:    events,
		currency:  currency,
		logger:    util.GetLogger(),
	}
}

// Checkout validates the request, creates a pending order with snapshotted
// items and server-recomputed totals, charges the selected provider, and
// either confirms the order or issues the compensating cancellation.
func (cs *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if err := cs.validate(ctx, req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}
	existing, err := cs.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		cs.logger.Info("Duplicate checkout request",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		return &CheckoutResponse{
			OrderID:       existing.ID,
			OrderNumber:   existing.OrderNumber,
			Status:        existing.Status,
			PaymentStatus: existing.PaymentStatus,
		}, nil
	}

	locked, err := cs.locks.AcquireLock(ctx, "checkout:"+req.SessionID, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !locked {
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := cs.locks.ReleaseLock(ctx, "checkout:"+req.SessionID); err != nil {
			cs.logger.Warn("Failed to release checkout lock", zap.Error(err))
		}
	}()

	order, items, totals, err := cs.buildOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := cs.store.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("create_failed").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	util.OrdersCreatedTotal.Inc()
	cs.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total))

	if err := cs.events.PublishOrderCreated(ctx, cs.createdEvent(ctx, order)); err != nil {
		cs.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	chargeReq, err := cs.chargeRequest(ctx, req, order)
	if err != nil {
		cs.compensate(ctx, order, err.Error())
		return nil, err
	}

	provider, err := cs.providers.For(req.PaymentMethodType)
	if err != nil {
		cs.compensate(ctx, order, err.Error())
		return nil, err
	}

	result, err := cs.charge(ctx, provider, chargeReq)
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			cs.recordPayment(ctx, order, provider.Name(), models.PaymentStatusFailed, "", declined.Message)
			cs.compensate(ctx, order, "payment declined: "+declined.Message)
			return nil, err
		}
		// Transport failure: outcome unknown at the provider, mark failed
		cs.recordPayment(ctx, order, provider.Name(), models.PaymentStatusFailed, "", err.Error())
		cs.failOrder(ctx, order, "payment error: "+err.Error())
		return nil, err
	}

	if result.Status == payment.StatusPendingApproval {
		cs.recordPayment(ctx, order, provider.Name(), models.PaymentStatusPending, result.ProviderTxID, "")
		return &CheckoutResponse{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			ApprovalURL:   result.ApprovalURL,
			Totals:        totals,
		}, nil
	}

	if err := cs.finalize(ctx, order, provider.Name(), result); err != nil {
		return nil, err
	}

	if err := cs.carts.Clear(ctx, req.SessionID); err != nil {
		cs.logger.Warn("Failed to clear cart after checkout", zap.Error(err))
	}

	return &CheckoutResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusPaid,
		Totals:        totals,
	}, nil
}

// ProcessPayment completes a deferred capture for a pending order
func (cs *CheckoutService) ProcessPayment(ctx context.Context, req *ProcessPaymentRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ProcessPayment")
	defer span.End()

	order, err := cs.store.GetOrderByNumber(ctx, req.OrderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending || order.PaymentStatus != models.PaymentStatusPending {
		return nil, ErrOrderNotPending
	}

	provider, err := cs.providers.For(req.MethodType)
	if err != nil {
		return nil, err
	}

	var result *payment.ChargeResult
	if capturer, ok := provider.(payment.Capturer); ok && req.ProviderOrderID != "" {
		result, err = capturer.Capture(ctx, req.ProviderOrderID)
	} else {
		result, err = cs.charge(ctx, provider, &payment.ChargeRequest{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			Amount:       order.Total,
			Currency:     order.Currency,
			MethodType:   req.MethodType,
			PaymentToken: req.PaymentToken,
		})
	}
	if err != nil {
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			cs.settlePayment(ctx, order, provider.Name(), models.PaymentStatusFailed, "", declined.Message)
			cs.compensate(ctx, order, "payment declined: "+declined.Message)
			return nil, err
		}
		cs.settlePayment(ctx, order, provider.Name(), models.PaymentStatusFailed, "", err.Error())
		cs.failOrder(ctx, order, "payment error: "+err.Error())
		return nil, err
	}

	cs.settlePayment(ctx, order, provider.Name(), models.PaymentStatusPaid, result.ProviderTxID, "")
	if err := cs.confirmOrder(ctx, order, result); err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		if err := cs.carts.Clear(ctx, req.SessionID); err != nil {
			cs.logger.Warn("Failed to clear cart after capture", zap.Error(err))
		}
	}

	return &CheckoutResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusPaid,
	}, nil
}

// PaymentStatus reports where a deferred payment stands. While the order
// is still awaiting approval the provider-side state is polled too, so
// the client can tell "approved, capture it" from "popup abandoned".
func (cs *CheckoutService) PaymentStatus(ctx context.Context, orderNumber string) (*PaymentStatusResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PaymentStatus")
	defer span.End()

	order, err := cs.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	resp := &PaymentStatusResponse{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return resp, nil
	}

	pmt, err := cs.store.GetPaymentByOrderID(ctx, order.ID)
	if err != nil || pmt.ProviderTxID == "" {
		return resp, nil
	}
	provider, err := cs.providers.For(order.PaymentMethod)
	if err != nil {
		return resp, nil
	}
	if poller, ok := provider.(payment.StatusPoller); ok {
		providerStatus, err := poller.GetOrderStatus(ctx, pmt.ProviderTxID)
		if err != nil {
			cs.logger.Warn("Provider status check failed",
				zap.String("order_number", orderNumber),
				zap.Error(err))
			return resp, nil
		}
		resp.ProviderStatus = providerStatus
	}
	return resp, nil
}

func (cs *CheckoutService) charge(ctx context.Context, provider payment.Provider, req *payment.ChargeRequest) (*payment.ChargeResult, error) {
	util.PaymentAttemptsTotal.WithLabelValues(provider.Name()).Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())
	}()

	result, err := provider.Charge(ctx, req)
	if err != nil {
		reason := "error"
		var declined *payment.DeclinedError
		if errors.As(err, &declined) {
			reason = "declined"
		}
		util.PaymentFailedTotal.WithLabelValues(provider.Name(), reason).Inc()
		return nil, err
	}

	if result.Status == payment.StatusCaptured {
		util.PaymentSuccessTotal.WithLabelValues(provider.Name()).Inc()
	}
	return result, nil
}

// finalize records the payment, marks the order paid/confirmed and
// publishes OrderPaid
func (cs *CheckoutService) finalize(ctx context.Context, order *models.Order, providerName string, result *payment.ChargeResult) error {
	cs.recordPayment(ctx, order, providerName, models.PaymentStatusPaid, result.ProviderTxID, "")
	return cs.confirmOrder(ctx, order, result)
}

func (cs *CheckoutService) confirmOrder(ctx context.Context, order *models.Order, result *payment.ChargeResult) error {
	if err := cs.store.MarkOrderPaid(ctx, order.ID); err != nil {
		return fmt.Errorf("payment captured but order update failed: %w", err)
	}
	util.OrdersPaidTotal.Inc()

	cs.logger.Info("Order paid",
		zap.Int64("order_id", order.ID),
		zap.String("tx_id", result.ProviderTxID))

	if err := cs.events.PublishOrderPaid(ctx, cs.paidEvent(ctx, order)); err != nil {
		cs.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}
	return nil
}

// compensate cancels the order and restocks its items after a payment
// failure. Best effort: a compensation failure is logged, the order is
// left pending for the reconciler.
func (cs *CheckoutService) compensate(ctx context.Context, order *models.Order, reason string) {
	if err := cs.store.CancelOrderTx(ctx, order.ID,
		models.OrderStatusCancelled, models.PaymentStatusFailed, reason); err != nil {
		cs.logger.Error("Compensating cancellation failed, order left pending",
			zap.Int64("order_id", order.ID),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	util.OrdersCancelledTotal.WithLabelValues("payment_failed").Inc()

	cs.logger.Warn("Order cancelled after payment failure",
		zap.Int64("order_id", order.ID),
		zap.String("reason", reason))

	event := &models.OrderCancelledEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Reason:      reason,
	}
	if err := cs.events.PublishOrderCancelled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}

func (cs *CheckoutService) failOrder(ctx context.Context, order *models.Order, reason string) {
	if err := cs.store.CancelOrderTx(ctx, order.ID,
		models.OrderStatusFailed, models.PaymentStatusFailed, reason); err != nil {
		cs.logger.Error("Failed to mark order failed, order left pending",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return
	}
	util.OrdersFailedTotal.WithLabelValues("payment_error").Inc()
}

// settlePayment resolves the pending payment row left by a deferred
// charge. When no pending row exists a fresh one is recorded.
func (cs *CheckoutService) settlePayment(ctx context.Context, order *models.Order, providerName, status, txID, failureReason string) {
	pending, err := cs.store.GetPaymentByOrderID(ctx, order.ID)
	if err == nil && pending.Status == models.PaymentStatusPending {
		if err := cs.store.UpdatePaymentStatus(ctx, pending.ID, status, txID, failureReason); err != nil {
			cs.logger.Error("Failed to update payment",
				zap.Int64("order_id", order.ID), zap.Error(err))
		}
		return
	}
	cs.recordPayment(ctx, order, providerName, status, txID, failureReason)
}

func (cs *CheckoutService) recordPayment(ctx context.Context, order *models.Order, providerName, status, txID, failureReason string) {
	p := &models.Payment{
		OrderID:       order.ID,
		Provider:      providerName,
		MethodType:    order.PaymentMethod,
		Status:        status,
		ProviderTxID:  txID,
		Amount:        order.Total,
		FailureReason: failureReason,
	}
	if err := cs.store.CreatePayment(ctx, p); err != nil {
		cs.logger.Error("Failed to record payment", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// validate collects field errors the way the storefront form surfaces
// them: a field -> message map that blocks submission.
func (cs *CheckoutService) validate(ctx context.Context, req *CheckoutRequest) error {
	fields := map[string]string{}

	if req.CustomerID == 0 {
		if req.Guest == nil {
			fields["guest"] = "guest contact details are required"
		} else {
			if req.Guest.Email == "" {
				fields["email"] = "email is required"
			} else if !emailPattern.MatchString(req.Guest.Email) {
				fields["email"] = "email is invalid"
			}
			if req.Guest.FirstName == "" {
				fields["first_name"] = "first name is required"
			}
			if req.Guest.LastName == "" {
				fields["last_name"] = "last name is required"
			}
		}
	}

	if !payment.ValidMethodType(req.PaymentMethodType) {
		fields["payment_method_type"] = "unsupported payment method"
	}

	if req.ShippingAddressID == 0 {
		validateAddressInput("shipping_address", req.ShippingAddress, fields)
	}
	if req.BillingAddressID == 0 && req.BillingAddress != nil {
		validateAddressInput("billing_address", req.BillingAddress, fields)
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateAddressInput(prefix string, a *AddressInput, fields map[string]string) {
	if a == nil {
		fields[prefix] = "address is required"
		return
	}
	if a.Line1 == "" {
		fields[prefix+".line1"] = "address line 1 is required"
	}
	if a.City == "" {
		fields[prefix+".city"] = "city is required"
	}
	if a.Postcode == "" {
		fields[prefix+".postcode"] = "postcode is required"
	}
	if a.Country == "" {
		fields[prefix+".country"] = "country is required"
	}
}

// buildOrder loads the cart, re-resolves product rows, recomputes totals
// server-side and assembles the pending order with snapshotted items.
func (cs *CheckoutService) buildOrder(ctx context.Context, req *CheckoutRequest) (*models.Order, []models.OrderItem, cart.Totals, error) {
	c, err := cs.carts.Get(ctx, req.SessionID)
	if err != nil {
		return nil, nil, cart.Totals{}, err
	}
	if c.IsEmpty() {
		return nil, nil, cart.Totals{}, ErrCartEmpty
	}

	ids := make([]int64, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	products, err := cs.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, cart.Totals{}, fmt.Errorf("failed to load products: %w", err)
	}
	if len(products) != len(c.Items) {
		return nil, nil, cart.Totals{}, fmt.Errorf("some cart products no longer exist")
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	// Cart prices are advisory; the catalog price at checkout time wins.
	items := make([]models.OrderItem, 0, len(c.Items))
	for _, line := range c.Items {
		p := byID[line.ProductID]
		unit := p.CurrentPrice()
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    line.Quantity,
			UnitPrice:   unit,
			LineTotal:   unit * int64(line.Quantity),
		})
	}

	priced := &cart.Cart{SessionID: c.SessionID, Discount: req.Discount}
	for _, it := range items {
		priced.Items = append(priced.Items, cart.Item{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	totals := priced.Totals(cs.carts.Pricing())

	shipping, billing, err := cs.resolveAddresses(ctx, req)
	if err != nil {
		return nil, nil, cart.Totals{}, err
	}

	order := &models.Order{
		OrderNumber:     newOrderNumber(),
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethodType,
		Subtotal:        totals.Subtotal,
		TaxAmount:       totals.VAT,
		ShippingAmount:  totals.Shipping,
		DiscountAmount:  totals.Discount,
		Total:           totals.Total,
		Currency:        cs.currency,
		Notes:           req.Notes,
		IdempotencyKey:  req.IdempotencyKey,
		ShippingAddress: shipping,
		BillingAddress:  billing,
	}
	if req.CustomerID > 0 {
		order.CustomerID = sql.NullInt64{Int64: req.CustomerID, Valid: true}
	} else if req.Guest != nil {
		order.GuestEmail = req.Guest.Email
		order.GuestName = strings.TrimSpace(req.Guest.FirstName + " " + req.Guest.LastName)
	}

	return order, items, totals, nil
}

func (cs *CheckoutService) resolveAddresses(ctx context.Context, req *CheckoutRequest) (models.AddressSnapshot, models.AddressSnapshot, error) {
	var shipping, billing models.AddressSnapshot

	resolve := func(id int64, inline *AddressInput, addrType string) (models.AddressSnapshot, error) {
		var snap models.AddressSnapshot
		switch {
		case id > 0:
			addr, err := cs.store.GetAddressByID(ctx, id)
			if err != nil {
				return snap, err
			}
			if req.CustomerID > 0 && addr.CustomerID != req.CustomerID {
				return snap, fmt.Errorf("address %d does not belong to customer", id)
			}
			snap.FromAddress(addr)
		case inline != nil:
			snap = models.AddressSnapshot{
				FirstName: inline.FirstName,
				LastName:  inline.LastName,
				Line1:     inline.Line1,
				Line2:     inline.Line2,
				City:      inline.City,
				County:    inline.County,
				Postcode:  inline.Postcode,
				Country:   inline.Country,
				Phone:     inline.Phone,
			}
		case req.CustomerID > 0:
			addr, err := cs.store.GetDefaultAddress(ctx, req.CustomerID, addrType)
			if err != nil {
				return snap, err
			}
			if addr == nil {
				return snap, &ValidationError{Fields: map[string]string{
					addrType + "_address": "no saved " + addrType + " address",
				}}
			}
			snap.FromAddress(addr)
		default:
			return snap, &ValidationError{Fields: map[string]string{
				addrType + "_address": "address is required",
			}}
		}
		return snap, nil
	}

	shipping, err := resolve(req.ShippingAddressID, req.ShippingAddress, models.AddressTypeShipping)
	if err != nil {
		return shipping, billing, err
	}

	billing, err = resolve(req.BillingAddressID, req.BillingAddress, models.AddressTypeBilling)
	if err != nil {
		// Billing falls back to shipping when nothing was supplied
		var verr *ValidationError
		if errors.As(err, &verr) && req.BillingAddressID == 0 && req.BillingAddress == nil {
			return shipping, shipping, nil
		}
		return shipping, billing, err
	}

	return shipping, billing, nil
}

// chargeRequest resolves saved payment method references for the provider
func (cs *CheckoutService) chargeRequest(ctx context.Context, req *CheckoutRequest, order *models.Order) (*payment.ChargeRequest, error) {
	chargeReq := &payment.ChargeRequest{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Amount:       order.Total,
		Currency:     order.Currency,
		MethodType:   req.PaymentMethodType,
		PaymentToken: req.PaymentToken,
		Description:  fmt.Sprintf("Order %s", order.OrderNumber),
	}

	if req.SavedMethodID > 0 {
		method, err := cs.store.GetPaymentMethodByID(ctx, req.SavedMethodID)
		if err != nil {
			return nil, err
		}
		if method.CustomerID != req.CustomerID {
			return nil, fmt.Errorf("payment method %d does not belong to customer", req.SavedMethodID)
		}
		chargeReq.SavedMethodID = method.ProviderMethodID
		chargeReq.ProviderCustomerID = method.ProviderCustomerID
	} else if req.CustomerID > 0 && req.PaymentMethodType == models.PaymentMethodCard && req.PaymentToken == "" {
		// Logged-in card payment with no fresh token: fall back to the
		// saved default, skipping the card-entry form.
		method, err := cs.store.GetDefaultPaymentMethod(ctx, req.CustomerID)
		if err != nil {
			return nil, err
		}
		if method != nil && method.Type == models.PaymentMethodCard {
			chargeReq.SavedMethodID = method.ProviderMethodID
			chargeReq.ProviderCustomerID = method.ProviderCustomerID
		}
	}

	return chargeReq, nil
}

func (cs *CheckoutService) createdEvent(ctx context.Context, order *models.Order) *models.OrderCreatedEvent {
	return &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       cs.orderEmail(ctx, order),
		Total:       order.Total,
		Currency:    order.Currency,
		Items:       eventItems(order.Items),
	}
}

func (cs *CheckoutService) paidEvent(ctx context.Context, order *models.Order) *models.OrderPaidEvent {
	email := cs.orderEmail(ctx, order)
	name := order.GuestName
	if order.CustomerID.Valid {
		if customer, err := cs.store.GetCustomerByID(ctx, order.CustomerID.Int64); err == nil {
			name = strings.TrimSpace(customer.FirstName + " " + customer.LastName)
		}
	}

	return &models.OrderPaidEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPaid),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       email,
		Name:        name,
		Subtotal:    order.Subtotal,
		TaxAmount:   order.TaxAmount,
		Shipping:    order.ShippingAmount,
		Total:       order.Total,
		Currency:    order.Currency,
		Items:       eventItems(order.Items),
	}
}

func (cs *CheckoutService) orderEmail(ctx context.Context, order *models.Order) string {
	if order.GuestEmail != "" {
		return order.GuestEmail
	}
	if order.CustomerID.Valid {
		if customer, err := cs.store.GetCustomerByID(ctx, order.CustomerID.Int64); err == nil {
			return customer.Email
		}
	}
	return ""
}

func eventItems(items []models.OrderItem) []models.OrderItemData {
	out := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		out = append(out, models.OrderItemData{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return out
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// newOrderNumber builds the human-facing reference, e.g. QA-20250829-7F3A
func newOrderNumber() string {
	frag := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("QA-%s-%s", time.Now().Format("20060102"), frag)
}
