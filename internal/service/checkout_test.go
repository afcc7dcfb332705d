package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"storefront-service/internal/cart"
	"storefront-service/internal/models"
	"storefront-service/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory CheckoutStore tracking stock, cancellations
// and recorded payments
type fakeStore struct {
	products    map[int64]*models.Product
	customers   map[int64]*models.Customer
	addresses   map[int64]*models.Address
	methods     map[int64]*models.PaymentMethod
	defaults    map[string]*models.Address
	orders      map[int64]*models.Order
	byKey       map[string]*models.Order
	payments    []*models.Payment
	cancelCalls []string
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  map[int64]*models.Product{},
		customers: map[int64]*models.Customer{},
		addresses: map[int64]*models.Address{},
		methods:   map[int64]*models.PaymentMethod{},
		defaults:  map[string]*models.Address{},
		orders:    map[int64]*models.Order{},
		byKey:     map[string]*models.Order{},
	}
}

func (f *fakeStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	return f.byKey[key], nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order, items []models.OrderItem) error {
	for _, it := range items {
		p, ok := f.products[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			return fmt.Errorf("insufficient stock for product %d", it.ProductID)
		}
	}
	for _, it := range items {
		f.products[it.ProductID].Stock -= it.Quantity
	}
	f.nextID++
	order.ID = f.nextID
	order.Items = items
	f.orders[order.ID] = order
	if order.IdempotencyKey != "" {
		f.byKey[order.IdempotencyKey] = order
	}
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	return o, nil
}

func (f *fakeStore) GetOrderByNumber(_ context.Context, number string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return nil, fmt.Errorf("order not found: %s", number)
}

func (f *fakeStore) MarkOrderPaid(_ context.Context, orderID int64) error {
	o := f.orders[orderID]
	o.Status = models.OrderStatusConfirmed
	o.PaymentStatus = models.PaymentStatusPaid
	return nil
}

func (f *fakeStore) CancelOrderTx(_ context.Context, orderID int64, status, paymentStatus, reason string) error {
	o := f.orders[orderID]
	o.Status = status
	o.PaymentStatus = paymentStatus
	for _, it := range o.Items {
		f.products[it.ProductID].Stock += it.Quantity
	}
	f.cancelCalls = append(f.cancelCalls, reason)
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	f.nextID++
	p.ID = f.nextID
	f.payments = append(f.payments, p)
	return nil
}

func (f *fakeStore) GetPaymentByOrderID(_ context.Context, orderID int64) (*models.Payment, error) {
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].OrderID == orderID {
			return f.payments[i], nil
		}
	}
	return nil, fmt.Errorf("payment not found for order: %d", orderID)
}

func (f *fakeStore) UpdatePaymentStatus(_ context.Context, paymentID int64, status, providerTxID, failureReason string) error {
	for _, p := range f.payments {
		if p.ID == paymentID {
			p.Status = status
			p.ProviderTxID = providerTxID
			p.FailureReason = failureReason
			return nil
		}
	}
	return fmt.Errorf("payment not found: %d", paymentID)
}

func (f *fakeStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	return p, nil
}

func (f *fakeStore) GetCustomerByID(_ context.Context, id int64) (*models.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer not found: %d", id)
	}
	return c, nil
}

func (f *fakeStore) GetAddressByID(_ context.Context, id int64) (*models.Address, error) {
	a, ok := f.addresses[id]
	if !ok {
		return nil, fmt.Errorf("address not found: %d", id)
	}
	return a, nil
}

func (f *fakeStore) GetDefaultAddress(_ context.Context, customerID int64, addrType string) (*models.Address, error) {
	return f.defaults[fmt.Sprintf("%d:%s", customerID, addrType)], nil
}

func (f *fakeStore) GetPaymentMethodByID(_ context.Context, id int64) (*models.PaymentMethod, error) {
	m, ok := f.methods[id]
	if !ok {
		return nil, fmt.Errorf("payment method not found: %d", id)
	}
	return m, nil
}

func (f *fakeStore) GetDefaultPaymentMethod(_ context.Context, customerID int64) (*models.PaymentMethod, error) {
	for _, m := range f.methods {
		if m.CustomerID == customerID && m.IsDefault {
			return m, nil
		}
	}
	return nil, nil
}

type memCarts struct {
	data map[string][]byte
}

func (m *memCarts) GetCart(_ context.Context, sessionID string, dest interface{}) (bool, error) {
	b, ok := m.data[sessionID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memCarts) SaveCart(_ context.Context, sessionID string, c interface{}, _ time.Duration) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	m.data[sessionID] = b
	return nil
}

func (m *memCarts) DeleteCart(_ context.Context, sessionID string) error {
	delete(m.data, sessionID)
	return nil
}

type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.held[key] {
		return false, nil
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	delete(f.held, key)
	return nil
}

type fakePublisher struct {
	created   []*models.OrderCreatedEvent
	paid      []*models.OrderPaidEvent
	cancelled []*models.OrderCancelledEvent
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakePublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	f.paid = append(f.paid, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

// stubProvider returns a canned result or error
type stubProvider struct {
	name   string
	result *payment.ChargeResult
	err    error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Charge(_ context.Context, _ *payment.ChargeRequest) (*payment.ChargeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubProvider) Capture(_ context.Context, _ string) (*payment.ChargeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type checkoutFixture struct {
	svc    *CheckoutService
	store  *fakeStore
	carts  *cart.Service
	locker *fakeLocker
	events *fakePublisher
}

func newCheckoutFixture(t *testing.T, provider payment.Provider) *checkoutFixture {
	t.Helper()

	fs := newFakeStore()
	fs.products[1] = &models.Product{
		ID: 1, SKU: "CAL-001", Name: "Ayat al-Kursi Panel",
		RegularPrice: 4500, Stock: 10, Status: models.ProductStatusActive,
	}

	pricing := cart.Pricing{
		Currency:              "GBP",
		VATRate:               decimal.RequireFromString("0.20"),
		FreeShippingThreshold: 10000,
		ShippingFee:           899,
	}
	carts := cart.NewService(&memCarts{data: map[string][]byte{}}, fs, pricing, time.Hour)

	registry := payment.NewRegistry()
	registry.Register(models.PaymentMethodCard, provider)
	registry.Register(models.PaymentMethodPayPal, provider)

	locker := &fakeLocker{held: map[string]bool{}}
	events := &fakePublisher{}

	return &checkoutFixture{
		svc:    NewCheckoutService(fs, carts, locker, registry, events, "GBP"),
		store:  fs,
		carts:  carts,
		locker: locker,
		events: events,
	}
}

func guestCheckoutRequest() *CheckoutRequest {
	return &CheckoutRequest{
		SessionID: "sess-1",
		Guest: &GuestContact{
			Email:     "amina@example.com",
			FirstName: "Amina",
			LastName:  "Khan",
		},
		ShippingAddress: &AddressInput{
			FirstName: "Amina", LastName: "Khan",
			Line1: "12 Mosque Lane", City: "Birmingham",
			Postcode: "B12 4AB", Country: "GB",
		},
		PaymentMethodType: models.PaymentMethodCard,
		PaymentToken:      "tok_test",
	}
}

func captured(txID string) *payment.ChargeResult {
	return &payment.ChargeResult{ProviderTxID: txID, Status: payment.StatusCaptured}
}

func TestCheckoutSuccess(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)

	resp, err := f.svc.Checkout(ctx, guestCheckoutRequest())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, resp.Status)
	assert.Equal(t, models.PaymentStatusPaid, resp.PaymentStatus)
	assert.Equal(t, int64(9000), resp.Totals.Subtotal)
	assert.Equal(t, int64(1800), resp.Totals.VAT)
	assert.Equal(t, int64(899), resp.Totals.Shipping)
	assert.Equal(t, int64(11699), resp.Totals.Total)

	order := f.store.orders[resp.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, 8, f.store.products[1].Stock)

	require.Len(t, f.store.payments, 1)
	assert.Equal(t, models.PaymentStatusPaid, f.store.payments[0].Status)
	assert.Equal(t, "tx-1", f.store.payments[0].ProviderTxID)

	assert.Len(t, f.events.created, 1)
	assert.Len(t, f.events.paid, 1)
	assert.Equal(t, "amina@example.com", f.events.paid[0].Email)

	// Cart cleared after success
	c, err := f.carts.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestCheckoutDeclinedCancelsOrderAndRestocks(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{
		name: "gateway",
		err:  &payment.DeclinedError{Code: "card_declined", Message: "insufficient funds"},
	})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 2)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, guestCheckoutRequest())
	require.Error(t, err)

	var declined *payment.DeclinedError
	assert.ErrorAs(t, err, &declined)

	require.Len(t, f.store.orders, 1)
	for _, order := range f.store.orders {
		assert.Equal(t, models.OrderStatusCancelled, order.Status)
		assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
	}

	// Stock returned by the compensating cancellation
	assert.Equal(t, 10, f.store.products[1].Stock)

	require.Len(t, f.store.payments, 1)
	assert.Equal(t, models.PaymentStatusFailed, f.store.payments[0].Status)
	assert.Equal(t, "insufficient funds", f.store.payments[0].FailureReason)

	assert.Len(t, f.events.cancelled, 1)
	assert.Empty(t, f.events.paid)
}

func TestCheckoutTransportErrorFailsOrder(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", err: fmt.Errorf("connection reset")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, guestCheckoutRequest())
	require.Error(t, err)

	for _, order := range f.store.orders {
		assert.Equal(t, models.OrderStatusFailed, order.Status)
		assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})

	_, err := f.svc.Checkout(context.Background(), guestCheckoutRequest())
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Empty(t, f.store.orders)
}

func TestCheckoutIdempotencyReturnsExistingOrder(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	req := guestCheckoutRequest()
	req.IdempotencyKey = "key-1"

	first, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	second, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, f.store.orders, 1)
}

func TestCheckoutLockedSession(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	_, err = f.locker.AcquireLock(ctx, "checkout:sess-1", time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, guestCheckoutRequest())
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
}

func TestCheckoutValidationErrors(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})

	req := &CheckoutRequest{
		SessionID:         "sess-1",
		PaymentMethodType: "cheque",
		Guest:             &GuestContact{Email: "not-an-email"},
	}

	_, err := f.svc.Checkout(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "first_name")
	assert.Contains(t, verr.Fields, "payment_method_type")
	assert.Contains(t, verr.Fields, "shipping_address")
}

func TestCheckoutCatalogPriceWins(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	// Price drops between add-to-cart and checkout
	f.store.products[1].RegularPrice = 4000

	resp, err := f.svc.Checkout(ctx, guestCheckoutRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(4000), resp.Totals.Subtotal)

	order := f.store.orders[resp.OrderID]
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(4000), order.Items[0].UnitPrice)
}

func TestCheckoutBillingFallsBackToShipping(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	resp, err := f.svc.Checkout(ctx, guestCheckoutRequest())
	require.NoError(t, err)

	order := f.store.orders[resp.OrderID]
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)
	assert.Equal(t, "12 Mosque Lane", order.BillingAddress.Line1)
}

func TestCheckoutPendingApprovalLeavesOrderPending(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "paypal", result: &payment.ChargeResult{
		ProviderTxID: "PP-1",
		Status:       payment.StatusPendingApproval,
		ApprovalURL:  "https://paypal.example/approve/PP-1",
	}})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	req := guestCheckoutRequest()
	req.PaymentMethodType = models.PaymentMethodPayPal

	resp, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.example/approve/PP-1", resp.ApprovalURL)
	assert.Equal(t, models.OrderStatusPending, resp.Status)

	order := f.store.orders[resp.OrderID]
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	require.Len(t, f.store.payments, 1)
	assert.Equal(t, models.PaymentStatusPending, f.store.payments[0].Status)

	// Cart survives until the capture completes
	c, err := f.carts.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
	assert.Empty(t, f.events.paid)
}

func TestProcessPaymentCapturesApprovedOrder(t *testing.T) {
	stub := &stubProvider{name: "paypal", result: &payment.ChargeResult{
		ProviderTxID: "PP-1",
		Status:       payment.StatusPendingApproval,
		ApprovalURL:  "https://paypal.example/approve/PP-1",
	}}
	f := newCheckoutFixture(t, stub)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	req := guestCheckoutRequest()
	req.PaymentMethodType = models.PaymentMethodPayPal
	pending, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	stub.result = captured("PP-CAP-1")
	resp, err := f.svc.ProcessPayment(ctx, &ProcessPaymentRequest{
		OrderNumber:     pending.OrderNumber,
		SessionID:       "sess-1",
		MethodType:      models.PaymentMethodPayPal,
		ProviderOrderID: "PP-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, resp.Status)
	assert.Equal(t, models.PaymentStatusPaid, resp.PaymentStatus)
	assert.Len(t, f.events.paid, 1)

	// The pending payment row is settled in place, not duplicated
	require.Len(t, f.store.payments, 1)
	assert.Equal(t, models.PaymentStatusPaid, f.store.payments[0].Status)
	assert.Equal(t, "PP-CAP-1", f.store.payments[0].ProviderTxID)

	// Cart cleared once the capture lands
	c, err := f.carts.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

// pollingStub also answers provider-side status polls
type pollingStub struct {
	stubProvider
	orderStatus string
}

func (p *pollingStub) GetOrderStatus(_ context.Context, _ string) (string, error) {
	return p.orderStatus, nil
}

func TestPaymentStatusPollsProviderWhilePending(t *testing.T) {
	stub := &pollingStub{
		stubProvider: stubProvider{name: "paypal", result: &payment.ChargeResult{
			ProviderTxID: "PP-1",
			Status:       payment.StatusPendingApproval,
			ApprovalURL:  "https://paypal.example/approve/PP-1",
		}},
		orderStatus: "APPROVED",
	}
	f := newCheckoutFixture(t, stub)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	req := guestCheckoutRequest()
	req.PaymentMethodType = models.PaymentMethodPayPal
	pending, err := f.svc.Checkout(ctx, req)
	require.NoError(t, err)

	status, err := f.svc.PaymentStatus(ctx, pending.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, status.Status)
	assert.Equal(t, models.PaymentStatusPending, status.PaymentStatus)
	assert.Equal(t, "APPROVED", status.ProviderStatus)
}

func TestPaymentStatusSettledOrderSkipsPoll(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "gateway", result: captured("tx-1")})
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", 1, 1)
	require.NoError(t, err)

	resp, err := f.svc.Checkout(ctx, guestCheckoutRequest())
	require.NoError(t, err)

	status, err := f.svc.PaymentStatus(ctx, resp.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, status.PaymentStatus)
	assert.Empty(t, status.ProviderStatus)
}

func TestProcessPaymentRejectsSettledOrder(t *testing.T) {
	f := newCheckoutFixture(t, &stubProvider{name: "paypal", result: captured("PP-CAP-1")})
	ctx := context.Background()

	order := &models.Order{
		OrderNumber:   "QA-20260829-DONE",
		Status:        models.OrderStatusConfirmed,
		PaymentStatus: models.PaymentStatusPaid,
		PaymentMethod: models.PaymentMethodPayPal,
	}
	require.NoError(t, f.store.CreateOrder(ctx, order, nil))

	_, err := f.svc.ProcessPayment(ctx, &ProcessPaymentRequest{
		OrderNumber: "QA-20260829-DONE",
		MethodType:  models.PaymentMethodPayPal,
	})
	assert.ErrorIs(t, err, ErrOrderNotPending)
}
