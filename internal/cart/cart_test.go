package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ukPricing() Pricing {
	return Pricing{
		Currency:              "GBP",
		VATRate:               decimal.RequireFromString("0.20"),
		FreeShippingThreshold: 10000,
		ShippingFee:           899,
	}
}

func TestTotalsBelowFreeShippingThreshold(t *testing.T) {
	c := &Cart{
		SessionID: "s1",
		Items: []Item{
			{ProductID: 1, UnitPrice: 2000, Quantity: 2},
		},
	}

	totals := c.Totals(ukPricing())

	assert.Equal(t, int64(4000), totals.Subtotal)
	assert.Equal(t, int64(800), totals.VAT)
	assert.Equal(t, int64(899), totals.Shipping)
	assert.Equal(t, int64(5699), totals.Total)
	assert.Equal(t, "GBP", totals.Currency)
}

func TestTotalsFreeShippingAtThreshold(t *testing.T) {
	c := &Cart{
		SessionID: "s1",
		Items: []Item{
			{ProductID: 1, UnitPrice: 6000, Quantity: 2},
		},
	}

	totals := c.Totals(ukPricing())

	assert.Equal(t, int64(12000), totals.Subtotal)
	assert.Equal(t, int64(2400), totals.VAT)
	assert.Equal(t, int64(0), totals.Shipping)
	assert.Equal(t, int64(14400), totals.Total)
}

func TestTotalsVATRoundsHalfUp(t *testing.T) {
	p := ukPricing()

	// 1333 * 0.20 = 266.6 -> 267
	c := &Cart{Items: []Item{{ProductID: 1, UnitPrice: 1333, Quantity: 1}}}
	assert.Equal(t, int64(267), c.Totals(p).VAT)

	// 1332 * 0.20 = 266.4 -> 266
	c = &Cart{Items: []Item{{ProductID: 1, UnitPrice: 1332, Quantity: 1}}}
	assert.Equal(t, int64(266), c.Totals(p).VAT)

	// VAT applies to the whole subtotal, not per line: two lines of 33
	// each give 66 * 0.20 = 13.2 -> 13, not 2 * round(6.6).
	c = &Cart{Items: []Item{
		{ProductID: 1, UnitPrice: 33, Quantity: 1},
		{ProductID: 2, UnitPrice: 33, Quantity: 1},
	}}
	assert.Equal(t, int64(13), c.Totals(p).VAT)
}

func TestTotalsDiscountClampsAtZero(t *testing.T) {
	c := &Cart{
		Items:    []Item{{ProductID: 1, UnitPrice: 500, Quantity: 1}},
		Discount: 100000,
	}

	totals := c.Totals(ukPricing())

	assert.Equal(t, int64(0), totals.Total)
	assert.Equal(t, int64(100000), totals.Discount)
}

func TestTotalsEmptyCart(t *testing.T) {
	c := &Cart{SessionID: "s1"}
	totals := c.Totals(ukPricing())

	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(0), totals.VAT)
	// Empty carts never reach checkout, so the base fee standing is fine
	assert.Equal(t, int64(899), totals.Shipping)
}

type memStorage struct {
	carts map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{carts: map[string][]byte{}}
}

func (m *memStorage) GetCart(_ context.Context, sessionID string, dest interface{}) (bool, error) {
	data, ok := m.carts[sessionID]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (m *memStorage) SaveCart(_ context.Context, sessionID string, cart interface{}, _ time.Duration) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	m.carts[sessionID] = data
	return nil
}

func (m *memStorage) DeleteCart(_ context.Context, sessionID string) error {
	delete(m.carts, sessionID)
	return nil
}

type fakeProducts struct {
	byID map[int64]*models.Product
}

func (f *fakeProducts) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func newTestService(products ...*models.Product) *Service {
	byID := map[int64]*models.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}
	return NewService(newMemStorage(), &fakeProducts{byID: byID}, ukPricing(), time.Hour)
}

func TestAddItemSnapshotsAndAccumulates(t *testing.T) {
	svc := newTestService(&models.Product{
		ID: 1, SKU: "CAL-001", Name: "Ayat al-Kursi Panel",
		RegularPrice: 4500, Status: models.ProductStatusActive,
	})
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "s1", 1, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Ayat al-Kursi Panel", c.Items[0].ProductName)
	assert.Equal(t, int64(4500), c.Items[0].UnitPrice)

	c, err = svc.AddItem(ctx, "s1", 1, 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestAddItemUsesSalePrice(t *testing.T) {
	svc := newTestService(&models.Product{
		ID: 1, SKU: "CAL-002", Name: "Bismillah Print",
		RegularPrice: 3000, SalePrice: sql.NullInt64{Int64: 2400, Valid: true},
		Status: models.ProductStatusActive,
	})

	c, err := svc.AddItem(context.Background(), "s1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2400), c.Items[0].UnitPrice)
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	svc := newTestService(&models.Product{
		ID: 1, RegularPrice: 3000, Status: models.ProductStatusDraft,
	})

	_, err := svc.AddItem(context.Background(), "s1", 1, 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	svc := newTestService()
	_, err := svc.AddItem(context.Background(), "s1", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	svc := newTestService(&models.Product{
		ID: 1, RegularPrice: 3000, Status: models.ProductStatusActive,
	})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "s1", 1, 2)
	require.NoError(t, err)

	c, err := svc.UpdateQuantity(ctx, "s1", 1, 0)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestGetMissingCartIsEmpty(t *testing.T) {
	svc := newTestService()
	c, err := svc.Get(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, "never-seen", c.SessionID)
}
