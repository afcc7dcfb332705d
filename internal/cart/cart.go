package cart

import (
	"github.com/shopspring/decimal"
)

// Item is a cart line with the product name/sku/price snapshotted at add
// time. Prices are minor units (pence).
type Item struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	ProductSKU  string `json:"product_sku"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Image       string `json:"image,omitempty"`
}

// Cart is a session-scoped list of items
type Cart struct {
	SessionID string `json:"session_id"`
	Items     []Item `json:"items"`
	Discount  int64  `json:"discount"`
}

// Pricing holds the storefront pricing rules applied to every cart
type Pricing struct {
	Currency              string
	VATRate               decimal.Decimal
	FreeShippingThreshold int64
	ShippingFee           int64
}

// Totals is the derived cart arithmetic
type Totals struct {
	Subtotal int64  `json:"subtotal"`
	VAT      int64  `json:"vat"`
	Shipping int64  `json:"shipping"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// IsEmpty reports whether the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the index of a product line, or -1
func (c *Cart) Find(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Totals derives subtotal, VAT, shipping and total. Subtotal is the sum
// of unit price times quantity; VAT is the rate applied to the whole
// subtotal, rounded half-up to the minor unit; shipping is waived at or
// above the free-shipping threshold. Total never goes below zero.
func (c *Cart) Totals(p Pricing) Totals {
	var subtotal int64
	for _, item := range c.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	vat := decimal.NewFromInt(subtotal).Mul(p.VATRate).Round(0).IntPart()

	shipping := p.ShippingFee
	if subtotal >= p.FreeShippingThreshold {
		shipping = 0
	}

	total := subtotal + vat + shipping - c.Discount
	if total < 0 {
		total = 0
	}

	return Totals{
		Subtotal: subtotal,
		VAT:      vat,
		Shipping: shipping,
		Discount: c.Discount,
		Total:    total,
		Currency: p.Currency,
	}
}
