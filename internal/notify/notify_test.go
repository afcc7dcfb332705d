package notify

import (
	"context"
	"testing"

	"storefront-service/config"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMailer(t *testing.T) *Mailer {
	t.Helper()
	m, err := NewMailer(config.EmailConfig{
		From:       "orders@qalamarts.example",
		AdminEmail: "admin@qalamarts.example",
		StoreName:  "Qalam Arts",
		StoreURL:   "https://qalamarts.example",
	})
	require.NoError(t, err)
	return m
}

func TestRenderOrderConfirmation(t *testing.T) {
	m := testMailer(t)

	html, err := m.Render(TemplateOrderConfirmation, OrderEmailData{
		StoreName:   "Qalam Arts",
		StoreURL:    "https://qalamarts.example",
		OrderNumber: "QA-20260829-7F3A",
		Name:        "Amina Khan",
		Items: []models.OrderItemData{
			{ProductName: "Ayat al-Kursi Panel", Quantity: 2, LineTotal: 9000},
		},
		Subtotal:  9000,
		TaxAmount: 1800,
		Shipping:  899,
		Total:     11699,
		Currency:  "GBP",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "QA-20260829-7F3A")
	assert.Contains(t, html, "Amina Khan")
	assert.Contains(t, html, "Ayat al-Kursi Panel")
	assert.Contains(t, html, "90.00 GBP")
	assert.Contains(t, html, "Total: 116.99 GBP")
}

func TestRenderAccountTemplates(t *testing.T) {
	m := testMailer(t)

	data := AccountEmailData{
		StoreName: "Qalam Arts",
		StoreURL:  "https://qalamarts.example",
		FirstName: "Yusuf",
		ActionURL: "https://qalamarts.example/account/reset-password?token=abc",
	}

	for _, name := range []string{TemplateWelcome, TemplatePasswordReset, TemplateAccountActivation} {
		html, err := m.Render(name, data)
		require.NoError(t, err, name)
		assert.Contains(t, html, "Yusuf", name)
		assert.Contains(t, html, "Qalam Arts", name)
	}
}

func TestMoneyFormatsPence(t *testing.T) {
	m := testMailer(t)

	html, err := m.Render(TemplateAdminNewOrder, OrderEmailData{
		StoreName:   "Qalam Arts",
		OrderNumber: "QA-20260829-0001",
		Total:       5,
		Currency:    "GBP",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "0.05")
}

func TestSendWithoutProviderDropsMail(t *testing.T) {
	m := testMailer(t)

	// No APIURL configured: render-and-drop, never an error
	err := m.SendWelcome(context.Background(), &models.CustomerRegisteredEvent{
		Email:     "yusuf@example.com",
		FirstName: "Yusuf",
	})
	assert.NoError(t, err)
}
