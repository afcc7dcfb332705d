package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"storefront-service/config"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Template names
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateAdminNewOrder     = "admin_new_order"
	TemplateWelcome           = "welcome"
	TemplatePasswordReset     = "password_reset"
	TemplateAccountActivation = "account_activation"
)

// OrderEmailData populates order confirmation and admin alert templates
type OrderEmailData struct {
	StoreName   string
	StoreURL    string
	OrderNumber string
	Name        string
	Email       string
	Items       []models.OrderItemData
	Subtotal    int64
	TaxAmount   int64
	Shipping    int64
	Total       int64
	Currency    string
}

// AccountEmailData populates account lifecycle templates
type AccountEmailData struct {
	StoreName string
	StoreURL  string
	FirstName string
	ActionURL string
}

// Mailer renders embedded templates and hands them to the transactional
// e-mail provider. Fire-and-forget by design: callers log failures, they
// never block the triggering flow.
type Mailer struct {
	cfg       config.EmailConfig
	templates *template.Template
	client    *http.Client
	logger    *zap.Logger
}

// NewMailer parses the embedded templates and builds the provider client
func NewMailer(cfg config.EmailConfig) (*Mailer, error) {
	funcs := template.FuncMap{
		"money": func(amount int64) string {
			return fmt.Sprintf("%d.%02d", amount/100, amount%100)
		},
	}

	tmpl, err := template.New("email").Funcs(funcs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Mailer{
		cfg:       cfg,
		templates: tmpl,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    util.GetLogger(),
	}, nil
}

// Render produces the HTML body for a template
func (m *Mailer) Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name+".html.tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// Send renders the template and posts it to the e-mail provider. With no
// provider configured the mail is logged and dropped (local runs).
func (m *Mailer) Send(ctx context.Context, templateName, to, subject string, data interface{}) error {
	body, err := m.Render(templateName, data)
	if err != nil {
		util.EmailsFailedTotal.WithLabelValues(templateName).Inc()
		return err
	}

	if m.cfg.APIURL == "" {
		m.logger.Info("Email provider not configured, dropping mail",
			zap.String("template", templateName),
			zap.String("to", to))
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"from":    m.cfg.From,
		"to":      to,
		"subject": subject,
		"html":    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		util.EmailsFailedTotal.WithLabelValues(templateName).Inc()
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		util.EmailsFailedTotal.WithLabelValues(templateName).Inc()
		return fmt.Errorf("email provider rejected send: status=%d", resp.StatusCode)
	}

	util.EmailsSentTotal.WithLabelValues(templateName).Inc()
	m.logger.Info("Email sent",
		zap.String("template", templateName),
		zap.String("to", to))
	return nil
}

// SendOrderConfirmation mails the customer after payment capture
func (m *Mailer) SendOrderConfirmation(ctx context.Context, event *models.OrderPaidEvent) error {
	data := m.orderData(event)
	subject := fmt.Sprintf("Your %s order %s is confirmed", m.cfg.StoreName, event.OrderNumber)
	return m.Send(ctx, TemplateOrderConfirmation, event.Email, subject, data)
}

// SendAdminNewOrderAlert mails the back office about a paid order
func (m *Mailer) SendAdminNewOrderAlert(ctx context.Context, event *models.OrderPaidEvent) error {
	data := m.orderData(event)
	subject := fmt.Sprintf("New order %s", event.OrderNumber)
	return m.Send(ctx, TemplateAdminNewOrder, m.cfg.AdminEmail, subject, data)
}

// SendWelcome mails a newly registered customer
func (m *Mailer) SendWelcome(ctx context.Context, event *models.CustomerRegisteredEvent) error {
	data := AccountEmailData{
		StoreName: m.cfg.StoreName,
		StoreURL:  m.cfg.StoreURL,
		FirstName: event.FirstName,
	}
	subject := fmt.Sprintf("Welcome to %s", m.cfg.StoreName)
	return m.Send(ctx, TemplateWelcome, event.Email, subject, data)
}

// SendPasswordReset mails a reset link
func (m *Mailer) SendPasswordReset(ctx context.Context, event *models.PasswordResetEvent) error {
	data := AccountEmailData{
		StoreName: m.cfg.StoreName,
		StoreURL:  m.cfg.StoreURL,
		FirstName: event.FirstName,
		ActionURL: event.ResetURL,
	}
	return m.Send(ctx, TemplatePasswordReset, event.Email, "Reset your password", data)
}

// SendAccountActivation mails an activation link
func (m *Mailer) SendAccountActivation(ctx context.Context, event *models.AccountActivationEvent) error {
	data := AccountEmailData{
		StoreName: m.cfg.StoreName,
		StoreURL:  m.cfg.StoreURL,
		FirstName: event.FirstName,
		ActionURL: event.ActivationURL,
	}
	return m.Send(ctx, TemplateAccountActivation, event.Email, "Activate your account", data)
}

func (m *Mailer) orderData(event *models.OrderPaidEvent) OrderEmailData {
	return OrderEmailData{
		StoreName:   m.cfg.StoreName,
		StoreURL:    m.cfg.StoreURL,
		OrderNumber: event.OrderNumber,
		Name:        event.Name,
		Email:       event.Email,
		Items:       event.Items,
		Subtotal:    event.Subtotal,
		TaxAmount:   event.TaxAmount,
		Shipping:    event.Shipping,
		Total:       event.Total,
		Currency:    event.Currency,
	}
}
