package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PayPalProvider drives the popup/redirect approval flow: Charge creates
// a provider order and returns the approval URL; Capture settles it once
// the customer has approved.
type PayPalProvider struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewPayPalProvider creates a PayPal API client
func NewPayPalProvider(baseURL, clientID, clientSecret string) *PayPalProvider {
	return &PayPalProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PayPalProvider) Name() string {
	return "paypal"
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// Charge creates the provider-side order. Settlement happens in Capture
// after the customer approves in the popup.
func (p *PayPalProvider) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req.ProviderOrderID != "" {
		return p.Capture(ctx, req.ProviderOrderID)
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": req.OrderNumber,
			"amount": paypalAmount{
				CurrencyCode: req.Currency,
				Value:        formatMinorUnits(req.Amount),
			},
		}},
	}

	var resp paypalOrderResponse
	if err := p.post(ctx, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("paypal order creation returned no id")
	}

	approvalURL := ""
	for _, link := range resp.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
		}
	}

	return &ChargeResult{
		ProviderTxID: resp.ID,
		Status:       StatusPendingApproval,
		ApprovalURL:  approvalURL,
	}, nil
}

// Capture settles an approved provider order
func (p *PayPalProvider) Capture(ctx context.Context, providerOrderID string) (*ChargeResult, error) {
	var resp paypalOrderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", providerOrderID)
	if err := p.post(ctx, path, map[string]interface{}{}, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "COMPLETED" {
		return nil, &DeclinedError{Code: resp.Status, Message: "paypal capture not completed"}
	}

	return &ChargeResult{ProviderTxID: resp.ID, Status: StatusCaptured}, nil
}

// GetOrderStatus reports the provider order state, used by the client-side
// poll after the popup closes
func (p *PayPalProvider) GetOrderStatus(ctx context.Context, providerOrderID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/v2/checkout/orders/"+providerOrderID, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal status check failed: %w", err)
	}
	defer resp.Body.Close()

	var result paypalOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return result.Status, nil
}

func (p *PayPalProvider) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.clientID, p.clientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paypal request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read paypal response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("paypal error: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return nil
}

// formatMinorUnits renders pence as a "12.34" style decimal string
func formatMinorUnits(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}
