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

// CardProvider confirms card payments against a hosted intents gateway.
// The client tokenizes the card in the embedded widget; saved methods
// pass the stored provider references instead.
type CardProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCardProvider creates a card gateway client
func NewCardProvider(baseURL, apiKey string) *CardProvider {
	return &CardProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *CardProvider) Name() string {
	return "card_gateway"
}

type intentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method"`
	Customer      string            `json:"customer,omitempty"`
	Confirm       bool              `json:"confirm"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Charge creates and confirms a payment intent for the order total
func (p *CardProvider) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	method := req.PaymentToken
	if req.SavedMethodID != "" {
		method = req.SavedMethodID
	}
	if method == "" {
		return nil, fmt.Errorf("card charge requires a payment token or saved method")
	}

	body := intentRequest{
		Amount:        req.Amount,
		Currency:      strings.ToLower(req.Currency),
		PaymentMethod: method,
		Customer:      req.ProviderCustomerID,
		Confirm:       true,
		Description:   req.Description,
		Metadata:      map[string]string{"order_number": req.OrderNumber},
	}

	var resp intentResponse
	if err := p.post(ctx, "/payment_intents", body, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &DeclinedError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.Status != "succeeded" {
		return nil, &DeclinedError{Code: resp.Status, Message: "payment not completed"}
	}

	return &ChargeResult{ProviderTxID: resp.ID, Status: StatusCaptured}, nil
}

func (p *CardProvider) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway error: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

// WalletProvider captures Apple Pay / Google Pay payment-sheet sessions.
// The native sheet hands the client a session token; the capture endpoint
// settles it.
type WalletProvider struct {
	name       string
	baseURL    string
	merchantID string
	client     *http.Client
}

// NewWalletProvider creates a wallet gateway client
func NewWalletProvider(name, baseURL, merchantID string) *WalletProvider {
	return &WalletProvider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *WalletProvider) Name() string {
	return p.name
}

type walletCaptureResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// Charge settles a wallet session token for the order total
func (p *WalletProvider) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if req.PaymentToken == "" {
		return nil, fmt.Errorf("wallet charge requires a session token")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"merchant_id":  p.merchantID,
		"session":      req.PaymentToken,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"order_number": req.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/capture", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("wallet capture failed: %w", err)
	}
	defer resp.Body.Close()

	var result walletCaptureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode wallet response: %w", err)
	}

	if result.Status != "approved" {
		return nil, &DeclinedError{Code: result.Status, Message: result.Reason}
	}

	return &ChargeResult{ProviderTxID: result.TransactionID, Status: StatusCaptured}, nil
}
