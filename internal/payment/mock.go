package payment

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// MockProvider simulates a gateway for local runs and tests
type MockProvider struct {
	name        string
	successRate float64
}

// NewMockProvider creates a mock with the given success rate (0.0 - 1.0)
func NewMockProvider(name string, successRate float64) *MockProvider {
	return &MockProvider{name: name, successRate: successRate}
}

func (p *MockProvider) Name() string {
	return p.name
}

// Charge succeeds at the configured rate, otherwise declines
func (p *MockProvider) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	if rand.Float64() >= p.successRate {
		return nil, &DeclinedError{Code: "card_declined", Message: "mock payment declined"}
	}
	return &ChargeResult{
		ProviderTxID: fmt.Sprintf("TXN-%s", uuid.New().String()[:8]),
		Status:       StatusCaptured,
	}, nil
}

// Capture settles a mock approval
func (p *MockProvider) Capture(ctx context.Context, providerOrderID string) (*ChargeResult, error) {
	return p.Charge(ctx, &ChargeRequest{ProviderOrderID: providerOrderID})
}
