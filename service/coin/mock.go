package coin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockService is a configurable in-memory coin service for tests.
type MockService struct {
	mu sync.Mutex

	Family string

	// Fixed responses. Errors, when set, take precedence.
	Address      string
	DeriveErr    error
	DeriveDelay  time.Duration
	Balances     map[string]Balance
	BalanceErr   error
	SendResult   *TransactionResult
	History      []Transaction
	HistoryErr   error
	Reachable    bool
	Fee          decimal.Decimal
	FeeErr       error

	// Call counters.
	DeriveCalls  int
	BalanceCalls int
	SendCalls    int
	StatusCalls  int
	ClearCalls   int

	// LastSendRequest records the most recent SendTransaction request.
	LastSendRequest *TransactionRequest
}

// NewMockService creates a mock that succeeds at everything by default.
func NewMockService(family string) *MockService {
	return &MockService{
		Family:    family,
		Address:   family + "-addr-1",
		Reachable: true,
		Fee:       decimal.NewFromFloat(0.0001),
	}
}

// DeriveAddress returns the configured address after an optional delay.
func (m *MockService) DeriveAddress(ctx context.Context, seedPhrase string) (string, error) {
	m.mu.Lock()
	m.DeriveCalls++
	delay := m.DeriveDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.DeriveErr != nil {
		return "", m.DeriveErr
	}
	return m.Address, nil
}

// GetBalance returns the configured balance for the address.
func (m *MockService) GetBalance(ctx context.Context, address string) (Balance, error) {
	m.mu.Lock()
	m.BalanceCalls++
	m.mu.Unlock()

	if m.BalanceErr != nil {
		return Balance{}, m.BalanceErr
	}
	if b, ok := m.Balances[address]; ok {
		return b, nil
	}
	return Balance{Family: m.Family, Confirmed: decimal.NewFromInt(1), AsOf: time.Now().UTC()}, nil
}

// SendTransaction records the request and returns the configured result.
func (m *MockService) SendTransaction(ctx context.Context, req TransactionRequest) TransactionResult {
	m.mu.Lock()
	m.SendCalls++
	reqCopy := req
	m.LastSendRequest = &reqCopy
	m.mu.Unlock()

	if m.SendResult != nil {
		return *m.SendResult
	}
	return TransactionResult{
		Success: true,
		TxID:    fmt.Sprintf("%s-tx-%d", m.Family, m.SendCalls),
		FeePaid: m.Fee,
	}
}

// GetTransactionHistory returns the configured history.
func (m *MockService) GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error) {
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	return m.History, nil
}

// CheckNetworkStatus returns the configured reachability.
func (m *MockService) CheckNetworkStatus(ctx context.Context) bool {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	return m.Reachable
}

// EstimateFee returns the configured fee.
func (m *MockService) EstimateFee(ctx context.Context, priority Priority) (decimal.Decimal, error) {
	if m.FeeErr != nil {
		return decimal.Zero, m.FeeErr
	}
	return m.Fee, nil
}

// Clear counts invocations.
func (m *MockService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
}
