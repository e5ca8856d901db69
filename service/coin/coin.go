package coin

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Supported coin family tags. A family is one blockchain network with its
// own address format, fee model, and node access pattern.
const (
	FamilyBitcoin  = "bitcoin"
	FamilyLitecoin = "litecoin"
	FamilyEthereum = "ethereum"
	FamilySolana   = "solana"
)

// Priority selects a fee tier for a transaction. Each coin service maps
// priorities to its own fee multipliers or confirmation targets.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string, defaulting empty to normal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return Priority(s), nil
	case "":
		return PriorityNormal, nil
	default:
		return "", fmt.Errorf("invalid priority %q", s)
	}
}

// Balance is a point-in-time balance for one address on one coin family.
// Balances are ephemeral: recomputed on demand, never persisted.
type Balance struct {
	Family    string          `json:"family"`
	Confirmed decimal.Decimal `json:"confirmed"`
	Pending   decimal.Decimal `json:"pending"`
	AsOf      time.Time       `json:"as_of"`
}

// TransactionRequest describes a value transfer to submit to a coin
// service. Fee is optional; when nil the service applies its own
// priority-based estimate.
type TransactionRequest struct {
	From     string           `json:"from"`
	To       string           `json:"to"`
	Amount   decimal.Decimal  `json:"amount"`
	Fee      *decimal.Decimal `json:"fee,omitempty"`
	Priority Priority         `json:"priority"`
	Family   string           `json:"family"`
}

// TransactionResult is the outcome of a submission. TxID is present iff
// Success; ErrorDetail is present iff not.
type TransactionResult struct {
	Success       bool            `json:"success"`
	TxID          string          `json:"tx_id,omitempty"`
	ErrorDetail   string          `json:"error,omitempty"`
	FeePaid       decimal.Decimal `json:"fee_paid"`
	Confirmations int             `json:"confirmations"`
}

// FailedResult builds a failed TransactionResult from an error.
func FailedResult(err error) TransactionResult {
	return TransactionResult{Success: false, ErrorDetail: err.Error()}
}

// Transaction is one history entry for an address.
type Transaction struct {
	TxID          string          `json:"tx_id"`
	From          string          `json:"from,omitempty"`
	To            string          `json:"to,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	Confirmations int             `json:"confirmations"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Service is the per-family capability consumed by the orchestrator. One
// instance exists per supported coin family. Implementations may keep
// session state (for example keys derived during DeriveAddress); Clear
// resets it.
type Service interface {
	// DeriveAddress derives the family's address from a BIP-39 seed phrase.
	DeriveAddress(ctx context.Context, seedPhrase string) (string, error)

	// GetBalance returns the confirmed and pending balance for an address.
	GetBalance(ctx context.Context, address string) (Balance, error)

	// SendTransaction submits a transfer and reports the outcome in the
	// result value, not the error return.
	SendTransaction(ctx context.Context, req TransactionRequest) TransactionResult

	// GetTransactionHistory returns recent transactions for an address.
	GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error)

	// CheckNetworkStatus reports whether the family's network is reachable.
	CheckNetworkStatus(ctx context.Context) bool

	// EstimateFee returns the fee for a typical transfer at the given
	// priority.
	EstimateFee(ctx context.Context, priority Priority) (decimal.Decimal, error)

	// Clear resets any internal session state, including cached keys.
	Clear()
}

// Registry holds the configured coin services, one per family.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds or replaces the service for a family.
func (r *Registry) Register(family string, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[family] = svc
}

// Get returns the service for a family, if configured.
func (r *Registry) Get(family string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[family]
	return svc, ok
}

// Families returns the configured family tags in sorted order.
func (r *Registry) Families() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	families := make([]string, 0, len(r.services))
	for f := range r.services {
		families = append(families, f)
	}
	sort.Strings(families)
	return families
}

// ClearAll resets session state on every registered service.
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.services {
		svc.Clear()
	}
}
