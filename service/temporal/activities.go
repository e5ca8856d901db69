package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kestrelwallet/kestrel/service/coin"
	"github.com/kestrelwallet/kestrel/service/metrics"
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
	"github.com/kestrelwallet/kestrel/service/wallet"
)

// WalletReader is the subset of the wallet store the activities need.
// The worker process reloads the store from the blob backend before
// each lookup so it observes wallets created by the server process.
type WalletReader interface {
	Load(ctx context.Context) error
	Get(id string) (*wallet.Wallet, error)
}

// PublisherInterface is the subset of the event publisher the
// activities need.
type PublisherInterface interface {
	PublishBalance(ctx context.Context, event *natspkg.BalanceEvent) error
}

// Activities holds the dependencies for workflow activities.
type Activities struct {
	wallets   WalletReader
	registry  *coin.Registry
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with dependencies.
func NewActivities(wallets WalletReader, registry *coin.Registry, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	return &Activities{
		wallets:   wallets,
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// LoadWalletInput is the input for the LoadWallet activity.
type LoadWalletInput struct {
	WalletID string
}

// LoadWalletResult carries the wallet's per-family addresses. The
// mnemonic never crosses the activity boundary.
type LoadWalletResult struct {
	WalletID  string
	Addresses map[string]string
}

// LoadWallet reloads the wallet store from the blob backend and returns
// the wallet's addresses.
func (a *Activities) LoadWallet(ctx context.Context, input LoadWalletInput) (*LoadWalletResult, error) {
	if err := a.wallets.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to reload wallet store: %w", err)
	}
	w, err := a.wallets.Get(input.WalletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet %s: %w", input.WalletID, err)
	}
	return &LoadWalletResult{
		WalletID:  w.ID,
		Addresses: w.Addresses,
	}, nil
}

// FetchBalanceInput is the input for the FetchBalance activity.
type FetchBalanceInput struct {
	Family  string
	Address string
}

// FetchBalanceResult carries one family's balance.
type FetchBalanceResult struct {
	Balance coin.Balance
}

// FetchBalance queries one coin backend for one address.
func (a *Activities) FetchBalance(ctx context.Context, input FetchBalanceInput) (*FetchBalanceResult, error) {
	svc, ok := a.registry.Get(input.Family)
	if !ok {
		return nil, fmt.Errorf("no service for family %s", input.Family)
	}

	start := time.Now()
	balance, err := svc.GetBalance(ctx, input.Address)
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordCoinCall(input.Family, "balance", status, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s balance: %w", input.Family, err)
	}
	return &FetchBalanceResult{Balance: balance}, nil
}

// PublishBalancesInput is the input for the PublishBalances activity.
type PublishBalancesInput struct {
	WalletID       string
	Addresses      map[string]string
	Balances       []coin.Balance
	FailedFamilies []string
}

// PublishBalances emits a balance event to NATS.
func (a *Activities) PublishBalances(ctx context.Context, input PublishBalancesInput) error {
	event := &natspkg.BalanceEvent{
		WalletID:       input.WalletID,
		FailedFamilies: input.FailedFamilies,
	}
	for _, b := range input.Balances {
		event.Balances = append(event.Balances, natspkg.BalanceEntry{
			Family:    b.Family,
			Address:   input.Addresses[b.Family],
			Confirmed: b.Confirmed,
			Pending:   b.Pending,
			AsOf:      b.AsOf,
		})
	}
	if err := a.publisher.PublishBalance(ctx, event); err != nil {
		return fmt.Errorf("failed to publish balance event: %w", err)
	}
	a.logger.Debug("published balance event",
		"wallet_id", input.WalletID,
		"balances", len(input.Balances),
		"failed_families", len(input.FailedFamilies),
	)
	return nil
}
