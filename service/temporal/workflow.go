package temporal

import (
	"fmt"
	"sort"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/kestrelwallet/kestrel/service/coin"
)

var a *Activities // for type-safe activity invocation

// RefreshBalancesInput is the input for RefreshBalancesWorkflow.
type RefreshBalancesInput struct {
	WalletID string
}

// RefreshBalancesResult summarizes one polling run.
type RefreshBalancesResult struct {
	WalletID       string
	PollTime       time.Time
	BalanceCount   int
	FailedFamilies []string
	Error          *string
}

// RefreshBalancesWorkflow polls every coin backend for one wallet's
// balances and publishes the result as a balance event. It is triggered
// by a per-wallet Temporal schedule.
//
// A family whose backend call fails is recorded in FailedFamilies and
// omitted from the published balances; only a failure to load the
// wallet or to publish fails the workflow.
func RefreshBalancesWorkflow(ctx workflow.Context, input RefreshBalancesInput) (*RefreshBalancesResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RefreshBalancesWorkflow started", "wallet_id", input.WalletID)

	result := &RefreshBalancesResult{
		WalletID: input.WalletID,
		PollTime: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Load the wallet's addresses
	var loaded *LoadWalletResult
	err := workflow.ExecuteActivity(ctx, a.LoadWallet, LoadWalletInput{WalletID: input.WalletID}).Get(ctx, &loaded)
	if err != nil {
		errMsg := fmt.Sprintf("failed to load wallet: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to load wallet: %w", err)
	}

	// Step 2: Fetch each family's balance. Failures degrade, not abort.
	// Families are sorted so activity scheduling order is identical on
	// replay; ranging the map directly would be non-deterministic.
	families := make([]string, 0, len(loaded.Addresses))
	for family := range loaded.Addresses {
		families = append(families, family)
	}
	sort.Strings(families)

	var balances []coin.Balance
	for _, family := range families {
		var fetched *FetchBalanceResult
		err := workflow.ExecuteActivity(ctx, a.FetchBalance, FetchBalanceInput{
			Family:  family,
			Address: loaded.Addresses[family],
		}).Get(ctx, &fetched)
		if err != nil {
			logger.Warn("balance fetch failed", "wallet_id", input.WalletID, "family", family, "error", err)
			result.FailedFamilies = append(result.FailedFamilies, family)
			continue
		}
		balances = append(balances, fetched.Balance)
	}
	result.BalanceCount = len(balances)

	// Step 3: Publish the balance event
	err = workflow.ExecuteActivity(ctx, a.PublishBalances, PublishBalancesInput{
		WalletID:       input.WalletID,
		Addresses:      loaded.Addresses,
		Balances:       balances,
		FailedFamilies: result.FailedFamilies,
	}).Get(ctx, nil)
	if err != nil {
		errMsg := fmt.Sprintf("failed to publish balances: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to publish balances: %w", err)
	}

	logger.Info("RefreshBalancesWorkflow completed",
		"wallet_id", input.WalletID,
		"balance_count", result.BalanceCount,
		"failed_families", len(result.FailedFamilies),
	)
	return result, nil
}
