package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for wallet balance polling.
// Each wallet gets its own schedule that triggers the
// RefreshBalancesWorkflow.
type Scheduler interface {
	// UpsertWalletSchedule creates or updates the polling schedule for a
	// wallet.
	UpsertWalletSchedule(ctx context.Context, walletID string, interval time.Duration) error

	// DeleteWalletSchedule deletes the schedule for a wallet. This stops
	// the wallet from being polled.
	DeleteWalletSchedule(ctx context.Context, walletID string) error
}

// scheduleID returns the Temporal schedule ID for a wallet.
func scheduleID(walletID string) string {
	return "refresh-balances-" + walletID
}
