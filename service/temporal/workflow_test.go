package temporal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/kestrelwallet/kestrel/service/coin"
)

func newWorkflowEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	suite := &testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(RefreshBalancesWorkflow)
	return env
}

func TestRefreshBalancesWorkflow(t *testing.T) {
	env := newWorkflowEnv(t)

	env.OnActivity(a.LoadWallet, mock.Anything, LoadWalletInput{WalletID: "w1"}).Return(&LoadWalletResult{
		WalletID: "w1",
		Addresses: map[string]string{
			coin.FamilyBitcoin: "btc-addr",
			coin.FamilySolana:  "sol-addr",
		},
	}, nil)

	env.OnActivity(a.FetchBalance, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, input FetchBalanceInput) (*FetchBalanceResult, error) {
			return &FetchBalanceResult{Balance: coin.Balance{
				Family:    input.Family,
				Confirmed: decimal.NewFromInt(1),
				AsOf:      time.Now().UTC(),
			}}, nil
		})

	env.OnActivity(a.PublishBalances, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RefreshBalancesWorkflow, RefreshBalancesInput{WalletID: "w1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RefreshBalancesResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "w1", result.WalletID)
	assert.Equal(t, 2, result.BalanceCount)
	assert.Empty(t, result.FailedFamilies)
	assert.Nil(t, result.Error)
}

func TestRefreshBalancesWorkflowFetchesFamiliesInSortedOrder(t *testing.T) {
	// Activity scheduling order must not depend on map iteration order,
	// or replay against recorded history diverges
	env := newWorkflowEnv(t)

	env.OnActivity(a.LoadWallet, mock.Anything, mock.Anything).Return(&LoadWalletResult{
		WalletID: "w1",
		Addresses: map[string]string{
			coin.FamilySolana:   "sol-addr",
			coin.FamilyBitcoin:  "btc-addr",
			coin.FamilyLitecoin: "ltc-addr",
			coin.FamilyEthereum: "eth-addr",
		},
	}, nil)

	var mu sync.Mutex
	var order []string
	env.OnActivity(a.FetchBalance, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, input FetchBalanceInput) (*FetchBalanceResult, error) {
			mu.Lock()
			order = append(order, input.Family)
			mu.Unlock()
			return &FetchBalanceResult{Balance: coin.Balance{Family: input.Family}}, nil
		})

	env.OnActivity(a.PublishBalances, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(RefreshBalancesWorkflow, RefreshBalancesInput{WalletID: "w1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, []string{
		coin.FamilyBitcoin,
		coin.FamilyEthereum,
		coin.FamilyLitecoin,
		coin.FamilySolana,
	}, order)
}

func TestRefreshBalancesWorkflowDegradesOnFetchFailure(t *testing.T) {
	env := newWorkflowEnv(t)

	env.OnActivity(a.LoadWallet, mock.Anything, mock.Anything).Return(&LoadWalletResult{
		WalletID: "w1",
		Addresses: map[string]string{
			coin.FamilyBitcoin:  "btc-addr",
			coin.FamilyEthereum: "eth-addr",
		},
	}, nil)

	env.OnActivity(a.FetchBalance, mock.Anything, mock.Anything).Return(
		func(ctx context.Context, input FetchBalanceInput) (*FetchBalanceResult, error) {
			if input.Family == coin.FamilyEthereum {
				return nil, errors.New("node down")
			}
			return &FetchBalanceResult{Balance: coin.Balance{
				Family:    input.Family,
				Confirmed: decimal.NewFromInt(1),
			}}, nil
		})

	// The event still goes out, with the failed family flagged
	env.OnActivity(a.PublishBalances, mock.Anything, mock.MatchedBy(func(input PublishBalancesInput) bool {
		return len(input.FailedFamilies) == 1 && input.FailedFamilies[0] == coin.FamilyEthereum
	})).Return(nil)

	env.ExecuteWorkflow(RefreshBalancesWorkflow, RefreshBalancesInput{WalletID: "w1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result RefreshBalancesResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, 1, result.BalanceCount)
	assert.Equal(t, []string{coin.FamilyEthereum}, result.FailedFamilies)
}

func TestRefreshBalancesWorkflowFailsWhenWalletMissing(t *testing.T) {
	env := newWorkflowEnv(t)

	env.OnActivity(a.LoadWallet, mock.Anything, mock.Anything).Return(nil, errors.New("wallet not found"))

	env.ExecuteWorkflow(RefreshBalancesWorkflow, RefreshBalancesInput{WalletID: "missing"})

	require.True(t, env.IsWorkflowCompleted())
	assert.Error(t, env.GetWorkflowError())
}

func TestMockScheduler(t *testing.T) {
	sched := NewMockScheduler()
	ctx := context.Background()

	require.NoError(t, sched.UpsertWalletSchedule(ctx, "w1", 30*time.Second))
	assert.True(t, sched.ScheduleExists("w1"))
	assert.Equal(t, 1, sched.ScheduleCount())

	// Upsert is idempotent
	require.NoError(t, sched.UpsertWalletSchedule(ctx, "w1", time.Minute))
	assert.Equal(t, 1, sched.ScheduleCount())

	require.NoError(t, sched.DeleteWalletSchedule(ctx, "w1"))
	assert.False(t, sched.ScheduleExists("w1"))
}
