package coin

import (
	"context"
	"errors"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSolanaRPC serves canned balances per commitment level.
type fakeSolanaRPC struct {
	finalized  uint64
	processed  uint64
	balanceErr error
	health     string
	healthErr  error
}

func (f *fakeSolanaRPC) GetBalance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	value := f.finalized
	if commitment == rpc.CommitmentProcessed {
		value = f.processed
	}
	return &rpc.GetBalanceResult{Value: value}, nil
}

func (f *fakeSolanaRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{}}, nil
}

func (f *fakeSolanaRPC) SendTransactionWithOpts(ctx context.Context, tx *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error) {
	return solanago.Signature{}, nil
}

func (f *fakeSolanaRPC) GetSignaturesForAddressWithOpts(ctx context.Context, account solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	return nil, nil
}

func (f *fakeSolanaRPC) GetHealth(ctx context.Context) (string, error) {
	return f.health, f.healthErr
}

func TestSolanaGetBalanceReportsPendingDelta(t *testing.T) {
	svc := NewSolanaService(&fakeSolanaRPC{finalized: 2_000_000_000, processed: 2_500_000_000}, testLogger())

	bal, err := svc.GetBalance(context.Background(), "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	require.NoError(t, err)
	assert.Equal(t, FamilySolana, bal.Family)
	assert.True(t, bal.Confirmed.Equal(decimal.NewFromInt(2)))
	assert.True(t, bal.Pending.Equal(decimal.NewFromFloat(0.5)))
}

func TestSolanaGetBalancePendingNeverNegative(t *testing.T) {
	// Processed can lag finalized briefly after a rollback
	svc := NewSolanaService(&fakeSolanaRPC{finalized: 2_000_000_000, processed: 1_000_000_000}, testLogger())

	bal, err := svc.GetBalance(context.Background(), "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	require.NoError(t, err)
	assert.True(t, bal.Pending.IsZero())
}

func TestSolanaGetBalanceRejectsBadAddress(t *testing.T) {
	svc := NewSolanaService(&fakeSolanaRPC{}, testLogger())
	_, err := svc.GetBalance(context.Background(), "not-base58")
	assert.Error(t, err)
}

func TestSolanaEstimateFeeScalesWithPriority(t *testing.T) {
	svc := NewSolanaService(&fakeSolanaRPC{}, testLogger())
	ctx := context.Background()

	low, err := svc.EstimateFee(ctx, PriorityLow)
	require.NoError(t, err)
	high, err := svc.EstimateFee(ctx, PriorityHigh)
	require.NoError(t, err)

	assert.True(t, low.Equal(decimal.New(5000, -9)))
	assert.True(t, high.Equal(low.Mul(decimal.NewFromInt(5))))
}

func TestSolanaSendRequiresSessionKey(t *testing.T) {
	svc := NewSolanaService(&fakeSolanaRPC{}, testLogger())
	ctx := context.Background()

	from, err := svc.DeriveAddress(ctx, testMnemonic)
	require.NoError(t, err)

	// Clear drops the derived key, so a later send has nothing to sign with
	svc.Clear()

	result := svc.SendTransaction(ctx, TransactionRequest{
		From:   from,
		To:     "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi",
		Amount: decimal.NewFromFloat(0.1),
		Family: FamilySolana,
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorDetail, "no session key")
}

func TestSolanaCheckNetworkStatus(t *testing.T) {
	healthy := NewSolanaService(&fakeSolanaRPC{health: rpc.HealthOk}, testLogger())
	assert.True(t, healthy.CheckNetworkStatus(context.Background()))

	down := NewSolanaService(&fakeSolanaRPC{healthErr: errors.New("connection refused")}, testLogger())
	assert.False(t, down.CheckNetworkStatus(context.Background()))
}
