package coin

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/tyler-smith/go-bip39"
)

// solanaBaseFeeLamports is the per-signature base fee.
const solanaBaseFeeLamports = 5000

// SolanaRPC is the subset of the solana-go RPC client the service needs.
// This allows mocking the RPC layer in tests without hitting real nodes.
type SolanaRPC interface {
	GetBalance(ctx context.Context, account solanago.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solanago.Transaction, opts rpc.TransactionOpts) (solanago.Signature, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account solanago.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetHealth(ctx context.Context) (string, error)
}

// NewSolanaRPC creates a real RPC client for the given endpoint.
func NewSolanaRPC(rpcURL string) SolanaRPC {
	return rpc.New(rpcURL)
}

// SolanaService is the solana coin service. Keys derived during
// DeriveAddress are cached as session state for signing submissions;
// Clear zeroizes and drops them.
type SolanaService struct {
	rpc    SolanaRPC
	logger *slog.Logger

	mu   sync.Mutex
	keys map[string]solanago.PrivateKey
}

// NewSolanaService creates the solana service.
func NewSolanaService(rpcClient SolanaRPC, logger *slog.Logger) *SolanaService {
	return &SolanaService{
		rpc:    rpcClient,
		logger: logger,
		keys:   make(map[string]solanago.PrivateKey),
	}
}

var solanaFeeMultipliers = map[Priority]decimal.Decimal{
	PriorityLow:    decimal.NewFromInt(1),
	PriorityNormal: decimal.NewFromInt(2),
	PriorityHigh:   decimal.NewFromInt(5),
}

// DeriveAddress derives the ed25519 keypair from the first 32 bytes of
// the BIP-39 seed and caches it for later submissions.
func (s *SolanaService) DeriveAddress(ctx context.Context, seedPhrase string) (string, error) {
	if !bip39.IsMnemonicValid(seedPhrase) {
		return "", fmt.Errorf("invalid BIP-39 seed phrase")
	}
	seed := bip39.NewSeed(seedPhrase, "")
	key := solanago.PrivateKey(ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize]))
	address := key.PublicKey().String()

	s.mu.Lock()
	s.keys[address] = key
	s.mu.Unlock()

	return address, nil
}

// GetBalance returns the finalized balance, with the processed-minus-
// finalized delta reported as pending.
func (s *SolanaService) GetBalance(ctx context.Context, address string) (Balance, error) {
	pubkey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return Balance{}, fmt.Errorf("invalid solana address: %w", err)
	}

	finalized, err := s.rpc.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get finalized balance: %w", err)
	}
	processed, err := s.rpc.GetBalance(ctx, pubkey, rpc.CommitmentProcessed)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get processed balance: %w", err)
	}

	confirmed := lamportsToSOL(finalized.Value)
	pending := lamportsToSOL(processed.Value).Sub(confirmed)
	if pending.IsNegative() {
		pending = decimal.Zero
	}

	return Balance{
		Family:    FamilySolana,
		Confirmed: confirmed,
		Pending:   pending,
		AsOf:      time.Now().UTC(),
	}, nil
}

// SendTransaction signs and submits a system transfer from a
// session-derived address.
func (s *SolanaService) SendTransaction(ctx context.Context, req TransactionRequest) TransactionResult {
	toPubkey, err := solanago.PublicKeyFromBase58(req.To)
	if err != nil {
		return FailedResult(fmt.Errorf("invalid destination address: %w", err))
	}

	s.mu.Lock()
	key, ok := s.keys[req.From]
	s.mu.Unlock()
	if !ok {
		return FailedResult(fmt.Errorf("no session key for address %s; derive it first", req.From))
	}
	fromPubkey := key.PublicKey()

	lamports := req.Amount.Mul(decimal.New(1, 9)).BigInt().Uint64()

	recent, err := s.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return FailedResult(fmt.Errorf("failed to get recent blockhash: %w", err))
	}

	instruction := system.NewTransferInstruction(lamports, fromPubkey, toPubkey).Build()
	tx, err := solanago.NewTransaction(
		[]solanago.Instruction{instruction},
		recent.Value.Blockhash,
		solanago.TransactionPayer(fromPubkey),
	)
	if err != nil {
		return FailedResult(fmt.Errorf("failed to build transaction: %w", err))
	}

	_, err = tx.Sign(func(pub solanago.PublicKey) *solanago.PrivateKey {
		if fromPubkey.Equals(pub) {
			return &key
		}
		return nil
	})
	if err != nil {
		return FailedResult(fmt.Errorf("failed to sign transaction: %w", err))
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return FailedResult(fmt.Errorf("failed to send transaction: %w", err))
	}

	return TransactionResult{
		Success:       true,
		TxID:          sig.String(),
		FeePaid:       lamportsToSOL(solanaBaseFeeLamports),
		Confirmations: 0,
	}
}

// GetTransactionHistory lists recent signatures touching the address.
// Amounts are not populated; resolving them requires fetching every
// transaction body.
func (s *SolanaService) GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error) {
	pubkey, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address: %w", err)
	}

	limit := 100
	sigs, err := s.rpc.GetSignaturesForAddressWithOpts(ctx, pubkey, &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signatures: %w", err)
	}

	txns := make([]Transaction, 0, len(sigs))
	for _, sig := range sigs {
		txn := Transaction{
			TxID:   sig.Signature.String(),
			To:     address,
			Amount: decimal.Zero,
		}
		if sig.BlockTime != nil {
			txn.Timestamp = sig.BlockTime.Time().UTC()
		}
		if sig.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			txn.Confirmations = 1
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// CheckNetworkStatus reports whether the RPC endpoint is healthy.
func (s *SolanaService) CheckNetworkStatus(ctx context.Context) bool {
	health, err := s.rpc.GetHealth(ctx)
	if err != nil {
		s.logger.Debug("solana RPC unreachable", "error", err)
		return false
	}
	return health == rpc.HealthOk
}

// EstimateFee returns the base signature fee scaled by the priority
// multiplier (higher priorities budget for compute-unit price bumps).
func (s *SolanaService) EstimateFee(ctx context.Context, priority Priority) (decimal.Decimal, error) {
	mult, ok := solanaFeeMultipliers[priority]
	if !ok {
		mult = solanaFeeMultipliers[PriorityNormal]
	}
	return lamportsToSOL(solanaBaseFeeLamports).Mul(mult), nil
}

// Clear zeroizes and drops the session key cache.
func (s *SolanaService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, key := range s.keys {
		for i := range key {
			key[i] = 0
		}
		delete(s.keys, addr)
	}
}

func lamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.New(int64(lamports), -9)
}
