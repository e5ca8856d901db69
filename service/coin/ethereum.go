package coin

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const ethTransferGas = 21000

// ethParams reuses bitcoin's HD key version bytes with the EVM coin type
// (BIP-44 coin type 60). Only HDCoinType matters for derivation.
var ethParams = chaincfg.Params{
	HDPrivateKeyID: chaincfg.MainNetParams.HDPrivateKeyID,
	HDPublicKeyID:  chaincfg.MainNetParams.HDPublicKeyID,
	HDCoinType:     60,
}

// EthereumService is the ethereum coin service. Balance, fee, and
// submission go through an execution-layer RPC endpoint via ethclient.
// Keys derived during DeriveAddress are cached as session state so the
// service can sign submissions for its own addresses; Clear wipes them.
type EthereumService struct {
	client *ethclient.Client
	logger *slog.Logger

	mu   sync.Mutex
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewEthereumService creates the ethereum service against the given RPC
// endpoint.
func NewEthereumService(rpcURL string, logger *slog.Logger) (*EthereumService, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum RPC: %w", err)
	}
	return &EthereumService{
		client: client,
		logger: logger,
		keys:   make(map[common.Address]*ecdsa.PrivateKey),
	}, nil
}

var ethFeeMultipliers = map[Priority]decimal.Decimal{
	PriorityLow:    decimal.NewFromFloat(0.8),
	PriorityNormal: decimal.NewFromInt(1),
	PriorityHigh:   decimal.NewFromFloat(1.5),
}

// DeriveAddress derives the EVM address at m/44'/60'/0'/0/0 and caches
// the key for later submissions.
func (s *EthereumService) DeriveAddress(ctx context.Context, seedPhrase string) (string, error) {
	priv, err := deriveBIP44Key(seedPhrase, &ethParams)
	if err != nil {
		return "", err
	}
	key := priv.ToECDSA()
	addr := ethcrypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	s.keys[addr] = key
	s.mu.Unlock()

	return addr.Hex(), nil
}

// GetBalance returns the confirmed balance at the latest block plus the
// pending delta from the mempool view.
func (s *EthereumService) GetBalance(ctx context.Context, address string) (Balance, error) {
	if !common.IsHexAddress(address) {
		return Balance{}, fmt.Errorf("invalid ethereum address %q", address)
	}
	addr := common.HexToAddress(address)

	confirmedWei, err := s.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}
	pendingWei, err := s.client.PendingBalanceAt(ctx, addr)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to get pending balance: %w", err)
	}

	confirmed := decimal.NewFromBigInt(confirmedWei, -18)
	pending := decimal.NewFromBigInt(pendingWei, -18).Sub(confirmed)
	if pending.IsNegative() {
		pending = decimal.Zero
	}

	return Balance{
		Family:    FamilyEthereum,
		Confirmed: confirmed,
		Pending:   pending,
		AsOf:      time.Now().UTC(),
	}, nil
}

// SendTransaction signs and submits a plain value transfer from a
// session-derived address.
func (s *EthereumService) SendTransaction(ctx context.Context, req TransactionRequest) TransactionResult {
	if !common.IsHexAddress(req.To) {
		return FailedResult(fmt.Errorf("invalid destination address %q", req.To))
	}
	from := common.HexToAddress(req.From)
	to := common.HexToAddress(req.To)

	s.mu.Lock()
	key, ok := s.keys[from]
	s.mu.Unlock()
	if !ok {
		return FailedResult(fmt.Errorf("no session key for address %s; derive it first", req.From))
	}

	gasPrice, err := s.gasPrice(ctx, req.Priority)
	if err != nil {
		return FailedResult(err)
	}
	if req.Fee != nil {
		// Explicit fee is the total fee in ETH; back out the gas price.
		feeWei := req.Fee.Mul(decimal.New(1, 18)).BigInt()
		gasPrice = new(big.Int).Div(feeWei, big.NewInt(ethTransferGas))
	}

	nonce, err := s.client.PendingNonceAt(ctx, from)
	if err != nil {
		return FailedResult(fmt.Errorf("failed to get nonce: %w", err))
	}
	chainID, err := s.client.ChainID(ctx)
	if err != nil {
		return FailedResult(fmt.Errorf("failed to get chain id: %w", err))
	}

	valueWei := req.Amount.Mul(decimal.New(1, 18)).BigInt()
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    valueWei,
		Gas:      ethTransferGas,
		GasPrice: gasPrice,
	})

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), key)
	if err != nil {
		return FailedResult(fmt.Errorf("failed to sign transaction: %w", err))
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return FailedResult(fmt.Errorf("failed to send transaction: %w", err))
	}

	feeWei := new(big.Int).Mul(gasPrice, big.NewInt(ethTransferGas))
	return TransactionResult{
		Success:       true,
		TxID:          signed.Hash().Hex(),
		FeePaid:       decimal.NewFromBigInt(feeWei, -18),
		Confirmations: 0,
	}
}

// GetTransactionHistory is not answerable from a bare execution RPC
// endpoint; listing by address needs an external indexer.
func (s *EthereumService) GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error) {
	return nil, fmt.Errorf("ethereum transaction history requires an external indexer")
}

// CheckNetworkStatus reports whether the RPC endpoint answers.
func (s *EthereumService) CheckNetworkStatus(ctx context.Context) bool {
	if _, err := s.client.BlockNumber(ctx); err != nil {
		s.logger.Debug("ethereum RPC unreachable", "error", err)
		return false
	}
	return true
}

// EstimateFee returns the total fee in ETH for a 21000-gas transfer at
// the suggested gas price scaled by the priority multiplier.
func (s *EthereumService) EstimateFee(ctx context.Context, priority Priority) (decimal.Decimal, error) {
	gasPrice, err := s.gasPrice(ctx, priority)
	if err != nil {
		return decimal.Zero, err
	}
	feeWei := new(big.Int).Mul(gasPrice, big.NewInt(ethTransferGas))
	return decimal.NewFromBigInt(feeWei, -18), nil
}

func (s *EthereumService) gasPrice(ctx context.Context, priority Priority) (*big.Int, error) {
	suggested, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	mult, ok := ethFeeMultipliers[priority]
	if !ok {
		mult = ethFeeMultipliers[PriorityNormal]
	}
	scaled := decimal.NewFromBigInt(suggested, 0).Mul(mult)
	return scaled.BigInt(), nil
}

// Clear wipes the session key cache.
func (s *EthereumService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, key := range s.keys {
		if key != nil && key.D != nil {
			key.D.SetInt64(0)
		}
		delete(s.keys, addr)
	}
}
