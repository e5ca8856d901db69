package coin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
)

// NodeService is a bitcoin-family coin service backed by a wallet node's
// JSON-RPC interface (bitcoind/litecoind style). The node holds the
// spending keys for submitted transactions; address derivation is done
// locally from the seed phrase so wallet creation works offline.
type NodeService struct {
	family     string
	params     *chaincfg.Params
	rpcURL     string
	rpcUser    string
	rpcPass    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNodeService creates a coin service for a bitcoin-family network.
// params selects the address format (bitcoin mainnet or litecoin).
func NewNodeService(family string, params *chaincfg.Params, rpcURL, rpcUser, rpcPass string, logger *slog.Logger) *NodeService {
	return &NodeService{
		family:     family,
		params:     params,
		rpcURL:     rpcURL,
		rpcUser:    rpcUser,
		rpcPass:    rpcPass,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// NewBitcoinService creates the bitcoin mainnet service.
func NewBitcoinService(rpcURL, rpcUser, rpcPass string, logger *slog.Logger) *NodeService {
	return NewNodeService(FamilyBitcoin, &chaincfg.MainNetParams, rpcURL, rpcUser, rpcPass, logger)
}

// NewLitecoinService creates the litecoin mainnet service.
func NewLitecoinService(rpcURL, rpcUser, rpcPass string, logger *slog.Logger) *NodeService {
	return NewNodeService(FamilyLitecoin, &LitecoinParams, rpcURL, rpcUser, rpcPass, logger)
}

// Priority confirmation targets for estimatesmartfee.
var confTargets = map[Priority]int{
	PriorityLow:    12,
	PriorityNormal: 6,
	PriorityHigh:   2,
}

// DeriveAddress derives the P2PKH address at m/44'/coinType'/0'/0/0.
func (s *NodeService) DeriveAddress(ctx context.Context, seedPhrase string) (string, error) {
	priv, err := deriveBIP44Key(seedPhrase, s.params)
	if err != nil {
		return "", err
	}
	pubKeyHash := btcutil.Hash160(priv.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressPubKeyHash(pubKeyHash, s.params)
	if err != nil {
		return "", fmt.Errorf("failed to build %s address: %w", s.family, err)
	}
	return addr.EncodeAddress(), nil
}

type unspentOutput struct {
	Address       string  `json:"address"`
	Amount        float64 `json:"amount"`
	Confirmations int     `json:"confirmations"`
}

// GetBalance sums the node's unspent outputs for the address. The node
// may hold funds for several wallets; scoping to the address keeps
// their balances apart.
func (s *NodeService) GetBalance(ctx context.Context, address string) (Balance, error) {
	var outputs []unspentOutput
	if err := s.call(ctx, "listunspent", []any{0, 9999999, []string{address}}, &outputs); err != nil {
		return Balance{}, fmt.Errorf("listunspent failed: %w", err)
	}

	confirmed, pending := decimal.Zero, decimal.Zero
	for _, out := range outputs {
		amount := decimal.NewFromFloat(out.Amount)
		if out.Confirmations > 0 {
			confirmed = confirmed.Add(amount)
		} else {
			pending = pending.Add(amount)
		}
	}

	return Balance{
		Family:    s.family,
		Confirmed: confirmed,
		Pending:   pending,
		AsOf:      time.Now().UTC(),
	}, nil
}

// SendTransaction submits a transfer via the wallet node, which selects
// inputs and signs. The explicit fee, if set, is applied as a fee rate
// override before sending.
func (s *NodeService) SendTransaction(ctx context.Context, req TransactionRequest) TransactionResult {
	amount, _ := req.Amount.Float64()

	if req.Fee != nil {
		feeRate, _ := req.Fee.Float64()
		var ok bool
		if err := s.call(ctx, "settxfee", []any{feeRate}, &ok); err != nil {
			return FailedResult(fmt.Errorf("settxfee failed: %w", err))
		}
	}

	var txid string
	if err := s.call(ctx, "sendtoaddress", []any{req.To, amount}, &txid); err != nil {
		return FailedResult(fmt.Errorf("sendtoaddress failed: %w", err))
	}

	fee, err := s.EstimateFee(ctx, req.Priority)
	if err != nil {
		// The send already succeeded; report a zero fee rather than failing.
		fee = decimal.Zero
	}

	return TransactionResult{
		Success:       true,
		TxID:          txid,
		FeePaid:       fee,
		Confirmations: 0,
	}
}

type nodeTransaction struct {
	TxID          string  `json:"txid"`
	Address       string  `json:"address"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Fee           float64 `json:"fee"`
	Confirmations int     `json:"confirmations"`
	Time          int64   `json:"time"`
}

// GetTransactionHistory lists recent wallet transactions touching the
// address.
func (s *NodeService) GetTransactionHistory(ctx context.Context, address string) ([]Transaction, error) {
	var entries []nodeTransaction
	if err := s.call(ctx, "listtransactions", []any{"*", 100}, &entries); err != nil {
		return nil, fmt.Errorf("listtransactions failed: %w", err)
	}

	txns := make([]Transaction, 0, len(entries))
	for _, e := range entries {
		txn := Transaction{
			TxID:          e.TxID,
			Amount:        decimal.NewFromFloat(e.Amount).Abs(),
			Fee:           decimal.NewFromFloat(e.Fee).Abs(),
			Confirmations: e.Confirmations,
			Timestamp:     time.Unix(e.Time, 0).UTC(),
		}
		switch e.Category {
		case "send":
			txn.From = address
			txn.To = e.Address
		default:
			txn.To = address
			txn.From = e.Address
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// CheckNetworkStatus reports whether the wallet node answers RPC.
func (s *NodeService) CheckNetworkStatus(ctx context.Context) bool {
	var height int64
	if err := s.call(ctx, "getblockcount", []any{}, &height); err != nil {
		s.logger.Debug("node unreachable", "family", s.family, "error", err)
		return false
	}
	return true
}

type smartFeeResult struct {
	FeeRate float64 `json:"feerate"`
}

// EstimateFee estimates the fee for a typical ~250 vB transfer at the
// priority's confirmation target.
func (s *NodeService) EstimateFee(ctx context.Context, priority Priority) (decimal.Decimal, error) {
	target, ok := confTargets[priority]
	if !ok {
		target = confTargets[PriorityNormal]
	}
	var result smartFeeResult
	if err := s.call(ctx, "estimatesmartfee", []any{target}, &result); err != nil {
		return decimal.Zero, fmt.Errorf("estimatesmartfee failed: %w", err)
	}
	// feerate is coin/kvB; scale to a typical 250 vB transaction.
	return decimal.NewFromFloat(result.FeeRate).Mul(decimal.NewFromFloat(0.25)), nil
}

// Clear is a no-op: the node holds session state, not this client.
func (s *NodeService) Clear() {}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one authenticated JSON-RPC call against the wallet node
// and decodes the result into out.
func (s *NodeService) call(ctx context.Context, method string, params []any, out any) error {
	if s.rpcURL == "" {
		return fmt.Errorf("%s node RPC not configured", s.family)
	}

	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "1.0",
		ID:      "kestrel",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.SetBasicAuth(s.rpcUser, s.rpcPass)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("failed to decode RPC response: %w", err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("node RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode RPC result: %w", err)
		}
	}
	return nil
}
