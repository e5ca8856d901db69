package coin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is a JSON-RPC stub standing in for a wallet node. Results are
// keyed by method name; unknown methods get a method-not-found error.
type fakeNode struct {
	mu      sync.Mutex
	results map[string]any
	calls   []rpcRequest
}

func newFakeNode(results map[string]any) *fakeNode {
	return &fakeNode{results: results}
}

func (f *fakeNode) handler(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, req)
	result, ok := f.results[req.Method]
	f.mu.Unlock()

	var resp rpcResponse
	if !ok {
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	} else {
		raw, _ := json.Marshal(result)
		resp.Result = raw
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeNode) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		methods = append(methods, c.Method)
	}
	return methods
}

func newNodeUnderTest(t *testing.T, results map[string]any) (*NodeService, *fakeNode) {
	t.Helper()
	node := newFakeNode(results)
	server := httptest.NewServer(http.HandlerFunc(node.handler))
	t.Cleanup(server.Close)
	return NewBitcoinService(server.URL, "rpcuser", "rpcpass", testLogger()), node
}

func TestNodeGetBalance(t *testing.T) {
	address := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	svc, node := newNodeUnderTest(t, map[string]any{
		"listunspent": []map[string]any{
			{"address": address, "amount": 1.0, "confirmations": 3},
			{"address": address, "amount": 0.5, "confirmations": 120},
			{"address": address, "amount": 0.25, "confirmations": 0},
		},
	})

	bal, err := svc.GetBalance(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, FamilyBitcoin, bal.Family)
	assert.True(t, bal.Confirmed.Equal(decimal.NewFromFloat(1.5)))
	assert.True(t, bal.Pending.Equal(decimal.NewFromFloat(0.25)))
	assert.False(t, bal.AsOf.IsZero())

	// The query is scoped to the address, not the node wallet's total
	require.Len(t, node.calls, 1)
	require.Len(t, node.calls[0].Params, 3)
	assert.Equal(t, []any{address}, node.calls[0].Params[2])
}

func TestNodeGetBalanceNoOutputsMeansZero(t *testing.T) {
	svc, _ := newNodeUnderTest(t, map[string]any{
		"listunspent": []map[string]any{},
	})

	bal, err := svc.GetBalance(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	assert.True(t, bal.Confirmed.IsZero())
	assert.True(t, bal.Pending.IsZero())
}

func TestNodeGetBalanceSurfacesRPCError(t *testing.T) {
	svc, _ := newNodeUnderTest(t, map[string]any{})

	_, err := svc.GetBalance(context.Background(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node RPC error")
}

func TestNodeEstimateFeeScalesToTypicalSize(t *testing.T) {
	svc, node := newNodeUnderTest(t, map[string]any{
		"estimatesmartfee": map[string]any{"feerate": 0.0002},
	})

	fee, err := svc.EstimateFee(context.Background(), PriorityHigh)
	require.NoError(t, err)
	// 0.0002 coin/kvB over 250 vB
	assert.True(t, fee.Equal(decimal.NewFromFloat(0.00005)), "got %s", fee)

	require.Len(t, node.calls, 1)
	require.Len(t, node.calls[0].Params, 1)
	assert.EqualValues(t, 2, node.calls[0].Params[0])
}

func TestNodeSendTransaction(t *testing.T) {
	svc, node := newNodeUnderTest(t, map[string]any{
		"sendtoaddress":    "txid-abc",
		"estimatesmartfee": map[string]any{"feerate": 0.0001},
		"settxfee":         true,
	})

	result := svc.SendTransaction(context.Background(), TransactionRequest{
		To:       "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		Amount:   decimal.NewFromFloat(0.01),
		Priority: PriorityNormal,
		Family:   FamilyBitcoin,
	})

	require.True(t, result.Success, result.ErrorDetail)
	assert.Equal(t, "txid-abc", result.TxID)
	assert.True(t, result.FeePaid.Equal(decimal.NewFromFloat(0.000025)))
	assert.NotContains(t, node.methods(), "settxfee")
}

func TestNodeSendTransactionAppliesExplicitFeeRate(t *testing.T) {
	svc, node := newNodeUnderTest(t, map[string]any{
		"sendtoaddress":    "txid-abc",
		"estimatesmartfee": map[string]any{"feerate": 0.0001},
		"settxfee":         true,
	})

	fee := decimal.NewFromFloat(0.0003)
	result := svc.SendTransaction(context.Background(), TransactionRequest{
		To:       "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		Amount:   decimal.NewFromFloat(0.01),
		Fee:      &fee,
		Priority: PriorityNormal,
		Family:   FamilyBitcoin,
	})

	require.True(t, result.Success, result.ErrorDetail)
	methods := node.methods()
	assert.Equal(t, "settxfee", methods[0])
	assert.Contains(t, methods, "sendtoaddress")
}

func TestNodeSendTransactionFailure(t *testing.T) {
	svc, _ := newNodeUnderTest(t, map[string]any{})

	result := svc.SendTransaction(context.Background(), TransactionRequest{
		To:     "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		Amount: decimal.NewFromFloat(0.01),
		Family: FamilyBitcoin,
	})

	assert.False(t, result.Success)
	assert.Empty(t, result.TxID)
	assert.Contains(t, result.ErrorDetail, "sendtoaddress failed")
}

func TestNodeCheckNetworkStatus(t *testing.T) {
	svc, _ := newNodeUnderTest(t, map[string]any{"getblockcount": 800000})
	assert.True(t, svc.CheckNetworkStatus(context.Background()))

	unconfigured := NewBitcoinService("", "", "", testLogger())
	assert.False(t, unconfigured.CheckNetworkStatus(context.Background()))
}

func TestNodeTransactionHistoryMapsDirections(t *testing.T) {
	address := "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	svc, _ := newNodeUnderTest(t, map[string]any{
		"listtransactions": []map[string]any{
			{"txid": "t1", "address": "1dest", "category": "send", "amount": -0.5, "fee": -0.0001, "confirmations": 3, "time": 1700000000},
			{"txid": "t2", "address": "1src", "category": "receive", "amount": 0.2, "confirmations": 10, "time": 1700000500},
		},
	})

	txns, err := svc.GetTransactionHistory(context.Background(), address)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, address, txns[0].From)
	assert.Equal(t, "1dest", txns[0].To)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, txns[0].Fee.Equal(decimal.NewFromFloat(0.0001)))

	assert.Equal(t, "1src", txns[1].From)
	assert.Equal(t, address, txns[1].To)
}
