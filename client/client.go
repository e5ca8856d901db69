package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a wallet as the server reports it. The server never
// includes the mnemonic here; it only appears in a Backup.
type Wallet struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Addresses map[string]string `json:"addresses"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Backup is an exported wallet document, including the mnemonic.
type Backup struct {
	Name      string            `json:"name"`
	Mnemonic  string            `json:"mnemonic"`
	Addresses map[string]string `json:"addresses"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Balance is one coin family's balance snapshot.
type Balance struct {
	Family    string          `json:"family"`
	Confirmed decimal.Decimal `json:"confirmed"`
	Pending   decimal.Decimal `json:"pending"`
	AsOf      time.Time       `json:"as_of"`
}

// TransactionResult is the outcome of a submitted transfer.
type TransactionResult struct {
	Success       bool            `json:"success"`
	TxID          string          `json:"tx_id,omitempty"`
	ErrorDetail   string          `json:"error,omitempty"`
	FeePaid       decimal.Decimal `json:"fee_paid"`
	Confirmations int             `json:"confirmations"`
}

// Contact is a peer directory entry.
type Contact struct {
	Address string    `json:"address"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}

// Message is one conversation entry.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
}

// Conversation is a message thread with one peer.
type Conversation struct {
	PeerAddress   string    `json:"peerAddress"`
	Messages      []Message `json:"messages"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Client is the HTTP client for the kestrel wallet service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new wallet service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateWallet creates a wallet. An empty mnemonic asks the server to
// generate a fresh one.
func (c *Client) CreateWallet(ctx context.Context, name, mnemonic string) (*Wallet, error) {
	var wallet Wallet
	err := c.doJSON(ctx, "POST", "/api/v1/wallets", map[string]string{
		"name":     name,
		"mnemonic": mnemonic,
	}, http.StatusCreated, &wallet)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("wallet created", "wallet_id", wallet.ID, "name", name)
	return &wallet, nil
}

// ListWallets returns all wallets and the selected wallet id.
func (c *Client) ListWallets(ctx context.Context) ([]Wallet, string, error) {
	var resp struct {
		Wallets  []Wallet `json:"wallets"`
		Selected string   `json:"selected"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/wallets", nil, http.StatusOK, &resp); err != nil {
		return nil, "", err
	}
	return resp.Wallets, resp.Selected, nil
}

// ImportWallet materializes a wallet from an exported backup.
func (c *Client) ImportWallet(ctx context.Context, backup Backup) (*Wallet, error) {
	var wallet Wallet
	if err := c.doJSON(ctx, "POST", "/api/v1/wallets/import", backup, http.StatusCreated, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ExportWallet fetches a wallet's backup document, mnemonic included.
func (c *Client) ExportWallet(ctx context.Context, walletID string) (*Backup, error) {
	var backup Backup
	path := fmt.Sprintf("/api/v1/wallets/%s/export", url.PathEscape(walletID))
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &backup); err != nil {
		return nil, err
	}
	return &backup, nil
}

// DeleteWallet removes a wallet.
func (c *Client) DeleteWallet(ctx context.Context, walletID string) error {
	path := fmt.Sprintf("/api/v1/wallets/%s", url.PathEscape(walletID))
	return c.doJSON(ctx, "DELETE", path, nil, http.StatusNoContent, nil)
}

// SelectWallet marks a wallet as the selected one.
func (c *Client) SelectWallet(ctx context.Context, walletID string) error {
	path := fmt.Sprintf("/api/v1/wallets/%s/select", url.PathEscape(walletID))
	return c.doJSON(ctx, "POST", path, nil, http.StatusNoContent, nil)
}

// GetBalances refreshes and returns the wallet's balances. Families
// whose backends were unreachable are absent from the result.
func (c *Client) GetBalances(ctx context.Context, walletID string) ([]Balance, error) {
	var resp struct {
		Balances []Balance `json:"balances"`
	}
	path := fmt.Sprintf("/api/v1/wallets/%s/balances", url.PathEscape(walletID))
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

// SendTransaction submits a transfer on the given coin family.
func (c *Client) SendTransaction(ctx context.Context, walletID, to string, amount decimal.Decimal, family, priority string) (*TransactionResult, error) {
	body := map[string]interface{}{
		"walletId": walletID,
		"to":       to,
		"amount":   amount,
		"family":   family,
		"priority": priority,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/transactions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Both 200 and 422 carry a TransactionResult body; the latter is a
	// failed submission, not a protocol error.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		return nil, c.parseErrorResponse(resp)
	}

	var result TransactionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}

// EstimateFee fetches the fee estimate for a family and priority.
func (c *Client) EstimateFee(ctx context.Context, family, priority string) (decimal.Decimal, error) {
	var resp struct {
		Fee decimal.Decimal `json:"fee"`
	}
	path := fmt.Sprintf("/api/v1/fees?family=%s&priority=%s", url.QueryEscape(family), url.QueryEscape(priority))
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Fee, nil
}

// NetworkStatus probes all configured coin backends.
func (c *Client) NetworkStatus(ctx context.Context) (map[string]bool, error) {
	var resp struct {
		Networks map[string]bool `json:"networks"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/network-status", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

// ValidateAddress checks an address's format for a coin family.
func (c *Client) ValidateAddress(ctx context.Context, address, family string) (bool, error) {
	var resp struct {
		Valid bool `json:"valid"`
	}
	path := fmt.Sprintf("/api/v1/validate-address?address=%s&family=%s", url.QueryEscape(address), url.QueryEscape(family))
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &resp); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

// SignMessage asks the server for a digest signature over the message.
func (c *Client) SignMessage(ctx context.Context, message, secret, family string) (string, error) {
	var resp struct {
		Signature string `json:"signature"`
	}
	body := map[string]string{
		"message": message,
		"secret":  secret,
		"family":  family,
	}
	if err := c.doJSON(ctx, "POST", "/api/v1/sign", body, http.StatusOK, &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}

// AddContact adds a peer directory entry.
func (c *Client) AddContact(ctx context.Context, address, name string) error {
	return c.doJSON(ctx, "POST", "/api/v1/contacts", map[string]string{
		"address": address,
		"name":    name,
	}, http.StatusCreated, nil)
}

// ListContacts returns the peer directory.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var resp struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/contacts", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// RemoveContact deletes a contact. The peer's conversation is kept.
func (c *Client) RemoveContact(ctx context.Context, address string) error {
	path := fmt.Sprintf("/api/v1/contacts/%s", url.PathEscape(address))
	return c.doJSON(ctx, "DELETE", path, nil, http.StatusNoContent, nil)
}

// SendMessage submits an outbound message. A nil error means accepted
// for delivery, possibly via the store-and-forward path.
func (c *Client) SendMessage(ctx context.Context, to, content string) error {
	return c.doJSON(ctx, "POST", "/api/v1/messages", map[string]string{
		"to":      to,
		"content": content,
	}, http.StatusAccepted, nil)
}

// ListConversations returns all threads, most recent activity first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/conversations", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetConversation returns the thread with one peer.
func (c *Client) GetConversation(ctx context.Context, peerAddress string) (*Conversation, error) {
	var conv Conversation
	path := fmt.Sprintf("/api/v1/conversations/%s", url.PathEscape(peerAddress))
	if err := c.doJSON(ctx, "GET", path, nil, http.StatusOK, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ConnectionStatus reports peer channel connectivity.
func (c *Client) ConnectionStatus(ctx context.Context) (bool, string, error) {
	var resp struct {
		Connected bool   `json:"connected"`
		Status    string `json:"status"`
	}
	if err := c.doJSON(ctx, "GET", "/api/v1/connection-status", nil, http.StatusOK, &resp); err != nil {
		return false, "", err
	}
	return resp.Connected, resp.Status, nil
}

// doJSON performs a request with an optional JSON body and decodes a
// JSON response into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
