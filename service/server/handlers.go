package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/kestrelwallet/kestrel/service/coin"
	"github.com/kestrelwallet/kestrel/service/wallet"
)

const maxRequestBodySize = 1 << 20 // 1MB

// walletResponse is the wire shape for a wallet. The mnemonic is
// deliberately absent: it only ever leaves the process through the
// explicit export endpoint.
type walletResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Addresses map[string]string `json:"addresses"`
	CreatedAt time.Time         `json:"createdAt"`
}

func walletToResponse(w *wallet.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		Name:      w.Name,
		Addresses: w.Addresses,
		CreatedAt: w.CreatedAt,
	}
}

// handleCreateWallet returns a handler that creates a wallet, deriving
// an address for every configured coin family.
// POST /api/v1/wallets
func handleCreateWallet(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			Mnemonic string `json:"mnemonic"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		created, err := orch.CreateWallet(r.Context(), req.Name, req.Mnemonic)
		if err != nil {
			if errors.Is(err, wallet.ErrValidation) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("failed to create wallet", "name", req.Name, "error", err)
			writeError(w, "failed to create wallet", http.StatusInternalServerError)
			return
		}

		writeJSON(w, walletToResponse(created), http.StatusCreated)
	})
}

// handleListWallets returns a handler that lists all wallets and the
// selected wallet id.
// GET /api/v1/wallets
func handleListWallets(store *wallet.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallets := store.Snapshot()
		resp := make([]walletResponse, len(wallets))
		for i, wlt := range wallets {
			resp[i] = walletToResponse(wlt)
		}

		selectedID := ""
		if selected, ok := store.Selected(); ok {
			selectedID = selected.ID
		}

		logger.Debug("wallets listed", "count", len(resp))
		writeJSON(w, map[string]interface{}{
			"wallets":  resp,
			"selected": selectedID,
		}, http.StatusOK)
	})
}

// handleImportWallet returns a handler that materializes a wallet from
// an exported backup.
// POST /api/v1/wallets/import
func handleImportWallet(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var backup wallet.Backup
		if err := decodeJSON(r, &backup); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		imported, err := orch.ImportWallet(r.Context(), backup)
		if err != nil {
			if errors.Is(err, wallet.ErrInvalidBackup) {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Error("failed to import wallet", "name", backup.Name, "error", err)
			writeError(w, "failed to import wallet", http.StatusInternalServerError)
			return
		}

		writeJSON(w, walletToResponse(imported), http.StatusCreated)
	})
}

// handleExportWallet returns a handler that exports a wallet as a
// backup document. This is the only endpoint that emits the mnemonic.
// GET /api/v1/wallets/{id}/export
func handleExportWallet(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		backup, err := orch.ExportWallet(id)
		if err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to export wallet", "wallet_id", id, "error", err)
			writeError(w, "failed to export wallet", http.StatusInternalServerError)
			return
		}

		writeJSON(w, backup, http.StatusOK)
	})
}

// handleDeleteWallet returns a handler that deletes a wallet.
// DELETE /api/v1/wallets/{id}
func handleDeleteWallet(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := orch.DeleteWallet(r.Context(), id); err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete wallet", "wallet_id", id, "error", err)
			writeError(w, "failed to delete wallet", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// handleSelectWallet returns a handler that marks a wallet as selected.
// POST /api/v1/wallets/{id}/select
func handleSelectWallet(store *wallet.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := store.Select(id); err != nil {
			writeError(w, "wallet not found", http.StatusNotFound)
			return
		}

		logger.Debug("wallet selected", "wallet_id", id)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleGetBalances returns a handler that refreshes and returns the
// wallet's balances across coin families. Families whose backends were
// unreachable are simply absent from the result.
// GET /api/v1/wallets/{id}/balances
func handleGetBalances(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		balances, err := orch.RefreshBalances(r.Context(), id)
		if err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to refresh balances", "wallet_id", id, "error", err)
			writeError(w, "failed to refresh balances", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"wallet_id": id,
			"balances":  balances,
		}, http.StatusOK)
	})
}

// handleGetTransactionHistory returns a handler for per-family
// transaction history.
// GET /api/v1/wallets/{id}/transactions?family={family}
func handleGetTransactionHistory(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		family := r.URL.Query().Get("family")
		if family == "" {
			writeError(w, "family query parameter is required", http.StatusBadRequest)
			return
		}

		txns, err := orch.TransactionHistory(r.Context(), id, family)
		if err != nil {
			if errors.Is(err, wallet.ErrWalletNotFound) {
				writeError(w, "wallet not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to fetch transaction history", "wallet_id", id, "family", family, "error", err)
			writeError(w, "failed to fetch transaction history", http.StatusBadGateway)
			return
		}

		writeJSON(w, map[string]interface{}{
			"wallet_id":    id,
			"family":       family,
			"transactions": txns,
		}, http.StatusOK)
	})
}

// handleAddressQR returns a handler that renders the wallet's address
// for a coin family as a QR code PNG.
// GET /api/v1/wallets/{id}/qr?family={family}
func handleAddressQR(store *wallet.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		family := r.URL.Query().Get("family")
		if family == "" {
			writeError(w, "family query parameter is required", http.StatusBadRequest)
			return
		}

		wlt, err := store.Get(id)
		if err != nil {
			writeError(w, "wallet not found", http.StatusNotFound)
			return
		}
		address, ok := wlt.Addresses[family]
		if !ok {
			writeError(w, "wallet holds no address for this family", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(address, qrcode.Medium, 256)
		if err != nil {
			logger.Error("failed to encode QR code", "wallet_id", id, "family", family, "error", err)
			writeError(w, "failed to encode QR code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(png)
	})
}

// handleSendTransaction returns a handler that submits a transfer. The
// coin service's result passes through verbatim; local precondition
// failures come back as a failed result with 400/404 status.
// POST /api/v1/transactions
func handleSendTransaction(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WalletID string          `json:"walletId"`
			To       string          `json:"to"`
			Amount   decimal.Decimal `json:"amount"`
			Family   string          `json:"family"`
			Priority string          `json:"priority"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		priority, err := coin.ParsePriority(req.Priority)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result := orch.SendTransaction(r.Context(), req.WalletID, req.To, req.Amount, req.Family, priority)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, result, status)
	})
}

// handleEstimateFee returns a handler for fee estimation.
// GET /api/v1/fees?family={family}&priority={priority}
func handleEstimateFee(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		family := r.URL.Query().Get("family")
		if family == "" {
			writeError(w, "family query parameter is required", http.StatusBadRequest)
			return
		}
		priority, err := coin.ParsePriority(r.URL.Query().Get("priority"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		fee := orch.EstimateFee(r.Context(), family, priority)
		writeJSON(w, map[string]interface{}{
			"family":   family,
			"priority": string(priority),
			"fee":      fee,
		}, http.StatusOK)
	})
}

// handleNetworkStatus returns a handler that probes every configured
// coin backend concurrently.
// GET /api/v1/network-status
func handleNetworkStatus(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := orch.CheckNetworkStatus(r.Context())
		writeJSON(w, map[string]interface{}{
			"networks": status,
		}, http.StatusOK)
	})
}

// handleValidateAddress returns a handler for the pure address format
// check.
// GET /api/v1/validate-address?address={address}&family={family}
func handleValidateAddress(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")
		family := r.URL.Query().Get("family")
		if family == "" {
			writeError(w, "family query parameter is required", http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]interface{}{
			"address": address,
			"family":  family,
			"valid":   orch.ValidateAddress(address, family),
		}, http.StatusOK)
	})
}

// handleSignMessage returns a handler that signs a message with the
// configured signer. The signature is a deterministic digest, not an
// asymmetric signature; see wallet.Signer.
// POST /api/v1/sign
func handleSignMessage(orch *wallet.Orchestrator, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
			Secret  string `json:"secret"`
			Family  string `json:"family"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Message == "" || req.Family == "" {
			writeError(w, "message and family are required", http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]interface{}{
			"family":    req.Family,
			"signature": orch.SignMessage(req.Message, req.Secret, req.Family),
		}, http.StatusOK)
	})
}

// decodeJSON decodes a size-limited JSON request body.
func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
