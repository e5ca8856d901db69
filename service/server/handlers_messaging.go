package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kestrelwallet/kestrel/service/messaging"
)

// handleAddContact returns a handler that adds a peer directory entry.
// POST /api/v1/contacts
func handleAddContact(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !engine.AddContact(r.Context(), req.Address, req.Name) {
			writeError(w, "invalid contact address or name", http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]string{
			"address": req.Address,
			"name":    req.Name,
		}, http.StatusCreated)
	})
}

// handleListContacts returns a handler that lists the peer directory.
// GET /api/v1/contacts
func handleListContacts(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contacts := engine.Contacts()
		writeJSON(w, map[string]interface{}{
			"contacts": contacts,
		}, http.StatusOK)
	})
}

// handleRemoveContact returns a handler that deletes a contact. The
// peer's conversation is preserved.
// DELETE /api/v1/contacts/{address}
func handleRemoveContact(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := engine.RemoveContact(r.Context(), address); err != nil {
			if errors.Is(err, messaging.ErrContactNotFound) {
				writeError(w, "contact not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to remove contact", "address", address, "error", err)
			writeError(w, "failed to remove contact", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// handleSendMessage returns a handler that accepts an outbound message.
// A 202 response means accepted for delivery, not that the peer has
// received it: the message may have gone to the store-and-forward path.
// POST /api/v1/messages
func handleSendMessage(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			To      string `json:"to"`
			Content string `json:"content"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !engine.SendMessage(r.Context(), req.To, req.Content) {
			writeError(w, "unknown contact or empty content", http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]string{
			"status": "accepted",
		}, http.StatusAccepted)
	})
}

// handleListConversations returns a handler that lists all threads,
// most recent activity first.
// GET /api/v1/conversations
func handleListConversations(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conversations := engine.Conversations()
		writeJSON(w, map[string]interface{}{
			"conversations": conversations,
		}, http.StatusOK)
	})
}

// handleGetConversation returns a handler for one peer's thread.
// GET /api/v1/conversations/{address}
func handleGetConversation(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		conv, err := engine.Conversation(address)
		if err != nil {
			if errors.Is(err, messaging.ErrConversationNotFound) {
				writeError(w, "conversation not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to get conversation", "address", address, "error", err)
			writeError(w, "failed to get conversation", http.StatusInternalServerError)
			return
		}

		writeJSON(w, conv, http.StatusOK)
	})
}

// handleConnectionStatus returns a handler reporting peer channel
// connectivity.
// GET /api/v1/connection-status
func handleConnectionStatus(engine *messaging.Engine, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"connected": engine.IsConnected(),
			"status":    string(engine.ConnectionStatus()),
		}, http.StatusOK)
	})
}
