package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelwallet/kestrel/service/config"
	"github.com/kestrelwallet/kestrel/service/messaging"
	"github.com/kestrelwallet/kestrel/service/metrics"
	"github.com/kestrelwallet/kestrel/service/wallet"
)

// Server is the HTTP front end over the wallet orchestrator and the
// message delivery engine.
type Server struct {
	addr         string
	cfg          *config.Config
	orchestrator *wallet.Orchestrator
	store        *wallet.Store
	engine       *messaging.Engine
	ssePublisher *SSEPublisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The engine is optional - if nil, messaging endpoints won't be available.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, orchestrator *wallet.Orchestrator, store *wallet.Store, engine *messaging.Engine, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		engine:       engine,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Wallet routes
	mux.Handle("POST /api/v1/wallets", handleCreateWallet(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/wallets", handleListWallets(s.store, s.logger))
	mux.Handle("POST /api/v1/wallets/import", handleImportWallet(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/wallets/{id}/export", handleExportWallet(s.orchestrator, s.logger))
	mux.Handle("DELETE /api/v1/wallets/{id}", handleDeleteWallet(s.orchestrator, s.logger))
	mux.Handle("POST /api/v1/wallets/{id}/select", handleSelectWallet(s.store, s.logger))
	mux.Handle("GET /api/v1/wallets/{id}/balances", handleGetBalances(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/wallets/{id}/transactions", handleGetTransactionHistory(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/wallets/{id}/qr", handleAddressQR(s.store, s.logger))

	// Transaction and network routes
	mux.Handle("POST /api/v1/transactions", handleSendTransaction(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/fees", handleEstimateFee(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/network-status", handleNetworkStatus(s.orchestrator, s.logger))
	mux.Handle("GET /api/v1/validate-address", handleValidateAddress(s.orchestrator, s.logger))
	mux.Handle("POST /api/v1/sign", handleSignMessage(s.orchestrator, s.logger))

	// Messaging routes (if delivery engine is configured)
	if s.engine != nil {
		mux.Handle("POST /api/v1/contacts", handleAddContact(s.engine, s.logger))
		mux.Handle("GET /api/v1/contacts", handleListContacts(s.engine, s.logger))
		mux.Handle("DELETE /api/v1/contacts/{address}", handleRemoveContact(s.engine, s.logger))
		mux.Handle("POST /api/v1/messages", handleSendMessage(s.engine, s.logger))
		mux.Handle("GET /api/v1/conversations", handleListConversations(s.engine, s.logger))
		mux.Handle("GET /api/v1/conversations/{address}", handleGetConversation(s.engine, s.logger))
		mux.Handle("GET /api/v1/connection-status", handleConnectionStatus(s.engine, s.logger))
	} else {
		s.logger.Warn("delivery engine not configured, messaging endpoints disabled")
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		mux.Handle("GET /api/v1/stream/events", handleStreamEvents(s.ssePublisher, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Record per-route request metrics, then wrap with CORS
	var handler http.Handler = mux
	if s.metrics != nil {
		handler = metrics.HTTPMetricsMiddleware(s.metrics, mux)
	}
	handler = corsMiddleware(handler)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
