package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelwallet/kestrel/service/blob"
	"github.com/kestrelwallet/kestrel/service/coin"
	"github.com/kestrelwallet/kestrel/service/config"
	"github.com/kestrelwallet/kestrel/service/messaging"
	"github.com/kestrelwallet/kestrel/service/metrics"
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
	"github.com/kestrelwallet/kestrel/service/peer"
	"github.com/kestrelwallet/kestrel/service/server"
	"github.com/kestrelwallet/kestrel/service/temporal"
	"github.com/kestrelwallet/kestrel/service/wallet"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Blob store backend: postgres when DATABASE_URL is set, otherwise a
	// local file
	var blobs blob.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		blobs, err = blob.NewPostgresStore(ctx, pool)
		if err != nil {
			logger.Error("failed to initialize postgres blob store", "error", err)
			os.Exit(1)
		}
		logger.Info("using postgres blob store")
	} else {
		blobs = blob.NewFileStore(cfg.BlobPath)
		logger.Info("using file blob store", "path", cfg.BlobPath)
	}

	// Wallet store: a load failure falls back to an empty store but is
	// surfaced loudly since user data may be unreachable
	walletStore := wallet.NewStore(blobs, logger)
	if err := walletStore.Load(ctx); err != nil {
		logger.Error("wallet store loaded degraded, continuing with empty state", "error", err)
	}

	// Coin services for every configured family
	registry := coin.NewRegistry()
	if cfg.Bitcoin.URL != "" {
		registry.Register(coin.FamilyBitcoin, coin.NewBitcoinService(cfg.Bitcoin.URL, cfg.Bitcoin.User, cfg.Bitcoin.Pass, logger))
	}
	if cfg.Litecoin.URL != "" {
		registry.Register(coin.FamilyLitecoin, coin.NewLitecoinService(cfg.Litecoin.URL, cfg.Litecoin.User, cfg.Litecoin.Pass, logger))
	}
	if cfg.Ethereum.URL != "" {
		eth, err := coin.NewEthereumService(cfg.Ethereum.URL, logger)
		if err != nil {
			logger.Error("failed to initialize ethereum service", "error", err)
			os.Exit(1)
		}
		registry.Register(coin.FamilyEthereum, eth)
	}
	if cfg.Solana.URL != "" {
		registry.Register(coin.FamilySolana, coin.NewSolanaService(coin.NewSolanaRPC(cfg.Solana.URL), logger))
	}
	logger.Info("coin services initialized", "families", registry.Families())

	// Prometheus metrics
	m := metrics.NewMetrics(nil)

	// NATS event publisher (optional)
	var events natspkg.Publisher
	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			events = p
			defer p.Close()
		}
	}

	// Temporal scheduler for background balance polling (optional)
	var scheduler *temporal.Client
	if cfg.TemporalHost != "" {
		tc, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
		if err != nil {
			logger.Warn("temporal unavailable, scheduled polling disabled", "error", err)
		} else {
			scheduler = tc
			defer tc.Close()
		}
	}

	orchestrator := wallet.NewOrchestrator(registry, walletStore, nil, events, m, cfg.CoinCallTimeout, logger)
	if scheduler != nil {
		orchestrator.WithScheduler(scheduler, cfg.BalancePollInterval)
	}

	// Messaging: contact/conversation stores plus the delivery engine,
	// enabled when a peer address is configured
	var engine *messaging.Engine
	if cfg.PeerAddress != "" {
		contactStore := messaging.NewContactStore(blobs, logger)
		if err := contactStore.Load(ctx); err != nil {
			logger.Error("contact store loaded degraded, continuing with empty state", "error", err)
		}
		conversationStore := messaging.NewConversationStore(blobs, logger)
		if err := conversationStore.Load(ctx); err != nil {
			logger.Error("conversation store loaded degraded, continuing with empty state", "error", err)
		}

		// The channel is connected first but only starts receiving after
		// the engine is wired, so no inbound message can observe a
		// half-built engine
		channel, err := peer.NewNATSChannel(ctx, cfg.NATSURL, cfg.PeerAddress, logger)
		if err != nil {
			logger.Error("failed to initialize peer channel", "error", err)
			os.Exit(1)
		}
		defer channel.Close()

		engine = messaging.NewEngine(contactStore, conversationStore, channel, events, m, logger)
		if err := channel.Listen(engine.HandleInbound); err != nil {
			logger.Error("failed to start peer channel listener", "error", err)
			os.Exit(1)
		}

		if drained, err := channel.DrainMailbox(ctx); err != nil {
			logger.Warn("failed to drain mailbox", "error", err)
		} else if drained > 0 {
			logger.Info("drained queued messages", "count", drained)
		}
	} else {
		logger.Info("no peer address configured, messaging disabled")
	}

	// SSE publisher (optional, rides the same NATS deployment)
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" && events != nil {
		sp, err := server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("SSE publisher unavailable", "error", err)
		} else {
			ssePublisher = sp
		}
	}

	httpServer := server.New(cfg.ServerAddr, cfg, orchestrator, walletStore, engine, ssePublisher, m, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		// Derived keys do not outlive the process
		registry.ClearAll()

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
