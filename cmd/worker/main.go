package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelwallet/kestrel/service/blob"
	"github.com/kestrelwallet/kestrel/service/coin"
	"github.com/kestrelwallet/kestrel/service/config"
	"github.com/kestrelwallet/kestrel/service/metrics"
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
	"github.com/kestrelwallet/kestrel/service/temporal"
	"github.com/kestrelwallet/kestrel/service/wallet"
)

// The worker processes scheduled balance polling workflows. It shares
// the blob store with the server but never handles seed phrases: only
// wallet addresses cross the activity boundary.
func main() {
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting worker",
		"temporal_host", cfg.TemporalHost,
		"task_queue", cfg.TemporalTaskQueue,
	)

	ctx := context.Background()

	var blobs blob.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		blobs, err = blob.NewPostgresStore(ctx, pool)
		if err != nil {
			logger.Error("failed to initialize postgres blob store", "error", err)
			os.Exit(1)
		}
	} else {
		blobs = blob.NewFileStore(cfg.BlobPath)
	}

	walletStore := wallet.NewStore(blobs, logger)

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

	publisher, err := natspkg.NewPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	m := metrics.NewMetrics(nil)

	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Wallets:           walletStore,
		Registry:          registry,
		Publisher:         publisher,
		Metrics:           m,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create worker", "error", err)
		os.Exit(1)
	}

	// Blocks until interrupted
	if err := worker.Start(); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
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

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
