package config

import (
	"fmt"
	"os"
	"time"
)

// CoinEndpoint holds the node access configuration for one coin family.
// User and Pass are only used by bitcoin-family wallet nodes (JSON-RPC
// basic auth); ethereum and solana endpoints are plain RPC URLs.
type CoinEndpoint struct {
	URL  string
	User string
	Pass string
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Persistence configuration. DatabaseURL selects the postgres blob
	// backend; when empty, the file backend at BlobPath is used.
	DatabaseURL string
	BlobPath    string

	// NATS configuration (peer channel + event stream)
	NATSURL     string
	PeerAddress string

	// Coin family endpoints
	Bitcoin  CoinEndpoint
	Litecoin CoinEndpoint
	Ethereum CoinEndpoint
	Solana   CoinEndpoint

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Capability call limits
	CoinCallTimeout     time.Duration
	BalancePollInterval time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.BlobPath = getEnvOrDefault("BLOB_PATH", "kestrel.blob.json")
	if cfg.DatabaseURL == "" && cfg.BlobPath == "" {
		errs = append(errs, fmt.Errorf("one of DATABASE_URL or BLOB_PATH is required"))
	}

	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")
	cfg.PeerAddress = os.Getenv("PEER_ADDRESS")

	cfg.Bitcoin = CoinEndpoint{
		URL:  os.Getenv("BITCOIN_RPC_URL"),
		User: os.Getenv("BITCOIN_RPC_USER"),
		Pass: os.Getenv("BITCOIN_RPC_PASS"),
	}
	cfg.Litecoin = CoinEndpoint{
		URL:  os.Getenv("LITECOIN_RPC_URL"),
		User: os.Getenv("LITECOIN_RPC_USER"),
		Pass: os.Getenv("LITECOIN_RPC_PASS"),
	}
	cfg.Ethereum = CoinEndpoint{URL: os.Getenv("ETHEREUM_RPC_URL")}
	cfg.Solana = CoinEndpoint{URL: getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")}

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "kestrel-balance-polling")

	callTimeout, err := parseDuration("COIN_CALL_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.CoinCallTimeout = callTimeout
	}

	pollInterval, err := parseDuration("BALANCE_POLL_INTERVAL", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BalancePollInterval = pollInterval
	}

	if cfg.CoinCallTimeout < time.Second {
		errs = append(errs, fmt.Errorf("COIN_CALL_TIMEOUT must be at least 1 second"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" && c.BlobPath == "" {
		errs = append(errs, fmt.Errorf("one of DatabaseURL or BlobPath is required"))
	}

	if c.CoinCallTimeout < time.Second {
		errs = append(errs, fmt.Errorf("CoinCallTimeout must be at least 1 second"))
	}

	if c.BalancePollInterval < time.Second {
		errs = append(errs, fmt.Errorf("BalancePollInterval must be at least 1 second"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}
