package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "kestrel.blob.json", cfg.BlobPath)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, "localhost:7233", cfg.TemporalHost)
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.Equal(t, "kestrel-balance-polling", cfg.TemporalTaskQueue)
	assert.Equal(t, 15*time.Second, cfg.CoinCallTimeout)
	assert.Equal(t, 30*time.Second, cfg.BalancePollInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("DATABASE_URL", "postgres://localhost/kestrel")
	t.Setenv("BITCOIN_RPC_URL", "http://localhost:8332")
	t.Setenv("BITCOIN_RPC_USER", "rpcuser")
	t.Setenv("PEER_ADDRESS", "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	t.Setenv("COIN_CALL_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ServerAddr)
	assert.Equal(t, "postgres://localhost/kestrel", cfg.DatabaseURL)
	assert.Equal(t, "http://localhost:8332", cfg.Bitcoin.URL)
	assert.Equal(t, "rpcuser", cfg.Bitcoin.User)
	assert.Equal(t, "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", cfg.PeerAddress)
	assert.Equal(t, 5*time.Second, cfg.CoinCallTimeout)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("COIN_CALL_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COIN_CALL_TIMEOUT")
}

func TestLoadRejectsSubSecondTimeout(t *testing.T) {
	t.Setenv("COIN_CALL_TIMEOUT", "100ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1 second")
}

func validConfig() *Config {
	return &Config{
		ServerAddr:          ":8080",
		BlobPath:            "kestrel.blob.json",
		TemporalHost:        "localhost:7233",
		TemporalNamespace:   "default",
		TemporalTaskQueue:   "kestrel-balance-polling",
		CoinCallTimeout:     15 * time.Second,
		BalancePollInterval: 30 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	noStorage := validConfig()
	noStorage.BlobPath = ""
	assert.Error(t, noStorage.Validate())

	// A database URL alone satisfies the storage requirement
	noStorage.DatabaseURL = "postgres://localhost/kestrel"
	assert.NoError(t, noStorage.Validate())

	noQueue := validConfig()
	noQueue.TemporalTaskQueue = ""
	assert.Error(t, noQueue.Validate())

	shortPoll := validConfig()
	shortPoll.BalancePollInterval = 500 * time.Millisecond
	assert.Error(t, shortPoll.Validate())
}
