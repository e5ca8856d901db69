package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelwallet/kestrel/service/blob"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testWallet(id, name string) *Wallet {
	return &Wallet{
		ID:       id,
		Name:     name,
		Mnemonic: "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		Addresses: map[string]string{
			"bitcoin":  "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
			"ethereum": "0xde709f2102306220921060314715629080e2fb77",
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestStoreAddSelectsNewWallet(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testWallet("w1", "first")))
	require.NoError(t, store.Add(ctx, testWallet("w2", "second")))

	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "w2", selected.ID)
	assert.Equal(t, 2, store.Len())
}

func TestStoreAddRollsBackOnPersistFailure(t *testing.T) {
	blobs := blob.NewMemoryStore()
	store := NewStore(blobs, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testWallet("w1", "first")))

	blobs.PutErr = errors.New("disk full")
	err := store.Add(ctx, testWallet("w2", "second"))
	require.Error(t, err)

	// In-memory state must match the last persisted state
	assert.Equal(t, 1, store.Len())
	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "w1", selected.ID)
}

func TestStoreRemoveMovesSelection(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, testWallet("w1", "first")))
	require.NoError(t, store.Add(ctx, testWallet("w2", "second")))

	// w2 is selected; removing it moves selection to the first remaining
	require.NoError(t, store.Remove(ctx, "w2"))
	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "w1", selected.ID)

	require.NoError(t, store.Remove(ctx, "w1"))
	_, ok = store.Selected()
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStoreRemoveUnknownWallet(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	err := store.Remove(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	first := NewStore(blobs, testLogger())
	require.NoError(t, first.Add(ctx, testWallet("w1", "first")))
	require.NoError(t, first.Add(ctx, testWallet("w2", "second")))

	second := NewStore(blobs, testLogger())
	require.NoError(t, second.Load(ctx))

	assert.Equal(t, 2, second.Len())
	w, err := second.Get("w2")
	require.NoError(t, err)
	assert.Equal(t, "second", w.Name)

	// Selection is process state: reload selects the first wallet
	selected, ok := second.Selected()
	require.True(t, ok)
	assert.Equal(t, "w1", selected.ID)
}

func TestStoreLoadMissingBlobMeansEmpty(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	require.NoError(t, store.Load(context.Background()))
	assert.Equal(t, 0, store.Len())
	assert.NoError(t, store.LoadErr())
}

func TestStoreLoadCorruptBlobFallsBackToEmpty(t *testing.T) {
	blobs := blob.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, blobs.Put(ctx, "wallets/v1", []byte("not json")))

	store := NewStore(blobs, testLogger())
	err := store.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
	assert.Error(t, store.LoadErr())
}

func TestStoreSnapshotReturnsDeepCopies(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, testWallet("w1", "first")))

	snap := store.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Name = "mutated"
	snap[0].Addresses["bitcoin"] = "mutated"

	w, err := store.Get("w1")
	require.NoError(t, err)
	assert.Equal(t, "first", w.Name)
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", w.Addresses["bitcoin"])
}

func TestStoreSelect(t *testing.T) {
	store := NewStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, testWallet("w1", "first")))
	require.NoError(t, store.Add(ctx, testWallet("w2", "second")))

	require.NoError(t, store.Select("w1"))
	selected, ok := store.Selected()
	require.True(t, ok)
	assert.Equal(t, "w1", selected.ID)

	assert.ErrorIs(t, store.Select("missing"), ErrWalletNotFound)
}
