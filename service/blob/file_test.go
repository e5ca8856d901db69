package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	store := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "wallets/v1", []byte(`{"a":1}`)))
	require.NoError(t, store.Put(ctx, "contacts/v1", []byte(`[]`)))

	data, err := store.Get(ctx, "wallets/v1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)

	// A second store over the same file sees the same data
	reopened := NewFileStore(path)
	data, err = reopened.Get(ctx, "contacts/v1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), data)
}

func TestFileStoreMissingKey(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "blobs.json"))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePutOverwrites(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "blobs.json"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v1")))
	require.NoError(t, store.Put(ctx, "k", []byte("v2")))

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestFileStoreDelete(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "blobs.json"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	require.NoError(t, store.Delete(ctx, "k"))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestFileStoreEmptyFileMeansEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	store := NewFileStore(path)
	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	store := NewFileStore(path)
	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v")))
	assert.Equal(t, 1, store.Len())

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)

	// Stored bytes are copies: mutating the returned slice must not
	// change what a later Get sees
	data[0] = 'x'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}
