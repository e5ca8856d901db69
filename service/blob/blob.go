package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the given key.
var ErrNotFound = errors.New("blob not found")

// Store is an opaque key-value blob store. Writers always replace the
// entire blob under a key; there are no partial updates. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the blob stored under key.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the blob stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
