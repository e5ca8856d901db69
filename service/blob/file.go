package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists blobs as a single JSON document on local disk.
// Every Put rewrites the whole file via a temp-file rename so a crash
// mid-write never leaves a torn document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed blob store at path. The file is
// created lazily on first Put.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string][]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("failed to read blob file: %w", err)
	}
	if len(raw) == 0 {
		return map[string][]byte{}, nil
	}
	var blobs map[string][]byte
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return nil, fmt.Errorf("failed to decode blob file: %w", err)
	}
	if blobs == nil {
		blobs = map[string][]byte{}
	}
	return blobs, nil
}

func (s *FileStore) save(blobs map[string][]byte) error {
	raw, err := json.Marshal(blobs)
	if err != nil {
		return fmt.Errorf("failed to encode blob file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("failed to create temp blob file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp blob file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp blob file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace blob file: %w", err)
	}
	return nil
}

// Get returns the blob stored under key, or ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blobs, err := s.load()
	if err != nil {
		return nil, err
	}
	data, ok := blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Put replaces the blob stored under key.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blobs, err := s.load()
	if err != nil {
		return err
	}
	blobs[key] = data
	return s.save(blobs)
}

// Delete removes the blob stored under key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blobs, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := blobs[key]; !ok {
		return nil
	}
	delete(blobs, key)
	return s.save(blobs)
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
