package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kestrelwallet/kestrel/service/blob"
)

// walletsBlobKey is the fixed key the whole wallet collection is stored
// under. Persistence is always "serialize entire collection, replace
// prior blob", never a partial write.
const walletsBlobKey = "wallets/v1"

// Store holds the authoritative in-memory list of wallets and the
// selected wallet id. All mutations go through Store methods under one
// lock; readers get deep-copied snapshots, never live references.
type Store struct {
	mu         sync.RWMutex
	wallets    []*Wallet
	selectedID string

	blobs   blob.Store
	logger  *slog.Logger
	loadErr error
}

// NewStore creates a wallet store backed by the given blob store.
func NewStore(blobs blob.Store, logger *slog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger}
}

// Load re-populates the store from the blob store. A missing blob means
// an empty store. A corrupt or unreadable blob also falls back to empty,
// but the failure is logged and retained for LoadErr rather than
// silently swallowed.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wallets = nil
	s.selectedID = ""
	s.loadErr = nil

	raw, err := s.blobs.Get(ctx, walletsBlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil
		}
		s.loadErr = err
		s.logger.Error("failed to load wallets, starting empty", "error", err)
		return err
	}

	var wallets []*Wallet
	if err := json.Unmarshal(raw, &wallets); err != nil {
		s.loadErr = fmt.Errorf("failed to decode wallets: %w", err)
		s.logger.Error("failed to decode wallets, starting empty", "error", err)
		return s.loadErr
	}

	s.wallets = wallets
	if len(wallets) > 0 {
		s.selectedID = wallets[0].ID
	}
	return nil
}

// LoadErr returns the error from the last Load, if any. Callers can use
// it to warn that the store may be running on an empty fallback.
func (s *Store) LoadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// persistLocked serializes the entire collection and replaces the blob.
// Callers must hold the write lock.
func (s *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.wallets)
	if err != nil {
		return fmt.Errorf("failed to encode wallets: %w", err)
	}
	if err := s.blobs.Put(ctx, walletsBlobKey, raw); err != nil {
		return fmt.Errorf("failed to persist wallets: %w", err)
	}
	return nil
}

// Add appends a wallet, marks it selected, and persists. On persistence
// failure the in-memory mutation is rolled back so readers never observe
// unpersisted state.
func (s *Store) Add(ctx context.Context, w *Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevSelected := s.selectedID
	s.wallets = append(s.wallets, w)
	s.selectedID = w.ID

	if err := s.persistLocked(ctx); err != nil {
		s.wallets = s.wallets[:len(s.wallets)-1]
		s.selectedID = prevSelected
		return err
	}
	return nil
}

// Remove deletes a wallet by id and persists. If the removed wallet was
// selected, selection moves to the first remaining wallet, or to none if
// the store becomes empty.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, w := range s.wallets {
		if w.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrWalletNotFound
	}

	prevWallets := s.wallets
	prevSelected := s.selectedID

	next := make([]*Wallet, 0, len(s.wallets)-1)
	next = append(next, s.wallets[:idx]...)
	next = append(next, s.wallets[idx+1:]...)
	s.wallets = next

	if s.selectedID == id {
		if len(s.wallets) > 0 {
			s.selectedID = s.wallets[0].ID
		} else {
			s.selectedID = ""
		}
	}

	if err := s.persistLocked(ctx); err != nil {
		s.wallets = prevWallets
		s.selectedID = prevSelected
		return err
	}
	return nil
}

// Select marks a wallet as selected and persists nothing: selection is
// process state, re-derived as "first wallet" on reload.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.wallets {
		if w.ID == id {
			s.selectedID = id
			return nil
		}
	}
	return ErrWalletNotFound
}

// Get returns a deep copy of the wallet with the given id.
func (s *Store) Get(id string) (*Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.wallets {
		if w.ID == id {
			return w.Clone(), nil
		}
	}
	return nil, ErrWalletNotFound
}

// Snapshot returns deep copies of all wallets in insertion order.
func (s *Store) Snapshot() []*Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Wallet, len(s.wallets))
	for i, w := range s.wallets {
		out[i] = w.Clone()
	}
	return out
}

// Selected returns a deep copy of the selected wallet, or false if no
// wallet is selected.
func (s *Store) Selected() (*Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selectedID == "" {
		return nil, false
	}
	for _, w := range s.wallets {
		if w.ID == s.selectedID {
			return w.Clone(), true
		}
	}
	return nil, false
}

// Len returns the number of wallets held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallets)
}
