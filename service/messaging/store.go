package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kestrelwallet/kestrel/service/blob"
)

const (
	contactsBlobKey      = "contacts/v1"
	conversationsBlobKey = "conversations/v1"
)

// ContactStore owns the peer directory. Same discipline as the wallet
// store: all mutations under one lock, whole-collection persistence,
// rollback on persistence failure, deep-copied reads.
type ContactStore struct {
	mu       sync.RWMutex
	contacts []Contact

	blobs  blob.Store
	logger *slog.Logger
}

// NewContactStore creates a contact store backed by the given blob store.
func NewContactStore(blobs blob.Store, logger *slog.Logger) *ContactStore {
	return &ContactStore{blobs: blobs, logger: logger}
}

// Load re-populates the store. A missing blob means empty; a corrupt
// blob falls back to empty with the error logged and returned.
func (s *ContactStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contacts = nil

	raw, err := s.blobs.Get(ctx, contactsBlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to load contacts, starting empty", "error", err)
		return err
	}

	var contacts []Contact
	if err := json.Unmarshal(raw, &contacts); err != nil {
		s.logger.Error("failed to decode contacts, starting empty", "error", err)
		return fmt.Errorf("failed to decode contacts: %w", err)
	}
	s.contacts = contacts
	return nil
}

func (s *ContactStore) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.contacts)
	if err != nil {
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	if err := s.blobs.Put(ctx, contactsBlobKey, raw); err != nil {
		return fmt.Errorf("failed to persist contacts: %w", err)
	}
	return nil
}

// Add appends a contact and persists. A duplicate address is an error.
func (s *ContactStore) Add(ctx context.Context, c Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contacts {
		if existing.Address == c.Address {
			return fmt.Errorf("contact %s already exists", c.Address)
		}
	}

	s.contacts = append(s.contacts, c)
	if err := s.persistLocked(ctx); err != nil {
		s.contacts = s.contacts[:len(s.contacts)-1]
		return err
	}
	return nil
}

// Remove deletes a contact by address and persists. The peer's
// conversation, if any, is untouched.
func (s *ContactStore) Remove(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.contacts {
		if c.Address == address {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrContactNotFound
	}

	prev := s.contacts
	next := make([]Contact, 0, len(s.contacts)-1)
	next = append(next, s.contacts[:idx]...)
	next = append(next, s.contacts[idx+1:]...)
	s.contacts = next

	if err := s.persistLocked(ctx); err != nil {
		s.contacts = prev
		return err
	}
	return nil
}

// Get returns the contact with the given address.
func (s *ContactStore) Get(address string) (Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contacts {
		if c.Address == address {
			return c, true
		}
	}
	return Contact{}, false
}

// Snapshot returns all contacts in insertion order.
func (s *ContactStore) Snapshot() []Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Contact(nil), s.contacts...)
}

// Len returns the number of contacts held.
func (s *ContactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// ConversationStore owns the per-peer message threads. Appends update
// the conversation's derived tail fields under the same lock, so a
// reader can never observe a conversation whose last-message fields lag
// its message sequence.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation

	blobs  blob.Store
	logger *slog.Logger
}

// NewConversationStore creates a conversation store backed by the given
// blob store.
func NewConversationStore(blobs blob.Store, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*Conversation),
		blobs:         blobs,
		logger:        logger,
	}
}

// Load re-populates the store. A missing blob means empty; a corrupt
// blob falls back to empty with the error logged and returned.
func (s *ConversationStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[string]*Conversation)

	raw, err := s.blobs.Get(ctx, conversationsBlobKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to load conversations, starting empty", "error", err)
		return err
	}

	var list []*Conversation
	if err := json.Unmarshal(raw, &list); err != nil {
		s.logger.Error("failed to decode conversations, starting empty", "error", err)
		return fmt.Errorf("failed to decode conversations: %w", err)
	}
	for _, c := range list {
		s.conversations[c.PeerAddress] = c
	}
	return nil
}

func (s *ConversationStore) persistLocked(ctx context.Context) error {
	list := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PeerAddress < list[j].PeerAddress })

	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode conversations: %w", err)
	}
	if err := s.blobs.Put(ctx, conversationsBlobKey, raw); err != nil {
		return fmt.Errorf("failed to persist conversations: %w", err)
	}
	return nil
}

// Append adds a message to the peer's conversation, creating the
// conversation if needed, and updates the derived tail fields in the
// same critical section. On persistence failure the append is rolled
// back.
func (s *ConversationStore) Append(ctx context.Context, peerAddress string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[peerAddress]
	if !ok {
		conv = &Conversation{PeerAddress: peerAddress}
		s.conversations[peerAddress] = conv
	}

	prevLen := len(conv.Messages)
	prevLast, prevLastAt := conv.LastMessage, conv.LastMessageAt

	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg.Content
	conv.LastMessageAt = msg.Timestamp

	if err := s.persistLocked(ctx); err != nil {
		conv.Messages = conv.Messages[:prevLen]
		conv.LastMessage, conv.LastMessageAt = prevLast, prevLastAt
		if prevLen == 0 && !ok {
			delete(s.conversations, peerAddress)
		}
		return err
	}
	return nil
}

// UpdateMessageState applies a forward-only delivery state transition to
// a message in the peer's conversation. Illegal transitions (backward,
// or out of a terminal state) are rejected.
func (s *ConversationStore) UpdateMessageState(ctx context.Context, peerAddress, messageID string, next DeliveryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[peerAddress]
	if !ok {
		return ErrConversationNotFound
	}

	for i := range conv.Messages {
		if conv.Messages[i].ID != messageID {
			continue
		}
		prev := conv.Messages[i].State
		if !prev.CanTransitionTo(next) {
			return fmt.Errorf("illegal delivery transition %s -> %s", prev, next)
		}
		conv.Messages[i].State = next
		if err := s.persistLocked(ctx); err != nil {
			conv.Messages[i].State = prev
			return err
		}
		return nil
	}
	return fmt.Errorf("message %s not found in conversation %s", messageID, peerAddress)
}

// Get returns a deep copy of the conversation with the given peer.
func (s *ConversationStore) Get(peerAddress string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[peerAddress]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// Snapshot returns deep copies of all conversations, most recent
// activity first.
func (s *ConversationStore) Snapshot() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].PeerAddress < out[j].PeerAddress
	})
	return out
}
