package messaging

import (
	"errors"
	"time"
)

var (
	ErrContactNotFound      = errors.New("contact not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// DeliveryState is the per-message delivery state machine:
//
//	Composed -> Pending -> {Delivered, Fallback, Failed}
//
// Delivered, Fallback and Failed are terminal; a message in a terminal
// state never transitions again, and no state ever moves backward.
type DeliveryState string

const (
	// StateComposed: the message exists locally and has not been handed
	// to the network layer.
	StateComposed DeliveryState = "composed"

	// StatePending: handed to the peer channel, awaiting direct
	// acknowledgement.
	StatePending DeliveryState = "pending"

	// StateDelivered: the peer acknowledged direct receipt.
	StateDelivered DeliveryState = "delivered"

	// StateFallback: direct delivery was not possible and the message
	// was queued on the store-and-forward path. This is the designed
	// degraded-mode outcome, not an error.
	StateFallback DeliveryState = "fallback"

	// StateFailed: neither direct nor fallback delivery could be
	// completed.
	StateFailed DeliveryState = "failed"
)

// rank orders states so transitions can be checked as strictly forward.
// Terminal states share the highest rank and never yield to each other.
func (s DeliveryState) rank() int {
	switch s {
	case StateComposed:
		return 0
	case StatePending:
		return 1
	case StateDelivered, StateFallback, StateFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether s permits no further transitions.
func (s DeliveryState) Terminal() bool {
	return s == StateDelivered || s == StateFallback || s == StateFailed
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition.
func (s DeliveryState) CanTransitionTo(next DeliveryState) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Message is one entry in a conversation. Immutable once created except
// for the forward-only delivery state.
type Message struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	State     DeliveryState `json:"state"`
}

// Contact is a directory entry for a peer. Contacts are only created by
// an explicit add, never implicitly by message traffic.
type Contact struct {
	Address string    `json:"address"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}

// Conversation is the append-only message thread with one peer. The
// participant address references a contact by value, so the thread
// survives contact deletion. LastMessage and LastMessageAt are derived
// from the tail of Messages and always updated atomically with an
// append.
type Conversation struct {
	PeerAddress   string    `json:"peerAddress"`
	Messages      []Message `json:"messages"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}
