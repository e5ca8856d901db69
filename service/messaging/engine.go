package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelwallet/kestrel/service/metrics"
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
	"github.com/kestrelwallet/kestrel/service/peer"
)

// Engine decides direct-peer versus store-and-forward delivery for each
// outbound message and drives the per-message state machine. It is the
// only writer of conversation state for outbound traffic.
type Engine struct {
	contacts      *ContactStore
	conversations *ConversationStore
	channel       peer.Channel
	events        natspkg.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewEngine creates a delivery engine. events and m may be nil.
func NewEngine(contacts *ContactStore, conversations *ConversationStore, channel peer.Channel, events natspkg.Publisher, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		contacts:      contacts,
		conversations: conversations,
		channel:       channel,
		events:        events,
		metrics:       m,
		logger:        logger,
	}
}

// SendMessage validates and delivers one outbound message. The return
// value means "accepted for delivery": false only for local validation
// failures (unknown contact, empty content), in which case no message is
// appended anywhere. When fallback is used the message was accepted but
// the peer has not necessarily received it.
func (e *Engine) SendMessage(ctx context.Context, toAddress, content string) bool {
	if content == "" {
		e.logger.Debug("rejecting message with empty content", "to", toAddress)
		return false
	}
	if _, ok := e.contacts.Get(toAddress); !ok {
		e.logger.Debug("rejecting message to unknown contact", "to", toAddress)
		return false
	}

	msg := Message{
		ID:        uuid.NewString(),
		From:      e.channel.LocalAddress(),
		To:        toAddress,
		Content:   content,
		Timestamp: time.Now().UTC(),
		State:     StateComposed,
	}
	if err := e.conversations.Append(ctx, toAddress, msg); err != nil {
		e.logger.Error("failed to record outbound message", "to", toAddress, "error", err)
		return false
	}

	// Disconnected: skip the direct attempt and route straight to the
	// store-and-forward path.
	if !e.channel.IsConnected() {
		e.fallback(ctx, toAddress, msg)
		return true
	}

	e.transition(ctx, toAddress, msg.ID, StatePending)
	if e.channel.SendPeerMessage(ctx, toAddress, content) {
		e.transition(ctx, toAddress, msg.ID, StateDelivered)
		e.finish(ctx, toAddress, msg.ID, StateDelivered)
		return true
	}

	e.fallback(ctx, toAddress, msg)
	return true
}

// fallback queues the message on the store-and-forward path. Queue
// failure is the one way an accepted message ends up Failed.
func (e *Engine) fallback(ctx context.Context, toAddress string, msg Message) {
	if err := e.channel.QueueFallback(ctx, toAddress, msg.Content); err != nil {
		e.logger.Warn("fallback queueing failed", "to", toAddress, "message_id", msg.ID, "error", err)
		e.transition(ctx, toAddress, msg.ID, StateFailed)
		e.finish(ctx, toAddress, msg.ID, StateFailed)
		return
	}
	e.transition(ctx, toAddress, msg.ID, StateFallback)
	e.finish(ctx, toAddress, msg.ID, StateFallback)
}

func (e *Engine) transition(ctx context.Context, peerAddress, messageID string, next DeliveryState) {
	if err := e.conversations.UpdateMessageState(ctx, peerAddress, messageID, next); err != nil {
		e.logger.Warn("failed to record delivery transition",
			"peer", peerAddress, "message_id", messageID, "state", next, "error", err)
	}
}

// finish records the terminal state in metrics and publishes a delivery
// event.
func (e *Engine) finish(ctx context.Context, peerAddress, messageID string, state DeliveryState) {
	e.metrics.RecordMessage(string(state))
	if e.events == nil {
		return
	}
	event := &natspkg.DeliveryEvent{
		MessageID:   messageID,
		PeerAddress: peerAddress,
		State:       string(state),
	}
	if err := e.events.PublishDelivery(ctx, event); err != nil {
		e.logger.Warn("failed to publish delivery event", "message_id", messageID, "error", err)
	}
}

// AddContact validates and appends a directory entry. Returns false
// without mutation when the name is empty or the address is not a
// well-formed peer address.
func (e *Engine) AddContact(ctx context.Context, address, name string) bool {
	if name == "" || !peer.ValidateAddress(address) {
		return false
	}
	if err := e.contacts.Add(ctx, Contact{
		Address: address,
		Name:    name,
		AddedAt: time.Now().UTC(),
	}); err != nil {
		e.logger.Warn("failed to add contact", "address", address, "error", err)
		return false
	}
	e.logger.Info("contact added", "address", address, "name", name)
	return true
}

// RemoveContact deletes a contact. The peer's conversation survives.
func (e *Engine) RemoveContact(ctx context.Context, address string) error {
	return e.contacts.Remove(ctx, address)
}

// HandleInbound records a message received from a peer. Inbound
// messages arrive already delivered.
func (e *Engine) HandleInbound(from, content string, sentAt time.Time) {
	if content == "" {
		return
	}
	msg := Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        e.channel.LocalAddress(),
		Content:   content,
		Timestamp: sentAt,
		State:     StateDelivered,
	}
	if err := e.conversations.Append(context.Background(), from, msg); err != nil {
		e.logger.Error("failed to record inbound message", "from", from, "error", err)
	}
}

// Contacts returns a snapshot of the directory.
func (e *Engine) Contacts() []Contact {
	return e.contacts.Snapshot()
}

// Conversations returns a snapshot of all threads, most recent first.
func (e *Engine) Conversations() []*Conversation {
	return e.conversations.Snapshot()
}

// Conversation returns the thread with one peer.
func (e *Engine) Conversation(peerAddress string) (*Conversation, error) {
	return e.conversations.Get(peerAddress)
}

// ConnectionStatus reports the channel's connectivity state.
func (e *Engine) ConnectionStatus() peer.ConnectionStatus {
	return e.channel.ConnectionStatus()
}

// IsConnected reports whether direct delivery is currently possible.
func (e *Engine) IsConnected() bool {
	return e.channel.IsConnected()
}
