package messaging

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
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
	"github.com/kestrelwallet/kestrel/service/peer"
)

// 32 bytes of 0x01 in base58
const peerAddr = "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"

const localAddr = "8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR3"

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, *peer.MockChannel, *natspkg.MockPublisher) {
	t.Helper()

	blobs := blob.NewMemoryStore()
	contacts := NewContactStore(blobs, testLogger())
	conversations := NewConversationStore(blobs, testLogger())
	channel := peer.NewMockChannel(localAddr)
	events := natspkg.NewMockPublisher()
	engine := NewEngine(contacts, conversations, channel, events, nil, testLogger())
	return engine, channel, events
}

func TestSendMessageDeliveredWhenAcked(t *testing.T) {
	engine, channel, events := newTestEngine(t)
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	require.True(t, engine.SendMessage(ctx, peerAddr, "hello"))

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, StateDelivered, conv.Messages[0].State)
	assert.Equal(t, localAddr, conv.Messages[0].From)

	require.Len(t, channel.DirectSends(), 1)
	assert.Empty(t, channel.Queued())

	delivered := events.DeliveryEvents()
	require.Len(t, delivered, 1)
	assert.Equal(t, string(StateDelivered), delivered[0].State)
}

func TestSendMessageFallsBackWhenNotAcked(t *testing.T) {
	engine, channel, _ := newTestEngine(t)
	channel.AckSend = false
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	require.True(t, engine.SendMessage(ctx, peerAddr, "hello"))

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, StateFallback, conv.Messages[0].State)

	// Direct attempt happened first, then the fallback enqueue
	assert.Len(t, channel.DirectSends(), 1)
	assert.Len(t, channel.Queued(), 1)
}

func TestSendMessageDisconnectedRoutesStraightToFallback(t *testing.T) {
	engine, channel, _ := newTestEngine(t)
	channel.SetConnected(false)
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	require.True(t, engine.SendMessage(ctx, peerAddr, "hello"))

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, StateFallback, conv.Messages[0].State)

	// No direct attempt when disconnected
	assert.Empty(t, channel.DirectSends())
	assert.Len(t, channel.Queued(), 1)
}

func TestSendMessageFailedWhenFallbackQueueFails(t *testing.T) {
	engine, channel, _ := newTestEngine(t)
	channel.SetConnected(false)
	channel.QueueErr = errors.New("stream unavailable")
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	// Still accepted: the message exists locally even though delivery
	// could not be arranged
	require.True(t, engine.SendMessage(ctx, peerAddr, "hello"))

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, StateFailed, conv.Messages[0].State)
}

func TestSendMessageUnknownContactRejected(t *testing.T) {
	engine, channel, _ := newTestEngine(t)
	ctx := context.Background()

	assert.False(t, engine.SendMessage(ctx, peerAddr, "hello"))
	assert.Empty(t, channel.DirectSends())
	assert.Empty(t, engine.Conversations())
}

func TestSendMessageEmptyContentRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	assert.False(t, engine.SendMessage(ctx, peerAddr, ""))
	assert.Empty(t, engine.Conversations())
}

func TestAddContactValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	assert.False(t, engine.AddContact(ctx, "", "Bob"))
	assert.False(t, engine.AddContact(ctx, "not-base58-!!", "Bob"))
	assert.False(t, engine.AddContact(ctx, peerAddr, ""))
	assert.Len(t, engine.Contacts(), 0)

	assert.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	assert.Len(t, engine.Contacts(), 1)

	// Duplicate address is rejected without mutation
	assert.False(t, engine.AddContact(ctx, peerAddr, "Bobby"))
	assert.Len(t, engine.Contacts(), 1)
}

func TestRemoveContactKeepsConversation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.True(t, engine.AddContact(ctx, peerAddr, "Bob"))
	require.True(t, engine.SendMessage(ctx, peerAddr, "hello"))

	require.NoError(t, engine.RemoveContact(ctx, peerAddr))
	assert.Empty(t, engine.Contacts())

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)

	// But sending to the removed contact is now rejected
	assert.False(t, engine.SendMessage(ctx, peerAddr, "again"))
}

func TestHandleInboundAppendsDelivered(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	sentAt := time.Now().UTC().Add(-time.Minute)
	engine.HandleInbound(peerAddr, "hi there", sentAt)

	conv, err := engine.Conversation(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, StateDelivered, conv.Messages[0].State)
	assert.Equal(t, peerAddr, conv.Messages[0].From)
	assert.Equal(t, localAddr, conv.Messages[0].To)
	assert.Equal(t, "hi there", conv.LastMessage)
	assert.True(t, conv.LastMessageAt.Equal(sentAt))
}
