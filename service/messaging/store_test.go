package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelwallet/kestrel/service/blob"
)

func msg(id, content string, at time.Time) Message {
	return Message{
		ID:        id,
		From:      localAddr,
		To:        peerAddr,
		Content:   content,
		Timestamp: at,
		State:     StateComposed,
	}
}

func TestConversationAppendUpdatesTailAtomically(t *testing.T) {
	store := NewConversationStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()

	t1 := time.Now().UTC()
	t2 := t1.Add(time.Minute)

	require.NoError(t, store.Append(ctx, peerAddr, msg("m1", "first", t1)))
	require.NoError(t, store.Append(ctx, peerAddr, msg("m2", "second", t2)))

	conv, err := store.Get(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "second", conv.LastMessage)
	assert.True(t, conv.LastMessageAt.Equal(t2))
}

func TestConversationAppendRollsBackOnPersistFailure(t *testing.T) {
	blobs := blob.NewMemoryStore()
	store := NewConversationStore(blobs, testLogger())
	ctx := context.Background()

	t1 := time.Now().UTC()
	require.NoError(t, store.Append(ctx, peerAddr, msg("m1", "first", t1)))

	blobs.PutErr = assert.AnError
	err := store.Append(ctx, peerAddr, msg("m2", "second", t1.Add(time.Minute)))
	require.Error(t, err)

	conv, err := store.Get(peerAddr)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 1)
	assert.Equal(t, "first", conv.LastMessage)
}

func TestDeliveryStateTransitionsAreForwardOnly(t *testing.T) {
	store := NewConversationStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, peerAddr, msg("m1", "hello", time.Now().UTC())))

	require.NoError(t, store.UpdateMessageState(ctx, peerAddr, "m1", StatePending))
	require.NoError(t, store.UpdateMessageState(ctx, peerAddr, "m1", StateDelivered))

	// Terminal states admit no further transitions, forward or backward
	assert.Error(t, store.UpdateMessageState(ctx, peerAddr, "m1", StatePending))
	assert.Error(t, store.UpdateMessageState(ctx, peerAddr, "m1", StateFallback))
	assert.Error(t, store.UpdateMessageState(ctx, peerAddr, "m1", StateFailed))

	conv, err := store.Get(peerAddr)
	require.NoError(t, err)
	assert.Equal(t, StateDelivered, conv.Messages[0].State)
}

func TestDeliveryStateSkipsPendingForFallback(t *testing.T) {
	// Disconnected sends jump Composed -> Fallback without Pending
	assert.True(t, StateComposed.CanTransitionTo(StateFallback))
	assert.True(t, StateComposed.CanTransitionTo(StatePending))
	assert.False(t, StatePending.CanTransitionTo(StateComposed))
	assert.False(t, StateDelivered.CanTransitionTo(StateFallback))
	assert.True(t, StateDelivered.Terminal())
	assert.True(t, StateFallback.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StatePending.Terminal())
}

func TestConversationStoreLoadRoundTrip(t *testing.T) {
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	first := NewConversationStore(blobs, testLogger())
	t1 := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, first.Append(ctx, peerAddr, msg("m1", "hello", t1)))

	second := NewConversationStore(blobs, testLogger())
	require.NoError(t, second.Load(ctx))

	conv, err := second.Get(peerAddr)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hello", conv.LastMessage)
}

func TestConversationSnapshotOrdersByRecency(t *testing.T) {
	store := NewConversationStore(blob.NewMemoryStore(), testLogger())
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.Append(ctx, peerAddr, msg("m1", "older", base)))
	require.NoError(t, store.Append(ctx, localAddr, msg("m2", "newer", base.Add(time.Hour))))

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, localAddr, snap[0].PeerAddress)
	assert.Equal(t, peerAddr, snap[1].PeerAddress)
}

func TestContactStoreAddRemove(t *testing.T) {
	blobs := blob.NewMemoryStore()
	store := NewContactStore(blobs, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Contact{Address: peerAddr, Name: "Bob", AddedAt: time.Now().UTC()}))
	assert.Equal(t, 1, store.Len())

	// Duplicate
	assert.Error(t, store.Add(ctx, Contact{Address: peerAddr, Name: "Bobby"}))
	assert.Equal(t, 1, store.Len())

	contact, ok := store.Get(peerAddr)
	require.True(t, ok)
	assert.Equal(t, "Bob", contact.Name)

	require.NoError(t, store.Remove(ctx, peerAddr))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Remove(ctx, peerAddr), ErrContactNotFound)
}

func TestContactStoreLoadRoundTrip(t *testing.T) {
	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	first := NewContactStore(blobs, testLogger())
	require.NoError(t, first.Add(ctx, Contact{Address: peerAddr, Name: "Bob", AddedAt: time.Now().UTC()}))

	second := NewContactStore(blobs, testLogger())
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, 1, second.Len())
}
