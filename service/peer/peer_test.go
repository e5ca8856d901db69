package peer

import (
	"context"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"32-byte key", "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi", true},
		{"empty", "", false},
		{"not base58", "0OIl+/not-base58", false},
		{"too short", base58.Encode([]byte{1, 2, 3}), false},
		{"too long", base58.Encode(make([]byte, 40)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.address))
		})
	}
}

func TestMockChannel(t *testing.T) {
	channel := NewMockChannel("4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi")
	ctx := context.Background()

	assert.True(t, channel.IsConnected())
	assert.Equal(t, StatusConnected, channel.ConnectionStatus())

	require.True(t, channel.SendPeerMessage(ctx, "peer-1", "hello"))
	require.Len(t, channel.DirectSends(), 1)
	assert.Equal(t, "peer-1", channel.DirectSends()[0].To)
	assert.Equal(t, "hello", channel.DirectSends()[0].Content)

	require.NoError(t, channel.QueueFallback(ctx, "peer-2", "later"))
	require.Len(t, channel.Queued(), 1)
	assert.Equal(t, "peer-2", channel.Queued()[0].To)

	channel.AckSend = false
	assert.False(t, channel.SendPeerMessage(ctx, "peer-1", "hello again"))

	channel.SetConnected(false)
	assert.False(t, channel.IsConnected())
	assert.Equal(t, StatusDisconnected, channel.ConnectionStatus())
}
