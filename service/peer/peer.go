package peer

import (
	"context"

	"github.com/mr-tron/base58"
)

// ConnectionStatus describes the channel's view of peer connectivity.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
)

// Channel abstracts the peer transport. The messaging engine only needs
// to know whether a direct send succeeded; how peers are addressed and
// reached is the channel's concern.
//
// SendPeerMessage reports delivery acknowledgement, not an error: a
// false return means the peer did not acknowledge within the deadline,
// which is an expected outcome, not a transport fault. QueueFallback
// returns an error because failure to enqueue is a real fault the
// engine must record.
type Channel interface {
	// LocalAddress returns this node's own peer address.
	LocalAddress() string

	// IsConnected reports whether the channel currently believes direct
	// peer delivery is possible.
	IsConnected() bool

	// ConnectionStatus returns the current connectivity state.
	ConnectionStatus() ConnectionStatus

	// SendPeerMessage attempts direct delivery and reports whether the
	// peer acknowledged it.
	SendPeerMessage(ctx context.Context, toAddress, content string) bool

	// QueueFallback hands the message to the store-and-forward path for
	// later pickup by the peer.
	QueueFallback(ctx context.Context, toAddress, content string) error

	// KnownPeers lists peer addresses the channel has seen recently.
	KnownPeers() []string
}

// ValidateAddress reports whether s is a well-formed peer address: a
// base58 string decoding to exactly 32 bytes.
func ValidateAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil {
		return false
	}
	return len(raw) == 32
}
