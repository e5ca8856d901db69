package peer

import (
	"context"
	"sync"
)

// SentRecord captures one direct-send or fallback attempt made through
// the mock channel.
type SentRecord struct {
	To      string
	Content string
}

// MockChannel implements Channel for testing with configurable
// connectivity, acknowledgement and queue behavior.
type MockChannel struct {
	mu sync.Mutex

	Address   string
	Connected bool

	// AckSend controls whether SendPeerMessage reports acknowledgement.
	AckSend bool

	// QueueErr, when set, is returned by QueueFallback.
	QueueErr error

	Peers []string

	directSends []SentRecord
	queued      []SentRecord
}

// NewMockChannel returns a connected mock channel that acknowledges
// direct sends.
func NewMockChannel(address string) *MockChannel {
	return &MockChannel{Address: address, Connected: true, AckSend: true}
}

func (c *MockChannel) LocalAddress() string {
	return c.Address
}

func (c *MockChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Connected
}

func (c *MockChannel) ConnectionStatus() ConnectionStatus {
	if c.IsConnected() {
		return StatusConnected
	}
	return StatusDisconnected
}

func (c *MockChannel) SendPeerMessage(ctx context.Context, toAddress, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.directSends = append(c.directSends, SentRecord{To: toAddress, Content: content})
	return c.AckSend
}

func (c *MockChannel) QueueFallback(ctx context.Context, toAddress, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.QueueErr != nil {
		return c.QueueErr
	}
	c.queued = append(c.queued, SentRecord{To: toAddress, Content: content})
	return nil
}

func (c *MockChannel) KnownPeers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Peers...)
}

// SetConnected toggles the mock's connectivity.
func (c *MockChannel) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connected = connected
}

// DirectSends returns a copy of recorded direct-send attempts.
func (c *MockChannel) DirectSends() []SentRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentRecord(nil), c.directSends...)
}

// Queued returns a copy of recorded fallback enqueues.
func (c *MockChannel) Queued() []SentRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentRecord(nil), c.queued...)
}
