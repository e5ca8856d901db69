package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// directSubjectPrefix carries direct request/reply delivery. Each
	// node services "peers.msg.{address}" for its own address.
	directSubjectPrefix = "peers.msg."

	// mailStreamName is the JetStream stream backing store-and-forward.
	mailStreamName = "PEERMAIL"

	// mailSubjectPrefix is the per-recipient fallback subject. Queued
	// messages wait in the stream until the recipient drains them.
	mailSubjectPrefix = "mail."

	// directAckTimeout bounds how long a direct send waits for the
	// peer's acknowledgement before falling back.
	directAckTimeout = 5 * time.Second
)

// wireMessage is the envelope exchanged between peers on both the
// direct and fallback subjects.
type wireMessage struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// InboundHandler is invoked for each message received from a peer,
// whether it arrived directly or was drained from the fallback queue.
type InboundHandler func(from, content string, sentAt time.Time)

// NATSChannel implements Channel over NATS: core request/reply for
// direct delivery (the reply is the acknowledgement) and a JetStream
// stream for store-and-forward when the peer is unreachable.
type NATSChannel struct {
	nc           *nats.Conn
	js           jetstream.JetStream
	localAddress string
	logger       *slog.Logger

	mu         sync.Mutex
	knownPeers map[string]struct{}
	inbound    InboundHandler

	sub *nats.Subscription
}

// NewNATSChannel connects to NATS and ensures the mail stream exists.
// The channel does not receive anything until Listen is called, so
// callers can finish wiring the inbound consumer first.
func NewNATSChannel(ctx context.Context, url, localAddress string, logger *slog.Logger) (*NATSChannel, error) {
	if !ValidateAddress(localAddress) {
		return nil, fmt.Errorf("invalid local peer address %q", localAddress)
	}

	nc, err := nats.Connect(url,
		nats.Name("kestrel-peer"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c := &NATSChannel{
		nc:           nc,
		js:           js,
		localAddress: localAddress,
		logger:       logger,
		knownPeers:   make(map[string]struct{}),
	}

	if err := c.ensureMailStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("peer channel connected", "address", localAddress, "url", url)
	return c, nil
}

// Listen sets the inbound handler and subscribes to this node's direct
// subject. Until Listen is called direct sends to this node go
// unacknowledged, so senders fall back to the mail stream and nothing
// is lost.
func (c *NATSChannel) Listen(onInbound InboundHandler) error {
	c.mu.Lock()
	c.inbound = onInbound
	c.mu.Unlock()

	sub, err := c.nc.Subscribe(directSubjectPrefix+c.localAddress, c.handleDirect)
	if err != nil {
		return fmt.Errorf("failed to subscribe to direct subject: %w", err)
	}
	c.sub = sub
	return nil
}

func (c *NATSChannel) inboundHandler() InboundHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inbound
}

func (c *NATSChannel) ensureMailStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      mailStreamName,
		Subjects:  []string{mailSubjectPrefix + ">"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure mail stream: %w", err)
	}
	return nil
}

// handleDirect acknowledges a direct message and hands it to the
// inbound handler.
func (c *NATSChannel) handleDirect(msg *nats.Msg) {
	var wm wireMessage
	if err := json.Unmarshal(msg.Data, &wm); err != nil {
		c.logger.Warn("dropping malformed peer message", "error", err)
		return
	}

	c.rememberPeer(wm.From)
	if err := msg.Respond([]byte("ack")); err != nil {
		c.logger.Warn("failed to acknowledge peer message", "from", wm.From, "error", err)
	}
	if inbound := c.inboundHandler(); inbound != nil {
		inbound(wm.From, wm.Content, wm.SentAt)
	}
}

// LocalAddress returns this node's peer address.
func (c *NATSChannel) LocalAddress() string {
	return c.localAddress
}

// IsConnected reports whether the NATS connection is up.
func (c *NATSChannel) IsConnected() bool {
	return c.nc.IsConnected()
}

// ConnectionStatus maps the NATS connection state onto the channel's
// status values.
func (c *NATSChannel) ConnectionStatus() ConnectionStatus {
	switch {
	case c.nc.IsConnected():
		return StatusConnected
	case c.nc.IsReconnecting():
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// SendPeerMessage sends directly via request/reply. Any reply counts as
// the peer's acknowledgement; a timeout or transport error does not.
func (c *NATSChannel) SendPeerMessage(ctx context.Context, toAddress, content string) bool {
	payload, err := json.Marshal(wireMessage{
		From:    c.localAddress,
		To:      toAddress,
		Content: content,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return false
	}

	rctx, cancel := context.WithTimeout(ctx, directAckTimeout)
	defer cancel()

	_, err = c.nc.RequestWithContext(rctx, directSubjectPrefix+toAddress, payload)
	if err != nil {
		c.logger.Debug("direct delivery not acknowledged", "to", toAddress, "error", err)
		return false
	}

	c.rememberPeer(toAddress)
	return true
}

// QueueFallback publishes the message to the recipient's mail subject in
// the JetStream stream, where it waits until the recipient drains it.
func (c *NATSChannel) QueueFallback(ctx context.Context, toAddress, content string) error {
	payload, err := json.Marshal(wireMessage{
		From:    c.localAddress,
		To:      toAddress,
		Content: content,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode fallback message: %w", err)
	}

	if _, err := c.js.Publish(ctx, mailSubjectPrefix+toAddress, payload); err != nil {
		return fmt.Errorf("failed to queue fallback message: %w", err)
	}

	c.rememberPeer(toAddress)
	return nil
}

// DrainMailbox consumes queued fallback messages addressed to this node
// and delivers them to the inbound handler. It returns the number of
// messages drained.
func (c *NATSChannel) DrainMailbox(ctx context.Context) (int, error) {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, mailStreamName, jetstream.ConsumerConfig{
		Durable:       "mailbox-" + c.localAddress,
		FilterSubject: mailSubjectPrefix + c.localAddress,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create mailbox consumer: %w", err)
	}

	drained := 0
	for {
		batch, err := cons.FetchNoWait(64)
		if err != nil {
			return drained, fmt.Errorf("failed to fetch mailbox batch: %w", err)
		}
		got := 0
		for msg := range batch.Messages() {
			got++
			var wm wireMessage
			if err := json.Unmarshal(msg.Data(), &wm); err != nil {
				c.logger.Warn("dropping malformed mailbox message", "error", err)
				_ = msg.Ack()
				continue
			}
			c.rememberPeer(wm.From)
			if inbound := c.inboundHandler(); inbound != nil {
				inbound(wm.From, wm.Content, wm.SentAt)
			}
			if err := msg.Ack(); err != nil {
				c.logger.Warn("failed to ack mailbox message", "error", err)
			}
			drained++
		}
		if got == 0 {
			return drained, nil
		}
	}
}

// KnownPeers returns the sorted addresses of peers this channel has
// exchanged messages with.
func (c *NATSChannel) KnownPeers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	peers := make([]string, 0, len(c.knownPeers))
	for addr := range c.knownPeers {
		peers = append(peers, addr)
	}
	sort.Strings(peers)
	return peers
}

func (c *NATSChannel) rememberPeer(address string) {
	if address == "" || address == c.localAddress {
		return
	}
	c.mu.Lock()
	c.knownPeers[address] = struct{}{}
	c.mu.Unlock()
}

// Close unsubscribes and closes the NATS connection.
func (c *NATSChannel) Close() error {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe direct subject", "error", err)
		}
	}
	c.nc.Close()
	return nil
}
