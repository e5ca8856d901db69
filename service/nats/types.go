package nats

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceEvent is published to "wallets.{wallet_id}.balances" whenever a
// balance refresh completes. The UI stream is fed from these events.
type BalanceEvent struct {
	WalletID string `json:"wallet_id"`

	Balances []BalanceEntry `json:"balances"`

	// Families that were queried but failed and are absent from Balances.
	FailedFamilies []string `json:"failed_families,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// BalanceEntry is one family's balance inside a BalanceEvent.
type BalanceEntry struct {
	Family    string          `json:"family"`
	Address   string          `json:"address"`
	Confirmed decimal.Decimal `json:"confirmed"`
	Pending   decimal.Decimal `json:"pending"`
	AsOf      time.Time       `json:"as_of"`
}

// DeliveryEvent is published to "messages.{peer_address}" whenever an
// outbound message changes delivery state.
type DeliveryEvent struct {
	MessageID   string    `json:"message_id"`
	PeerAddress string    `json:"peer_address"`
	State       string    `json:"state"`
	PublishedAt time.Time `json:"published_at"`
}
