package wallet

import (
	"errors"
	"time"
)

var (
	// ErrWalletNotFound is returned for operations on a wallet id the
	// store does not hold.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInvalidBackup is returned when an imported backup fails the
	// structural integrity check.
	ErrInvalidBackup = errors.New("invalid wallet backup")

	// ErrValidation is returned for empty or malformed local input,
	// before any network call is made.
	ErrValidation = errors.New("validation failed")
)

// Wallet is one multi-coin identity. Addresses maps coin-family tag to
// the derived address and is populated atomically at creation: a wallet
// either has an address for every supported family or does not exist.
//
// Mnemonic is secret material. It must never be logged; API responses
// use the redaction in the server layer, and the only place it leaves
// the process in the clear is an explicit export.
type Wallet struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Mnemonic  string            `json:"mnemonic"`
	Addresses map[string]string `json:"addresses"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Clone returns a deep copy so snapshot readers never share the address
// map with the store.
func (w *Wallet) Clone() *Wallet {
	out := *w
	out.Addresses = make(map[string]string, len(w.Addresses))
	for family, addr := range w.Addresses {
		out.Addresses[family] = addr
	}
	return &out
}

// Backup is the serializable projection of a Wallet used for export and
// import. It is the wallet minus its id; a fresh id is generated on
// import.
type Backup struct {
	Name      string            `json:"name"`
	Mnemonic  string            `json:"mnemonic"`
	Addresses map[string]string `json:"addresses"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Validate performs the structural integrity check for an import: all
// fields non-empty. This is a local check only, not a cryptographic
// verification that the addresses derive from the seed phrase.
func (b *Backup) Validate() error {
	if b.Name == "" || b.Mnemonic == "" || len(b.Addresses) == 0 {
		return ErrInvalidBackup
	}
	return nil
}
