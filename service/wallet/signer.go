package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer produces a signature for a message using the wallet's secret
// material. The orchestration layer treats it as opaque, so a real
// per-family asymmetric scheme (secp256k1, ed25519) can be swapped in
// without touching any calling code.
type Signer interface {
	Sign(message, secret, family string) string
}

// DigestSigner is a placeholder Signer: a deterministic HMAC-SHA256
// digest over (message, secret), hex encoded.
//
// This is NOT a signature scheme: there is no public verification key
// and no asymmetry. It exists so the orchestrator's signing hook has a
// deterministic default; production deployments must replace it.
type DigestSigner struct{}

// Sign returns hex(HMAC-SHA256(secret, family || message)).
func (DigestSigner) Sign(message, secret, family string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(family))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
