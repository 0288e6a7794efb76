package node

import (
	"crypto/ecdsa"

	"github.com/onevoteledger/svnode/src/crypto"
)

// Validator wraps the private key a node signs envelopes and transactions
// with, caching the derived public-key hex the same way babble's
// node.Validator caches its ID and PublicKeyHex: computed once, off the
// hot path of every signed message.
type Validator struct {
	key    *ecdsa.PrivateKey
	pubHex string
}

// NewValidator wraps key, whose corresponding public key names this node
// throughout the protocol (as a "from"/"to"/"key" field). Key management
// happens entirely outside the node: key is supplied by the launcher, never
// generated or persisted here.
func NewValidator(key *ecdsa.PrivateKey) *Validator {
	return &Validator{key: key, pubHex: crypto.PublicKeyHex(&key.PublicKey)}
}

// PublicKeyHex is this node's own identity on the wire.
func (v *Validator) PublicKeyHex() string {
	return v.pubHex
}

// Sign signs data and returns the hex-encoded signature, the function
// passed through to tx.Transaction.Sign and gossip.Envelope.Sign.
func (v *Validator) Sign(data []byte) (string, error) {
	return crypto.Sign(v.key, data)
}
