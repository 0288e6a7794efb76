// Package tx implements the canonical transaction format: serialization,
// hashing, and signature verification.
package tx

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/onevoteledger/svnode/src/crypto"
)

// Special values for From/To that are not public keys and receive dedicated
// handling in the account-state transition (src/state) and the vote state
// machine (src/consensus).
const (
	// Genesis marks a transaction as part of the bootstrap window; it is the
	// only valid value of From for a genesis-window credit, and the only
	// value of Body that triggers the genesis bypass.
	Genesis = "GENESIS"
	// Stake is the literal destination that converts a transfer into a
	// stake deposit on the sender's own account.
	Stake = "stake"
)

// Transaction is the unit the protocol reaches consensus on.
type Transaction struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Body      string `json:"body"`
	Signature string `json:"signature"`
}

// canonicalBytes produces the stable, field-ordered byte string every node
// must agree on byte-for-byte: from, to, amount, nonce, timestamp, body, and
// (optionally) signature. This is deliberately not json.Marshal: field order
// in a hand-built byte string can never be disturbed by a struct-tag or
// encoding/json behavior change.
func (t *Transaction) canonicalBytes(includeSignature bool) []byte {
	var b strings.Builder

	b.WriteString(t.From)
	b.WriteByte('|')
	b.WriteString(t.To)
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(t.Amount, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(t.Nonce, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(t.Timestamp, 10))
	b.WriteByte('|')
	b.WriteString(t.Body)

	if includeSignature {
		b.WriteByte('|')
		b.WriteString(t.Signature)
	}

	return []byte(b.String())
}

// Hash returns the SHA-256 hash of the canonical serialization, with or
// without the signature field. The unsigned hash (includeSignature=false) is
// what identifies a transaction for vote-matching throughout C7.
func (t *Transaction) Hash(includeSignature bool) []byte {
	return crypto.SHA256(t.canonicalBytes(includeSignature))
}

// HashHex is the hex-encoded form of Hash, the form carried in Merkle leaves
// and consensus comparisons.
func (t *Transaction) HashHex(includeSignature bool) string {
	return crypto.SHA256Hex(t.canonicalBytes(includeSignature))
}

// Sign signs the unsigned canonical serialization and sets Signature.
func (t *Transaction) Sign(sign func(data []byte) (string, error)) error {
	sig, err := sign(t.canonicalBytes(false))
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	t.Signature = sig
	return nil
}

// Verify reports whether Signature is a valid secp256k1 signature over the
// unsigned canonical serialization, under the public key named by From.
// GENESIS and "stake" are never valid public keys, so Verify on a GENESIS
// transaction always returns false; the genesis bypass in src/state is the
// only place that is expected and accepted.
func (t *Transaction) Verify() bool {
	if t.From == Genesis || t.From == Stake || t.From == "" {
		return false
	}

	pub, err := crypto.ParsePublicKeyHex(t.From)
	if err != nil {
		return false
	}

	return crypto.Verify(pub, t.canonicalBytes(false), t.Signature)
}

// Serialize renders the transaction as the JSON string carried in gossip
// envelope payloads.
func Serialize(t *Transaction) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("serializing transaction: %w", err)
	}
	return string(b), nil
}

// Deserialize parses the JSON form produced by Serialize.
func Deserialize(s string) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("deserializing transaction: %w", err)
	}
	return &t, nil
}
