// Package gossip implements the signed flood-fill message layer peers use to
// exchange transactions, votes, and chain-sync traffic: envelope signing,
// deduplication, validator-set maintenance, and the websocket mesh itself.
package gossip

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/onevoteledger/svnode/src/crypto"
)

// Type names carried on an Envelope's "type" field.
const (
	TypeHelloValidator = "HELLO_VALIDATOR"
	TypeValidator       = "VALIDATOR"
	TypeValidators      = "VALIDATORS"
	TypeNewTransaction  = "NEW_TRANSACTION"
	TypeTransaction     = "TRANSACTION"
	TypeGetChain        = "GET_CHAIN"
	TypeChain           = "CHAIN"
)

// Envelope is the single message shape every peer connection speaks. Every
// envelope is signed by its sender regardless of type, which is what lets a
// receiving socket bind the connection's identity to Key the first time any
// envelope arrives on it.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	For       string          `json:"for,omitempty"`
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Signature string          `json:"sign"`
}

// signingFields is the subset of Envelope that gets signed. Its field order
// is fixed by struct definition, so json.Marshal always produces the same
// bytes for the same content, and the Sign field is never part of what it
// signs over.
type signingFields struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	For  string          `json:"for,omitempty"`
	ID   string          `json:"id"`
	Key  string          `json:"key"`
}

func signingBytes(e *Envelope) ([]byte, error) {
	b, err := json.Marshal(signingFields{Type: e.Type, Data: e.Data, For: e.For, ID: e.ID, Key: e.Key})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope for signing: %w", err)
	}
	return b, nil
}

// New builds an unsigned envelope with a fresh id, payload marshaled into
// Data. Call Sign before sending it.
func New(typ string, payload interface{}, forKey string) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", typ, err)
		}
		raw = b
	}
	return &Envelope{
		Type: typ,
		Data: raw,
		For:  forKey,
		ID:   uuid.NewString(),
	}, nil
}

// Sign computes the envelope's signature over its signing fields and sets
// Key and Signature accordingly.
func (e *Envelope) Sign(keyHex string, sign func([]byte) (string, error)) error {
	e.Key = keyHex
	b, err := signingBytes(e)
	if err != nil {
		return err
	}
	sig, err := sign(b)
	if err != nil {
		return fmt.Errorf("signing envelope: %w", err)
	}
	e.Signature = sig
	return nil
}

// Verify reports whether Signature is a valid signature over the envelope's
// signing fields under the public key named by Key.
func (e *Envelope) Verify() bool {
	if e.Key == "" || e.Signature == "" {
		return false
	}
	pub, err := crypto.ParsePublicKeyHex(e.Key)
	if err != nil {
		return false
	}
	b, err := signingBytes(e)
	if err != nil {
		return false
	}
	return crypto.Verify(pub, b, e.Signature)
}

// Decode parses a raw websocket frame into an Envelope.
func Decode(raw []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return &e, nil
}

// Encode serializes an Envelope back into a websocket frame.
func Encode(e *Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return b, nil
}
