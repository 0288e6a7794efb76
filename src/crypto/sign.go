package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Sign signs data's SHA-256 digest with priv and returns the signature as a
// hex-encoded ASN.1 DER blob, the "derHex" form carried on the wire in both
// gossip envelopes and transaction signatures.
func Sign(priv *ecdsa.PrivateKey, data []byte) (string, error) {
	digest := SHA256(data)

	der, err := ecdsa.SignASN1(rand.Reader, priv, digest)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}

	return hex.EncodeToString(der), nil
}

// Verify reports whether sigHex is a valid DER-encoded secp256k1 signature of
// data's SHA-256 digest under pub.
func Verify(pub *ecdsa.PublicKey, data []byte, sigHex string) bool {
	if pub == nil || sigHex == "" {
		return false
	}

	der, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	return ecdsa.VerifyASN1(pub, SHA256(data), der)
}
