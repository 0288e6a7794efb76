package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

// number of bits/bytes in a big.Word, used to pad D to a fixed-width dump.
const (
	wordBits  = 32 << (uint64(^big.Word(0)) >> 63)
	wordBytes = wordBits / 8
)

// GenerateKey creates a new secp256k1 private key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(Curve(), rand.Reader)
}

// ParsePrivateKeyHex parses the hex dump of a private key's D value, as
// supplied externally by whatever holds the validator's key material. Key
// generation and storage are outside the node's responsibility.
func ParsePrivateKeyHex(hexKey string) (*ecdsa.PrivateKey, error) {
	d, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding private key hex: %w", err)
	}

	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = Curve()
	priv.D = new(big.Int).SetBytes(d)

	if priv.D.Sign() <= 0 {
		return nil, errors.New("invalid private key: zero or negative")
	}
	if priv.D.Cmp(secp256k1N) >= 0 {
		return nil, errors.New("invalid private key: >= curve order")
	}

	priv.PublicKey.X, priv.PublicKey.Y = priv.PublicKey.Curve.ScalarBaseMult(d)
	if priv.PublicKey.X == nil {
		return nil, errors.New("invalid private key")
	}

	return priv, nil
}

// PublicKeyHex returns the hexadecimal representation of the uncompressed
// public key, the form used throughout the protocol for "from"/"to"/"key"
// fields.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(MarshalPublicKey(pub))
}

// MarshalPublicKey returns the uncompressed point encoding of pub.
func MarshalPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return elliptic.Marshal(Curve(), pub.X, pub.Y)
}

// ParsePublicKeyHex parses the hex form produced by PublicKeyHex back into an
// *ecdsa.PublicKey.
func ParsePublicKeyHex(hexKey string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding public key hex: %w", err)
	}

	x, y := elliptic.Unmarshal(Curve(), raw)
	if x == nil {
		return nil, errors.New("invalid public key encoding")
	}

	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}, nil
}

// dumpPrivateKey pads D to the curve's byte width, mirroring how it was
// generated.
func dumpPrivateKey(priv *ecdsa.PrivateKey) []byte {
	n := priv.Params().BitSize / 8
	if priv.D.BitLen()/8 >= n {
		return priv.D.Bytes()
	}
	buf := make([]byte, n)
	d := priv.D.Bits()
	i := len(buf)
	for _, w := range d {
		for j := 0; j < wordBytes && i > 0; j++ {
			i--
			buf[i] = byte(w)
			w >>= 8
		}
	}
	return buf
}

// PrivateKeyHex returns the hexadecimal dump of a private key's D value.
func PrivateKeyHex(priv *ecdsa.PrivateKey) string {
	return hex.EncodeToString(dumpPrivateKey(priv))
}
