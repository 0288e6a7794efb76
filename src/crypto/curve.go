package crypto

import (
	"crypto/elliptic"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

/*
Signing in this package is based on elliptic curve cryptography, using the
secp256k1 curve because it is the curve validators are expected to already
hold keys for (the same curve used by Bitcoin and Ethereum).
*/

var (
	secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
)

// Curve returns the secp256k1 elliptic.Curve, using btcsuite's Go
// implementation.
func Curve() elliptic.Curve {
	return btcec.S256()
}
