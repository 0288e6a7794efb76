package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	h := sha256.New()
	h.Write(data)
	return h.Sum(nil)
}

// SHA256Hex returns the hex-encoded SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}

// HashTwo returns the SHA-256 hash of the concatenation of two hex-encoded
// hashes, used by the Merkle tree (src/merkle) to promote a pair of leaves
// or nodes. The tree's source of truth is string-concatenated hex, not raw
// bytes, and every node must reproduce that exactly for roots to match.
func HashTwo(leftHex, rightHex string) string {
	h := sha256.New()
	h.Write([]byte(leftHex))
	h.Write([]byte(rightHex))
	return hex.EncodeToString(h.Sum(nil))
}
