// Package hashing provides the Keccak-256 helpers shared by battle key
// derivation, turn randomness, and action commitments.
package hashing

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Keccak256 hashes the concatenation of parts.
func Keccak256(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hex returns the lowercase hex form of a digest.
func Hex(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// Uint64 returns the big-endian uint64 at the start of a digest.
func Uint64(sum [32]byte) uint64 {
	return binary.BigEndian.Uint64(sum[:8])
}

// PutUint64 encodes v as eight big-endian bytes.
func PutUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
