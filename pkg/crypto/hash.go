// Package crypto provides the hashing and signing primitives of the ledger.
package crypto

import (
	"encoding/hex"

	"github.com/Klingon-tech/utxoledger/pkg/types"
	"github.com/minio/sha256-simd"
)

// Hash computes the SHA-256 digest of data.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// HashString hashes the UTF-8 bytes of s.
func HashString(s string) types.Hash {
	return Hash([]byte(s))
}

// ShortHash returns the hex form of the first 8 bytes of Hash(data).
func ShortHash(data []byte) string {
	h := Hash(data)
	return hex.EncodeToString(h[:8])
}

// AddressFromPubKey derives an address from a public key.
// Address = hex(SHA-256(pubkey)[:20]).
func AddressFromPubKey(pubKey []byte) types.Address {
	h := Hash(pubKey)
	return types.Address(hex.EncodeToString(h[:types.AddressSize]))
}

// HashConcat hashes the concatenated hex text of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [4 * types.HashSize]byte
	hex.Encode(buf[:2*types.HashSize], a[:])
	hex.Encode(buf[2*types.HashSize:], b[:])
	return Hash(buf[:])
}
