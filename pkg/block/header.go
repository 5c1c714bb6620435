package block

import (
	"strconv"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// GenesisPrevHash is how a zero previous hash is rendered into the preimage.
const GenesisPrevHash = "0"

// Header contains block metadata.
type Header struct {
	Index      uint64     `json:"index"`
	PrevHash   types.Hash `json:"prev_hash"`
	Timestamp  int64      `json:"timestamp"`
	Nonce      uint64     `json:"nonce"`
	MerkleRoot types.Hash `json:"merkle_root"`
}

// ComputeHash computes the block hash from the header fields.
func (h *Header) ComputeHash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the textual preimage of the block hash:
// decimal index | prev hash hex ("0" when zero) | decimal timestamp | decimal nonce | merkle root hex.
func (h *Header) SigningBytes() []byte {
	prefix, suffix := h.SealParts()
	buf := make([]byte, 0, len(prefix)+20+len(suffix))
	buf = append(buf, prefix...)
	buf = strconv.AppendUint(buf, h.Nonce, 10)
	return append(buf, suffix...)
}

// SealParts splits the preimage around the nonce so a miner can reuse
// the fixed parts across attempts.
func (h *Header) SealParts() (prefix, suffix []byte) {
	prefix = strconv.AppendUint(nil, h.Index, 10)
	if h.PrevHash.IsZero() {
		prefix = append(prefix, GenesisPrevHash...)
	} else {
		prefix = append(prefix, h.PrevHash.String()...)
	}
	prefix = strconv.AppendInt(prefix, h.Timestamp, 10)
	return prefix, []byte(h.MerkleRoot.String())
}

// MeetsDifficulty reports whether the hex form of hash starts with at
// least difficulty '0' characters.
func MeetsDifficulty(hash types.Hash, difficulty int) bool {
	return hash.LeadingZeroNibbles() >= difficulty
}
