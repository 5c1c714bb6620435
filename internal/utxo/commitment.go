package utxo

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Commitment computes a merkle root over all UTXOs in the set.
// Leaves are BLAKE3 hashes taken in iteration order, so two sets with
// the same contents always commit to the same root. Returns a zero hash
// for an empty set.
func Commitment(s *Set) types.Hash {
	var hashes []types.Hash
	s.ForEach(func(u UTXO) error {
		hashes = append(hashes, hashUTXO(u))
		return nil
	})
	if len(hashes) == 0 {
		return types.Hash{}
	}
	return block.ComputeMerkleRoot(hashes)
}

// hashUTXO produces a deterministic BLAKE3 hash of a UTXO.
// Format: txid(32) | index(4) | value(8) | height(8) | coinbase(1) | owner
func hashUTXO(u UTXO) types.Hash {
	var buf []byte
	buf = append(buf, u.Outpoint.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, u.Outpoint.Index)
	buf = binary.LittleEndian.AppendUint64(buf, u.Value)
	buf = binary.LittleEndian.AppendUint64(buf, u.Height)
	if u.Coinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, u.Owner...)
	return types.Hash(blake3.Sum256(buf))
}
