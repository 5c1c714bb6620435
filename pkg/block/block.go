// Package block defines block types, construction and validation.
package block

import (
	"time"

	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Block is a header, the hash sealing it, and an ordered list of
// transactions whose first entry is the coinbase.
type Block struct {
	Header       *Header           `json:"header"`
	Hash         types.Hash        `json:"hash"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
// The hash is computed from the header as given.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Hash:         header.ComputeHash(),
		Transactions: txs,
	}
}

// Build assembles an unmined block at the current time.
func Build(index uint64, prevHash types.Hash, txs []*tx.Transaction) *Block {
	return BuildAt(index, prevHash, txs, time.Now().Unix())
}

// BuildAt assembles an unmined block: merkle root first, then timestamp,
// nonce 0 and the matching hash.
func BuildAt(index uint64, prevHash types.Hash, txs []*tx.Transaction, timestamp int64) *Block {
	header := &Header{
		Index:      index,
		PrevHash:   prevHash,
		MerkleRoot: ComputeMerkleRoot(TxIDs(txs)),
		Timestamp:  timestamp,
		Nonce:      0,
	}
	return NewBlock(header, txs)
}

// TxIDs returns the stored id of each transaction, in order.
func TxIDs(txs []*tx.Transaction) []types.Hash {
	ids := make([]types.Hash, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}

// Coinbase returns the first transaction, or nil for an empty block.
func (b *Block) Coinbase() *tx.Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// Index returns the block height, or 0 if the header is missing.
func (b *Block) Index() uint64 {
	if b.Header == nil {
		return 0
	}
	return b.Header.Index
}
