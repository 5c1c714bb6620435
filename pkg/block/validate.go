package block

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Validation errors.
var (
	ErrNilHeader           = errors.New("block has nil header")
	ErrNoTransactions      = errors.New("block has no transactions")
	ErrBadMerkleRoot       = errors.New("merkle root mismatch")
	ErrBadHash             = errors.New("block hash mismatch")
	ErrNoCoinbase          = errors.New("first transaction must be coinbase")
	ErrTooManyTxs          = errors.New("too many transactions in block")
	ErrBlockTooLarge       = errors.New("block too large")
	ErrDuplicateBlockInput = errors.New("duplicate input across transactions in block")
	ErrMultipleCoinbase    = errors.New("multiple coinbase transactions in block")
	ErrNilTransaction      = errors.New("block contains nil transaction")
)

// Validate checks block structure and internal consistency: every stored
// id and root is recomputed from content. It does NOT check proof of work
// or output existence.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if len(b.Transactions) > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), config.MaxBlockTxs)
	}

	blockSize := len(b.Header.SigningBytes())
	for i, t := range b.Transactions {
		if t == nil {
			return fmt.Errorf("tx %d: %w", i, ErrNilTransaction)
		}
		blockSize += len(t.IDBytes())
	}
	if blockSize > config.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, blockSize, config.MaxBlockSize)
	}

	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
		if err := t.VerifyID(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	expectedRoot := ComputeMerkleRoot(TxIDs(b.Transactions))
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	// Per-tx duplicates are caught by tx.Validate above.
	allInputs := make(map[types.Outpoint]int) // outpoint -> tx index
	for i, t := range b.Transactions[1:] {
		for _, in := range t.Inputs {
			if prevTx, exists := allInputs[in.PrevOut]; exists {
				return fmt.Errorf("tx %d: %w: outpoint %s also spent in tx %d",
					i+1, ErrDuplicateBlockInput, in.PrevOut, prevTx)
			}
			allInputs[in.PrevOut] = i + 1
		}
	}

	return nil
}

// VerifyHash checks that the stored hash matches the header fields.
func (b *Block) VerifyHash() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if got := b.Header.ComputeHash(); got != b.Hash {
		return fmt.Errorf("%w: stored %s, computed %s", ErrBadHash, b.Hash, got)
	}
	return nil
}
