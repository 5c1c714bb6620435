package ledger

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// ErrChainIntegrity is matched by every *IntegrityError.
var ErrChainIntegrity = errors.New("chain integrity violated")

// IntegrityError reports the first block that fails validation.
type IntegrityError struct {
	Index  uint64
	Reason string
	Err    error // Underlying cause, if any.
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: block %d: %s: %v", ErrChainIntegrity, e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: block %d: %s", ErrChainIntegrity, e.Index, e.Reason)
}

// Is lets errors.Is match ErrChainIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrChainIntegrity
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsChainValid reports whether ValidateChain succeeds.
func (l *Ledger) IsChainValid() bool {
	return l.ValidateChain() == nil
}

// ValidateChain walks the archive from genesis to the tip. Every block must
// carry a hash equal to the recomputation from its fields (with transaction
// ids and merkle root recomputed from content), link to its predecessor and
// meet the difficulty. Nothing is modified.
func (l *Ledger) ValidateChain() error {
	err := l.validateChain()
	l.metrics.ObserveValidation(err)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Chain validation failed")
	}
	return err
}

func (l *Ledger) validateChain() error {
	st := l.State()

	var prev types.Hash
	for i := uint64(0); i <= st.Height; i++ {
		blk, err := l.blocks.GetBlockByHeight(i)
		if err != nil {
			return &IntegrityError{Index: i, Reason: "unreadable block", Err: err}
		}
		if err := l.checkBlock(i, blk, prev); err != nil {
			return err
		}
		prev = blk.Hash
	}
	if prev != st.TipHash {
		return &IntegrityError{Index: st.Height, Reason: "archive tip differs from ledger tip"}
	}
	return nil
}

// checkBlock validates one archived block against its expected index and
// predecessor hash.
func (l *Ledger) checkBlock(index uint64, blk *block.Block, prev types.Hash) error {
	if blk.Header == nil {
		return &IntegrityError{Index: index, Reason: "missing header"}
	}
	if blk.Header.Index != index {
		return &IntegrityError{Index: index, Reason: fmt.Sprintf("header index %d", blk.Header.Index)}
	}

	ids := make([]types.Hash, len(blk.Transactions))
	for j, t := range blk.Transactions {
		if t == nil {
			return &IntegrityError{Index: index, Reason: fmt.Sprintf("transaction %d missing", j)}
		}
		ids[j] = t.ComputeID()
		if ids[j] != t.ID {
			return &IntegrityError{Index: index, Reason: fmt.Sprintf("transaction %d id does not match content", j)}
		}
	}
	if block.ComputeMerkleRoot(ids) != blk.Header.MerkleRoot {
		return &IntegrityError{Index: index, Reason: "merkle root does not match transactions"}
	}
	if blk.Header.ComputeHash() != blk.Hash {
		return &IntegrityError{Index: index, Reason: "stored hash does not match header"}
	}
	if blk.Header.PrevHash != prev {
		return &IntegrityError{Index: index, Reason: "previous hash link broken"}
	}
	if !block.MeetsDifficulty(blk.Hash, l.difficulty) {
		return &IntegrityError{Index: index, Reason: fmt.Sprintf("hash does not meet difficulty %d", l.difficulty)}
	}
	if err := blk.Validate(); err != nil {
		return &IntegrityError{Index: index, Reason: "invalid block structure", Err: err}
	}
	return nil
}
