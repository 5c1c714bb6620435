package ledger

import (
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// State holds the current chain tip state.
type State struct {
	Height       uint64
	TipHash      types.Hash
	TipTimestamp int64
	Supply       uint64 // Total coins minted by coinbases.
}

// advance returns the state after appending blk.
func (s State) advance(blk *block.Block) State {
	next := State{
		Height:       blk.Header.Index,
		TipHash:      blk.Hash,
		TipTimestamp: blk.Header.Timestamp,
		Supply:       s.Supply,
	}
	if cb := blk.Coinbase(); cb != nil {
		if minted, err := cb.TotalOutputValue(); err == nil {
			next.Supply += minted
		}
	}
	return next
}
