// Package consensus defines consensus engine interfaces.
package consensus

import (
	"context"

	"github.com/Klingon-tech/utxoledger/pkg/block"
)

// Engine is the interface for consensus implementations.
type Engine interface {
	VerifyHeader(header *block.Header) error
	Seal(blk *block.Block) error
	SealWithCancel(ctx context.Context, blk *block.Block) error
}
