// Package miner implements block production for the ledger.
package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/internal/consensus"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// ChainState provides read-only access to the current chain tip.
type ChainState interface {
	Height() uint64
	TipHash() types.Hash
	TipTimestamp() int64
}

// Miner produces new blocks.
type Miner struct {
	chain        ChainState
	engine       consensus.Engine
	coinbaseAddr types.Address
	blockReward  uint64
	maxBlockTxs  int
	now          func() time.Time
}

// New creates a new block producer paying blockReward to coinbaseAddr.
func New(chain ChainState, engine consensus.Engine, coinbaseAddr types.Address, blockReward uint64) *Miner {
	return &Miner{
		chain:        chain,
		engine:       engine,
		coinbaseAddr: coinbaseAddr,
		blockReward:  blockReward,
		maxBlockTxs:  config.MaxBlockTxs,
		now:          time.Now,
	}
}

// SetClock replaces the time source used for block timestamps.
func (m *Miner) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// ProduceBlock builds, seals, and returns a block holding a fresh coinbase
// followed by txs, on top of the current tip.
// The block is NOT applied to the chain; the caller appends it.
func (m *Miner) ProduceBlock(ctx context.Context, txs []*tx.Transaction) (*block.Block, error) {
	return m.ProduceBlockAt(ctx, txs, m.now().Unix())
}

// ProduceBlockAt is ProduceBlock with an explicit timestamp. The timestamp
// is raised to the parent's when it would go backwards.
func (m *Miner) ProduceBlockAt(ctx context.Context, txs []*tx.Transaction, timestamp int64) (*block.Block, error) {
	if len(txs)+1 > m.maxBlockTxs {
		return nil, fmt.Errorf("%w: %d transactions", block.ErrTooManyTxs, len(txs)+1)
	}
	if parentTS := m.chain.TipTimestamp(); timestamp < parentTS {
		timestamp = parentTS
	}

	height := m.chain.Height() + 1
	coinbase := BuildCoinbase(m.coinbaseAddr, m.blockReward, height, timestamp)

	all := make([]*tx.Transaction, 0, 1+len(txs))
	all = append(all, coinbase)
	all = append(all, txs...)

	blk := block.BuildAt(height, m.chain.TipHash(), all, timestamp)
	if err := blk.Validate(); err != nil {
		return nil, fmt.Errorf("build block: %w", err)
	}

	if err := m.engine.SealWithCancel(ctx, blk); err != nil {
		return nil, fmt.Errorf("seal block: %w", err)
	}
	return blk, nil
}

// BuildCoinbase creates a coinbase transaction with the given reward.
// The block height is part of the memo so each coinbase has a unique id.
// An address too long for the memo limit is shortened in the memo only;
// the output still pays the full address.
func BuildCoinbase(addr types.Address, reward, height uint64, timestamp int64) *tx.Transaction {
	memo := fmt.Sprintf("Reward to %s (block %d)", addr, height)
	if len(memo) > config.MaxMemoSize {
		memo = fmt.Sprintf("Reward to %s... (block %d)", addr.Short(), height)
	}
	return tx.NewCoinbaseAt(addr, memo, reward, timestamp)
}
