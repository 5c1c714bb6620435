// Package ledger implements the append-only chain of mined blocks and the
// UTXO set derived from it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/internal/consensus"
	"github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/internal/metrics"
	"github.com/Klingon-tech/utxoledger/internal/miner"
	"github.com/Klingon-tech/utxoledger/internal/storage"
	"github.com/Klingon-tech/utxoledger/internal/utxo"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Ledger errors.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrUnexpectedCoinbase = errors.New("coinbase transactions are created by the ledger")
	ErrDoubleSpend        = errors.New("output spent twice in block")
	ErrMiningCancelled    = errors.New("mining cancelled")
	ErrStoreNotEmpty      = errors.New("storage already holds data")
	ErrNoGenesisAddress   = errors.New("genesis address is empty")
	ErrNoMinerAddress     = errors.New("miner address is empty")
	ErrBlockNotFound      = errors.New("block not found")
	ErrTxNotFound         = errors.New("transaction not found")
	ErrUTXOMismatch       = errors.New("utxo set differs from chain replay")
)

// Config configures a new Ledger.
type Config struct {
	Name           string        // Chain name used in logs and metrics.
	Difficulty     int           // Leading '0' hex digits required of every block hash.
	GenesisAddress types.Address // Receives the genesis coinbase.
	Reward         uint64        // Coinbase amount; 0 means config.DefaultBlockReward.
	DB             storage.DB    // Block archive; nil means a fresh MemoryDB. Must be empty.
	Threads        int           // Mining goroutines.
	Metrics        *metrics.Ledger
	Now            func() time.Time
}

// Ledger is a single-writer chain of proof-of-work blocks. AddBlock calls
// are serialized; readers never block on mining.
type Ledger struct {
	writeMu sync.Mutex // Serializes AddBlock.

	mu     sync.RWMutex // Protects state, tip and utxos.
	state  State
	tip    *block.Block
	utxos  *utxo.Set // Replaced wholesale, never mutated in place.
	blocks *BlockStore

	name       string
	engine     *consensus.PoW
	difficulty int
	reward     uint64
	metrics    *metrics.Ledger
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a ledger and mines its genesis block.
func New(cfg Config) (*Ledger, error) {
	if cfg.GenesisAddress.IsZero() {
		return nil, ErrNoGenesisAddress
	}
	engine, err := consensus.NewPoW(cfg.Difficulty)
	if err != nil {
		return nil, err
	}
	engine.Threads = cfg.Threads

	db := cfg.DB
	if db == nil {
		db = storage.NewMemory()
	}
	empty, err := storage.IsEmpty(db)
	if err != nil {
		return nil, fmt.Errorf("check storage: %w", err)
	}
	if !empty {
		return nil, ErrStoreNotEmpty
	}

	reward := cfg.Reward
	if reward == 0 {
		reward = config.DefaultBlockReward
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewLedger(cfg.Name)
	}

	l := &Ledger{
		utxos:      utxo.NewSet(),
		blocks:     NewBlockStore(db),
		name:       cfg.Name,
		engine:     engine,
		difficulty: cfg.Difficulty,
		reward:     reward,
		metrics:    m,
		now:        now,
		logger:     log.Ledger.With().Str("chain", cfg.Name).Logger(),
	}

	genesis := CreateGenesisBlock(cfg.GenesisAddress, reward, now().Unix())
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("build genesis: %w", err)
	}
	if err := engine.Seal(genesis); err != nil {
		return nil, fmt.Errorf("mine genesis: %w", err)
	}
	if err := l.utxos.ApplyBlock(genesis); err != nil {
		return nil, fmt.Errorf("apply genesis: %w", err)
	}
	if err := l.blocks.PutBlock(genesis); err != nil {
		return nil, fmt.Errorf("store genesis: %w", err)
	}
	l.state = State{}.advance(genesis)
	l.tip = genesis

	l.metrics.SetTip(0, l.utxos.Len())
	l.logger.Info().
		Str("hash", genesis.Hash.String()).
		Int("difficulty", cfg.Difficulty).
		Str("to", string(cfg.GenesisAddress)).
		Msg("Genesis block mined")

	return l, nil
}

// AddBlock verifies txs against the current UTXO set, prepends a coinbase
// paying the block reward to minerAddr, mines the block and appends it.
//
// Any invalid transaction rejects the whole call with an error matching
// ErrInvalidTransaction; chain and UTXO set are then unchanged. A cancelled
// ctx discards the block and returns an error matching ErrMiningCancelled.
func (l *Ledger) AddBlock(ctx context.Context, txs []*tx.Transaction, minerAddr types.Address) (*block.Block, error) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	started := time.Now()
	blk, err := l.addBlock(ctx, txs, minerAddr)
	l.metrics.ObserveAddBlock(err, len(txs)+1, started)
	return blk, err
}

func (l *Ledger) addBlock(ctx context.Context, txs []*tx.Transaction, minerAddr types.Address) (*block.Block, error) {
	if minerAddr.IsZero() {
		return nil, ErrNoMinerAddress
	}

	l.mu.RLock()
	current := l.utxos
	l.mu.RUnlock()

	if err := verifyTransactions(txs, current); err != nil {
		l.logger.Warn().Err(err).Int("txs", len(txs)).Msg("Block rejected")
		return nil, err
	}

	m := miner.New(l, l.engine, minerAddr, l.reward)
	m.SetClock(l.now)
	blk, err := m.ProduceBlock(ctx, txs)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			l.logger.Info().Uint64("index", l.Height()+1).Msg("Mining cancelled")
			return nil, fmt.Errorf("%w: %w", ErrMiningCancelled, err)
		}
		return nil, fmt.Errorf("produce block: %w", err)
	}

	next := current.Clone()
	if err := next.ApplyBlock(blk); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	l.mu.Lock()
	if err := l.blocks.PutBlock(blk); err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("store block: %w", err)
	}
	l.state = l.state.advance(blk)
	l.tip = blk
	l.utxos = next
	l.mu.Unlock()

	l.metrics.ObserveSeal(blk.Header.Nonce)
	l.metrics.SetTip(blk.Header.Index, next.Len())
	l.logger.Info().
		Uint64("index", blk.Header.Index).
		Str("hash", blk.Hash.String()).
		Uint64("nonce", blk.Header.Nonce).
		Int("txs", len(blk.Transactions)).
		Str("miner", string(minerAddr)).
		Msg("Block mined")

	return blk, nil
}

// verifyTransactions checks every caller transaction against utxos and
// rejects outputs spent twice within the batch.
func verifyTransactions(txs []*tx.Transaction, utxos *utxo.Set) error {
	spent := make(map[types.Outpoint]int)
	for i, t := range txs {
		if t == nil {
			return fmt.Errorf("%w: tx %d is nil", ErrInvalidTransaction, i)
		}
		if t.IsCoinbase() {
			return fmt.Errorf("%w: tx %d: %w", ErrInvalidTransaction, i, ErrUnexpectedCoinbase)
		}
		if err := t.VerifyID(); err != nil {
			return fmt.Errorf("%w: tx %d: %w", ErrInvalidTransaction, i, err)
		}
		if err := t.Verify(utxos); err != nil {
			return fmt.Errorf("%w: tx %d (%s): %w", ErrInvalidTransaction, i, t.ID.Short(), err)
		}
		for _, in := range t.Inputs {
			if prev, dup := spent[in.PrevOut]; dup {
				return fmt.Errorf("%w: tx %d: %w: %s already spent by tx %d",
					ErrInvalidTransaction, i, ErrDoubleSpend, in.PrevOut, prev)
			}
			spent[in.PrevOut] = i
		}
	}
	return nil
}

// Balance returns the total unspent value owned by addr.
func (l *Ledger) Balance(addr types.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.Balance(addr)
}

// State returns a copy of the current chain state.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Height returns the index of the chain tip.
func (l *Ledger) Height() uint64 {
	return l.State().Height
}

// TipHash returns the hash of the chain tip.
func (l *Ledger) TipHash() types.Hash {
	return l.State().TipHash
}

// TipTimestamp returns the timestamp of the chain tip.
func (l *Ledger) TipTimestamp() int64 {
	return l.State().TipTimestamp
}

// Supply returns the total value minted so far.
func (l *Ledger) Supply() uint64 {
	return l.State().Supply
}

// Tip returns the most recent block. Callers must not modify it.
func (l *Ledger) Tip() *block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tip
}

// Difficulty returns the fixed proof-of-work difficulty.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

// Reward returns the coinbase amount of every block.
func (l *Ledger) Reward() uint64 {
	return l.reward
}

// Name returns the chain name the ledger was created with.
func (l *Ledger) Name() string {
	return l.name
}

// BlockByHash returns an archived block by hash.
func (l *Ledger) BlockByHash(hash types.Hash) (*block.Block, error) {
	ok, err := l.blocks.HasBlock(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: hash %s", ErrBlockNotFound, hash)
	}
	return l.blocks.GetBlock(hash)
}

// Block returns the block at index from the archive.
func (l *Ledger) Block(index uint64) (*block.Block, error) {
	if index > l.Height() {
		return nil, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	blk, err := l.blocks.GetBlockByHeight(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %w", ErrBlockNotFound, index, err)
	}
	return blk, nil
}

// Blocks returns every block from genesis to the tip, read from the archive.
func (l *Ledger) Blocks() ([]*block.Block, error) {
	height := l.Height()
	out := make([]*block.Block, 0, height+1)
	for i := uint64(0); i <= height; i++ {
		blk, err := l.Block(i)
		if err != nil {
			return nil, err
		}
		out = append(out, blk)
	}
	return out, nil
}

// FindTransaction looks up a confirmed transaction by id via the tx index
// and returns it with the index of its block.
func (l *Ledger) FindTransaction(id types.Hash) (*tx.Transaction, uint64, error) {
	height, blockHash, err := l.blocks.GetTxLocation(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: %s", ErrTxNotFound, id)
		}
		return nil, 0, err
	}
	blk, err := l.blocks.GetBlock(blockHash)
	if err != nil {
		return nil, 0, fmt.Errorf("load block for tx: %w", err)
	}
	for _, t := range blk.Transactions {
		if t.ID == id {
			return t, height, nil
		}
	}
	return nil, 0, fmt.Errorf("tx %s not found in block %s (index corrupt)", id, blockHash)
}

// UTXOs returns a copy of the current UTXO set.
func (l *Ledger) UTXOs() *utxo.Set {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.Clone()
}

// GetOutput looks op up in the current UTXO set, so a Ledger can back
// transaction verification directly.
func (l *Ledger) GetOutput(op types.Outpoint) (tx.Output, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.utxos.GetOutput(op)
}

// UTXOCommitment returns the merkle commitment of the current UTXO set.
func (l *Ledger) UTXOCommitment() types.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return utxo.Commitment(l.utxos)
}

// ReplayUTXOs rebuilds the UTXO set from the archived blocks.
func (l *Ledger) ReplayUTXOs() (*utxo.Set, error) {
	blocks, err := l.Blocks()
	if err != nil {
		return nil, err
	}
	return utxo.Replay(blocks)
}

// CheckUTXOs compares the live UTXO set with a replay of the archive.
func (l *Ledger) CheckUTXOs() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	replayed, err := l.ReplayUTXOs()
	if err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !replayed.Equal(l.utxos) {
		return fmt.Errorf("%w: live %d outputs, replayed %d", ErrUTXOMismatch, l.utxos.Len(), replayed.Len())
	}
	return nil
}
