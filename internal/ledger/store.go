package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/utxoledger/internal/storage"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Key prefixes and state keys for the block store.
var (
	prefixBlock  = []byte("b/") // b/<hash(32)> -> block JSON
	prefixHeight = []byte("h/") // h/<height(8)> -> hash(32)
	prefixTx     = []byte("x/") // x/<txid(32)> -> height(8) + blockHash(32)
	keyTipHash   = []byte("s/tip")
	keyHeight    = []byte("s/height")
)

// BlockStore persists blocks and chain metadata to a storage.DB.
// It is append-only: blocks are written once and never rewritten.
type BlockStore struct {
	db storage.DB
}

// NewBlockStore creates a block store backed by the given database.
func NewBlockStore(db storage.DB) *BlockStore {
	return &BlockStore{db: db}
}

// PutBlock stores a block, indexes it by height and transaction id, and
// moves the tip to it. All writes land in one batch.
func (bs *BlockStore) PutBlock(blk *block.Block) error {
	data, err := json.Marshal(blk)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}

	hash := blk.Hash
	height := blk.Header.Index
	b := storage.NewBatch(bs.db)

	if err := b.Put(blockKey(hash), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	if err := b.Put(heightKey(height), hash[:]); err != nil {
		return fmt.Errorf("height index put: %w", err)
	}

	// Index each transaction by id → (height, blockHash).
	for _, t := range blk.Transactions {
		val := make([]byte, 8+types.HashSize)
		binary.BigEndian.PutUint64(val[:8], height)
		copy(val[8:], hash[:])
		if err := b.Put(txKey(t.ID), val); err != nil {
			return fmt.Errorf("tx index put %s: %w", t.ID, err)
		}
	}

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], height)
	if err := b.Put(keyTipHash, hash[:]); err != nil {
		return fmt.Errorf("set tip hash: %w", err)
	}
	if err := b.Put(keyHeight, heightBuf[:]); err != nil {
		return fmt.Errorf("set tip height: %w", err)
	}

	if err := b.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", height, err)
	}
	return nil
}

// GetBlock retrieves a block by its hash.
func (bs *BlockStore) GetBlock(hash types.Hash) (*block.Block, error) {
	data, err := bs.db.Get(blockKey(hash))
	if err != nil {
		return nil, fmt.Errorf("block get: %w", err)
	}
	var blk block.Block
	if err := json.Unmarshal(data, &blk); err != nil {
		return nil, fmt.Errorf("block unmarshal: %w", err)
	}
	return &blk, nil
}

// GetBlockByHeight retrieves a block by its height.
func (bs *BlockStore) GetBlockByHeight(height uint64) (*block.Block, error) {
	hashBytes, err := bs.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("height index get: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return nil, fmt.Errorf("corrupt height index: got %d bytes, want %d", len(hashBytes), types.HashSize)
	}
	var hash types.Hash
	copy(hash[:], hashBytes)
	return bs.GetBlock(hash)
}

// HasBlock checks if a block exists by hash.
func (bs *BlockStore) HasBlock(hash types.Hash) (bool, error) {
	return bs.db.Has(blockKey(hash))
}

// GetTip returns the current tip hash and height.
// found is false on a fresh store.
func (bs *BlockStore) GetTip() (hash types.Hash, height uint64, found bool, err error) {
	hashBytes, err := bs.db.Get(keyTipHash)
	if errors.Is(err, storage.ErrNotFound) {
		return types.Hash{}, 0, false, nil
	}
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("tip hash get: %w", err)
	}
	if len(hashBytes) != types.HashSize {
		return types.Hash{}, 0, false, fmt.Errorf("corrupt tip hash: got %d bytes", len(hashBytes))
	}

	heightBytes, err := bs.db.Get(keyHeight)
	if err != nil {
		return types.Hash{}, 0, false, fmt.Errorf("tip height missing: %w", err)
	}
	if len(heightBytes) != 8 {
		return types.Hash{}, 0, false, fmt.Errorf("corrupt tip height: got %d bytes", len(heightBytes))
	}

	copy(hash[:], hashBytes)
	return hash, binary.BigEndian.Uint64(heightBytes), true, nil
}

// GetTxLocation returns the block height and hash that contain the given transaction.
func (bs *BlockStore) GetTxLocation(txID types.Hash) (uint64, types.Hash, error) {
	data, err := bs.db.Get(txKey(txID))
	if err != nil {
		return 0, types.Hash{}, fmt.Errorf("tx index get: %w", err)
	}
	if len(data) != 8+types.HashSize {
		return 0, types.Hash{}, fmt.Errorf("corrupt tx index: got %d bytes, want %d", len(data), 8+types.HashSize)
	}
	height := binary.BigEndian.Uint64(data[:8])
	var blockHash types.Hash
	copy(blockHash[:], data[8:])
	return height, blockHash, nil
}

func blockKey(hash types.Hash) []byte {
	key := make([]byte, len(prefixBlock)+types.HashSize)
	copy(key, prefixBlock)
	copy(key[len(prefixBlock):], hash[:])
	return key
}

func heightKey(height uint64) []byte {
	key := make([]byte, len(prefixHeight)+8)
	copy(key, prefixHeight)
	binary.BigEndian.PutUint64(key[len(prefixHeight):], height)
	return key
}

func txKey(id types.Hash) []byte {
	key := make([]byte, len(prefixTx)+types.HashSize)
	copy(key, prefixTx)
	copy(key[len(prefixTx):], id[:])
	return key
}
