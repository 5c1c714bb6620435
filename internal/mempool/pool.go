// Package mempool manages pending transactions waiting for block inclusion.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// DefaultMaxSize bounds a pool created with a non-positive size.
const DefaultMaxSize = 5000

// Mempool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in mempool")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrValidation    = errors.New("transaction failed validation")
)

// entry wraps a transaction with its arrival order.
type entry struct {
	tx  *tx.Transaction
	seq uint64
}

// Pool holds unconfirmed transactions. Entries never spend the same output
// twice, so any prefix of SelectForBlock forms a valid block body against
// the provider's current set.
type Pool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*entry         // txID -> entry
	spends  map[types.Outpoint]types.Hash // outpoint -> txID (conflict index)
	nextSeq uint64
	maxSize int
	utxos   tx.UTXOProvider
}

// New creates a new mempool validating against utxos.
func New(utxos tx.UTXOProvider, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		txs:     make(map[types.Hash]*entry),
		spends:  make(map[types.Outpoint]types.Hash),
		maxSize: maxSize,
		utxos:   utxos,
	}
}

// Add validates and adds a transaction to the mempool.
// Rejects coinbases, duplicates and double-spend conflicts.
func (p *Pool) Add(transaction *tx.Transaction) error {
	if transaction == nil {
		return fmt.Errorf("%w: nil transaction", ErrValidation)
	}
	if transaction.IsCoinbase() {
		return fmt.Errorf("%w: coinbase", ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := transaction.ID
	if _, exists := p.txs[id]; exists {
		return ErrAlreadyExists
	}

	for _, in := range transaction.Inputs {
		if conflict, exists := p.spends[in.PrevOut]; exists {
			return fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.PrevOut, conflict.Short())
		}
	}

	if err := transaction.VerifyID(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := transaction.Verify(p.utxos); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if len(p.txs) >= p.maxSize {
		return ErrPoolFull
	}

	p.txs[id] = &entry{tx: transaction, seq: p.nextSeq}
	p.nextSeq++
	for _, in := range transaction.Inputs {
		p.spends[in.PrevOut] = id
	}
	return nil
}

// Remove removes a transaction from the mempool by id.
func (p *Pool) Remove(id types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(id)
}

func (p *Pool) removeLocked(id types.Hash) {
	e, exists := p.txs[id]
	if !exists {
		return
	}
	for _, in := range e.tx.Inputs {
		delete(p.spends, in.PrevOut)
	}
	delete(p.txs, id)
}

// RemoveConfirmed removes all transactions that were included in a block.
func (p *Pool) RemoveConfirmed(transactions []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range transactions {
		p.removeLocked(t.ID)
	}
}

// Revalidate drops entries that no longer verify against the provider,
// typically because a block spent one of their inputs. It returns the
// number of entries dropped.
func (p *Pool) Revalidate() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := 0
	for id, e := range p.txs {
		if err := e.tx.Verify(p.utxos); err != nil {
			p.removeLocked(id)
			dropped++
		}
	}
	return dropped
}

// Has checks if a transaction exists in the mempool.
func (p *Pool) Has(id types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[id]
	return exists
}

// Get retrieves a transaction from the mempool.
func (p *Pool) Get(id types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[id]
	if !exists {
		return nil
	}
	return e.tx
}

// Count returns the number of transactions in the mempool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

// Hashes returns the ids of all transactions in arrival order.
func (p *Pool) Hashes() []types.Hash {
	txs := p.SelectForBlock(-1)
	ids := make([]types.Hash, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}

// SelectForBlock returns up to limit transactions in arrival order.
// A negative limit selects everything.
func (p *Pool) SelectForBlock(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	if limit < 0 || limit > len(entries) {
		limit = len(entries)
	}

	result := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		result[i] = entries[i].tx
	}
	return result
}
