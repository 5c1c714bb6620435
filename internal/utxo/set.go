// Package utxo manages the UTXO set.
package utxo

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// UTXO set errors.
var (
	ErrMissingInput = errors.New("spent output not in utxo set")
	ErrDuplicateTx  = errors.New("transaction id already has unspent outputs")
)

// UTXO represents an unspent transaction output.
type UTXO struct {
	Outpoint types.Outpoint `json:"outpoint"`
	Value    uint64         `json:"value"`
	Owner    types.Address  `json:"owner"`
	Height   uint64         `json:"height"`
	Coinbase bool           `json:"coinbase"`
}

// Output returns the transaction output this UTXO carries.
func (u UTXO) Output() tx.Output {
	return tx.Output{Value: u.Value, Owner: u.Owner}
}

// Set maps a transaction id to its still-unspent outputs, ordered by
// output index. Entries keep their original index, so removing one never
// shifts another. Set is not safe for concurrent mutation; the ledger
// swaps whole sets instead of editing a shared one.
type Set struct {
	entries map[types.Hash][]UTXO
	count   int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{entries: make(map[types.Hash][]UTXO)}
}

// Len returns the number of unspent outputs.
func (s *Set) Len() int {
	return s.count
}

// Get returns the UTXO at op.
func (s *Set) Get(op types.Outpoint) (UTXO, bool) {
	list := s.entries[op.TxID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Outpoint.Index >= op.Index })
	if i < len(list) && list[i].Outpoint.Index == op.Index {
		return list[i], true
	}
	return UTXO{}, false
}

// Has reports whether op is unspent.
func (s *Set) Has(op types.Outpoint) bool {
	_, ok := s.Get(op)
	return ok
}

// GetOutput implements tx.UTXOProvider.
func (s *Set) GetOutput(op types.Outpoint) (tx.Output, bool) {
	u, ok := s.Get(op)
	if !ok {
		return tx.Output{}, false
	}
	return u.Output(), true
}

// Put stores u, replacing any entry at the same outpoint.
func (s *Set) Put(u UTXO) {
	id := u.Outpoint.TxID
	list := s.entries[id]
	i := sort.Search(len(list), func(i int) bool { return list[i].Outpoint.Index >= u.Outpoint.Index })
	if i < len(list) && list[i].Outpoint.Index == u.Outpoint.Index {
		list[i] = u
		return
	}
	list = append(list, UTXO{})
	copy(list[i+1:], list[i:])
	list[i] = u
	s.entries[id] = list
	s.count++
}

// Delete removes op and reports whether it was present. The transaction
// entry disappears with its last output.
func (s *Set) Delete(op types.Outpoint) bool {
	list := s.entries[op.TxID]
	i := sort.Search(len(list), func(i int) bool { return list[i].Outpoint.Index >= op.Index })
	if i >= len(list) || list[i].Outpoint.Index != op.Index {
		return false
	}
	if len(list) == 1 {
		delete(s.entries, op.TxID)
	} else {
		s.entries[op.TxID] = append(list[:i], list[i+1:]...)
	}
	s.count--
	return true
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{entries: make(map[types.Hash][]UTXO, len(s.entries)), count: s.count}
	for id, list := range s.entries {
		c.entries[id] = append([]UTXO(nil), list...)
	}
	return c
}

// txIDs returns the transaction ids in ascending byte order.
func (s *Set) txIDs() []types.Hash {
	ids := make([]types.Hash, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// ForEach visits every UTXO ordered by transaction id bytes, then index.
// Return a non-nil error from fn to stop.
func (s *Set) ForEach(fn func(u UTXO) error) error {
	for _, id := range s.txIDs() {
		for _, u := range s.entries[id] {
			if err := fn(u); err != nil {
				return err
			}
		}
	}
	return nil
}

// ForEachUnspent implements tx.UTXOIterator.
func (s *Set) ForEachUnspent(fn func(op types.Outpoint, out tx.Output) bool) {
	for _, id := range s.txIDs() {
		for _, u := range s.entries[id] {
			if !fn(u.Outpoint, u.Output()) {
				return
			}
		}
	}
}

// All returns every UTXO in iteration order.
func (s *Set) All() []UTXO {
	out := make([]UTXO, 0, s.count)
	s.ForEach(func(u UTXO) error {
		out = append(out, u)
		return nil
	})
	return out
}

// ByOwner returns the UTXOs owned by addr in iteration order.
func (s *Set) ByOwner(addr types.Address) []UTXO {
	var out []UTXO
	s.ForEach(func(u UTXO) error {
		if u.Owner == addr {
			out = append(out, u)
		}
		return nil
	})
	return out
}

// Balance sums the values owned by addr, saturating at MaxUint64.
func (s *Set) Balance(addr types.Address) uint64 {
	var total uint64
	for _, list := range s.entries {
		for _, u := range list {
			if u.Owner != addr {
				continue
			}
			if total > math.MaxUint64-u.Value {
				return math.MaxUint64
			}
			total += u.Value
		}
	}
	return total
}

// ApplyTransaction removes the outputs t spends and adds the outputs it
// creates. The set is unchanged when an error is returned.
func (s *Set) ApplyTransaction(t *tx.Transaction, height uint64) error {
	if _, exists := s.entries[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTx, t.ID)
	}
	coinbase := t.IsCoinbase()
	if !coinbase {
		seen := make(map[types.Outpoint]struct{}, len(t.Inputs))
		for _, in := range t.Inputs {
			if _, dup := seen[in.PrevOut]; dup || !s.Has(in.PrevOut) {
				return fmt.Errorf("%w: %s", ErrMissingInput, in.PrevOut)
			}
			seen[in.PrevOut] = struct{}{}
		}
		for _, in := range t.Inputs {
			s.Delete(in.PrevOut)
		}
	}
	for i, out := range t.Outputs {
		s.Put(UTXO{
			Outpoint: types.Outpoint{TxID: t.ID, Index: uint32(i)},
			Value:    out.Value,
			Owner:    out.Owner,
			Height:   height,
			Coinbase: coinbase,
		})
	}
	return nil
}

// ApplyBlock applies every transaction of b in order. On error the set may
// hold a prefix of the block; apply to a Clone when that matters.
func (s *Set) ApplyBlock(b *block.Block) error {
	height := b.Index()
	for i, t := range b.Transactions {
		if err := s.ApplyTransaction(t, height); err != nil {
			return fmt.Errorf("block %d tx %d: %w", height, i, err)
		}
	}
	return nil
}

// Equal reports whether s and other hold the same UTXOs.
func (s *Set) Equal(other *Set) bool {
	if s.count != other.count || len(s.entries) != len(other.entries) {
		return false
	}
	for id, list := range s.entries {
		olist, ok := other.entries[id]
		if !ok || len(olist) != len(list) {
			return false
		}
		for i := range list {
			if list[i] != olist[i] {
				return false
			}
		}
	}
	return true
}

// Replay rebuilds a set from scratch by applying blocks in order.
func Replay(blocks []*block.Block) (*Set, error) {
	s := NewSet()
	for _, b := range blocks {
		if err := s.ApplyBlock(b); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}
	}
	return s, nil
}
