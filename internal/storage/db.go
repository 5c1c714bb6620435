// Package storage provides key-value database abstractions for the
// block archive.
package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("key not found")

// errStop ends an iteration early without reporting an error.
var errStop = errors.New("stop iteration")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix in ascending
	// key order. The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch buffers writes until Commit applies them together.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by databases that can commit a Batch atomically.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns an atomic batch when db supports one and a buffered
// sequential batch otherwise.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &fallbackBatch{db: db}
}

// IsEmpty reports whether db holds no keys.
func IsEmpty(db DB) (bool, error) {
	empty := true
	err := db.ForEach(nil, func(_, _ []byte) error {
		empty = false
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return false, fmt.Errorf("scan: %w", err)
	}
	return empty, nil
}

// batchOp is one buffered write; a nil value means delete.
type batchOp struct {
	key   []byte
	value []byte
}

// opBuffer accumulates copies of batch writes.
type opBuffer struct {
	ops []batchOp
}

func (b *opBuffer) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: v})
	return nil
}

func (b *opBuffer) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key)})
	return nil
}

// fallbackBatch applies buffered writes one by one, non-atomically.
type fallbackBatch struct {
	opBuffer
	db DB
}

func (fb *fallbackBatch) Commit() error {
	for _, op := range fb.ops {
		if op.value == nil {
			if err := fb.db.Delete(op.key); err != nil {
				return err
			}
		} else if err := fb.db.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
