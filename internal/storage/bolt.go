package storage

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// boltBucket holds every key; namespacing is done with key prefixes.
var boltBucket = []byte("ledger")

// BoltDB implements DB using a single bbolt bucket.
type BoltDB struct {
	db *bolt.DB
}

// NewBolt opens or creates a bbolt file at path.
func NewBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		val = cloneBytes(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BoltDB) Put(key, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
	if err != nil {
		return fmt.Errorf("bolt put: %w", err)
	}
	return nil
}

// Delete removes a key.
func (b *BoltDB) Delete(key []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("bolt delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (b *BoltDB) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return exists, err
}

// ForEach iterates over all keys with the given prefix.
func (b *BoltDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(cloneBytes(k), cloneBytes(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// NewBatch returns a batch committed in a single bbolt transaction.
func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b.db}
}

type boltBatch struct {
	opBuffer
	db *bolt.DB
}

func (bb *boltBatch) Commit() error {
	err := bb.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(boltBucket)
		for _, op := range bb.ops {
			var err error
			if op.value == nil {
				err = bkt.Delete(op.key)
			} else {
				err = bkt.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bolt batch: %w", err)
	}
	return nil
}
