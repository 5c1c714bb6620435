package storage

import (
	"fmt"
	"os"

	"github.com/Klingon-tech/utxoledger/config"
)

// Open opens the block archive backend named by backend.
// path is ignored for the memory backend.
func Open(backend, path string) (DB, error) {
	switch backend {
	case config.StorageMemory, "":
		return NewMemory(), nil
	case config.StorageBadger:
		return NewBadger(path)
	case config.StorageBolt:
		return NewBolt(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// Remove deletes the on-disk archive for backend at path, if any.
func Remove(backend, path string) error {
	switch backend {
	case config.StorageBadger, config.StorageBolt:
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}
