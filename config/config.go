// Package config handles application configuration.
//
// Values are layered: defaults, then a key = value file, then
// command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageBolt   = "bolt"
)

// Config holds runtime configuration.
type Config struct {
	DataDir string `conf:"datadir"`

	// Chain parameters, fixed when the ledger is created.
	Chain ChainConfig

	// Block production
	Mining MiningConfig

	// Block archive
	Storage StorageConfig

	// JSON-RPC API
	RPC RPCConfig

	// Prometheus endpoint
	Metrics MetricsConfig

	// Logging
	Log LogConfig
}

// ChainConfig holds the parameters a ledger is created with.
type ChainConfig struct {
	Name           string `conf:"chain.name"`
	Difficulty     int    `conf:"chain.difficulty"`
	BlockReward    uint64 `conf:"chain.reward"`
	GenesisAddress string `conf:"chain.genesis"`      // Takes precedence over GenesisSeed
	GenesisSeed    string `conf:"chain.genesis_seed"` // Wallet seed whose address receives the genesis reward
}

// MiningConfig holds block production settings.
type MiningConfig struct {
	Coinbase      string        `conf:"mining.coinbase"` // Wallet seed name that receives block rewards
	Mnemonic      string        `conf:"mining.mnemonic"` // BIP-39 phrase; overrides Coinbase when set
	MnemonicIndex uint32        `conf:"mining.mnemonic_index"`
	Threads       int           `conf:"mining.threads"`
	Timeout       time.Duration `conf:"mining.timeout"` // 0 = no limit
}

// StorageConfig selects the block archive backend.
type StorageConfig struct {
	Backend string `conf:"storage.backend"` // memory, badger or bolt
	Path    string `conf:"storage.path"`    // Empty = <datadir>/chain
}

// RPCConfig controls the JSON-RPC listener.
type RPCConfig struct {
	Enabled    bool     `conf:"rpc.enabled"`
	Addr       string   `conf:"rpc.addr"`
	AllowedIPs []string `conf:"rpc.allowed_ips"` // IPs or CIDRs; empty = allow all
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `conf:"metrics.enabled"`
	Addr    string `conf:"metrics.addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns ~/.utxoledger, or a relative directory when the
// home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".utxoledger"
	}
	return filepath.Join(home, ".utxoledger")
}

// ConfigFile returns the default config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "utxoledger.conf")
}

// StoragePath returns the block archive location for disk backends.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	name := "chain.db"
	if c.Storage.Backend == StorageBadger {
		name = "chain"
	}
	return filepath.Join(c.DataDir, name)
}
