package config

import "fmt"

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Chain.Difficulty < 0 || cfg.Chain.Difficulty > MaxDifficulty {
		return fmt.Errorf("chain.difficulty must be in range [0, %d]", MaxDifficulty)
	}
	if cfg.Chain.BlockReward == 0 {
		return fmt.Errorf("chain.reward must be positive")
	}
	if cfg.Chain.GenesisAddress == "" && cfg.Chain.GenesisSeed == "" {
		return fmt.Errorf("chain.genesis or chain.genesis_seed is required")
	}
	if cfg.Mining.Coinbase == "" && cfg.Mining.Mnemonic == "" {
		return fmt.Errorf("mining.coinbase or mining.mnemonic is required")
	}
	if cfg.Mining.MnemonicIndex >= 1<<31 {
		return fmt.Errorf("mining.mnemonic_index must be below 2^31")
	}
	if cfg.Mining.Threads < 1 {
		return fmt.Errorf("mining.threads must be at least 1")
	}
	if cfg.Mining.Timeout < 0 {
		return fmt.Errorf("mining.timeout must not be negative")
	}
	switch cfg.Storage.Backend {
	case StorageMemory, StorageBadger, StorageBolt:
	default:
		return fmt.Errorf("storage.backend must be %s, %s or %s", StorageMemory, StorageBadger, StorageBolt)
	}
	if cfg.RPC.Enabled && cfg.RPC.Addr == "" {
		return fmt.Errorf("rpc.addr is required when rpc is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}
