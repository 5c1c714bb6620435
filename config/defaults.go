package config

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Chain: ChainConfig{
			Name:        "utxoledger-dev",
			Difficulty:  DefaultDifficulty,
			BlockReward: DefaultBlockReward,
			GenesisSeed: "alice",
		},
		Mining: MiningConfig{
			Coinbase: "miner",
			Threads:  1,
		},
		Storage: StorageConfig{
			Backend: StorageMemory,
		},
		RPC: RPCConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8645",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
