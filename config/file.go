package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration values from a .conf file.
// Format: key = value (one per line, # for comments)
// A missing file yields no values.
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value

	// Chain
	case "chain.name":
		cfg.Chain.Name = value
	case "chain.difficulty", "difficulty":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Chain.Difficulty = n
	case "chain.reward":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Chain.BlockReward = n
	case "chain.genesis":
		cfg.Chain.GenesisAddress = value
	case "chain.genesis_seed":
		cfg.Chain.GenesisSeed = value

	// Mining
	case "mining.coinbase", "coinbase":
		cfg.Mining.Coinbase = value
	case "mining.mnemonic":
		cfg.Mining.Mnemonic = value
	case "mining.mnemonic_index":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Mining.MnemonicIndex = uint32(n)
	case "mining.threads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Mining.Threads = n
	case "mining.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Mining.Timeout = d

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = strings.ToLower(value)
	case "storage.path":
		cfg.Storage.Path = value

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.allowed_ips":
		cfg.RPC.AllowedIPs = splitList(value)

	// Metrics
	case "metrics.enabled", "metrics":
		cfg.Metrics.Enabled = parseBool(value)
	case "metrics.addr":
		cfg.Metrics.Addr = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string) error {
	content := `# utxoledger configuration

# Data directory (default: ~/.utxoledger)
# datadir = ~/.utxoledger

# ============================================================================
# Chain (fixed when the ledger is created)
# ============================================================================

chain.name = utxoledger-dev
# Leading zero hex digits required of every block hash (0-64)
chain.difficulty = 2
chain.reward = 50
# Address credited by the genesis coinbase; overrides chain.genesis_seed
# chain.genesis = <address>
chain.genesis_seed = alice

# ============================================================================
# Mining
# ============================================================================

# Wallet seed that receives block rewards
mining.coinbase = miner
# Pay rewards to wallet m/44'/8888'/0'/0/<index> of a BIP-39 phrase instead
# mining.mnemonic = <24 words>
# mining.mnemonic_index = 0
mining.threads = 1
# Abort a block if mining takes longer than this (0 = no limit)
# mining.timeout = 30s

# ============================================================================
# Storage
# ============================================================================

# memory, badger or bolt
storage.backend = memory
# storage.path =

# ============================================================================
# JSON-RPC
# ============================================================================

rpc.enabled = false
rpc.addr = 127.0.0.1:8645
# Comma-separated IPs or CIDRs allowed to connect (empty = all)
# rpc.allowed_ips = 127.0.0.1, 10.0.0.0/8

# ============================================================================
# Metrics
# ============================================================================

metrics.enabled = false
metrics.addr = 127.0.0.1:9464

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
