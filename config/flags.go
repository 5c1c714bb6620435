package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help       bool
	Version    bool
	InitConfig bool

	// Core
	DataDir string
	Config  string
	Reset   bool

	// Chain
	Difficulty  int
	Reward      uint64
	Genesis     string
	GenesisSeed string

	// Mining
	Coinbase      string
	CoinbaseIndex uint
	Threads       int
	MiningTimeout time.Duration

	// Storage
	Storage     string
	StoragePath string

	// RPC
	RPC     bool
	RPCAddr string

	// Metrics
	Metrics     bool
	MetricsAddr string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set flags whose zero value is meaningful.
	SetDifficulty    bool
	SetCoinbaseIndex bool
	SetRPC           bool
	SetMetrics       bool
	SetLogJSON       bool
}

// ParseFlags parses command-line arguments (without the program name).
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("ledgerd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")
	fs.BoolVar(&f.InitConfig, "init-config", false, "Write a default config file and exit")

	// Core
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")
	fs.BoolVar(&f.Reset, "reset", false, "Delete an existing block archive before starting")

	// Chain
	fs.IntVar(&f.Difficulty, "difficulty", 0, "Leading zero hex digits required of block hashes")
	fs.Uint64Var(&f.Reward, "reward", 0, "Coinbase reward per block")
	fs.StringVar(&f.Genesis, "genesis", "", "Address credited by the genesis block")
	fs.StringVar(&f.GenesisSeed, "genesis-seed", "", "Wallet seed credited by the genesis block")

	// Mining
	fs.StringVar(&f.Coinbase, "coinbase", "", "Wallet seed that receives block rewards")
	fs.UintVar(&f.CoinbaseIndex, "coinbase-index", 0, "Wallet index under mining.mnemonic")
	fs.IntVar(&f.Threads, "threads", 0, "Mining threads")
	fs.DurationVar(&f.MiningTimeout, "mining-timeout", 0, "Abort a block after this long (0 = no limit)")

	// Storage
	fs.StringVar(&f.Storage, "storage", "", "Block archive backend: memory, badger or bolt")
	fs.StringVar(&f.StoragePath, "storage-path", "", "Block archive path for disk backends")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", false, "Serve the JSON-RPC API")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "JSON-RPC listen address")

	// Metrics
	fs.BoolVar(&f.Metrics, "metrics", false, "Serve Prometheus metrics")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "Prometheus listen address")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.SetDifficulty = isFlagSet(fs, "difficulty")
	f.SetCoinbaseIndex = isFlagSet(fs, "coinbase-index")
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMetrics = isFlagSet(fs, "metrics")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	f.Args = fs.Args()

	// A positional argument stops the parser; anything flag-like after it
	// was silently ignored.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// Chain
	if f.SetDifficulty {
		cfg.Chain.Difficulty = f.Difficulty
	}
	if f.Reward != 0 {
		cfg.Chain.BlockReward = f.Reward
	}
	if f.Genesis != "" {
		cfg.Chain.GenesisAddress = f.Genesis
	}
	if f.GenesisSeed != "" {
		cfg.Chain.GenesisSeed = f.GenesisSeed
	}

	// Mining
	if f.Coinbase != "" {
		cfg.Mining.Coinbase = f.Coinbase
	}
	if f.SetCoinbaseIndex {
		cfg.Mining.MnemonicIndex = uint32(f.CoinbaseIndex)
	}
	if f.Threads != 0 {
		cfg.Mining.Threads = f.Threads
	}
	if f.MiningTimeout != 0 {
		cfg.Mining.Timeout = f.MiningTimeout
	}

	// Storage
	if f.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(f.Storage)
	}
	if f.StoragePath != "" {
		cfg.Storage.Path = f.StoragePath
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}

	// Metrics
	if f.SetMetrics {
		cfg.Metrics.Enabled = f.Metrics
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	usage := `ledgerd - single-node UTXO ledger with proof-of-work blocks

Usage:
  ledgerd [options]
  ledgerd --help

Commands:
  --help, -h        Show this help message
  --version, -v     Show version information
  --init-config     Write a default config file and exit

Core Options:
  --datadir         Data directory (default: ~/.utxoledger)
  --config, -c      Config file path (default: <datadir>/utxoledger.conf)
  --reset           Delete an existing block archive before starting

Chain Options:
  --difficulty      Leading zero hex digits per block hash (default: 2)
  --reward          Coinbase reward per block (default: 50)
  --genesis         Address credited by the genesis block
  --genesis-seed    Wallet seed credited by the genesis block (default: alice)

Mining Options:
  --coinbase        Wallet seed that receives block rewards (default: miner)
  --coinbase-index  Wallet index under mining.mnemonic (default: 0)
  --threads         Mining threads (default: 1)
  --mining-timeout  Abort a block after this long, e.g. 30s (default: none)

Storage Options:
  --storage         Block archive backend: memory (default), badger or bolt
  --storage-path    Archive path (default: <datadir>/chain)

RPC Options:
  --rpc             Serve the JSON-RPC API after the demo
  --rpc-addr        Listen address (default: 127.0.0.1:8645)

Metrics Options:
  --metrics         Serve Prometheus metrics
  --metrics-addr    Listen address (default: 127.0.0.1:9464)

Logging Options:
  --log-level       Log level: debug, info, warn, error (default: info)
  --log-file        Log file path (default: stdout)
  --log-json        Output logs as JSON

Examples:
  # Run the demo on an in-memory archive
  ledgerd

  # Harder blocks, four mining threads, bbolt archive
  ledgerd --difficulty=4 --threads=4 --storage=bolt --reset
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Config file
// 3. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	// Flags have the highest precedence.
	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir(cfg *Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", cfg.DataDir, err)
	}
	return nil
}
