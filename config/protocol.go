package config

// =============================================================================
// Protocol Rules (fixed for the lifetime of a ledger)
// =============================================================================

// Mining defaults.
const (
	// DefaultDifficulty is the number of leading zero hex digits a block
	// hash must have.
	DefaultDifficulty = 2

	// MaxDifficulty is the length of a hex-encoded hash.
	MaxDifficulty = 64

	// DefaultBlockReward is the amount minted by every coinbase.
	DefaultBlockReward uint64 = 50
)

// Genesis constants.
const (
	GenesisMemo = "Genesis Block"
)

// Block and transaction size limits.
const (
	MaxBlockSize = 2_000_000 // 2 MB max block size (header preimage + all tx id bytes)
	MaxBlockTxs  = 500       // Max transactions per block (including coinbase)
	MaxTxInputs  = 2500      // Max inputs per transaction
	MaxTxOutputs = 2500      // Max outputs per transaction
	MaxMemoSize  = 256       // Max coinbase memo bytes
)
