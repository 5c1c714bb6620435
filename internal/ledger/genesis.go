package ledger

import (
	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// CreateGenesisBlock builds the unmined genesis block: index 0, a zero
// previous hash, and one coinbase paying reward to addr.
func CreateGenesisBlock(addr types.Address, reward uint64, timestamp int64) *block.Block {
	coinbase := tx.NewCoinbaseAt(addr, config.GenesisMemo, reward, timestamp)
	return block.BuildAt(0, types.Hash{}, []*tx.Transaction{coinbase}, timestamp)
}
