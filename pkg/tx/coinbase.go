package tx

import (
	"time"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// CoinbaseReward is the amount minted by NewCoinbase.
const CoinbaseReward uint64 = 50

// NewCoinbase creates a reward transaction paying CoinbaseReward to to.
// An empty memo defaults to "Reward to <to>".
//
// Two coinbases with the same recipient, memo and second share an id;
// callers that need distinct ids put something unique in the memo.
func NewCoinbase(to types.Address, memo string) *Transaction {
	return NewCoinbaseWithReward(to, memo, CoinbaseReward)
}

// NewCoinbaseWithReward is NewCoinbase with an explicit reward amount.
func NewCoinbaseWithReward(to types.Address, memo string, reward uint64) *Transaction {
	return NewCoinbaseAt(to, memo, reward, time.Now().Unix())
}

// NewCoinbaseAt builds a coinbase with a fixed timestamp.
func NewCoinbaseAt(to types.Address, memo string, reward uint64, timestamp int64) *Transaction {
	if memo == "" {
		memo = "Reward to " + string(to)
	}
	t := &Transaction{
		Inputs: []Input{{
			PrevOut:   types.Outpoint{},
			Signature: []byte(memo),
		}},
		Outputs:   []Output{{Value: reward, Owner: to}},
		Timestamp: timestamp,
	}
	t.Seal()
	return t
}
