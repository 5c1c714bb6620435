package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Klingon-tech/utxoledger/internal/wallet"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

var testTime = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testTime }

func newTestLedger(t *testing.T, difficulty int, genesis types.Address) *Ledger {
	t.Helper()
	l, err := New(Config{
		Name:           "test",
		Difficulty:     difficulty,
		GenesisAddress: genesis,
		Now:            fixedClock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func newWallet(t *testing.T, seed string) *wallet.Wallet {
	t.Helper()
	w, err := wallet.New(seed)
	if err != nil {
		t.Fatalf("wallet.New(%q): %v", seed, err)
	}
	return w
}

func send(t *testing.T, l *Ledger, from *wallet.Wallet, to types.Address, amount uint64) *tx.Transaction {
	t.Helper()
	spend, err := from.Send(to, amount, l.UTXOs())
	if err != nil {
		t.Fatalf("Send %d to %s: %v", amount, to, err)
	}
	return spend
}

func mine(t *testing.T, l *Ledger, miner types.Address, txs ...*tx.Transaction) *block.Block {
	t.Helper()
	blk, err := l.AddBlock(context.Background(), txs, miner)
	if err != nil {
		t.Fatalf("AddBlock: %v", err)
	}
	return blk
}

// rewriteBlock loads the archived block at index, applies mutate and
// stores the result under the original hash key, as an attacker with
// write access to the archive would.
func rewriteBlock(t *testing.T, l *Ledger, index uint64, mutate func(*block.Block)) {
	t.Helper()
	blk, err := l.blocks.GetBlockByHeight(index)
	if err != nil {
		t.Fatalf("load block %d: %v", index, err)
	}
	key := blockKey(blk.Hash)
	mutate(blk)
	data, err := json.Marshal(blk)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := l.blocks.db.Put(key, data); err != nil {
		t.Fatalf("put: %v", err)
	}
}

// snapshot captures everything a rejected AddBlock must leave unchanged.
type snapshot struct {
	state      State
	commitment types.Hash
	utxos      int
}

func takeSnapshot(l *Ledger) snapshot {
	return snapshot{state: l.State(), commitment: l.UTXOCommitment(), utxos: l.UTXOs().Len()}
}
