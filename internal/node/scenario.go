package node

import (
	"context"
	"fmt"
	"io"
)

// Transfer pays Amount from the wallet seeded by From to the wallet seeded
// by To.
type Transfer struct {
	From   string
	To     string
	Amount uint64
}

// Step is one block worth of transfers. Every transfer in a step is built
// against the UTXO set as it stood before the step.
type Step struct {
	Label     string
	Transfers []Transfer
}

// DemoWallets are the seeds whose balances the demo reports.
var DemoWallets = []string{"alice", "bob", "charlie", "miner"}

// DemoScenario moves coins alice -> bob -> charlie over three blocks.
// alice must hold the genesis reward.
var DemoScenario = []Step{
	{Label: "alice sends 30 to bob", Transfers: []Transfer{
		{From: "alice", To: "bob", Amount: 30},
	}},
	{Label: "bob sends 15 to charlie", Transfers: []Transfer{
		{From: "bob", To: "charlie", Amount: 15},
	}},
	{Label: "alice sends 10 to charlie, bob sends 5 to alice", Transfers: []Transfer{
		{From: "alice", To: "charlie", Amount: 10},
		{From: "bob", To: "alice", Amount: 5},
	}},
}

// RunScenario mines one block per step and reports balances of names
// after each block to w.
func (n *Node) RunScenario(ctx context.Context, steps []Step, names []string, w io.Writer) error {
	if err := n.PrintBalances(w, "Initial balances", names); err != nil {
		return err
	}

	for i, step := range steps {
		if err := n.submitStep(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Label, err)
		}

		blk, err := n.MinePending(ctx)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Label, err)
		}
		n.logger.Info().
			Uint64("index", blk.Index()).
			Str("hash", blk.Hash.Short()).
			Uint64("nonce", blk.Header.Nonce).
			Int("txs", len(blk.Transactions)).
			Msg(step.Label)

		title := fmt.Sprintf("Balances after block %d (%s)", blk.Index(), step.Label)
		if err := n.PrintBalances(w, title, names); err != nil {
			return err
		}
	}
	return nil
}

// submitStep builds every transfer of step against one UTXO snapshot and
// submits it to the pool.
func (n *Node) submitStep(step Step) error {
	utxos := n.ledger.UTXOs()
	for _, t := range step.Transfers {
		from, err := n.Wallet(t.From)
		if err != nil {
			return fmt.Errorf("wallet %q: %w", t.From, err)
		}
		to, err := n.Wallet(t.To)
		if err != nil {
			return fmt.Errorf("wallet %q: %w", t.To, err)
		}
		spend, err := from.Send(to.Address(), t.Amount, utxos)
		if err != nil {
			return fmt.Errorf("%s -> %s: %w", t.From, t.To, err)
		}
		if err := n.Submit(spend); err != nil {
			return fmt.Errorf("%s -> %s: %w", t.From, t.To, err)
		}
	}
	return nil
}
