package node

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Klingon-tech/utxoledger/internal/utxo"
	"github.com/Klingon-tech/utxoledger/pkg/block"
)

// PrintBalances writes the balance of each named wallet.
func (n *Node) PrintBalances(w io.Writer, title string, names []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\n%s:\n", title)
	for _, name := range names {
		wal, err := n.Wallet(name)
		if err != nil {
			return fmt.Errorf("wallet %q: %w", name, err)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%d coins\n", name, wal.Address(), n.ledger.Balance(wal.Address()))
	}
	return tw.Flush()
}

// PrintChain writes every block from genesis to tip.
func (n *Node) PrintChain(w io.Writer) error {
	blocks, err := n.ledger.Blocks()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n--- Chain (%d blocks, difficulty %d) ---\n", len(blocks), n.ledger.Difficulty())
	for _, blk := range blocks {
		writeBlock(w, blk)
	}
	return nil
}

func writeBlock(w io.Writer, blk *block.Block) {
	h := blk.Header
	fmt.Fprintf(w, "\nBlock #%d\n", h.Index)
	fmt.Fprintf(w, "  hash:        %s\n", blk.Hash)
	fmt.Fprintf(w, "  prev:        %s\n", h.PrevHash)
	fmt.Fprintf(w, "  merkle root: %s\n", h.MerkleRoot)
	fmt.Fprintf(w, "  timestamp:   %d\n", h.Timestamp)
	fmt.Fprintf(w, "  nonce:       %d\n", h.Nonce)
	fmt.Fprintf(w, "  txs:         %d\n", len(blk.Transactions))
	for i, t := range blk.Transactions {
		kind := "transfer"
		if t.IsCoinbase() {
			kind = fmt.Sprintf("coinbase %q", t.Memo())
		}
		fmt.Fprintf(w, "    [%d] %s %s\n", i, t.ID.Short(), kind)
		for _, in := range t.Inputs {
			if t.IsCoinbase() {
				break
			}
			fmt.Fprintf(w, "        in  %s\n", in.PrevOut)
		}
		for j, out := range t.Outputs {
			fmt.Fprintf(w, "        out %d: %d -> %s\n", j, out.Value, out.Owner)
		}
	}
}

// PrintUTXOs writes the unspent outputs grouped by transaction.
func (n *Node) PrintUTXOs(w io.Writer) error {
	set := n.ledger.UTXOs()
	fmt.Fprintf(w, "\n--- UTXO set (%d outputs, commitment %s) ---\n", set.Len(), n.ledger.UTXOCommitment().Short())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	return writeUTXOs(tw, set)
}

func writeUTXOs(tw *tabwriter.Writer, set *utxo.Set) error {
	err := set.ForEach(func(u utxo.UTXO) error {
		tag := ""
		if u.Coinbase {
			tag = "coinbase"
		}
		_, err := fmt.Fprintf(tw, "  %s\t%d coins\t%s\theight %d\t%s\n",
			u.Outpoint, u.Value, u.Owner, u.Height, tag)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

// Verify validates the whole chain and cross-checks the live UTXO set
// against a replay, reporting the outcome to w.
func (n *Node) Verify(w io.Writer) error {
	fmt.Fprintf(w, "\n--- Validation ---\n")
	if err := n.ledger.ValidateChain(); err != nil {
		fmt.Fprintf(w, "  chain:  INVALID (%v)\n", err)
		return err
	}
	fmt.Fprintf(w, "  chain:  valid (%d blocks)\n", n.ledger.Height()+1)

	if err := n.ledger.CheckUTXOs(); err != nil {
		fmt.Fprintf(w, "  utxos:  MISMATCH (%v)\n", err)
		return err
	}
	fmt.Fprintf(w, "  utxos:  consistent with replay\n")
	fmt.Fprintf(w, "  supply: %d coins\n", n.ledger.Supply())
	return nil
}
