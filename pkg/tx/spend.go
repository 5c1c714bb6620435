package tx

import (
	"fmt"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// NewSpend builds a signed transaction paying amount from the signer's
// address to to, funded from utxos. Any excess comes back to the sender
// as a second output. utxos is only read.
func NewSpend(from Signer, to types.Address, amount uint64, utxos UTXOIterator) (*Transaction, error) {
	sel, err := SelectOutputs(utxos, from.Address(), amount)
	if err != nil {
		return nil, err
	}

	b := NewBuilder()
	for _, u := range sel.Inputs {
		b.AddInput(u.Outpoint)
	}
	b.AddOutput(amount, to)
	if sel.Change > 0 {
		b.AddOutput(sel.Change, from.Address())
	}
	if err := b.Sign(from); err != nil {
		return nil, fmt.Errorf("new spend: %w", err)
	}
	return b.Build(), nil
}
