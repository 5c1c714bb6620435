package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Coin selection errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrZeroAmount        = errors.New("amount must be positive")
)

// InsufficientFundsError reports how much was needed and how much the
// owner could spend.
type InsufficientFundsError struct {
	Needed    uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: have %d, need %d", ErrInsufficientFunds, e.Available, e.Needed)
}

// Unwrap lets errors.Is match ErrInsufficientFunds.
func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// UTXOProvider provides read-only access to unspent outputs for validation.
type UTXOProvider interface {
	GetOutput(op types.Outpoint) (Output, bool)
}

// UTXOIterator is a UTXOProvider that can also enumerate its outputs.
// ForEachUnspent visits outputs ordered by transaction id bytes, then index,
// and stops when fn returns false.
type UTXOIterator interface {
	UTXOProvider
	ForEachUnspent(fn func(op types.Outpoint, out Output) bool)
}

// UTXO is an unspent output selected for spending.
type UTXO struct {
	Outpoint types.Outpoint
	Output   Output
}

// CoinSelection holds the result of coin selection.
type CoinSelection struct {
	Inputs []UTXO // Selected outputs to spend.
	Total  uint64 // Sum of selected values.
	Change uint64 // Total - target.
}

// SelectOutputs accumulates outputs owned by owner, in iteration order,
// until their sum reaches target.
func SelectOutputs(utxos UTXOIterator, owner types.Address, target uint64) (*CoinSelection, error) {
	if target == 0 {
		return nil, ErrZeroAmount
	}

	sel := &CoinSelection{}
	var available uint64
	utxos.ForEachUnspent(func(op types.Outpoint, out Output) bool {
		if out.Owner != owner || out.Value == 0 {
			return true
		}
		if available > math.MaxUint64-out.Value {
			available = math.MaxUint64
		} else {
			available += out.Value
		}
		if sel.Total < target {
			sel.Inputs = append(sel.Inputs, UTXO{Outpoint: op, Output: out})
			sel.Total += out.Value
		}
		return true
	})

	if sel.Total < target {
		return nil, &InsufficientFundsError{Needed: target, Available: available}
	}
	sel.Change = sel.Total - target
	return sel, nil
}
