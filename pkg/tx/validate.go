package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Validation errors.
var (
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrOutputOverflow = errors.New("output values overflow")
	ErrZeroOutput     = errors.New("output value is zero")
	ErrEmptyOwner     = errors.New("output has no owner")
	ErrMissingPubKey  = errors.New("input missing public key")
	ErrMissingSig     = errors.New("input missing signature")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
	ErrMemoTooLarge   = errors.New("coinbase memo too large")
	ErrIDMismatch     = errors.New("transaction id does not match content")
)

// Validate checks transaction structure and basic rules.
// This does NOT check output existence (that requires the UTXO set).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), config.MaxTxInputs)
	}
	if len(tx.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), config.MaxTxOutputs)
	}

	if tx.IsCoinbase() {
		if len(tx.Inputs[0].Signature) > config.MaxMemoSize {
			return fmt.Errorf("%w: %d bytes, max %d", ErrMemoTooLarge, len(tx.Inputs[0].Signature), config.MaxMemoSize)
		}
	} else {
		seen := make(map[types.Outpoint]bool, len(tx.Inputs))
		for i, in := range tx.Inputs {
			if seen[in.PrevOut] {
				return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
			}
			seen[in.PrevOut] = true
			if len(in.PubKey) == 0 {
				return fmt.Errorf("input %d: %w", i, ErrMissingPubKey)
			}
			if len(in.Signature) == 0 {
				return fmt.Errorf("input %d: %w", i, ErrMissingSig)
			}
		}
	}

	var totalOutput uint64
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if out.Owner.IsZero() {
			return fmt.Errorf("output %d: %w", i, ErrEmptyOwner)
		}
		if totalOutput > math.MaxUint64-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}

	return nil
}

// VerifyID checks that the stored id still matches the content.
func (tx *Transaction) VerifyID() error {
	if got := tx.ComputeID(); got != tx.ID {
		return fmt.Errorf("%w: stored %s, computed %s", ErrIDMismatch, tx.ID, got)
	}
	return nil
}
