package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
)

// Spend verification errors.
var (
	ErrInputNotFound    = errors.New("referenced output not found")
	ErrOwnerMismatch    = errors.New("public key does not match output owner")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInputOverflow    = errors.New("input values overflow")
	ErrValueMismatch    = errors.New("input and output values differ")
)

// Verify checks the transaction against a UTXO snapshot.
//
// A coinbase is always valid. Otherwise every input must reference an
// unspent output in utxos, the input's public key must hash to that output's
// owner, its signature must verify over the source outpoint bound to the
// transaction's sighash, and the
// spent value must equal the created value. The first failure is returned.
func (tx *Transaction) Verify(utxos UTXOProvider) error {
	if tx.IsCoinbase() {
		return nil
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	sigHash := tx.SigHash()
	var totalInput uint64
	for i, in := range tx.Inputs {
		out, ok := utxos.GetOutput(in.PrevOut)
		if !ok {
			return fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrInputNotFound)
		}
		if derived := crypto.AddressFromPubKey(in.PubKey); derived != out.Owner {
			return fmt.Errorf("input %d: %w: owner %s, key hashes to %s", i, ErrOwnerMismatch, out.Owner, derived)
		}
		if !crypto.VerifyData(tx.InputDigest(i, sigHash), in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSignature)
		}
		if totalInput > math.MaxUint64-out.Value {
			return fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput += out.Value
	}

	totalOutput, err := tx.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputOverflow, err)
	}
	if totalInput != totalOutput {
		return fmt.Errorf("%w: inputs=%d outputs=%d", ErrValueMismatch, totalInput, totalOutput)
	}
	return nil
}

// Valid reports whether Verify succeeds.
func (tx *Transaction) Valid(utxos UTXOProvider) bool {
	return tx.Verify(utxos) == nil
}
