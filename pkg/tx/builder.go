package tx

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Signer holds the key material that authorizes spends from one address.
type Signer interface {
	// Address returns the address outputs must be owned by.
	Address() types.Address
	// PublicKey returns the public key placed in each signed input.
	PublicKey() []byte
	// Sign signs arbitrary data.
	Sign(data []byte) ([]byte, error)
}

// Builder constructs transactions incrementally.
type Builder struct {
	tx *Transaction
}

// NewBuilder creates a new transaction builder stamped with the current time.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Timestamp: time.Now().Unix()},
	}
}

// AddInput adds an unsigned input referencing a previous output.
func (b *Builder) AddInput(prevOut types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: prevOut})
	return b
}

// AddOutput adds an output paying value to owner.
func (b *Builder) AddOutput(value uint64, owner types.Address) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Value: value, Owner: owner})
	return b
}

// SetTimestamp overrides the transaction timestamp.
func (b *Builder) SetTimestamp(ts int64) *Builder {
	b.tx.Timestamp = ts
	return b
}

// Sign signs every input over its source outpoint and the transaction's
// sighash. Add all inputs and outputs and set the timestamp first; any
// later change invalidates the signatures.
func (b *Builder) Sign(s Signer) error {
	pubKey := s.PublicKey()
	sigHash := b.tx.SigHash()
	for i := range b.tx.Inputs {
		in := &b.tx.Inputs[i]
		if in.PrevOut.TxID.IsZero() {
			continue // Coinbase input.
		}
		sig, err := s.Sign(b.tx.InputDigest(i, sigHash))
		if err != nil {
			return fmt.Errorf("sign input %d: %w", i, err)
		}
		in.Signature = sig
		in.PubKey = pubKey
	}
	return nil
}

// Build seals and returns the constructed transaction.
// Does NOT validate; call Verify separately.
func (b *Builder) Build() *Transaction {
	b.tx.Seal()
	return b.tx
}
