// Package tx defines transaction types, construction and validation.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// Transaction moves value between owners by consuming unspent outputs
// and creating new ones.
//
// ID is assigned once by Seal and never recomputed afterwards; ComputeID
// derives it from the current content for integrity checks.
type Transaction struct {
	ID        types.Hash `json:"id"`
	Inputs    []Input    `json:"inputs"`
	Outputs   []Output   `json:"outputs"`
	Timestamp int64      `json:"timestamp"`
}

// Input references an unspent output being consumed.
// For a coinbase, PrevOut is zero and Signature holds the memo.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

// inputJSON is the JSON representation of Input with hex-encoded byte fields.
type inputJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature *string        `json:"signature"`
	PubKey    *string        `json:"pubkey"`
}

// MarshalJSON encodes the input with hex-encoded signature and pubkey.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{PrevOut: in.PrevOut}
	if in.Signature != nil {
		s := hex.EncodeToString(in.Signature)
		j.Signature = &s
	}
	if in.PubKey != nil {
		p := hex.EncodeToString(in.PubKey)
		j.PubKey = &p
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded signature and pubkey.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	if j.PubKey != nil {
		b, err := hex.DecodeString(*j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	return nil
}

// Output assigns an amount to an owner.
type Output struct {
	Value uint64        `json:"value"`
	Owner types.Address `json:"owner"`
}

// IsCoinbase reports whether the transaction has exactly one input with a
// zero source transaction id.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.TxID.IsZero()
}

// Memo returns the coinbase memo, or "" for a regular transaction.
func (tx *Transaction) Memo() string {
	if !tx.IsCoinbase() {
		return ""
	}
	return string(tx.Inputs[0].Signature)
}

// ComputeID hashes the canonical encoding of the transaction content.
func (tx *Transaction) ComputeID() types.Hash {
	return crypto.Hash(tx.IDBytes())
}

// Seal assigns the transaction id from its current content.
// Call it once after the last field is set.
func (tx *Transaction) Seal() types.Hash {
	tx.ID = tx.ComputeID()
	return tx.ID
}

// IDBytes returns the canonical byte representation hashed into the id.
// Format: timestamp(8) | input_count(4) | [txid(32) + index(4) + sig_len(4) + sig + pubkey_len(4) + pubkey]...
// | output_count(4) | [value(8) + owner_len(4) + owner]...
func (tx *Transaction) IDBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint64(buf, uint64(tx.Timestamp))

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.Signature)))
		buf = append(buf, in.Signature...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.PubKey)))
		buf = append(buf, in.PubKey...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Owner)))
		buf = append(buf, out.Owner...)
	}

	return buf
}

// SigHash hashes the transaction with every signature and public key left
// empty, committing a signature to all inputs, outputs and the timestamp.
func (tx *Transaction) SigHash() types.Hash {
	stripped := Transaction{
		Inputs:    make([]Input, len(tx.Inputs)),
		Outputs:   tx.Outputs,
		Timestamp: tx.Timestamp,
	}
	for i, in := range tx.Inputs {
		stripped.Inputs[i] = Input{PrevOut: in.PrevOut}
	}
	return crypto.Hash(stripped.IDBytes())
}

// InputDigest returns the data signed for input i:
// source txid(32) | source index(4) | sighash(32).
func (tx *Transaction) InputDigest(i int, sigHash types.Hash) []byte {
	prev := tx.Inputs[i].PrevOut
	buf := make([]byte, 0, 2*types.HashSize+4)
	buf = append(buf, prev.TxID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, prev.Index)
	return append(buf, sigHash[:]...)
}

// TotalOutputValue returns the sum of all output values.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}
