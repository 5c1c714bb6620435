package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// fundedSpend returns a snapshot holding one coinbase to alice and a valid
// spend of it to bob.
func fundedSpend(t *testing.T) (*keySigner, *mockUTXOs, *Transaction) {
	t.Helper()
	alice := newKeySigner(t)
	utxos := newMockUTXOs()
	utxos.addTx(NewCoinbase(alice.Address(), ""))
	spend, err := NewSpend(alice, "bob_addr", 20, utxos)
	if err != nil {
		t.Fatalf("NewSpend: %v", err)
	}
	return alice, utxos, spend
}

func TestVerify_Valid(t *testing.T) {
	_, utxos, spend := fundedSpend(t)
	if err := spend.Verify(utxos); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !spend.Valid(utxos) {
		t.Error("Valid() should be true")
	}
}

func TestVerify_CoinbaseAlwaysValid(t *testing.T) {
	cb := NewCoinbase("anyone", "")
	if err := cb.Verify(newMockUTXOs()); err != nil {
		t.Errorf("coinbase Verify: %v", err)
	}
}

func TestVerify_MissingInput(t *testing.T) {
	_, _, spend := fundedSpend(t)
	err := spend.Verify(newMockUTXOs())
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("err = %v, want ErrInputNotFound", err)
	}
	if spend.Valid(newMockUTXOs()) {
		t.Error("Valid() should be false")
	}
}

func TestVerify_OwnerMismatch(t *testing.T) {
	_, utxos, _ := fundedSpend(t)
	mallory := newKeySigner(t)

	// Mallory signs alice's output with her own key.
	var op types.Outpoint
	for k := range utxos.outputs {
		op = k
	}
	b := NewBuilder().AddInput(op).AddOutput(CoinbaseReward, mallory.Address())
	if err := b.Sign(mallory); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	theft := b.Build()

	if err := theft.Verify(utxos); !errors.Is(err, ErrOwnerMismatch) {
		t.Errorf("err = %v, want ErrOwnerMismatch", err)
	}
}

func TestVerify_BadSignature(t *testing.T) {
	_, utxos, spend := fundedSpend(t)
	spend.Inputs[0].Signature[0] ^= 0x01
	if err := spend.Verify(utxos); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("err = %v, want ErrInvalidSignature", err)
	}
}

// Signed inputs copied into a transaction with other outputs must not verify.
func TestVerify_RedirectedSpend(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *Transaction)
	}{
		{"outputs replaced", func(tx *Transaction) {
			tx.Outputs = []Output{{Value: CoinbaseReward, Owner: "mallory_addr"}}
		}},
		{"recipient changed", func(tx *Transaction) { tx.Outputs[0].Owner = "mallory_addr" }},
		{"change moved", func(tx *Transaction) {
			tx.Outputs[0].Value, tx.Outputs[1].Value = tx.Outputs[1].Value, tx.Outputs[0].Value
		}},
		{"timestamp changed", func(tx *Transaction) { tx.Timestamp++ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, utxos, spend := fundedSpend(t)
			stolen := &Transaction{
				Inputs:    append([]Input(nil), spend.Inputs...),
				Outputs:   append([]Output(nil), spend.Outputs...),
				Timestamp: spend.Timestamp,
			}
			tt.mutate(stolen)
			stolen.Seal()

			if err := stolen.Verify(utxos); !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("err = %v, want ErrInvalidSignature", err)
			}
			if err := spend.Verify(utxos); err != nil {
				t.Errorf("original spend: %v", err)
			}
		})
	}
}

func TestSigHash_IgnoresSignatures(t *testing.T) {
	_, _, spend := fundedSpend(t)
	want := spend.SigHash()

	stripped := *spend
	stripped.Inputs = []Input{{PrevOut: spend.Inputs[0].PrevOut}}
	if got := stripped.SigHash(); got != want {
		t.Errorf("sighash changed when signatures were removed")
	}
	if a, b := spend.InputDigest(0, want), spend.InputDigest(0, types.Hash{}); string(a) == string(b) {
		t.Error("input digest does not depend on the sighash")
	}
}

func TestVerify_ValueMismatch(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"creates value", CoinbaseReward + 1},
		{"destroys value", CoinbaseReward - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alice := newKeySigner(t)
			utxos := newMockUTXOs()
			funding := NewCoinbase(alice.Address(), "")
			utxos.addTx(funding)

			b := NewBuilder().
				AddInput(types.Outpoint{TxID: funding.ID}).
				AddOutput(tt.value, "bob_addr")
			if err := b.Sign(alice); err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if err := b.Build().Verify(utxos); !errors.Is(err, ErrValueMismatch) {
				t.Errorf("err = %v, want ErrValueMismatch", err)
			}
		})
	}
}

func TestVerify_FirstFailureWins(t *testing.T) {
	alice := newKeySigner(t)
	utxos := newMockUTXOs()
	funding := NewCoinbase(alice.Address(), "")
	utxos.addTx(funding)

	b := NewBuilder().
		AddInput(types.Outpoint{TxID: types.Hash{0xee}}).
		AddInput(types.Outpoint{TxID: funding.ID}).
		AddOutput(CoinbaseReward, "bob_addr")
	if err := b.Sign(alice); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := b.Build().Verify(utxos); !errors.Is(err, ErrInputNotFound) {
		t.Errorf("err = %v, want ErrInputNotFound for input 0", err)
	}
}

func TestVerify_DoesNotMutateSnapshot(t *testing.T) {
	_, utxos, spend := fundedSpend(t)
	before := len(utxos.outputs)
	_ = spend.Verify(utxos)
	_ = spend.Verify(utxos)
	if len(utxos.outputs) != before {
		t.Error("Verify must not change the snapshot")
	}
}
