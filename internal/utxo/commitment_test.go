package utxo

import (
	"testing"

	"github.com/Klingon-tech/utxoledger/pkg/types"
)

func TestCommitment_Empty(t *testing.T) {
	if root := Commitment(NewSet()); !root.IsZero() {
		t.Error("empty set commitment should be zero hash")
	}
}

func TestCommitment_SingleUTXO(t *testing.T) {
	s := NewSet()
	s.Put(UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "alice"})
	if Commitment(s).IsZero() {
		t.Error("single UTXO commitment should not be zero")
	}
}

func TestCommitment_ChangesOnModification(t *testing.T) {
	s := NewSet()
	s.Put(UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "alice"})
	root1 := Commitment(s)

	s.Put(UTXO{Outpoint: op(2, 0), Value: 2000, Owner: "bob"})
	root2 := Commitment(s)
	if root1 == root2 {
		t.Error("commitment should change after adding UTXO")
	}

	s.Delete(op(2, 0))
	if Commitment(s) != root1 {
		t.Error("commitment should return to the previous root after delete")
	}
}

func TestCommitment_OrderIndependent(t *testing.T) {
	u1 := UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "alice"}
	u2 := UTXO{Outpoint: op(2, 0), Value: 2000, Owner: "bob"}

	s1 := NewSet()
	s1.Put(u1)
	s1.Put(u2)

	s2 := NewSet()
	s2.Put(u2)
	s2.Put(u1)

	if Commitment(s1) != Commitment(s2) {
		t.Error("commitment should be independent of insertion order")
	}
}

func TestHashUTXO(t *testing.T) {
	u := UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "alice"}
	if hashUTXO(u) != hashUTXO(u) {
		t.Error("hashUTXO should be deterministic")
	}
	if hashUTXO(u).IsZero() {
		t.Error("hashUTXO should not be zero")
	}

	tests := []struct {
		name  string
		other UTXO
	}{
		{"value", UTXO{Outpoint: op(1, 0), Value: 2000, Owner: "alice"}},
		{"owner", UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "bob"}},
		{"index", UTXO{Outpoint: op(1, 1), Value: 1000, Owner: "alice"}},
		{"coinbase", UTXO{Outpoint: op(1, 0), Value: 1000, Owner: "alice", Coinbase: true}},
		{"txid", UTXO{Outpoint: types.Outpoint{TxID: types.Hash{0x02}}, Value: 1000, Owner: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hashUTXO(u) == hashUTXO(tt.other) {
				t.Errorf("different %s should produce different hashes", tt.name)
			}
		})
	}
}
