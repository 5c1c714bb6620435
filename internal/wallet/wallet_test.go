package wallet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Klingon-tech/utxoledger/internal/utxo"
	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

func mustNew(t *testing.T, seed string) *Wallet {
	t.Helper()
	w, err := New(seed)
	if err != nil {
		t.Fatalf("New(%q): %v", seed, err)
	}
	return w
}

// fund returns a set holding one coinbase output of value for each owner.
func fund(t *testing.T, value uint64, owners ...types.Address) *utxo.Set {
	t.Helper()
	s := utxo.NewSet()
	for i, owner := range owners {
		cb := tx.NewCoinbaseAt(owner, "", value, int64(1000+i))
		if err := s.ApplyTransaction(cb, uint64(i)); err != nil {
			t.Fatalf("fund %s: %v", owner, err)
		}
	}
	return s
}

func TestNew_Deterministic(t *testing.T) {
	a1 := mustNew(t, "alice")
	a2 := mustNew(t, "alice")
	b := mustNew(t, "bob")

	if a1.Address() != a2.Address() {
		t.Error("same seed should give the same address")
	}
	if !bytes.Equal(a1.PublicKey(), a2.PublicKey()) {
		t.Error("same seed should give the same public key")
	}
	if a1.Address() == b.Address() {
		t.Error("different seeds should give different addresses")
	}
	if !a1.Address().IsKeyDerived() {
		t.Errorf("address %q should be 40 hex chars", a1.Address())
	}
	if a1.Address() != crypto.AddressFromPubKey(a1.PublicKey()) {
		t.Error("address should hash the public key")
	}
}

func TestNew_EmptySeed(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySeed) {
		t.Fatalf("New(\"\") = %v, want ErrEmptySeed", err)
	}
}

func TestWallet_Sign(t *testing.T) {
	w := mustNew(t, "alice")
	sig, err := w.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !crypto.VerifyData([]byte("payload"), sig, w.PublicKey()) {
		t.Error("signature should verify against the wallet key")
	}
	if crypto.VerifyData([]byte("other"), sig, w.PublicKey()) {
		t.Error("signature should not verify other data")
	}
}

func TestWallet_PublicKeyIsCopy(t *testing.T) {
	w := mustNew(t, "alice")
	pub := w.PublicKey()
	pub[0] ^= 0xff
	if bytes.Equal(pub, w.PublicKey()) {
		t.Error("PublicKey should return a copy")
	}
}

func TestWallet_SendAndBalance(t *testing.T) {
	alice := mustNew(t, "alice")
	bob := mustNew(t, "bob")
	set := fund(t, 50, alice.Address(), alice.Address(), bob.Address())
	before := set.Clone()

	if got := alice.Balance(set); got != 100 {
		t.Fatalf("alice balance = %d, want 100", got)
	}

	spend, err := alice.Send(bob.Address(), 70, set)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := spend.Verify(set); err != nil {
		t.Fatalf("built spend does not verify: %v", err)
	}
	if len(spend.Inputs) != 2 {
		t.Errorf("inputs = %d, want 2", len(spend.Inputs))
	}
	if len(spend.Outputs) != 2 ||
		spend.Outputs[0].Owner != bob.Address() || spend.Outputs[0].Value != 70 ||
		spend.Outputs[1].Owner != alice.Address() || spend.Outputs[1].Value != 30 {
		t.Errorf("outputs = %+v, want 70 to bob and 30 change", spend.Outputs)
	}
	if !set.Equal(before) {
		t.Error("Send must not modify the utxo snapshot")
	}
}

func TestWallet_SendInsufficientFunds(t *testing.T) {
	alice := mustNew(t, "alice")
	set := fund(t, 50, alice.Address())

	_, err := alice.Send("bob_addr", 51, set)
	var insufficient *tx.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Send(51) = %v, want InsufficientFundsError", err)
	}
	if insufficient.Available != 50 || insufficient.Needed != 51 {
		t.Errorf("error = %+v", insufficient)
	}
	if !errors.Is(err, tx.ErrInsufficientFunds) {
		t.Error("error should match ErrInsufficientFunds")
	}
}
