package wallet

import (
	"errors"
	"strings"
	"testing"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func mustKeychain(t *testing.T, mnemonic, passphrase string, account uint32) *Keychain {
	t.Helper()
	kc, err := OpenKeychain(mnemonic, passphrase, account)
	if err != nil {
		t.Fatalf("OpenKeychain: %v", err)
	}
	return kc
}

func mustDerive(t *testing.T, kc *Keychain, index uint32) *Wallet {
	t.Helper()
	w, err := kc.Wallet(index)
	if err != nil {
		t.Fatalf("Wallet(%d): %v", index, err)
	}
	return w
}

func TestNewMnemonic(t *testing.T) {
	m1, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	m2, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}

	if n := len(strings.Fields(m1)); n != 24 {
		t.Errorf("word count = %d, want 24", n)
	}
	if m1 == m2 {
		t.Error("two generated mnemonics should differ")
	}
	if _, err := OpenKeychain(m1, "", 0); err != nil {
		t.Errorf("generated mnemonic should open: %v", err)
	}
}

func TestOpenKeychain_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
	}{
		{"empty", ""},
		{"random words", "not a valid mnemonic phrase at all"},
		{"single word", "abandon"},
		{"wrong checksum", strings.Repeat("abandon ", 23) + "abandon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenKeychain(tt.mnemonic, "", 0); !errors.Is(err, ErrInvalidMnemonic) {
				t.Errorf("OpenKeychain() = %v, want ErrInvalidMnemonic", err)
			}
		})
	}
}

// The keychain must agree with a plain BIP-32 walk of m/44'/8888'/1'/0/3.
func TestKeychain_DerivationPath(t *testing.T) {
	seed := bip39.NewSeed(testMnemonic, "TREZOR")
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		t.Fatal(err)
	}
	h := bip32.FirstHardenedChild
	for _, idx := range []uint32{h + 44, h + 8888, h + 1, 0, 3} {
		if key, err = key.NewChildKey(idx); err != nil {
			t.Fatal(err)
		}
	}
	want := crypto.AddressFromPubKey(key.PublicKey().Key)

	w := mustDerive(t, mustKeychain(t, testMnemonic, "TREZOR", 1), 3)
	if w.Address() != want {
		t.Errorf("address = %s, want %s", w.Address(), want)
	}
	if !w.Address().IsKeyDerived() {
		t.Errorf("address %q should be 40 hex chars", w.Address())
	}
}

func TestKeychain_DistinctWallets(t *testing.T) {
	base := mustDerive(t, mustKeychain(t, testMnemonic, "", 0), 0)

	tests := []struct {
		name       string
		passphrase string
		account    uint32
		index      uint32
	}{
		{"next index", "", 0, 1},
		{"other account", "", 1, 0},
		{"passphrase", "TREZOR", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mustDerive(t, mustKeychain(t, testMnemonic, tt.passphrase, tt.account), tt.index)
			if w.Address() == base.Address() {
				t.Error("address should differ from account 0 index 0")
			}
		})
	}
}

func TestKeychain_WhitespaceInsensitive(t *testing.T) {
	messy := "  " + strings.ReplaceAll(testMnemonic, " ", " \n\t") + "\n"
	a := mustDerive(t, mustKeychain(t, testMnemonic, "", 0), 0)
	b := mustDerive(t, mustKeychain(t, messy, "", 0), 0)
	if a.Address() != b.Address() {
		t.Error("reformatted phrase should derive the same wallet")
	}
}

func TestKeychain_HardenedIndexRejected(t *testing.T) {
	kc := mustKeychain(t, testMnemonic, "", 0)
	if _, err := kc.Wallet(bip32.FirstHardenedChild); err == nil {
		t.Error("hardened index should be rejected")
	}
}

func TestFromMnemonic(t *testing.T) {
	w0, err := FromMnemonic(testMnemonic, "", 2)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	again := mustDerive(t, mustKeychain(t, testMnemonic, "", 0), 2)
	if w0.Address() != again.Address() {
		t.Error("FromMnemonic should match account 0 of the keychain")
	}

	sig, err := w0.Sign([]byte("spend"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !crypto.VerifyData([]byte("spend"), sig, w0.PublicKey()) {
		t.Error("signature from a mnemonic wallet should verify")
	}

	if _, err := FromMnemonic("bogus words", "", 0); !errors.Is(err, ErrInvalidMnemonic) {
		t.Errorf("FromMnemonic(bogus) = %v, want ErrInvalidMnemonic", err)
	}
}
