package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
)

// Mnemonic wallets live at m/44'/8888'/account'/0/index.
const (
	pathPurpose  = bip32.FirstHardenedChild + 44
	pathCoinType = bip32.FirstHardenedChild + 8888
	pathExternal = 0
)

// mnemonicEntropyBits yields 24-word phrases.
const mnemonicEntropyBits = 256

// ErrInvalidMnemonic is returned for a phrase with unknown words or a bad checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// NewMnemonic returns a fresh 24-word BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encode mnemonic: %w", err)
	}
	return phrase, nil
}

// Keychain derives a numbered series of wallets from one mnemonic account.
type Keychain struct {
	branch  *bip32.Key // m/44'/8888'/account'/0
	account uint32
}

// OpenKeychain checks the phrase and derives the receiving branch of
// account. Runs of whitespace in the phrase are collapsed first, so a
// phrase pasted across lines opens the same keychain.
func OpenKeychain(mnemonic, passphrase string, account uint32) (*Keychain, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, idx := range []uint32{pathPurpose, pathCoinType, bip32.FirstHardenedChild + account, pathExternal} {
		if key, err = key.NewChildKey(idx); err != nil {
			return nil, fmt.Errorf("derive account %d: %w", account, err)
		}
	}
	return &Keychain{branch: key, account: account}, nil
}

// Wallet returns the wallet at index on the keychain's branch.
func (kc *Keychain) Wallet(index uint32) (*Wallet, error) {
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("wallet index %d out of range", index)
	}
	child, err := kc.branch.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive wallet %d/%d: %w", kc.account, index, err)
	}
	key, err := crypto.PrivateKeyFromBytes(child.Key)
	if err != nil {
		return nil, fmt.Errorf("derive wallet %d/%d: %w", kc.account, index, err)
	}
	return FromKey(key), nil
}

// FromMnemonic returns wallet index of account 0.
func FromMnemonic(mnemonic, passphrase string, index uint32) (*Wallet, error) {
	kc, err := OpenKeychain(mnemonic, passphrase, 0)
	if err != nil {
		return nil, err
	}
	return kc.Wallet(index)
}
