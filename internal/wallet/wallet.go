// Package wallet holds signing keys and builds spends for the ledger.
package wallet

import (
	"errors"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/hkdf"

	"github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// seedSalt separates wallet keys from any other use of the same seed string.
var seedSalt = []byte("utxoledger/wallet/v1")

// maxSeedAttempts bounds how many 32-byte candidates are drawn from the
// HKDF stream before giving up on an out-of-range scalar.
const maxSeedAttempts = 16

// ErrEmptySeed is returned by New for an empty seed string.
var ErrEmptySeed = errors.New("wallet seed is empty")

// Wallet is one secp256k1 key pair and its address.
type Wallet struct {
	key     *crypto.PrivateKey
	pubKey  []byte
	address types.Address
}

// New derives a wallet deterministically from a seed string. The same
// seed always yields the same key and address.
func New(seed string) (*Wallet, error) {
	if seed == "" {
		return nil, ErrEmptySeed
	}
	r := hkdf.New(sha256.New, []byte(seed), seedSalt, nil)
	buf := make([]byte, 32)
	for i := 0; i < maxSeedAttempts; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
		key, err := crypto.PrivateKeyFromBytes(buf)
		if errors.Is(err, crypto.ErrInvalidScalar) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
		return FromKey(key), nil
	}
	return nil, fmt.Errorf("derive key: %w", crypto.ErrInvalidScalar)
}

// FromKey wraps an existing private key.
func FromKey(key *crypto.PrivateKey) *Wallet {
	pub := key.PublicKey()
	return &Wallet{
		key:     key,
		pubKey:  pub,
		address: crypto.AddressFromPubKey(pub),
	}
}

// Address returns the wallet address.
func (w *Wallet) Address() types.Address {
	return w.address
}

// PublicKey returns a copy of the compressed public key.
func (w *Wallet) PublicKey() []byte {
	out := make([]byte, len(w.pubKey))
	copy(out, w.pubKey)
	return out
}

// Sign signs the hash of data.
func (w *Wallet) Sign(data []byte) ([]byte, error) {
	return w.key.SignData(data)
}

// Balance sums the outputs in utxos owned by this wallet.
func (w *Wallet) Balance(utxos tx.UTXOIterator) uint64 {
	var total uint64
	utxos.ForEachUnspent(func(_ types.Outpoint, out tx.Output) bool {
		if out.Owner == w.address {
			total += out.Value
		}
		return true
	})
	return total
}

// Send builds a signed transaction paying amount to to from this wallet's
// outputs in utxos, returning change to the wallet. utxos is not modified.
func (w *Wallet) Send(to types.Address, amount uint64, utxos tx.UTXOIterator) (*tx.Transaction, error) {
	t, err := tx.NewSpend(w, to, amount, utxos)
	if err != nil {
		log.Wallet.Debug().Err(err).
			Str("from", w.address.Short()).
			Str("to", to.Short()).
			Uint64("amount", amount).
			Msg("Spend not built")
		return nil, err
	}
	log.Wallet.Debug().
		Str("tx", t.ID.Short()).
		Str("from", w.address.Short()).
		Str("to", to.Short()).
		Uint64("amount", amount).
		Int("inputs", len(t.Inputs)).
		Msg("Spend built")
	return t, nil
}
