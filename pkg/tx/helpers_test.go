package tx

import (
	"sort"
	"testing"

	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/types"
)

// keySigner signs with a raw private key.
type keySigner struct {
	key *crypto.PrivateKey
}

func newKeySigner(t *testing.T) *keySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &keySigner{key: key}
}

func (s *keySigner) Address() types.Address           { return crypto.AddressFromPubKey(s.key.PublicKey()) }
func (s *keySigner) PublicKey() []byte                { return s.key.PublicKey() }
func (s *keySigner) Sign(data []byte) ([]byte, error) { return s.key.SignData(data) }

// mockUTXOs is a simple in-memory UTXO snapshot for testing.
type mockUTXOs struct {
	outputs map[types.Outpoint]Output
}

func newMockUTXOs() *mockUTXOs {
	return &mockUTXOs{outputs: make(map[types.Outpoint]Output)}
}

func (m *mockUTXOs) add(op types.Outpoint, value uint64, owner types.Address) {
	m.outputs[op] = Output{Value: value, Owner: owner}
}

// addTx records every output of t as unspent.
func (m *mockUTXOs) addTx(t *Transaction) {
	for i, out := range t.Outputs {
		m.outputs[types.Outpoint{TxID: t.ID, Index: uint32(i)}] = out
	}
}

func (m *mockUTXOs) GetOutput(op types.Outpoint) (Output, bool) {
	out, ok := m.outputs[op]
	return out, ok
}

func (m *mockUTXOs) ForEachUnspent(fn func(types.Outpoint, Output) bool) {
	ops := make([]types.Outpoint, 0, len(m.outputs))
	for op := range m.outputs {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Less(ops[j]) })
	for _, op := range ops {
		if !fn(op, m.outputs[op]) {
			return
		}
	}
}
