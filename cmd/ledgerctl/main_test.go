package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/utxoledger/internal/ledger"
	klog "github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/internal/mempool"
	"github.com/Klingon-tech/utxoledger/internal/rpc"
	"github.com/Klingon-tech/utxoledger/internal/wallet"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/crypto"
)

type producer struct {
	ledger *ledger.Ledger
	pool   *mempool.Pool
}

func (p *producer) MinePending(ctx context.Context) (*block.Block, error) {
	blk, err := p.ledger.AddBlock(ctx, p.pool.SelectForBlock(-1), "miner")
	if err != nil {
		return nil, err
	}
	p.pool.RemoveConfirmed(blk.Transactions[1:])
	return blk, nil
}

// startNode serves a fresh ledger whose genesis pays the "alice" wallet.
func startNode(t *testing.T) (string, *ledger.Ledger) {
	t.Helper()
	klog.Init("error", false, "")

	alice, err := wallet.New("alice")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	l, err := ledger.New(ledger.Config{
		Name:           "ctl-test",
		Difficulty:     1,
		GenesisAddress: alice.Address(),
		Now:            func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	pool := mempool.New(l, 100)
	srv := rpc.New("127.0.0.1:0", l, pool, &producer{ledger: l, pool: pool}, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return fmt.Sprintf("http://%s/", srv.Addr()), l
}

func ctl(t *testing.T, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), append([]string{"--rpc", url}, args...), &out)
	return out.String(), err
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"help"}, &out); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(out.String(), "Usage: ledgerctl") {
		t.Errorf("usage output = %q", out.String())
	}

	tests := [][]string{
		nil,
		{"frobnicate"},
		{"--rpc=http://127.0.0.1:1/", "block"},
		{"--rpc=http://127.0.0.1:1/", "send", "--to", "bob"},
		{"--rpc=http://127.0.0.1:1/", "balance"},
	}
	for _, args := range tests {
		err := run(context.Background(), args, &out)
		if !errors.Is(err, errUsage) {
			t.Errorf("run(%v) = %v, want usage error", args, err)
		}
	}
}

func TestStatusAndBlock(t *testing.T) {
	url, l := startNode(t)

	out, err := ctl(t, url, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Chain:      ctl-test", "Height:     0", "Supply:     50"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	byHeight, err := ctl(t, url, "block", "0")
	if err != nil {
		t.Fatalf("block 0: %v", err)
	}
	byHash, err := ctl(t, url, "block", l.TipHash().String())
	if err != nil {
		t.Fatalf("block <hash>: %v", err)
	}
	if byHeight != byHash {
		t.Errorf("block by height and hash differ:\n%s\n%s", byHeight, byHash)
	}
	if !strings.Contains(byHeight, "Transactions: 1") {
		t.Errorf("genesis block output:\n%s", byHeight)
	}

	if _, err := ctl(t, url, "block", "9"); err == nil {
		t.Error("expected error for missing block")
	}
}

func TestSendMineFlow(t *testing.T) {
	url, l := startNode(t)

	out, err := ctl(t, url, "send", "--seed", "alice", "--to", "bob", "--amount", "30")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(out, "Submitted: ") {
		t.Fatalf("send output = %q", out)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "Submitted: "))

	out, err = ctl(t, url, "mempool")
	if err != nil || !strings.Contains(out, "Pending: 1") || !strings.Contains(out, id) {
		t.Fatalf("mempool = %q, %v", out, err)
	}

	out, err = ctl(t, url, "tx", id)
	if err != nil || !strings.Contains(out, "Status:   pending") {
		t.Fatalf("tx pending = %q, %v", out, err)
	}

	out, err = ctl(t, url, "mine")
	if err != nil || !strings.Contains(out, "Mined block 1") {
		t.Fatalf("mine = %q, %v", out, err)
	}

	out, err = ctl(t, url, "tx", id)
	if err != nil || !strings.Contains(out, "confirmed in block 1") || !strings.Contains(out, "30 -> bob") {
		t.Fatalf("tx confirmed = %q, %v", out, err)
	}

	out, err = ctl(t, url, "balance", "bob")
	if err != nil || strings.TrimSpace(out) != "bob: 30" {
		t.Errorf("balance bob = %q, %v", out, err)
	}
	out, err = ctl(t, url, "balance", "--seed", "alice")
	if err != nil || !strings.HasSuffix(strings.TrimSpace(out), ": 20") {
		t.Errorf("balance alice = %q, %v", out, err)
	}

	out, err = ctl(t, url, "utxos", "bob")
	if err != nil || !strings.Contains(out, "1 outputs, 30 total") {
		t.Errorf("utxos bob = %q, %v", out, err)
	}

	out, err = ctl(t, url, "validate")
	if err != nil || strings.TrimSpace(out) != "Chain valid" {
		t.Errorf("validate = %q, %v", out, err)
	}
	if l.Height() != 1 {
		t.Errorf("height = %d, want 1", l.Height())
	}
}

func TestSend_InsufficientFunds(t *testing.T) {
	url, _ := startNode(t)

	_, err := ctl(t, url, "send", "--seed", "alice", "--to", "bob", "--amount", "51")
	if err == nil || !strings.Contains(err.Error(), "build transaction") {
		t.Errorf("expected build error, got %v", err)
	}
}

func TestAddress(t *testing.T) {
	w, err := wallet.New("alice")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	var out bytes.Buffer
	if err := run(context.Background(), []string{"address", "--seed", "alice"}, &out); err != nil {
		t.Fatalf("address: %v", err)
	}
	if strings.TrimSpace(out.String()) != w.Address().String() {
		t.Errorf("address = %q, want %s", out.String(), w.Address())
	}
}

func TestAddress_KeyFile(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.hex")
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key.Serialize())+"\n"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), []string{"address", "--key", path}, &out); err != nil {
		t.Fatalf("address --key: %v", err)
	}
	want := wallet.FromKey(key).Address()
	if !strings.Contains(out.String(), "address="+want.String()) {
		t.Errorf("output = %q, want address %s", out.String(), want)
	}
	if !strings.Contains(out.String(), "pubkey="+hex.EncodeToString(key.PublicKey())) {
		t.Errorf("output = %q missing pubkey", out.String())
	}
}

func TestMnemonicWalletFlow(t *testing.T) {
	url, _ := startNode(t)
	phraseFile := filepath.Join(t.TempDir(), "wallet.words")

	out, err := ctl(t, url, "mnemonic", "--out", phraseFile)
	if err != nil {
		t.Fatalf("mnemonic: %v", err)
	}
	data, err := os.ReadFile(phraseFile)
	if err != nil {
		t.Fatalf("read phrase: %v", err)
	}
	w0, err := wallet.FromMnemonic(string(data), "", 0)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if !strings.Contains(out, "address="+w0.Address().String()) {
		t.Fatalf("mnemonic output = %q, want address %s", out, w0.Address())
	}

	w1, _ := wallet.FromMnemonic(string(data), "", 1)
	out, err = ctl(t, url, "address", "--mnemonic", phraseFile, "--index", "1")
	if err != nil || strings.TrimSpace(out) != w1.Address().String() {
		t.Fatalf("address --index 1 = %q, %v; want %s", out, err, w1.Address())
	}

	if _, err := ctl(t, url, "send", "--seed", "alice", "--to", w0.Address().String(), "--amount", "40"); err != nil {
		t.Fatalf("fund mnemonic wallet: %v", err)
	}
	if _, err := ctl(t, url, "mine"); err != nil {
		t.Fatalf("mine: %v", err)
	}
	if _, err := ctl(t, url, "send", "--mnemonic", phraseFile, "--to", "bob", "--amount", "15"); err != nil {
		t.Fatalf("send from mnemonic wallet: %v", err)
	}
	if _, err := ctl(t, url, "mine"); err != nil {
		t.Fatalf("mine: %v", err)
	}

	out, err = ctl(t, url, "balance", "--mnemonic", phraseFile)
	if err != nil || strings.TrimSpace(out) != w0.Address().String()+": 25" {
		t.Errorf("balance --mnemonic = %q, %v", out, err)
	}
	out, err = ctl(t, url, "balance", "bob")
	if err != nil || strings.TrimSpace(out) != "bob: 15" {
		t.Errorf("balance bob = %q, %v", out, err)
	}
}

func TestMnemonic_Stdout(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"mnemonic"}, &out); err != nil {
		t.Fatalf("mnemonic: %v", err)
	}
	if n := len(strings.Fields(out.String())); n != 24 {
		t.Errorf("word count = %d, want 24", n)
	}
}

func TestWalletFlags_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.words")
	if err := os.WriteFile(bad, []byte("not a mnemonic\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"seed and mnemonic", []string{"address", "--seed", "alice", "--mnemonic", bad}, errUsage},
		{"hardened index", []string{"address", "--mnemonic", bad, "--index", "2147483648"}, errUsage},
		{"invalid phrase", []string{"address", "--mnemonic", bad}, wallet.ErrInvalidMnemonic},
		{"missing file", []string{"address", "--mnemonic", filepath.Join(dir, "none")}, os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), tt.args, &out)
			if !errors.Is(err, tt.want) {
				t.Errorf("run(%v) = %v, want %v", tt.args, err, tt.want)
			}
		})
	}
}
