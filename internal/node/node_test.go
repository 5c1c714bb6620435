package node

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/internal/ledger"
	"github.com/Klingon-tech/utxoledger/internal/mempool"
	"github.com/Klingon-tech/utxoledger/internal/rpcclient"
	"github.com/Klingon-tech/utxoledger/internal/wallet"
)

var testTime = time.Unix(1_700_000_000, 0)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Chain.Name = "node-test"
	cfg.Chain.Difficulty = 1
	return cfg
}

func newTestNode(t *testing.T, cfg *config.Config, opts Options) *Node {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testTime }
	}
	n, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNew_GenesisFromSeed(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	alice, err := n.Wallet("alice")
	if err != nil {
		t.Fatalf("Wallet: %v", err)
	}
	if got := n.Ledger().Balance(alice.Address()); got != 50 {
		t.Errorf("alice balance = %d, want 50", got)
	}
	miner, _ := n.Wallet("miner")
	if n.Coinbase() != miner.Address() {
		t.Errorf("coinbase = %s, want %s", n.Coinbase(), miner.Address())
	}
}

func TestNew_CoinbaseFromMnemonic(t *testing.T) {
	const phrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	cfg := testConfig(t)
	cfg.Mining.Coinbase = ""
	cfg.Mining.Mnemonic = phrase
	cfg.Mining.MnemonicIndex = 2
	n := newTestNode(t, cfg, Options{})
	defer n.Stop()

	want, err := wallet.FromMnemonic(phrase, "", 2)
	if err != nil {
		t.Fatalf("FromMnemonic: %v", err)
	}
	if n.Coinbase() != want.Address() {
		t.Fatalf("coinbase = %s, want %s", n.Coinbase(), want.Address())
	}
	if _, err := n.MineBlock(context.Background(), nil); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	if got := n.Ledger().Balance(want.Address()); got != 50 {
		t.Errorf("mnemonic wallet balance = %d, want 50", got)
	}
}

func TestNew_BadCoinbaseMnemonic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mining.Mnemonic = "not a mnemonic"
	_, err := New(cfg, Options{})
	if !errors.Is(err, wallet.ErrInvalidMnemonic) {
		t.Fatalf("New() = %v, want ErrInvalidMnemonic", err)
	}
}

func TestNew_GenesisAddressOverridesSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.GenesisAddress = "alice_addr"
	n := newTestNode(t, cfg, Options{})
	defer n.Stop()

	if got := n.Ledger().Balance("alice_addr"); got != 50 {
		t.Errorf("alice_addr balance = %d, want 50", got)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chain.Difficulty = config.MaxDifficulty + 1
	if _, err := New(cfg, Options{}); err == nil {
		t.Fatal("expected error for out-of-range difficulty")
	}
}

func TestWallet_Cached(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	a, _ := n.Wallet("bob")
	b, _ := n.Wallet("bob")
	if a != b {
		t.Error("Wallet returned a different instance for the same seed")
	}
	if _, err := n.Wallet(""); err == nil {
		t.Error("expected error for empty seed")
	}
}

func TestRunScenario_Demo(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	var out bytes.Buffer
	if err := n.RunScenario(context.Background(), DemoScenario, DemoWallets, &out); err != nil {
		t.Fatalf("RunScenario: %v", err)
	}

	want := map[string]uint64{
		"alice":   15, // 50 - 30 - 10 + 5
		"bob":     10, // 30 - 15 - 5
		"charlie": 25, // 15 + 10
		"miner":   150,
	}
	var total uint64
	for name, bal := range want {
		w, _ := n.Wallet(name)
		got := n.Ledger().Balance(w.Address())
		if got != bal {
			t.Errorf("%s balance = %d, want %d", name, got, bal)
		}
		total += got
	}
	if total != n.Ledger().Supply() {
		t.Errorf("balances sum to %d, supply is %d", total, n.Ledger().Supply())
	}
	if h := n.Ledger().Height(); h != 3 {
		t.Errorf("height = %d, want 3", h)
	}
	if !strings.Contains(out.String(), "Balances after block 3") {
		t.Errorf("report missing final balances:\n%s", out.String())
	}
}

func TestRunScenario_InsufficientFunds(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	steps := []Step{{Label: "bob overspends", Transfers: []Transfer{
		{From: "bob", To: "alice", Amount: 1},
	}}}
	err := n.RunScenario(context.Background(), steps, DemoWallets, io.Discard)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bob overspends") {
		t.Errorf("error %q does not name the step", err)
	}
	if h := n.Ledger().Height(); h != 0 {
		t.Errorf("height = %d, want 0", h)
	}
}

func TestReport(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	if err := n.RunScenario(context.Background(), DemoScenario[:1], DemoWallets, io.Discard); err != nil {
		t.Fatalf("RunScenario: %v", err)
	}

	var out bytes.Buffer
	if err := n.PrintChain(&out); err != nil {
		t.Fatalf("PrintChain: %v", err)
	}
	if err := n.PrintUTXOs(&out); err != nil {
		t.Fatalf("PrintUTXOs: %v", err)
	}
	if err := n.Verify(&out); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	s := out.String()
	for _, want := range []string{
		"Block #0",
		"Block #1",
		`coinbase "Genesis Block"`,
		"(block 1)",
		"UTXO set (3 outputs",
		"chain:  valid (2 blocks)",
		"consistent with replay",
		"supply: 100 coins",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMineBlock_AfterStop(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	n.Stop()

	_, err := n.MineBlock(context.Background(), nil)
	if !errors.Is(err, ledger.ErrMiningCancelled) {
		t.Fatalf("MineBlock after Stop: err = %v, want ErrMiningCancelled", err)
	}
}

func TestNode_BoltReset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.StorageBolt
	cfg.Storage.Path = filepath.Join(t.TempDir(), "chain.db")

	n := newTestNode(t, cfg, Options{})
	if _, err := n.MineBlock(context.Background(), nil); err != nil {
		t.Fatalf("MineBlock: %v", err)
	}
	n.Stop()

	if _, err := New(cfg, Options{}); !errors.Is(err, ledger.ErrStoreNotEmpty) {
		t.Fatalf("reopen without reset: err = %v, want ErrStoreNotEmpty", err)
	}

	n = newTestNode(t, cfg, Options{Reset: true})
	defer n.Stop()
	if h := n.Ledger().Height(); h != 0 {
		t.Errorf("height after reset = %d, want 0", h)
	}
}

func TestNodeLifecycle_Metrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = "127.0.0.1:0"

	n := newTestNode(t, cfg, Options{})
	if err := n.Start(); err != nil {
		n.Stop()
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	addr := n.MetricsAddr()
	if addr == "" {
		t.Fatal("metrics address is empty")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `utxoledger_ledger_height{chain="node-test"}`) {
		t.Error("metrics output missing ledger height gauge")
	}
}

func TestNodeLifecycle_RPC(t *testing.T) {
	cfg := testConfig(t)
	cfg.RPC.Enabled = true
	cfg.RPC.Addr = "127.0.0.1:0"

	n := newTestNode(t, cfg, Options{})
	if err := n.Start(); err != nil {
		n.Stop()
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop()

	addr := n.RPCAddr()
	if addr == "" {
		t.Fatal("rpc address is empty")
	}
	client := rpcclient.New("http://" + addr + "/")
	ctx := context.Background()

	alice, err := n.Wallet("alice")
	if err != nil {
		t.Fatalf("Wallet: %v", err)
	}
	spend, err := alice.Send("bob", 20, n.Ledger().UTXOs())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := client.Submit(ctx, spend); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	mined, err := client.Mine(ctx)
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if mined.Height != 1 || len(mined.TxIDs) != 2 {
		t.Errorf("mined = %+v", mined)
	}
	if got := n.Ledger().Balance(n.Coinbase()); got != 50 {
		t.Errorf("coinbase balance = %d, want 50", got)
	}
	if got := n.Ledger().Balance("bob"); got != 20 {
		t.Errorf("bob balance = %d, want 20", got)
	}
}

func TestStart_ServicesDisabled(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	if err := n.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if addr := n.MetricsAddr(); addr != "" {
		t.Errorf("MetricsAddr = %q, want empty", addr)
	}
	if addr := n.RPCAddr(); addr != "" {
		t.Errorf("RPCAddr = %q, want empty", addr)
	}
}

func TestSubmit_MinePending(t *testing.T) {
	n := newTestNode(t, testConfig(t), Options{})
	defer n.Stop()

	alice, _ := n.Wallet("alice")
	bob, _ := n.Wallet("bob")
	charlie, _ := n.Wallet("charlie")

	snapshot := n.Ledger().UTXOs()
	toBob, err := alice.Send(bob.Address(), 30, snapshot)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	toCharlie, err := alice.Send(charlie.Address(), 30, snapshot)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := n.Submit(toBob); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := n.Submit(toCharlie); !errors.Is(err, mempool.ErrConflict) {
		t.Fatalf("Submit conflicting spend: err = %v, want ErrConflict", err)
	}
	if c := n.Pool().Count(); c != 1 {
		t.Fatalf("pending = %d, want 1", c)
	}

	blk, err := n.MinePending(context.Background())
	if err != nil {
		t.Fatalf("MinePending: %v", err)
	}
	if len(blk.Transactions) != 2 || blk.Transactions[1].ID != toBob.ID {
		t.Errorf("block holds %d txs, want coinbase + toBob", len(blk.Transactions))
	}
	if c := n.Pool().Count(); c != 0 {
		t.Errorf("pending after mining = %d, want 0", c)
	}
	if got := n.Ledger().Balance(bob.Address()); got != 30 {
		t.Errorf("bob balance = %d, want 30", got)
	}

	// The losing spend now references a consumed output.
	if err := n.Submit(toCharlie); !errors.Is(err, mempool.ErrValidation) {
		t.Errorf("Submit stale spend: err = %v, want ErrValidation", err)
	}
}
