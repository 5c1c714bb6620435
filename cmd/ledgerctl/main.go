// ledgerctl is a command-line client for interacting with a ledgerd node.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Klingon-tech/utxoledger/internal/rpc"
	"github.com/Klingon-tech/utxoledger/internal/rpcclient"
	"github.com/Klingon-tech/utxoledger/internal/utxo"
	"github.com/Klingon-tech/utxoledger/internal/wallet"
	"github.com/Klingon-tech/utxoledger/pkg/crypto"
	"github.com/Klingon-tech/utxoledger/pkg/types"
	"golang.org/x/term"
)

const defaultRPC = "http://127.0.0.1:8645"

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	rpcURL := defaultRPC
	if env := os.Getenv("LEDGER_RPC"); env != "" {
		rpcURL = env
	}

	// Scan for --rpc before the subcommand.
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	client := rpcclient.New(rpcURL)
	cmd, cmdArgs := args[0], args[1:]

	switch cmd {
	case "status":
		return cmdStatus(ctx, client, out)
	case "block":
		return cmdBlock(ctx, client, cmdArgs, out)
	case "tx":
		return cmdTx(ctx, client, cmdArgs, out)
	case "balance":
		return cmdBalance(ctx, client, cmdArgs, out)
	case "utxos":
		return cmdUTXOs(ctx, client, cmdArgs, out)
	case "address":
		return cmdAddress(cmdArgs, out)
	case "mnemonic":
		return cmdMnemonic(cmdArgs, out)
	case "send":
		return cmdSend(ctx, client, cmdArgs, out)
	case "mempool":
		return cmdMempool(ctx, client, out)
	case "mine":
		return cmdMine(ctx, client, out)
	case "validate":
		return cmdValidate(ctx, client, out)
	case "help", "--help", "-h":
		usage(out)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `Usage: ledgerctl [--rpc <url>] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: %s, or $LEDGER_RPC)

Commands:
  status                          Show chain status
  block <hash|height>             Show block details
  tx <hash>                       Show transaction details
  balance <address>               Show address balance
  balance <wallet flags>          Show balance of a local wallet
  utxos <address>                 List unspent outputs of an address
  address [wallet flags]          Derive a wallet address locally
  address --key <file>            Show pubkey and address of a hex private key
  mnemonic [--out <file>]         Generate a 24-word BIP-39 phrase
  send [wallet flags] --to <addr> --amount <n>
                                  Build, sign and submit a transfer

Wallet flags:
  --seed <s>          Seed string (prompted on a terminal when no flag is given)
  --mnemonic <file>   File holding a BIP-39 phrase
  --index <n>         Wallet index under --mnemonic (default: 0)
  mempool                         List pending transactions
  mine                            Mine pending transactions into a block
  validate                        Re-validate the whole chain
`, defaultRPC)
}

// ── status ──────────────────────────────────────────────────────────────

func cmdStatus(ctx context.Context, client *rpcclient.Client, out io.Writer) error {
	info, err := client.ChainInfo(ctx)
	if err != nil {
		return fmt.Errorf("chain_getInfo: %w", err)
	}

	fmt.Fprintf(out, "Chain:      %s\n", info.Name)
	fmt.Fprintf(out, "Height:     %d\n", info.Height)
	fmt.Fprintf(out, "Tip:        %s\n", info.TipHash)
	fmt.Fprintf(out, "Difficulty: %d\n", info.Difficulty)
	fmt.Fprintf(out, "Reward:     %d\n", info.Reward)
	fmt.Fprintf(out, "Supply:     %d\n", info.Supply)
	fmt.Fprintf(out, "UTXOs:      %d (commitment %s)\n", info.UTXOCount, info.UTXOCommitment)
	return nil
}

// ── block ───────────────────────────────────────────────────────────────

func cmdBlock(ctx context.Context, client *rpcclient.Client, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: ledgerctl block <hash|height>", errUsage)
	}

	arg := args[0]
	var (
		blk *rpc.BlockResult
		err error
	)
	// Try as height first (pure number).
	if height, perr := strconv.ParseUint(arg, 10, 64); perr == nil {
		if blk, err = client.BlockByHeight(ctx, height); err != nil {
			return fmt.Errorf("chain_getBlockByHeight: %w", err)
		}
	} else if blk, err = client.BlockByHash(ctx, arg); err != nil {
		return fmt.Errorf("chain_getBlockByHash: %w", err)
	}

	h := blk.Header
	fmt.Fprintf(out, "Index:        %d\n", h.Index)
	fmt.Fprintf(out, "Hash:         %s\n", blk.Hash)
	fmt.Fprintf(out, "Prev:         %s\n", h.PrevHash)
	fmt.Fprintf(out, "Merkle Root:  %s\n", h.MerkleRoot)
	ts := time.Unix(h.Timestamp, 0).UTC()
	fmt.Fprintf(out, "Timestamp:    %s\n", ts.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(out, "Nonce:        %d\n", h.Nonce)
	fmt.Fprintf(out, "Transactions: %d\n", len(blk.Transactions))
	for i, t := range blk.Transactions {
		fmt.Fprintf(out, "  [%d] %s\n", i, t.ID)
	}
	return nil
}

// ── tx ──────────────────────────────────────────────────────────────────

func cmdTx(ctx context.Context, client *rpcclient.Client, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: ledgerctl tx <hash>", errUsage)
	}

	res, err := client.Transaction(ctx, args[0])
	if err != nil {
		return fmt.Errorf("chain_getTransaction: %w", err)
	}
	t := res.Transaction

	fmt.Fprintf(out, "ID:       %s\n", t.ID)
	if res.Pending {
		fmt.Fprintln(out, "Status:   pending")
	} else {
		fmt.Fprintf(out, "Status:   confirmed in block %d\n", res.Height)
	}
	if t.IsCoinbase() {
		fmt.Fprintf(out, "Coinbase: %q\n", t.Memo())
	} else {
		fmt.Fprintf(out, "Inputs:   %d\n", len(t.Inputs))
		for i, in := range t.Inputs {
			fmt.Fprintf(out, "  [%d] %s\n", i, in.PrevOut)
		}
	}
	fmt.Fprintf(out, "Outputs:  %d\n", len(t.Outputs))
	for i, o := range t.Outputs {
		fmt.Fprintf(out, "  [%d] %d -> %s\n", i, o.Value, o.Owner)
	}
	return nil
}

// ── balance / utxos / address ───────────────────────────────────────────

func cmdBalance(ctx context.Context, client *rpcclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	wf := addWalletFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	addr, err := addressArg(fs.Args(), wf)
	if err != nil {
		return err
	}
	bal, err := client.Balance(ctx, addr)
	if err != nil {
		return fmt.Errorf("utxo_getBalance: %w", err)
	}
	fmt.Fprintf(out, "%s: %d\n", addr, bal)
	return nil
}

func cmdUTXOs(ctx context.Context, client *rpcclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("utxos", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	wf := addWalletFlags(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	addr, err := addressArg(fs.Args(), wf)
	if err != nil {
		return err
	}
	list, err := client.UTXOs(ctx, addr)
	if err != nil {
		return fmt.Errorf("utxo_getByAddress: %w", err)
	}

	var total uint64
	for _, u := range list.UTXOs {
		kind := ""
		if u.Coinbase {
			kind = " (coinbase)"
		}
		fmt.Fprintf(out, "%s  %d  height %d%s\n", u.Outpoint, u.Value, u.Height, kind)
		total += u.Value
	}
	fmt.Fprintf(out, "%d outputs, %d total\n", len(list.UTXOs), total)
	return nil
}

func cmdAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	wf := addWalletFlags(fs)
	keyFile := fs.String("key", "", "File holding a hex-encoded private key")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if *keyFile != "" {
		w, err := walletFromKeyFile(*keyFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pubkey=%s\n", hex.EncodeToString(w.PublicKey()))
		fmt.Fprintf(out, "address=%s\n", w.Address())
		return nil
	}

	w, err := wf.load()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, w.Address())
	return nil
}

// cmdMnemonic prints a new phrase, or writes it to --out and prints the
// address of its first wallet.
func cmdMnemonic(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("mnemonic", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	outFile := fs.String("out", "", "Write the phrase to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	phrase, err := wallet.NewMnemonic()
	if err != nil {
		return err
	}
	if *outFile == "" {
		fmt.Fprintln(out, phrase)
		return nil
	}
	if err := os.WriteFile(*outFile, []byte(phrase+"\n"), 0o600); err != nil {
		return fmt.Errorf("write mnemonic: %w", err)
	}
	w, err := wallet.FromMnemonic(phrase, "", 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Mnemonic written to %s\n", *outFile)
	fmt.Fprintf(out, "address=%s\n", w.Address())
	return nil
}

func walletFromKeyFile(path string) (*wallet.Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, err
	}
	return wallet.FromKey(key), nil
}

// addressArg resolves a positional address, or the address of the
// wallet selected by wf.
func addressArg(args []string, wf *walletFlags) (types.Address, error) {
	if wf.given() {
		w, err := wf.load()
		if err != nil {
			return "", err
		}
		return w.Address(), nil
	}
	if len(args) < 1 {
		return "", fmt.Errorf("%w: an address or wallet flag is required", errUsage)
	}
	addr, err := types.ParseAddress(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid address: %w", err)
	}
	return addr, nil
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(ctx context.Context, client *rpcclient.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	wf := addWalletFlags(fs)
	toAddr := fs.String("to", "", "Recipient address")
	amount := fs.Uint64("amount", 0, "Amount to send")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *toAddr == "" || *amount == 0 {
		return fmt.Errorf("%w: ledgerctl send [wallet flags] --to <addr> --amount <n>", errUsage)
	}

	to, err := types.ParseAddress(*toAddr)
	if err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	w, err := wf.load()
	if err != nil {
		return err
	}

	// Coin selection runs locally over the sender's remote outputs.
	list, err := client.UTXOs(ctx, w.Address())
	if err != nil {
		return fmt.Errorf("utxo_getByAddress: %w", err)
	}
	set := utxo.NewSet()
	for _, u := range list.UTXOs {
		set.Put(u)
	}

	spend, err := w.Send(to, *amount, set)
	if err != nil {
		return fmt.Errorf("build transaction: %w", err)
	}
	id, err := client.Submit(ctx, spend)
	if err != nil {
		return fmt.Errorf("tx_submit: %w", err)
	}
	fmt.Fprintf(out, "Submitted: %s\n", id)
	return nil
}

// walletFlags select the local signing wallet.
type walletFlags struct {
	seed     string
	mnemonic string // path to a file holding the phrase
	index    uint
}

func addWalletFlags(fs *flag.FlagSet) *walletFlags {
	wf := &walletFlags{}
	fs.StringVar(&wf.seed, "seed", "", "Wallet seed")
	fs.StringVar(&wf.mnemonic, "mnemonic", "", "File holding a BIP-39 phrase")
	fs.UintVar(&wf.index, "index", 0, "Wallet index under --mnemonic")
	return wf
}

func (wf *walletFlags) given() bool {
	return wf.seed != "" || wf.mnemonic != ""
}

func (wf *walletFlags) load() (*wallet.Wallet, error) {
	if wf.mnemonic == "" {
		return loadWallet(wf.seed)
	}
	if wf.seed != "" {
		return nil, fmt.Errorf("%w: --seed and --mnemonic are exclusive", errUsage)
	}
	if wf.index >= 1<<31 {
		return nil, fmt.Errorf("%w: --index must be below 2^31", errUsage)
	}
	data, err := os.ReadFile(wf.mnemonic)
	if err != nil {
		return nil, fmt.Errorf("read mnemonic: %w", err)
	}
	return wallet.FromMnemonic(string(data), "", uint32(wf.index))
}

// loadWallet derives the wallet for seed, prompting on a terminal when
// seed is empty.
func loadWallet(seed string) (*wallet.Wallet, error) {
	if seed == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			return nil, fmt.Errorf("%w: --seed or --mnemonic is required", errUsage)
		}
		fmt.Fprint(os.Stderr, "Enter wallet seed: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr) // newline after hidden input
		if err != nil {
			return nil, fmt.Errorf("read seed: %w", err)
		}
		seed = string(b)
	}
	return wallet.New(seed)
}

// ── mempool / mine / validate ───────────────────────────────────────────

func cmdMempool(ctx context.Context, client *rpcclient.Client, out io.Writer) error {
	hashes, err := client.Mempool(ctx)
	if err != nil {
		return fmt.Errorf("mempool_getContent: %w", err)
	}
	fmt.Fprintf(out, "Pending: %d\n", len(hashes))
	for _, h := range hashes {
		fmt.Fprintf(out, "  %s\n", h)
	}
	return nil
}

func cmdMine(ctx context.Context, client *rpcclient.Client, out io.Writer) error {
	res, err := client.Mine(ctx)
	if err != nil {
		return fmt.Errorf("mining_mine: %w", err)
	}
	fmt.Fprintf(out, "Mined block %d: %s (nonce %d, %d txs)\n", res.Height, res.Hash, res.Nonce, len(res.TxIDs))
	return nil
}

func cmdValidate(ctx context.Context, client *rpcclient.Client, out io.Writer) error {
	res, err := client.Validate(ctx)
	if err != nil {
		return fmt.Errorf("chain_validate: %w", err)
	}
	if !res.Valid {
		return fmt.Errorf("chain invalid: %s", res.Error)
	}
	fmt.Fprintln(out, "Chain valid")
	return nil
}
