// Package node wires configuration, storage, wallets and the ledger into a
// single-process node that can be embedded in any binary.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/internal/ledger"
	klog "github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/internal/mempool"
	"github.com/Klingon-tech/utxoledger/internal/metrics"
	"github.com/Klingon-tech/utxoledger/internal/rpc"
	"github.com/Klingon-tech/utxoledger/internal/storage"
	"github.com/Klingon-tech/utxoledger/internal/wallet"
	"github.com/Klingon-tech/utxoledger/pkg/block"
	"github.com/Klingon-tech/utxoledger/pkg/tx"
	"github.com/Klingon-tech/utxoledger/pkg/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options adjust node construction beyond the persistent config.
type Options struct {
	Reset bool             // Delete an existing on-disk archive first.
	Now   func() time.Time // Clock for block timestamps; nil means time.Now.
}

// Node is a fully-initialized ledger node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db       storage.DB
	ledger   *ledger.Ledger
	pool     *mempool.Pool
	coinbase types.Address

	walletMu sync.Mutex
	wallets  map[string]*wallet.Wallet

	// Services
	rpcSrv      *rpc.Server
	metricsSrv  *http.Server
	metricsAddr net.Addr

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a Node: it opens the block archive, derives
// the genesis and coinbase wallets and mines the genesis block. Call Start
// to bring up the RPC and metrics listeners.
func New(cfg *config.Config, opts Options) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := klog.WithComponent("node")
	logger.Info().
		Str("chain", cfg.Chain.Name).
		Int("difficulty", cfg.Chain.Difficulty).
		Uint64("reward", cfg.Chain.BlockReward).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting ledger node")

	n := &Node{
		cfg:     cfg,
		logger:  logger,
		wallets: make(map[string]*wallet.Wallet),
	}

	genesisAddr, err := n.resolveGenesis()
	if err != nil {
		return nil, err
	}
	if n.coinbase, err = n.resolveCoinbase(); err != nil {
		return nil, err
	}

	db, err := openStorage(cfg, opts.Reset)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.Storage.Backend).Msg("Block archive opened")

	l, err := ledger.New(ledger.Config{
		Name:           cfg.Chain.Name,
		Difficulty:     cfg.Chain.Difficulty,
		GenesisAddress: genesisAddr,
		Reward:         cfg.Chain.BlockReward,
		DB:             db,
		Threads:        cfg.Mining.Threads,
		Metrics:        metrics.NewLedger(cfg.Chain.Name),
		Now:            opts.Now,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	n.db = db
	n.ledger = l
	n.pool = mempool.New(l, mempool.DefaultMaxSize)
	n.ctx, n.cancel = context.WithCancel(context.Background())
	return n, nil
}

// openStorage opens the configured backend and scopes it to the chain name.
func openStorage(cfg *config.Config, reset bool) (storage.DB, error) {
	path := cfg.StoragePath()
	if reset {
		if err := storage.Remove(cfg.Storage.Backend, path); err != nil {
			return nil, fmt.Errorf("reset storage: %w", err)
		}
	}
	db, err := storage.Open(cfg.Storage.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("open storage at %s: %w", path, err)
	}
	return storage.NewPrefixDB(db, []byte(cfg.Chain.Name+"/")), nil
}

// resolveGenesis picks the explicit genesis address over the genesis seed.
func (n *Node) resolveGenesis() (types.Address, error) {
	if n.cfg.Chain.GenesisAddress != "" {
		addr, err := types.ParseAddress(n.cfg.Chain.GenesisAddress)
		if err != nil {
			return "", fmt.Errorf("invalid genesis address: %w", err)
		}
		return addr, nil
	}
	w, err := n.Wallet(n.cfg.Chain.GenesisSeed)
	if err != nil {
		return "", fmt.Errorf("genesis wallet: %w", err)
	}
	return w.Address(), nil
}

// resolveCoinbase picks the reward address: a mnemonic wallet when
// mining.mnemonic is set, otherwise the mining.coinbase seed wallet.
func (n *Node) resolveCoinbase() (types.Address, error) {
	mc := n.cfg.Mining
	if mc.Mnemonic != "" {
		w, err := wallet.FromMnemonic(mc.Mnemonic, "", mc.MnemonicIndex)
		if err != nil {
			return "", fmt.Errorf("coinbase mnemonic: %w", err)
		}
		n.logger.Info().
			Uint32("index", mc.MnemonicIndex).
			Str("address", w.Address().Short()).
			Msg("Coinbase from mnemonic")
		return w.Address(), nil
	}
	w, err := n.Wallet(mc.Coinbase)
	if err != nil {
		return "", fmt.Errorf("coinbase wallet: %w", err)
	}
	return w.Address(), nil
}

// Start brings up the RPC and metrics listeners when enabled.
func (n *Node) Start() error {
	if n.cfg.RPC.Enabled {
		n.rpcSrv = rpc.New(n.cfg.RPC.Addr, n.ledger, n.pool, n, n.cfg.RPC.AllowedIPs)
		if err := n.rpcSrv.Start(); err != nil {
			n.rpcSrv = nil
			return fmt.Errorf("start rpc: %w", err)
		}
	}
	if n.cfg.Metrics.Enabled {
		if err := n.startMetrics(n.cfg.Metrics.Addr); err != nil {
			return err
		}
	}

	n.logger.Info().
		Uint64("height", n.ledger.Height()).
		Str("tip", n.ledger.TipHash().Short()).
		Bool("rpc", n.cfg.RPC.Enabled).
		Bool("metrics", n.cfg.Metrics.Enabled).
		Msg("Node started successfully")
	return nil
}

func (n *Node) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	n.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	n.metricsAddr = ln.Addr()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")
		if err := n.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return nil
}

// Stop shuts down both listeners and closes the archive.
func (n *Node) Stop() {
	n.cancel()

	if n.rpcSrv != nil {
		if err := n.rpcSrv.Stop(); err != nil {
			n.logger.Error().Err(err).Msg("RPC server shutdown")
		}
	}

	if n.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.metricsSrv.Shutdown(ctx); err != nil {
			n.logger.Error().Err(err).Msg("Metrics server shutdown")
		}
		cancel()
	}
	n.wg.Wait()

	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Error().Err(err).Msg("Close storage")
		}
	}

	n.logger.Info().Msg("Goodbye!")
}

// MetricsAddr returns the metrics listener address, or "" when disabled.
func (n *Node) MetricsAddr() string {
	if n.metricsAddr == nil {
		return ""
	}
	return n.metricsAddr.String()
}

// RPCAddr returns the RPC listener address, or "" when disabled.
func (n *Node) RPCAddr() string {
	if n.rpcSrv == nil {
		return ""
	}
	return n.rpcSrv.Addr()
}

// Ledger returns the node's ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Pool returns the pending transaction pool.
func (n *Node) Pool() *mempool.Pool {
	return n.pool
}

// Coinbase returns the address credited with block rewards.
func (n *Node) Coinbase() types.Address {
	return n.coinbase
}

// Wallet returns the wallet derived from seed, creating it on first use.
func (n *Node) Wallet(seed string) (*wallet.Wallet, error) {
	n.walletMu.Lock()
	defer n.walletMu.Unlock()

	if w, ok := n.wallets[seed]; ok {
		return w, nil
	}
	w, err := wallet.New(seed)
	if err != nil {
		return nil, err
	}
	n.wallets[seed] = w
	return w, nil
}

// MineBlock appends a block holding txs, paying the reward to the node's
// coinbase. The configured mining timeout bounds the proof-of-work search,
// as does Stop.
func (n *Node) MineBlock(ctx context.Context, txs []*tx.Transaction) (*block.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(n.ctx, cancel)
	defer stop()

	if n.cfg.Mining.Timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, n.cfg.Mining.Timeout)
		defer tcancel()
	}

	done := klog.Benchmark("mine block")
	defer done()
	return n.ledger.AddBlock(ctx, txs, n.coinbase)
}

// Submit adds a transaction to the pool for the next MinePending.
func (n *Node) Submit(t *tx.Transaction) error {
	if err := n.pool.Add(t); err != nil {
		return err
	}
	n.logger.Debug().Str("tx", t.ID.Short()).Int("pending", n.pool.Count()).Msg("Transaction accepted")
	return nil
}

// MinePending mines a block from the pool in arrival order. Confirmed
// transactions leave the pool, as do any the new block invalidated.
func (n *Node) MinePending(ctx context.Context) (*block.Block, error) {
	txs := n.pool.SelectForBlock(config.MaxBlockTxs - 1)
	blk, err := n.MineBlock(ctx, txs)
	if err != nil {
		return nil, err
	}
	n.pool.RemoveConfirmed(blk.Transactions[1:])
	if dropped := n.pool.Revalidate(); dropped > 0 {
		n.logger.Warn().Int("dropped", dropped).Msg("Pending transactions invalidated by block")
	}
	return blk, nil
}
