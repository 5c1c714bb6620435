// UTXO ledger demo node.
//
// Usage:
//
//	ledgerd [--difficulty=N --storage=bolt ...]  Run the transfer demo
//	ledgerd --rpc --metrics                      Keep serving RPC and metrics afterwards
//	ledgerd --help                               Show help
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/utxoledger/config"
	"github.com/Klingon-tech/utxoledger/internal/log"
	"github.com/Klingon-tech/utxoledger/internal/node"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	cfg, flags, err := config.Load(args)
	if err != nil {
		return err
	}

	switch {
	case flags.Help:
		config.PrintUsage(out)
		return nil
	case flags.Version:
		fmt.Fprintf(out, "ledgerd %s\n", version)
		return nil
	case flags.InitConfig:
		if err := config.EnsureDataDir(cfg); err != nil {
			return err
		}
		path := flags.Config
		if path == "" {
			path = cfg.ConfigFile()
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
		return nil
	}

	if err := config.EnsureDataDir(cfg); err != nil {
		return err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(cfg, node.Options{Reset: flags.Reset})
	if err != nil {
		return err
	}
	defer n.Stop()

	if err := n.Start(); err != nil {
		return err
	}

	if err := n.RunScenario(ctx, node.DemoScenario, node.DemoWallets, out); err != nil {
		return err
	}
	if err := n.PrintChain(out); err != nil {
		return err
	}
	if err := n.PrintUTXOs(out); err != nil {
		return err
	}
	if err := n.Verify(out); err != nil {
		return err
	}

	if cfg.RPC.Enabled || cfg.Metrics.Enabled {
		log.Info().
			Str("rpc", n.RPCAddr()).
			Str("metrics", n.MetricsAddr()).
			Msg("Serving until interrupted")
		<-ctx.Done()
	}
	return nil
}
