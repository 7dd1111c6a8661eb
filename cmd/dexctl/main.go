package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexPortal/internal/chain"
	"dexPortal/internal/config"
	"dexPortal/internal/storage"
	"dexPortal/internal/txflow"
	"dexPortal/internal/units"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dexctl",
		Short:        "V3 DEX portal: faucet server, swaps, pools and positions",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", config.DefaultRPC, "JSON-RPC URL")
	pf.String("private-key", "", "hex private key of the signing account")
	pf.String("factory", config.DefaultFactory, "V3 factory address")
	pf.String("position-manager", config.DefaultPositionManager, "nonfungible position manager address")
	pf.String("router", "", "aggregator router address")
	pf.Uint64("gas-limit", 0, "fixed gas limit, 0 means estimate")
	pf.String("gas-price-gwei", "", "fixed legacy gas price in gwei, empty means ask the node")
	pf.Int("max-retries", 5, "maximum retry attempts")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	pf.Duration("receipt-poll", 2*time.Second, "receipt polling interval")
	pf.String("journal", "", "append settled transactions to this JSONL file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(),
		newTicksCmd(),
		newSqrtPriceCmd(),
		newQuoteCmd(),
		newSwapCmd(),
		newPoolCmd(),
		newLiquidityCmd(),
		newPositionsCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// session is the chain wiring shared by on-chain commands.
type session struct {
	cfg    config.ChainConfig
	logger *zap.Logger
	client *chain.Client
	runner *txflow.Runner
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
	_ = s.logger.Sync()
}

// openSession loads config and connects. Without a private key the session is
// read-only and calls are made from owner.
func openSession(ctx context.Context, cmd *cobra.Command, owner common.Address) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadChain(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	sess, err := connect(ctx, cfg, logger, owner)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return sess, nil
}

func connect(ctx context.Context, cfg config.ChainConfig, logger *zap.Logger, owner common.Address) (*session, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	runner := &txflow.Runner{Logger: logger}
	if cfg.Journal != "" {
		runner.Journal = storage.NewJsonlStorage(cfg.Journal)
	}

	if cfg.PrivateKey == "" {
		runner.Tx = chain.ReadOnly(client, owner)
	} else {
		key, err := chain.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			client.Close()
			return nil, err
		}
		opts := chain.SignerOptions{
			GasLimit:    cfg.GasLimit,
			ReceiptPoll: cfg.ReceiptPoll,
			MaxRetries:  cfg.MaxRetries,
		}
		if cfg.GasPriceGwei != "" {
			opts.GasPrice, err = units.ParsePositiveUnits(cfg.GasPriceGwei, 9)
			if err != nil {
				client.Close()
				return nil, fmt.Errorf("gas-price-gwei: %w", err)
			}
		}
		signer, err := chain.NewSigner(client, key, opts, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		runner.Tx = signer
		logger.Info("signer ready", zap.String("from", signer.From().Hex()))
	}
	return &session{cfg: cfg, logger: logger, client: client, runner: runner}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints a flow result and turns a failure into a non-zero exit.
func printResult(cmd *cobra.Command, v interface{}, res txflow.Result) error {
	if err := printJSON(cmd, v); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

func addressFlag(cmd *cobra.Command, name string, required bool) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		if required {
			return common.Address{}, fmt.Errorf("--%s is required", name)
		}
		return common.Address{}, nil
	}
	addr, err := chain.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}
