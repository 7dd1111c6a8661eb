package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexPortal/internal/config"
	"dexPortal/internal/faucet"
	"dexPortal/internal/rpcproxy"
	"dexPortal/internal/server"
	"dexPortal/internal/storage"
	"dexPortal/internal/storage/bolt"
	"dexPortal/internal/storage/postgres"
	"dexPortal/internal/txflow"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the faucet, user registry and RPC proxy HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().String("upstream-rpc", "", "RPC proxy upstream, defaults to --rpc")
	cmd.Flags().String("ledger", config.LedgerBolt, "faucet ledger backend (bolt, postgres)")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres ledger")
	cmd.Flags().String("bolt-path", "./data/ledger.db", "database file for the bolt ledger")
	cmd.Flags().String("redis-addr", "", "redis address for cross-replica faucet locks")
	cmd.Flags().Duration("cooldown", 24*time.Hour, "minimum time between dispensations of one token to one wallet")
	cmd.Flags().Float64("rate-limit", 20, "RPC proxy requests per second, 0 disables")
	cmd.Flags().Int("rate-burst", 40, "RPC proxy burst size")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Chain.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	locker := faucet.Locker(faucet.NewMemoryLocker())
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		locker = faucet.NewRedisLocker(client, "")
	}

	tokens, err := faucet.ParseTokens(cfg.FaucetTokens)
	if err != nil {
		return err
	}

	// Without a key the faucet only registers users.
	var runner *txflow.Runner
	if cfg.Chain.PrivateKey != "" {
		sess, err := connect(ctx, cfg.Chain, logger, common.Address{})
		if err != nil {
			return err
		}
		defer sess.client.Close()
		runner = sess.runner
		if sink, ok := ledger.(storage.TxSink); ok && runner.Journal == nil {
			runner.Journal = sink
		}
	} else {
		logger.Warn("no private key configured, faucet dispensing disabled")
	}

	faucetSvc, err := faucet.NewService(faucet.Config{Tokens: tokens, Cooldown: cfg.Cooldown}, runner, ledger, locker, logger)
	if err != nil {
		return err
	}

	proxy, err := rpcproxy.New(rpcproxy.Options{
		Upstream:  cfg.UpstreamRPC,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("upstream", cfg.UpstreamRPC),
		zap.String("ledger", cfg.Ledger),
		zap.Bool("redis_lock", cfg.RedisAddr != ""),
		zap.Int("faucet_tokens", len(tokens)),
		zap.Duration("cooldown", cfg.Cooldown),
	)
	return server.New(faucetSvc, proxy, logger).ListenAndServe(ctx, cfg.Listen)
}

func openLedger(ctx context.Context, cfg config.ServeConfig) (faucet.Ledger, func(), error) {
	switch cfg.Ledger {
	case config.LedgerPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}
