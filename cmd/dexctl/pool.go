package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/liquidity"
)

func newLiquidityService(sess *session) (*liquidity.Service, error) {
	factory, err := chain.ParseAddress(sess.cfg.Factory)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	pm, err := chain.ParseAddress(sess.cfg.PositionManager)
	if err != nil {
		return nil, fmt.Errorf("position manager: %w", err)
	}
	return liquidity.NewService(liquidity.Config{Factory: factory, PositionManager: pm}, sess.runner, sess.logger)
}

func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("token-a", "", "first token address")
	cmd.Flags().String("token-b", "", "second token address")
	cmd.Flags().Uint32("fee", 3000, "fee tier in hundredths of a bip")
}

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Create, inspect and look up V3 pools",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create and initialise a pool unless it already exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := addressFlag(cmd, "token-a", true)
			if err != nil {
				return err
			}
			b, err := addressFlag(cmd, "token-b", true)
			if err != nil {
				return err
			}
			fee, _ := cmd.Flags().GetUint32("fee")
			price, _ := cmd.Flags().GetFloat64("price")

			ctx, stop := signalContext()
			defer stop()
			sess, err := openSession(ctx, cmd, a)
			if err != nil {
				return err
			}
			defer sess.Close()
			svc, err := newLiquidityService(sess)
			if err != nil {
				return err
			}
			res := svc.CreatePool(ctx, liquidity.CreatePoolParams{TokenA: a, TokenB: b, Fee: fee, InitialPrice: price})
			return printResult(cmd, res, res.Result)
		},
	}
	addPairFlags(create)
	create.Flags().Float64("price", 1, "initial price, token1 per token0 in sorted order")

	info := &cobra.Command{
		Use:   "info <pool>",
		Short: "Show pool metadata, liquidity and price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := chain.ParseAddress(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			sess, err := openSession(ctx, cmd, pool)
			if err != nil {
				return err
			}
			defer sess.Close()
			svc, err := newLiquidityService(sess)
			if err != nil {
				return err
			}
			meta, err := svc.PoolInfo(ctx, pool)
			if err != nil {
				return err
			}
			return printJSON(cmd, meta)
		},
	}

	find := &cobra.Command{
		Use:   "find",
		Short: "Look up the pool for a pair and fee",
		Long: "Look up the pool for a pair and fee.\n\n" +
			"With --interactive, each stdin line is \"<tokenA> <tokenB> [fee]\"; lookups run\n" +
			"after a short quiet period and only the latest answer is printed.",
		RunE: runPoolFind,
	}
	addPairFlags(find)
	find.Flags().Bool("interactive", false, "read pairs from stdin")

	cmd.AddCommand(create, info, find)
	return cmd
}

type lookupView struct {
	TokenA      string `json:"tokenA"`
	TokenB      string `json:"tokenB"`
	Fee         uint32 `json:"fee"`
	Pool        string `json:"pool,omitempty"`
	Exists      bool   `json:"exists"`
	Initialized bool   `json:"initialized"`
	Error       string `json:"error,omitempty"`
}

func runPoolFind(cmd *cobra.Command, _ []string) error {
	fee, _ := cmd.Flags().GetUint32("fee")
	interactive, _ := cmd.Flags().GetBool("interactive")

	ctx, stop := signalContext()
	defer stop()
	sess, err := openSession(ctx, cmd, common.Address{})
	if err != nil {
		return err
	}
	defer sess.Close()
	svc, err := newLiquidityService(sess)
	if err != nil {
		return err
	}

	if !interactive {
		a, err := addressFlag(cmd, "token-a", true)
		if err != nil {
			return err
		}
		b, err := addressFlag(cmd, "token-b", true)
		if err != nil {
			return err
		}
		lookup, err := svc.FindPool(ctx, a, b, fee)
		if err != nil {
			return err
		}
		return printJSON(cmd, viewLookup(liquidity.PoolLookupUpdate{TokenA: a, TokenB: b, Fee: fee, Lookup: lookup}))
	}

	lookups := svc.NewPoolLookupSession(ctx, liquidity.PoolLookupDelay, func(u liquidity.PoolLookupUpdate) {
		if err := printJSON(cmd, viewLookup(u)); err != nil {
			sess.logger.Warn("print lookup failed", zap.Error(err))
		}
	})
	defer lookups.Close()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		a, errA := chain.ParseAddress(fields[0])
		b, errB := chain.ParseAddress(fields[1])
		if errA != nil || errB != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: invalid address\n", scanner.Text())
			continue
		}
		lineFee := fee
		if len(fields) > 2 {
			parsed, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: invalid fee\n", scanner.Text())
				continue
			}
			lineFee = uint32(parsed)
		}
		lookups.Update(a, b, lineFee)
	}
	return scanner.Err()
}

func viewLookup(u liquidity.PoolLookupUpdate) lookupView {
	v := lookupView{
		TokenA:      u.TokenA.Hex(),
		TokenB:      u.TokenB.Hex(),
		Fee:         u.Fee,
		Exists:      u.Lookup.Exists,
		Initialized: u.Lookup.Initialized,
	}
	if u.Lookup.Exists {
		v.Pool = u.Lookup.Pool.Hex()
	}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}
	return v
}
