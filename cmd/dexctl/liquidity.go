package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"dexPortal/internal/liquidity"
	"dexPortal/internal/tickrange"
)

func newLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Add, remove and collect from V3 positions",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Mint a new position, creating the pool first with --create",
		RunE:  runAddLiquidity,
	}
	addPairFlags(add)
	add.Flags().String("amount-a", "", "amount of token A")
	add.Flags().String("amount-b", "", "amount of token B")
	add.Flags().Bool("full-range", false, "use the widest range for the fee tier")
	add.Flags().String("min-price", tickrange.NoLowerBound, "lower price, token1 per token0 in sorted order")
	add.Flags().String("max-price", tickrange.NoUpperBound, "upper price, token1 per token0 in sorted order")
	add.Flags().String("recipient", "", "position owner, defaults to the signer")
	add.Flags().Bool("create", false, "create and initialise the pool first if it does not exist")
	add.Flags().Float64("price", 1, "initial price when --create makes a new pool")

	remove := &cobra.Command{
		Use:   "remove <tokenId>",
		Short: "Withdraw all liquidity, collect and burn the position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPosition(cmd, args[0], func(svc *liquidity.Service, ctx cmdContext, id *big.Int) error {
				res := svc.RemoveLiquidity(ctx, id, ctx.recipient)
				return printResult(cmd, res, res.Result)
			})
		},
	}
	remove.Flags().String("recipient", "", "recipient of withdrawn tokens, defaults to the signer")

	collect := &cobra.Command{
		Use:   "collect <tokenId>",
		Short: "Collect all fees owed to a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPosition(cmd, args[0], func(svc *liquidity.Service, ctx cmdContext, id *big.Int) error {
				res := svc.CollectFees(ctx, id, ctx.recipient)
				return printResult(cmd, res, res)
			})
		},
	}
	collect.Flags().String("recipient", "", "fee recipient, defaults to the signer")

	fees := &cobra.Command{
		Use:   "fees <tokenId>",
		Short: "Show fees currently owed to a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPosition(cmd, args[0], func(svc *liquidity.Service, ctx cmdContext, id *big.Int) error {
				owed, err := svc.UnclaimedFees(ctx, id, ctx.recipient)
				if err != nil {
					return err
				}
				return printJSON(cmd, owed)
			})
		},
	}
	fees.Flags().String("owner", "", "position owner, defaults to the signer")

	cmd.AddCommand(add, remove, collect, fees)
	return cmd
}

func runAddLiquidity(cmd *cobra.Command, _ []string) error {
	a, err := addressFlag(cmd, "token-a", true)
	if err != nil {
		return err
	}
	b, err := addressFlag(cmd, "token-b", true)
	if err != nil {
		return err
	}
	recipient, err := addressFlag(cmd, "recipient", false)
	if err != nil {
		return err
	}
	fee, _ := cmd.Flags().GetUint32("fee")
	amountA, _ := cmd.Flags().GetString("amount-a")
	amountB, _ := cmd.Flags().GetString("amount-b")
	fullRange, _ := cmd.Flags().GetBool("full-range")
	minPrice, _ := cmd.Flags().GetString("min-price")
	maxPrice, _ := cmd.Flags().GetString("max-price")
	create, _ := cmd.Flags().GetBool("create")
	price, _ := cmd.Flags().GetFloat64("price")

	ctx, stop := signalContext()
	defer stop()
	sess, err := openSession(ctx, cmd, recipient)
	if err != nil {
		return err
	}
	defer sess.Close()
	svc, err := newLiquidityService(sess)
	if err != nil {
		return err
	}

	params := liquidity.AddLiquidityParams{
		TokenA:    a,
		TokenB:    b,
		Fee:       fee,
		AmountA:   amountA,
		AmountB:   amountB,
		FullRange: fullRange,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Recipient: recipient,
	}
	if !create {
		res := svc.AddLiquidity(ctx, params)
		return printResult(cmd, res, res.Result)
	}

	res := svc.CreatePoolAndAddLiquidity(ctx, liquidity.CreatePoolParams{TokenA: a, TokenB: b, Fee: fee, InitialPrice: price}, params)
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s failed: %s", res.FailedPhase, res.Error)
	}
	return nil
}

func newPositionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List position NFTs owned by an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := addressFlag(cmd, "owner", false)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			sess, err := openSession(ctx, cmd, owner)
			if err != nil {
				return err
			}
			defer sess.Close()
			if owner == (common.Address{}) && sess.cfg.PrivateKey == "" {
				return fmt.Errorf("--owner or --private-key is required")
			}
			svc, err := newLiquidityService(sess)
			if err != nil {
				return err
			}
			positions, err := svc.UserPositions(ctx, owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, positions)
		},
	}
	cmd.Flags().String("owner", "", "owner address, defaults to the signer")
	return cmd
}

// cmdContext carries the signal context and the resolved recipient or owner.
type cmdContext struct {
	context.Context
	recipient common.Address
}

func withPosition(cmd *cobra.Command, rawID string, fn func(*liquidity.Service, cmdContext, *big.Int) error) error {
	id, ok := new(big.Int).SetString(rawID, 10)
	if !ok || id.Sign() <= 0 {
		return fmt.Errorf("invalid token id %q", rawID)
	}
	flag := "recipient"
	if cmd.Flags().Lookup(flag) == nil {
		flag = "owner"
	}
	who, err := addressFlag(cmd, flag, false)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	sess, err := openSession(ctx, cmd, who)
	if err != nil {
		return err
	}
	defer sess.Close()
	svc, err := newLiquidityService(sess)
	if err != nil {
		return err
	}
	return fn(svc, cmdContext{Context: ctx, recipient: who}, id)
}
