package main

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"dexPortal/internal/pricemath"
	"dexPortal/internal/tickrange"
)

func newTicksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticks",
		Short: "Convert a price range into aligned ticks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			minPrice, _ := cmd.Flags().GetString("min")
			maxPrice, _ := cmd.Flags().GetString("max")
			current, _ := cmd.Flags().GetFloat64("current")
			fee, _ := cmd.Flags().GetUint32("fee")

			logger, err := newLogger(logLevel(cmd))
			if err != nil {
				return err
			}
			defer logger.Sync()

			r, err := tickrange.NewProcessor(logger).Process(minPrice, maxPrice, current, fee)
			if err != nil {
				return err
			}
			return printJSON(cmd, r)
		},
	}
	cmd.Flags().String("min", tickrange.NoLowerBound, "lower price bound, token1 per token0")
	cmd.Flags().String("max", tickrange.NoUpperBound, "upper price bound, token1 per token0")
	cmd.Flags().Float64("current", 1, "current pool price, for log context")
	cmd.Flags().Uint32("fee", 3000, "fee tier in hundredths of a bip")
	return cmd
}

func newSqrtPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqrtprice",
		Short: "Encode or decode Q64.96 square-root prices",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encode <price>",
		Short: "Price (token1 per token0) to sqrtPriceX96",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse price: %w", err)
			}
			sqrt, err := pricemath.EncodeSqrtPriceX96(price)
			if err != nil {
				return err
			}
			tick, err := pricemath.PriceToTick(price)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"price":        pricemath.FormatPrice(price),
				"sqrtPriceX96": sqrt.String(),
				"tick":         tick,
				"unitFallback": !pricemath.IsUnitPrice(price) && sqrt.Cmp(pricemath.SqrtPriceOneX96()) == 0,
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decode <sqrtPriceX96>",
		Short: "sqrtPriceX96 to price (token1 per token0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqrt, ok := new(big.Int).SetString(args[0], 10)
			if !ok {
				return fmt.Errorf("invalid sqrtPriceX96 %q", args[0])
			}
			price, err := pricemath.DecodeSqrtPriceX96(sqrt)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"sqrtPriceX96": sqrt.String(),
				"price":        pricemath.FormatPrice(price),
			})
		},
	})
	return cmd
}

func logLevel(cmd *cobra.Command) string {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		return "info"
	}
	return level
}
