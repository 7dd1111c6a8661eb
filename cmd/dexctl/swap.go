package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/swap"
	"dexPortal/internal/units"
)

func addSwapFlags(cmd *cobra.Command) {
	cmd.Flags().String("in", "", "input token address")
	cmd.Flags().String("out", "", "output token address")
	cmd.Flags().String("amount", "", "input amount in token units")
	cmd.Flags().Float64("slippage", 0.5, "slippage tolerance in percent")
	cmd.Flags().String("recipient", "", "swap recipient, defaults to the signer")
}

func swapParams(cmd *cobra.Command) (swap.Params, error) {
	in, err := addressFlag(cmd, "in", true)
	if err != nil {
		return swap.Params{}, err
	}
	out, err := addressFlag(cmd, "out", true)
	if err != nil {
		return swap.Params{}, err
	}
	recipient, err := addressFlag(cmd, "recipient", false)
	if err != nil {
		return swap.Params{}, err
	}
	amount, _ := cmd.Flags().GetString("amount")
	slippage, _ := cmd.Flags().GetFloat64("slippage")
	return swap.Params{TokenIn: in, TokenOut: out, AmountIn: amount, SlippagePercent: slippage, Recipient: recipient}, nil
}

func newExecutor(sess *session) (*swap.Executor, error) {
	router, err := chain.ParseAddress(sess.cfg.Router)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	quoter := swap.NewQuoter(sess.runner.Tx, router, sess.logger)
	return swap.NewExecutor(quoter, sess.runner, sess.logger), nil
}

type previewView struct {
	AmountIn    string   `json:"amountIn"`
	ExpectedOut string   `json:"expectedOut"`
	MinimumOut  string   `json:"minimumOut"`
	Slippage    float64  `json:"slippagePercent"`
	Path        []string `json:"path"`
	Adapters    []string `json:"adapters"`
}

func viewPreview(p swap.Preview, slippage float64) previewView {
	v := previewView{
		AmountIn:    units.FormatUnits(p.AmountIn, p.InDecimals),
		ExpectedOut: units.FormatUnits(p.ExpectedOut.ToBig(), p.OutDecimals),
		MinimumOut:  units.FormatUnits(p.MinimumOut.ToBig(), p.OutDecimals),
		Slippage:    slippage,
	}
	for _, hop := range p.Quote.Path {
		v.Path = append(v.Path, hop.Hex())
	}
	for _, a := range p.Quote.Adapters {
		v.Adapters = append(v.Adapters, a.Hex())
	}
	return v
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a swap through the aggregator router",
		Long: "Quote a swap through the aggregator router.\n\n" +
			"With --interactive, each line read from stdin is a new input amount; quotes\n" +
			"refresh after a short quiet period and only the latest one is printed.",
		RunE: runQuote,
	}
	addSwapFlags(cmd)
	cmd.Flags().Bool("interactive", false, "read amounts from stdin and refresh quotes")
	return cmd
}

func runQuote(cmd *cobra.Command, _ []string) error {
	params, err := swapParams(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	sess, err := openSession(ctx, cmd, params.Recipient)
	if err != nil {
		return err
	}
	defer sess.Close()
	executor, err := newExecutor(sess)
	if err != nil {
		return err
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		preview, err := executor.Preview(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(cmd, viewPreview(preview, params.SlippagePercent))
	}

	out := cmd.OutOrStdout()
	qs := executor.NewQuoteSession(ctx, swap.QuoteRefreshDelay, func(u swap.QuoteUpdate) {
		if u.Err != nil {
			fmt.Fprintf(out, "quote %s: %v\n", u.Params.AmountIn, u.Err)
			return
		}
		if err := printJSON(cmd, viewPreview(u.Preview, u.Params.SlippagePercent)); err != nil {
			sess.logger.Warn("print quote failed", zap.Error(err))
		}
	})
	defer qs.Close()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		amount := strings.TrimSpace(scanner.Text())
		if amount == "" {
			continue
		}
		params.AmountIn = amount
		qs.Update(params)
	}
	return scanner.Err()
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Approve if needed and swap through the aggregator router",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := swapParams(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			sess, err := openSession(ctx, cmd, params.Recipient)
			if err != nil {
				return err
			}
			defer sess.Close()
			executor, err := newExecutor(sess)
			if err != nil {
				return err
			}
			res := executor.Swap(ctx, params)
			return printResult(cmd, res, res.Result)
		},
	}
	addSwapFlags(cmd)
	return cmd
}
