package swap

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/txflow"
	"dexPortal/internal/units"
)

// Params describes a swap. AmountIn is a human decimal of TokenIn.
type Params struct {
	TokenIn         common.Address
	TokenOut        common.Address
	AmountIn        string
	SlippagePercent float64
	// Recipient defaults to the signing account.
	Recipient common.Address
}

// Preview is a quote bounded by slippage, ready to trade.
type Preview struct {
	AmountIn    *big.Int
	Quote       *Quote
	ExpectedOut *uint256.Int
	MinimumOut  *uint256.Int
	InDecimals  uint8
	OutDecimals uint8
}

// SwapResult reports a settled or failed swap.
type SwapResult struct {
	txflow.Result
	AmountIn    string   `json:"amountIn,omitempty"`
	ExpectedOut string   `json:"expectedOut,omitempty"`
	MinimumOut  string   `json:"minimumOut,omitempty"`
	Path        []string `json:"path,omitempty"`
}

// Executor quotes, approves and submits swaps through the router.
type Executor struct {
	quoter *Quoter
	runner *txflow.Runner
	tokens *dex.TokenMetaCache
	logger *zap.Logger
}

// NewExecutor returns an Executor that signs through runner.
func NewExecutor(quoter *Quoter, runner *txflow.Runner, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{quoter: quoter, runner: runner, tokens: dex.NewTokenMetaCache(), logger: logger}
}

func validate(params Params) error {
	if params.TokenIn == (common.Address{}) || params.TokenOut == (common.Address{}) {
		return txflow.Invalid("both tokens are required")
	}
	if params.TokenIn == params.TokenOut {
		return txflow.Invalid("input and output tokens must differ")
	}
	if _, err := SlippageBps(params.SlippagePercent); err != nil {
		return txflow.Invalid("%v", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(params.AmountIn))
	if err != nil {
		return txflow.Invalid("amount in %q is not a number", params.AmountIn)
	}
	if amount.Sign() <= 0 {
		return txflow.Invalid("amount in must be greater than zero")
	}
	return nil
}

// Preview validates params, quotes and applies slippage without sending anything.
func (e *Executor) Preview(ctx context.Context, params Params) (Preview, error) {
	if err := validate(params); err != nil {
		return Preview{}, err
	}
	reader := e.quoter.reader
	inMeta, err := dex.CachedTokenMeta(ctx, reader, params.TokenIn, e.tokens, e.logger)
	if err != nil {
		return Preview{}, fmt.Errorf("token in metadata: %w", err)
	}
	outMeta, err := dex.CachedTokenMeta(ctx, reader, params.TokenOut, e.tokens, e.logger)
	if err != nil {
		return Preview{}, fmt.Errorf("token out metadata: %w", err)
	}
	amountIn, err := units.ParsePositiveUnits(params.AmountIn, inMeta.Decimals)
	if err != nil {
		return Preview{}, txflow.Invalid("amount in: %v", err)
	}

	quote, err := e.quoter.Quote(ctx, amountIn, params.TokenIn, params.TokenOut)
	if err != nil {
		return Preview{}, err
	}
	expected, err := quote.ExpectedOut()
	if err != nil {
		return Preview{}, err
	}
	minOut, err := ComputeMinimumOut(expected, params.SlippagePercent)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		AmountIn:    amountIn,
		Quote:       quote,
		ExpectedOut: expected,
		MinimumOut:  minOut,
		InDecimals:  inMeta.Decimals,
		OutDecimals: outMeta.Decimals,
	}, nil
}

// Swap quotes, approves the router if needed and submits swapNoSplit.
func (e *Executor) Swap(ctx context.Context, params Params) SwapResult {
	flow := e.runner.Start("swap")
	flow.Transition(txflow.Validating)

	preview, err := e.Preview(ctx, params)
	if err != nil {
		return SwapResult{Result: flow.Fail(err)}
	}
	res := SwapResult{
		AmountIn:    units.FormatUnits(preview.AmountIn, preview.InDecimals),
		ExpectedOut: units.FormatUnits(preview.ExpectedOut.ToBig(), preview.OutDecimals),
		MinimumOut:  units.FormatUnits(preview.MinimumOut.ToBig(), preview.OutDecimals),
	}
	for _, hop := range preview.Quote.Path {
		res.Path = append(res.Path, hop.Hex())
	}

	router := e.quoter.Router()
	if _, err := flow.EnsureAllowance(ctx, params.TokenIn, router, preview.AmountIn); err != nil {
		res.Result = flow.Fail(fmt.Errorf("approve router: %w", err))
		return res
	}

	trade, err := BuildTrade(preview.AmountIn, preview.Quote, params.SlippagePercent)
	if err != nil {
		res.Result = flow.Fail(err)
		return res
	}
	recipient := params.Recipient
	if recipient == (common.Address{}) {
		recipient = e.runner.Tx.From()
	}
	data, err := dex.PackSwapNoSplit(dex.RouterTrade{
		AmountIn:  trade.AmountIn,
		AmountOut: trade.AmountOut,
		Path:      trade.Path,
		Adapters:  trade.Adapters,
	}, recipient, new(big.Int))
	if err != nil {
		res.Result = flow.Fail(fmt.Errorf("pack swap: %w", err))
		return res
	}
	receipt, err := flow.SubmitAndConfirm(ctx, "swapNoSplit", chain.TxRequest{To: router, Data: data})
	if err != nil {
		res.Result = flow.Fail(err)
		return res
	}
	res.Result = flow.Succeed(receipt.TxHash.Hex(), "swap settled")
	return res
}
