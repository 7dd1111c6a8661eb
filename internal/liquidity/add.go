package liquidity

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/pricemath"
	"dexPortal/internal/tickrange"
	"dexPortal/internal/txflow"
)

// AddLiquidityParams describes a new position. Amounts are human decimals
// for TokenA and TokenB; prices are token1 per token0 in pool order.
type AddLiquidityParams struct {
	TokenA    common.Address
	TokenB    common.Address
	Fee       uint32
	AmountA   string
	AmountB   string
	FullRange bool
	MinPrice  string
	MaxPrice  string
	// Recipient defaults to the signing account.
	Recipient common.Address
}

// AddLiquidityResult reports the minted position.
type AddLiquidityResult struct {
	txflow.Result
	Pool      string          `json:"pool,omitempty"`
	TokenID   string          `json:"tokenId,omitempty"`
	Liquidity string          `json:"liquidity,omitempty"`
	Amount0   string          `json:"amount0,omitempty"`
	Amount1   string          `json:"amount1,omitempty"`
	Range     tickrange.Range `json:"range"`
}

func validateRange(params AddLiquidityParams) error {
	if params.FullRange {
		return nil
	}
	minPrice := strings.TrimSpace(params.MinPrice)
	maxPrice := strings.TrimSpace(params.MaxPrice)
	if minPrice == "" || maxPrice == "" {
		return txflow.Invalid("custom range needs both min and max price")
	}
	if maxPrice == tickrange.NoUpperBound {
		if minPrice == tickrange.NoLowerBound {
			return nil
		}
		minValue, err := decimal.NewFromString(minPrice)
		if err != nil {
			return txflow.Invalid("min price %q is not a number", params.MinPrice)
		}
		if minValue.Sign() < 0 {
			return txflow.Invalid("min price must not be negative")
		}
		return nil
	}
	maxValue, err := decimal.NewFromString(maxPrice)
	if err != nil {
		return txflow.Invalid("max price %q is not a number", params.MaxPrice)
	}
	minValue := decimal.Zero
	if minPrice != tickrange.NoLowerBound {
		if minValue, err = decimal.NewFromString(minPrice); err != nil {
			return txflow.Invalid("min price %q is not a number", params.MinPrice)
		}
	}
	if minValue.Sign() < 0 {
		return txflow.Invalid("min price must not be negative")
	}
	if !maxValue.GreaterThan(minValue) {
		return txflow.Invalid("max price must be greater than min price")
	}
	return nil
}

// priceRangeError keeps both txflow.ErrValidation and the tickrange cause matchable.
func priceRangeError(err error) error {
	return fmt.Errorf("%w: price range: %w", txflow.ErrValidation, err)
}

// AddLiquidity approves both tokens and mints a position in an existing pool.
func (s *Service) AddLiquidity(ctx context.Context, params AddLiquidityParams) AddLiquidityResult {
	flow := s.runner.Start("add-liquidity")
	return s.addLiquidity(ctx, flow, params)
}

func (s *Service) addLiquidity(ctx context.Context, flow *txflow.Flow, params AddLiquidityParams) AddLiquidityResult {
	flow.Transition(txflow.Validating)
	fail := func(err error) AddLiquidityResult { return AddLiquidityResult{Result: flow.Fail(err)} }

	if err := validatePair(params.TokenA, params.TokenB); err != nil {
		return fail(err)
	}
	if err := positiveAmount("amount A", params.AmountA); err != nil {
		return fail(err)
	}
	if err := positiveAmount("amount B", params.AmountB); err != nil {
		return fail(err)
	}
	if err := validateRange(params); err != nil {
		return fail(err)
	}

	lookup, err := s.FindPool(ctx, params.TokenA, params.TokenB, params.Fee)
	if err != nil {
		return fail(err)
	}
	if !lookup.Exists {
		return fail(txflow.Invalid("pool does not exist for fee %d", params.Fee))
	}
	meta, err := dex.FetchPoolMeta(ctx, s.tx, lookup.Pool, s.pools)
	if err != nil {
		return fail(fmt.Errorf("pool metadata: %w", err))
	}
	slot0, err := dex.FetchSlot0(ctx, s.tx, lookup.Pool)
	if err != nil {
		return fail(fmt.Errorf("pool slot0: %w", err))
	}

	decimalsA, err := s.decimals(ctx, params.TokenA)
	if err != nil {
		return fail(err)
	}
	decimalsB, err := s.decimals(ctx, params.TokenB)
	if err != nil {
		return fail(err)
	}
	amountA, err := parseAmount("amount A", params.AmountA, decimalsA)
	if err != nil {
		return fail(err)
	}
	amountB, err := parseAmount("amount B", params.AmountB, decimalsB)
	if err != nil {
		return fail(err)
	}

	token0 := common.HexToAddress(meta.Token0)
	token1 := common.HexToAddress(meta.Token1)
	amount0, amount1 := amountA, amountB
	if params.TokenA != token0 {
		amount0, amount1 = amountB, amountA
	}

	minPrice, maxPrice := params.MinPrice, params.MaxPrice
	if params.FullRange {
		minPrice, maxPrice = tickrange.NoLowerBound, tickrange.NoUpperBound
	}
	ticks, err := s.ranges.Process(minPrice, maxPrice, pricemath.TickToPrice(int(slot0.Tick)), meta.Fee)
	if err != nil {
		return fail(priceRangeError(err))
	}
	if ticks.FellBack {
		flow.Warn("requested price range collapsed after tick alignment, using full range",
			zap.String("min_price", params.MinPrice), zap.String("max_price", params.MaxPrice))
	}

	for _, approval := range []struct {
		token  common.Address
		amount *big.Int
	}{{token0, amount0}, {token1, amount1}} {
		if _, err := flow.EnsureAllowance(ctx, approval.token, s.cfg.PositionManager, approval.amount); err != nil {
			return fail(fmt.Errorf("approve %s: %w", approval.token.Hex(), err))
		}
	}

	recipient := params.Recipient
	if recipient == (common.Address{}) {
		recipient = s.tx.From()
	}
	data, err := dex.PackMint(dex.MintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            new(big.Int).SetUint64(uint64(meta.Fee)),
		TickLower:      big.NewInt(int64(ticks.TickLower)),
		TickUpper:      big.NewInt(int64(ticks.TickUpper)),
		Amount0Desired: amount0,
		Amount1Desired: amount1,
		Amount0Min:     new(big.Int),
		Amount1Min:     new(big.Int),
		Recipient:      recipient,
		Deadline:       s.deadline(s.cfg.MintDeadline),
	})
	if err != nil {
		return fail(fmt.Errorf("pack mint: %w", err))
	}
	receipt, err := flow.SubmitAndConfirm(ctx, "mint", chain.TxRequest{To: s.cfg.PositionManager, Data: data})
	if err != nil {
		return fail(err)
	}

	res := AddLiquidityResult{Pool: lookup.Pool.Hex(), Range: ticks}
	if event, err := dex.DecodeIncreaseLiquidity(receipt, s.cfg.PositionManager); err == nil {
		res.TokenID = event.TokenID.String()
		res.Liquidity = event.Liquidity.String()
		res.Amount0 = event.Amount0.String()
		res.Amount1 = event.Amount1.String()
	} else {
		flow.Warn("mint confirmed but IncreaseLiquidity event not decoded", zap.Error(err))
	}
	res.Result = flow.Succeed(receipt.TxHash.Hex(), "liquidity added")
	return res
}

// Phase names a step of CreatePoolAndAddLiquidity.
type Phase string

const (
	PhaseCreatePool   Phase = "create-pool"
	PhaseAddLiquidity Phase = "add-liquidity"
)

// CreateAndAddResult reports each phase so a caller can resume at FailedPhase.
type CreateAndAddResult struct {
	Success     bool               `json:"success"`
	Error       string             `json:"error,omitempty"`
	FailedPhase Phase              `json:"failedPhase,omitempty"`
	PoolSkipped bool               `json:"poolSkipped"`
	CreatePool  CreatePoolResult   `json:"createPool"`
	Liquidity   AddLiquidityResult `json:"liquidity"`
}

// CreatePoolAndAddLiquidity runs pool creation then add-liquidity. Pool
// creation is skipped when an initialised pool already exists, so re-running
// after a failed second phase only repeats that phase.
func (s *Service) CreatePoolAndAddLiquidity(ctx context.Context, pool CreatePoolParams, add AddLiquidityParams) CreateAndAddResult {
	add.TokenA, add.TokenB, add.Fee = pool.TokenA, pool.TokenB, pool.Fee

	// Reject bad second-phase input before paying for the first phase.
	if err := errors.Join(
		validatePair(add.TokenA, add.TokenB),
		positiveAmount("amount A", add.AmountA),
		positiveAmount("amount B", add.AmountB),
		validateRange(add),
	); err != nil {
		return CreateAndAddResult{Error: err.Error(), FailedPhase: PhaseAddLiquidity}
	}

	created := s.CreatePool(ctx, pool)
	out := CreateAndAddResult{CreatePool: created, PoolSkipped: created.Existed}
	if !created.Success {
		out.Error = created.Error
		out.FailedPhase = PhaseCreatePool
		return out
	}
	if created.Existed {
		s.logger.Info("pool exists, resuming at add liquidity", zap.String("pool", created.Pool))
	}

	out.Liquidity = s.AddLiquidity(ctx, add)
	if !out.Liquidity.Success {
		out.Error = out.Liquidity.Error
		out.FailedPhase = PhaseAddLiquidity
		return out
	}
	out.Success = true
	return out
}
