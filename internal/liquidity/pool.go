package liquidity

import (
	"context"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/model"
	"dexPortal/internal/pricemath"
	"dexPortal/internal/txflow"
)

// CreatePoolParams describes a new pool. InitialPrice is token1 per token0
// after the pair is sorted.
type CreatePoolParams struct {
	TokenA       common.Address
	TokenB       common.Address
	Fee          uint32
	InitialPrice float64
}

// CreatePoolResult reports the pool address and whether it already existed.
type CreatePoolResult struct {
	txflow.Result
	Pool    string `json:"pool,omitempty"`
	Existed bool   `json:"existed"`
}

// PoolLookup is the outcome of FindPool.
type PoolLookup struct {
	Pool        common.Address
	Exists      bool
	Initialized bool
}

// FindPool resolves the pool for a pair and fee and checks that it is initialised.
func (s *Service) FindPool(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (PoolLookup, error) {
	if err := validatePair(tokenA, tokenB); err != nil {
		return PoolLookup{}, err
	}
	token0, token1 := dex.SortTokens(tokenA, tokenB)
	pool, err := dex.GetPool(ctx, s.tx, s.cfg.Factory, token0, token1, fee)
	if err != nil {
		return PoolLookup{}, fmt.Errorf("get pool: %w", err)
	}
	if pool == (common.Address{}) {
		return PoolLookup{}, nil
	}

	lookup := PoolLookup{Pool: pool, Exists: true}
	slot0, err := dex.FetchSlot0(ctx, s.tx, pool)
	if err != nil {
		s.logger.Debug("slot0 probe failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return lookup, nil
	}
	lookup.Initialized = slot0.Initialized()
	return lookup, nil
}

// CreatePool creates and initialises a pool unless an initialised one exists.
func (s *Service) CreatePool(ctx context.Context, params CreatePoolParams) CreatePoolResult {
	flow := s.runner.Start("create-pool")
	flow.Transition(txflow.Validating)

	if err := validatePair(params.TokenA, params.TokenB); err != nil {
		return CreatePoolResult{Result: flow.Fail(err)}
	}
	if err := validateFee(params.Fee); err != nil {
		return CreatePoolResult{Result: flow.Fail(err)}
	}
	if math.IsNaN(params.InitialPrice) || math.IsInf(params.InitialPrice, 0) || params.InitialPrice <= 0 {
		return CreatePoolResult{Result: flow.Fail(txflow.Invalid("initial price must be greater than zero"))}
	}

	lookup, err := s.FindPool(ctx, params.TokenA, params.TokenB, params.Fee)
	if err != nil {
		return CreatePoolResult{Result: flow.Fail(err)}
	}
	if lookup.Exists && lookup.Initialized {
		s.logger.Info("pool already exists", zap.String("pool", lookup.Pool.Hex()))
		return CreatePoolResult{Result: flow.Succeed("", "pool already exists"), Pool: lookup.Pool.Hex(), Existed: true}
	}

	sqrtPrice, err := pricemath.EncodeSqrtPriceX96(params.InitialPrice)
	if err != nil {
		return CreatePoolResult{Result: flow.Fail(txflow.Invalid("initial price: %v", err))}
	}
	if !pricemath.IsUnitPrice(params.InitialPrice) && sqrtPrice.Cmp(pricemath.SqrtPriceOneX96()) == 0 {
		flow.Warn("initial price too small to encode, pool initialised at 1:1",
			zap.Float64("initial_price", params.InitialPrice))
	}

	token0, token1 := dex.SortTokens(params.TokenA, params.TokenB)
	data, err := dex.PackCreateAndInitializePool(token0, token1, params.Fee, sqrtPrice)
	if err != nil {
		return CreatePoolResult{Result: flow.Fail(fmt.Errorf("pack create pool: %w", err))}
	}
	receipt, err := flow.SubmitAndConfirm(ctx, "createAndInitializePoolIfNecessary", chain.TxRequest{To: s.cfg.PositionManager, Data: data})
	if err != nil {
		return CreatePoolResult{Result: flow.Fail(err)}
	}

	pool, err := dex.GetPool(ctx, s.tx, s.cfg.Factory, token0, token1, params.Fee)
	if err != nil {
		flow.Warn("pool created but address lookup failed", zap.Error(err))
	}
	res := CreatePoolResult{Result: flow.Succeed(receipt.TxHash.Hex(), "pool created")}
	if pool != (common.Address{}) {
		res.Pool = pool.Hex()
	}
	return res
}

// PoolInfo returns metadata, live liquidity and prices for a pool.
func (s *Service) PoolInfo(ctx context.Context, pool common.Address) (model.PoolMeta, error) {
	if pool == (common.Address{}) {
		return model.PoolMeta{}, txflow.Invalid("pool address is required")
	}
	meta, err := dex.FetchPoolState(ctx, s.tx, pool, s.pools, s.logger)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("pool %s: %w", pool.Hex(), err)
	}
	return meta, nil
}
