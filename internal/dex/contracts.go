package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dexPortal/internal/chain"
	"dexPortal/internal/model"
)

// MaxUint128 is the collect cap meaning "everything owed".
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// MintParams mirrors INonfungiblePositionManager.MintParams.
type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            *big.Int
	TickLower      *big.Int
	TickUpper      *big.Int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	Amount0Min     *big.Int
	Amount1Min     *big.Int
	Recipient      common.Address
	Deadline       *big.Int
}

// DecreaseLiquidityParams mirrors INonfungiblePositionManager.DecreaseLiquidityParams.
type DecreaseLiquidityParams struct {
	TokenId    *big.Int
	Liquidity  *big.Int
	Amount0Min *big.Int
	Amount1Min *big.Int
	Deadline   *big.Int
}

// CollectParams mirrors INonfungiblePositionManager.CollectParams.
type CollectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// SortTokens orders two addresses the way the factory does.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// GetPool returns the pool for the pair and fee, or the zero address.
func GetPool(ctx context.Context, reader chain.Reader, factory, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, reader, factory, parsed, "getPool", nil, tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// PackCreateAndInitializePool encodes createAndInitializePoolIfNecessary.
func PackCreateAndInitializePool(token0, token1 common.Address, fee uint32, sqrtPriceX96 *big.Int) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("createAndInitializePoolIfNecessary", token0, token1, new(big.Int).SetUint64(uint64(fee)), sqrtPriceX96)
}

// PackMint encodes mint(params).
func PackMint(params MintParams) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("mint", params)
}

// PackDecreaseLiquidity encodes decreaseLiquidity(params).
func PackDecreaseLiquidity(params DecreaseLiquidityParams) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("decreaseLiquidity", params)
}

// PackCollect encodes collect(params).
func PackCollect(params CollectParams) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("collect", params)
}

// PackBurn encodes burn(tokenId).
func PackBurn(tokenID *big.Int) ([]byte, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("burn", tokenID)
}

// FetchPosition reads positions(tokenId).
func FetchPosition(ctx context.Context, reader chain.Reader, positionManager common.Address, tokenID *big.Int) (model.Position, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return model.Position{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := callMethod(ctx, reader, positionManager, parsed, "positions", nil, tokenID)
	if err != nil {
		return model.Position{}, err
	}
	if len(values) < 12 {
		return model.Position{}, fmt.Errorf("positions: short result")
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.Position{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.Position{}, fmt.Errorf("token1: %w", err)
	}
	ints := make([]*big.Int, 0, 6)
	for _, idx := range []int{4, 5, 6, 7, 10, 11} {
		v, err := asBigInt(values[idx])
		if err != nil {
			return model.Position{}, fmt.Errorf("positions field %d: %w", idx, err)
		}
		ints = append(ints, v)
	}
	tickLower, err := int24FromBig(ints[1])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick lower: %w", err)
	}
	tickUpper, err := int24FromBig(ints[2])
	if err != nil {
		return model.Position{}, fmt.Errorf("tick upper: %w", err)
	}

	return model.Position{
		TokenID:     tokenID.String(),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(ints[0].Uint64()),
		TickLower:   tickLower,
		TickUpper:   tickUpper,
		Liquidity:   ints[3].String(),
		TokensOwed0: ints[4].String(),
		TokensOwed1: ints[5].String(),
	}, nil
}

// PositionTokenIDs lists the position NFTs held by owner.
func PositionTokenIDs(ctx context.Context, reader chain.Reader, positionManager, owner common.Address) ([]*big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := callMethod(ctx, reader, positionManager, parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	count, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if !count.IsInt64() {
		return nil, fmt.Errorf("balance out of range: %s", count)
	}

	ids := make([]*big.Int, 0, count.Int64())
	for i := int64(0); i < count.Int64(); i++ {
		values, err := callMethod(ctx, reader, positionManager, parsed, "tokenOfOwnerByIndex", nil, owner, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		id, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("token id %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// StaticCollect simulates collect(MaxUint128) from owner to read unclaimed fees.
func StaticCollect(ctx context.Context, reader chain.Reader, positionManager, owner common.Address, tokenID *big.Int) (*big.Int, *big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	data, err := PackCollect(CollectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: MaxUint128,
		Amount1Max: MaxUint128,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pack collect: %w", err)
	}
	resp, err := reader.CallContract(ctx, callFrom(owner, positionManager, data), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("call collect: %w", err)
	}
	values, err := parsed.Unpack("collect", resp)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack collect: %w", err)
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("collect: short result")
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Allowance reads token.allowance(owner, spender).
func Allowance(ctx context.Context, reader chain.Reader, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, reader, token, parsed, "allowance", nil, owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf reads token.balanceOf(owner).
func BalanceOf(ctx context.Context, reader chain.Reader, token, owner common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, reader, token, parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("approve", spender, amount)
}

// PackTokenMint encodes the faucet token's mint(to, amount).
func PackTokenMint(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("mint", to, amount)
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("transfer", to, amount)
}
