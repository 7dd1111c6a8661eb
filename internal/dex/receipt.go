package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IncreaseLiquidityEvent is the decoded position-manager event emitted by mint.
type IncreaseLiquidityEvent struct {
	TokenID   *big.Int
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// ErrEventNotFound is returned when a receipt carries no matching log.
var ErrEventNotFound = fmt.Errorf("event not found in receipt")

// DecodeIncreaseLiquidity finds the IncreaseLiquidity log emitted by positionManager.
func DecodeIncreaseLiquidity(receipt *types.Receipt, positionManager common.Address) (IncreaseLiquidityEvent, error) {
	if receipt == nil {
		return IncreaseLiquidityEvent{}, fmt.Errorf("receipt is nil")
	}
	parsed, err := PositionManagerABI()
	if err != nil {
		return IncreaseLiquidityEvent{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	event := parsed.Events["IncreaseLiquidity"]

	for _, log := range receipt.Logs {
		if log == nil || log.Address != positionManager || len(log.Topics) < 2 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil {
			return IncreaseLiquidityEvent{}, fmt.Errorf("unpack IncreaseLiquidity: %w", err)
		}
		if len(values) != 3 {
			return IncreaseLiquidityEvent{}, fmt.Errorf("unpack IncreaseLiquidity: expected 3 values, got %d", len(values))
		}
		liquidity, err := asBigInt(values[0])
		if err != nil {
			return IncreaseLiquidityEvent{}, fmt.Errorf("liquidity: %w", err)
		}
		amount0, err := asBigInt(values[1])
		if err != nil {
			return IncreaseLiquidityEvent{}, fmt.Errorf("amount0: %w", err)
		}
		amount1, err := asBigInt(values[2])
		if err != nil {
			return IncreaseLiquidityEvent{}, fmt.Errorf("amount1: %w", err)
		}
		return IncreaseLiquidityEvent{
			TokenID:   new(big.Int).SetBytes(log.Topics[1].Bytes()),
			Liquidity: liquidity,
			Amount0:   amount0,
			Amount1:   amount1,
		}, nil
	}
	return IncreaseLiquidityEvent{}, ErrEventNotFound
}
