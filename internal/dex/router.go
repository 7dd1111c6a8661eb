package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"dexPortal/internal/chain"
)

// FormattedOffer is the router's best-path answer.
type FormattedOffer struct {
	Amounts     []*big.Int
	Adapters    []common.Address
	Path        []common.Address
	GasEstimate *big.Int
}

// RouterTrade mirrors the router's Trade tuple for swapNoSplit.
type RouterTrade struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Path      []common.Address
	Adapters  []common.Address
}

// FindBestPathWithGas asks the router for the best route within maxSteps hops.
func FindBestPathWithGas(ctx context.Context, reader chain.Reader, router common.Address, amountIn *big.Int, tokenIn, tokenOut common.Address, maxSteps uint64, gasPrice *big.Int) (FormattedOffer, error) {
	parsed, err := RouterABI()
	if err != nil {
		return FormattedOffer{}, fmt.Errorf("parse router abi: %w", err)
	}
	values, err := callMethod(ctx, reader, router, parsed, "findBestPathWithGas", nil,
		amountIn, tokenIn, tokenOut, new(big.Int).SetUint64(maxSteps), gasPrice)
	if err != nil {
		return FormattedOffer{}, err
	}
	offer, ok := abi.ConvertType(values[0], new(FormattedOffer)).(*FormattedOffer)
	if !ok || offer == nil {
		return FormattedOffer{}, fmt.Errorf("unexpected offer type %T", values[0])
	}
	return *offer, nil
}

// PackSwapNoSplit encodes swapNoSplit(trade, to, fee).
func PackSwapNoSplit(trade RouterTrade, to common.Address, fee *big.Int) ([]byte, error) {
	parsed, err := RouterABI()
	if err != nil {
		return nil, err
	}
	if fee == nil {
		fee = new(big.Int)
	}
	return parsed.Pack("swapNoSplit", trade, to, fee)
}

func callFrom(from, to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: &to, Data: data}
}
