// Package swap consumes router quotes and builds slippage-bounded trades.
package swap

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

const bpsDenominator = 10000

var ErrInvalidSlippage = errors.New("slippage must be between 0 and 100 percent")

// SlippageBps converts a percentage such as 2.5 into basis points (250).
func SlippageBps(percent float64) (uint64, error) {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > 100 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSlippage, percent)
	}
	return uint64(math.Round(percent * 100)), nil
}

// ComputeMinimumOut returns expected * (10000 - bps) / 10000 with floor
// division, so the bound never rounds up.
func ComputeMinimumOut(expected *uint256.Int, slippagePercent float64) (*uint256.Int, error) {
	if expected == nil {
		return nil, fmt.Errorf("expected amount is nil")
	}
	bps, err := SlippageBps(slippagePercent)
	if err != nil {
		return nil, err
	}

	// expected = q*10000 + r, so expected*keep/10000 = q*keep + r*keep/10000
	// without ever exceeding 256 bits.
	keep := uint256.NewInt(bpsDenominator - bps)
	denom := uint256.NewInt(bpsDenominator)
	q := new(uint256.Int).Div(expected, denom)
	r := new(uint256.Int).Mod(expected, denom)

	out := new(uint256.Int).Mul(q, keep)
	tail := new(uint256.Int).Mul(r, keep)
	tail.Div(tail, denom)
	return out.Add(out, tail), nil
}
