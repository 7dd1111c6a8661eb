// Package pricemath converts between decimal prices, ticks and the Q64.96
// square-root price that concentrated-liquidity pools keep in slot0.
package pricemath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	MinTick = -887272
	MaxTick = 887272

	tickBase = 1.0001

	// largePriceThreshold is where EncodeSqrtPriceX96 switches to a pre-scaled square root.
	largePriceThreshold = 1e6
	unitPriceTolerance  = 0.000001
	minSqrtPriceX96     = 1000
)

var (
	ErrInvalidPrice     = errors.New("price must be a finite number greater than zero")
	ErrInvalidSqrtPrice = errors.New("sqrtPriceX96 must be greater than zero")
)

var (
	q96             = new(big.Int).Lsh(big.NewInt(1), 96)
	sqrtPriceOneX96 = mustParseBigInt("79228162514264337593543950336")
	scale18         = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	scale36         = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)
	// weiToQ96 is 2^96 / 10^18, truncated.
	weiToQ96 = new(big.Int).Quo(q96, scale18)
)

// Q96 returns 2^96.
func Q96() *big.Int {
	return new(big.Int).Set(q96)
}

// SqrtPriceOneX96 returns the sqrtPriceX96 of a 1:1 pool.
func SqrtPriceOneX96() *big.Int {
	return new(big.Int).Set(sqrtPriceOneX96)
}

// PriceToTick returns floor(log(price) / log(1.0001)).
func PriceToTick(price float64) (int, error) {
	if !isPositiveFinite(price) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	return int(math.Floor(math.Log(price) / math.Log(tickBase))), nil
}

// TickToPrice returns 1.0001^tick.
//
// TickToPrice(PriceToTick(p)) is not p: PriceToTick floors, so the round trip may
// land up to one tick (a factor of ~1.0001) below the original price.
func TickToPrice(tick int) float64 {
	return math.Pow(tickBase, float64(tick))
}

// DecodeSqrtPriceX96 computes (sqrtPriceX96 / 2^96)^2.
//
// The ratio is scaled by 10^18 before dividing by 2^96 and the square is
// unscaled by 10^36, which keeps small ratios from truncating to zero.
func DecodeSqrtPriceX96(sqrtPriceX96 *big.Int) (float64, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, ErrInvalidSqrtPrice
	}

	ratio := new(big.Int).Mul(sqrtPriceX96, scale18)
	ratio.Quo(ratio, q96)
	squared := new(big.Int).Mul(ratio, ratio)

	price, _ := new(big.Rat).SetFrac(squared, scale36).Float64()
	return price, nil
}

// EncodeSqrtPriceX96 returns sqrt(price) * 2^96.
//
// A price within 1e-6 of 1 returns the exact 1:1 constant. Prices at or above
// 1e6 are square-rooted after dividing by 1e6 and scaled back by 1000. Results
// below 1000 fall back to the 1:1 constant; use IsUnitPrice to tell a genuine
// 1:1 encoding from that fallback.
func EncodeSqrtPriceX96(price float64) (*big.Int, error) {
	if !isPositiveFinite(price) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	if IsUnitPrice(price) {
		return SqrtPriceOneX96(), nil
	}

	var out *big.Int
	if price < largePriceThreshold {
		wei := decimal.NewFromFloat(math.Sqrt(price)).Shift(18).BigInt()
		out = wei.Mul(wei, weiToQ96)
	} else {
		wei := decimal.NewFromFloat(math.Sqrt(price / largePriceThreshold)).Shift(18).BigInt()
		out = wei.Mul(wei, weiToQ96)
		out.Mul(out, big.NewInt(1000))
	}

	if out.Cmp(big.NewInt(minSqrtPriceX96)) < 0 {
		return SqrtPriceOneX96(), nil
	}
	return out, nil
}

// IsUnitPrice reports whether price is close enough to 1 to use the exact 1:1 encoding.
func IsUnitPrice(price float64) bool {
	return math.Abs(price-1.0) < unitPriceTolerance
}

// FormatPrice renders a price with four decimals.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.4f", price)
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func mustParseBigInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("pricemath: invalid constant " + s)
	}
	return n
}
