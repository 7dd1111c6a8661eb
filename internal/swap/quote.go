package swap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dexPortal/internal/units"
)

var ErrNoRoute = errors.New("no swap route available")

// Quote is the router's best path for an input amount.
type Quote struct {
	Amounts     []*big.Int       `json:"amounts"`
	Path        []common.Address `json:"path"`
	Adapters    []common.Address `json:"adapters"`
	GasEstimate *big.Int         `json:"gas_estimate,omitempty"`
}

// Validate rejects quotes the router returns when it found no path.
func (q *Quote) Validate() error {
	if q == nil || len(q.Amounts) == 0 || len(q.Path) == 0 || q.Adapters == nil {
		return ErrNoRoute
	}
	if len(q.Path) < 2 || len(q.Adapters) != len(q.Path)-1 {
		return fmt.Errorf("%w: path of %d hops with %d adapters", ErrNoRoute, len(q.Path), len(q.Adapters))
	}
	last := q.Amounts[len(q.Amounts)-1]
	if last == nil || last.Sign() <= 0 {
		return fmt.Errorf("%w: zero output", ErrNoRoute)
	}
	return nil
}

// ExpectedOut is the final hop's output in the output token's base units.
func (q *Quote) ExpectedOut() (*uint256.Int, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return units.ToUint256(q.Amounts[len(q.Amounts)-1])
}

// Trade mirrors the router's swapNoSplit tuple.
type Trade struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Path      []common.Address
	Adapters  []common.Address
}

// BuildTrade bounds the quote's expected output by slippagePercent.
func BuildTrade(amountIn *big.Int, quote *Quote, slippagePercent float64) (Trade, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Trade{}, fmt.Errorf("amount in must be positive")
	}
	expected, err := quote.ExpectedOut()
	if err != nil {
		return Trade{}, err
	}
	minOut, err := ComputeMinimumOut(expected, slippagePercent)
	if err != nil {
		return Trade{}, err
	}

	return Trade{
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: minOut.ToBig(),
		Path:      append([]common.Address(nil), quote.Path...),
		Adapters:  append([]common.Address(nil), quote.Adapters...),
	}, nil
}
