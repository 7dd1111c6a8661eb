package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
)

const DefaultMaxHops = 3

// DefaultGasPrice is the gas price handed to the router's path search (225 gwei).
var DefaultGasPrice = big.NewInt(225_000_000_000)

// Quoter asks the aggregator router for the best path.
type Quoter struct {
	reader   chain.Reader
	router   common.Address
	maxHops  uint64
	gasPrice *big.Int
	logger   *zap.Logger
}

// NewQuoter returns a Quoter with the default hop count and gas price.
func NewQuoter(reader chain.Reader, router common.Address, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{
		reader:   reader,
		router:   router,
		maxHops:  DefaultMaxHops,
		gasPrice: new(big.Int).Set(DefaultGasPrice),
		logger:   logger,
	}
}

// Router returns the router address quotes come from.
func (q *Quoter) Router() common.Address { return q.router }

// Quote returns a validated route for amountIn of tokenIn.
func (q *Quoter) Quote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*Quote, error) {
	if q.router == (common.Address{}) {
		return nil, fmt.Errorf("router address is not configured")
	}
	offer, err := dex.FindBestPathWithGas(ctx, q.reader, q.router, amountIn, tokenIn, tokenOut, q.maxHops, q.gasPrice)
	if err != nil {
		return nil, fmt.Errorf("find best path: %w", err)
	}
	quote := &Quote{
		Amounts:     offer.Amounts,
		Path:        offer.Path,
		Adapters:    offer.Adapters,
		GasEstimate: offer.GasEstimate,
	}
	if err := quote.Validate(); err != nil {
		return nil, err
	}
	q.logger.Debug("quote",
		zap.String("token_in", tokenIn.Hex()),
		zap.String("token_out", tokenOut.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", quote.Amounts[len(quote.Amounts)-1].String()),
		zap.Int("hops", len(quote.Path)-1),
	)
	return quote, nil
}
