// Package liquidity orchestrates pool creation and position management
// against a V3 factory and nonfungible position manager.
package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/tickrange"
	"dexPortal/internal/txflow"
	"dexPortal/internal/units"
)

const (
	DefaultMintDeadline     = 30 * time.Minute
	DefaultDecreaseDeadline = 20 * time.Minute
)

// Config names the contracts the service talks to.
type Config struct {
	Factory          common.Address
	PositionManager  common.Address
	MintDeadline     time.Duration
	DecreaseDeadline time.Duration
}

// Service exposes the liquidity actions shown in the portal.
type Service struct {
	cfg    Config
	tx     chain.Transactor
	runner *txflow.Runner
	ranges *tickrange.Processor
	pools  *dex.PoolMetaCache
	tokens *dex.TokenMetaCache
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a liquidity service onto runner's transactor.
func NewService(cfg Config, runner *txflow.Runner, logger *zap.Logger) (*Service, error) {
	if runner == nil || runner.Tx == nil {
		return nil, fmt.Errorf("transactor is nil")
	}
	if cfg.Factory == (common.Address{}) || cfg.PositionManager == (common.Address{}) {
		return nil, fmt.Errorf("factory and position manager addresses are required")
	}
	if cfg.MintDeadline <= 0 {
		cfg.MintDeadline = DefaultMintDeadline
	}
	if cfg.DecreaseDeadline <= 0 {
		cfg.DecreaseDeadline = DefaultDecreaseDeadline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		tx:     runner.Tx,
		runner: runner,
		ranges: tickrange.NewProcessor(logger),
		pools:  dex.NewPoolMetaCache(),
		tokens: dex.NewTokenMetaCache(),
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *Service) deadline(d time.Duration) *big.Int {
	return big.NewInt(s.now().Add(d).Unix())
}

func (s *Service) decimals(ctx context.Context, token common.Address) (uint8, error) {
	meta, err := dex.CachedTokenMeta(ctx, s.tx, token, s.tokens, s.logger)
	if err != nil {
		return 0, fmt.Errorf("token %s metadata: %w", token.Hex(), err)
	}
	return meta.Decimals, nil
}

func validatePair(tokenA, tokenB common.Address) error {
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return txflow.Invalid("both tokens are required")
	}
	if tokenA == tokenB {
		return txflow.Invalid("tokens must differ")
	}
	return nil
}

func validateFee(fee uint32) error {
	if _, ok := tickrange.TickSpacingForFee(fee); !ok {
		return txflow.Invalid("unsupported fee tier %d", fee)
	}
	return nil
}

// positiveAmount checks a human amount before token decimals are known.
func positiveAmount(name, amount string) error {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return txflow.Invalid("%s %q is not a number", name, amount)
	}
	if value.Sign() <= 0 {
		return txflow.Invalid("%s must be greater than zero", name)
	}
	return nil
}

func parseAmount(name, amount string, decimals uint8) (*big.Int, error) {
	value, err := units.ParsePositiveUnits(amount, decimals)
	if err != nil {
		return nil, txflow.Invalid("%s: %v", name, err)
	}
	return value, nil
}
