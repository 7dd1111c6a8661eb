// Package tickrange turns a requested price range into spacing-aligned pool ticks.
package tickrange

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexPortal/internal/pricemath"
)

const (
	// NoLowerBound and NoUpperBound mark the open ends of a full range.
	NoLowerBound = "0"
	NoUpperBound = "∞"

	DefaultTickSpacing = 60
)

var ErrInvalidPrice = errors.New("invalid price bound")

var feeTickSpacing = map[uint32]int{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// Range is an aligned [TickLower, TickUpper] pair.
type Range struct {
	TickLower   int  `json:"tick_lower"`
	TickUpper   int  `json:"tick_upper"`
	TickSpacing int  `json:"tick_spacing"`
	FullRange   bool `json:"full_range"`
	// FellBack is set when a custom range collapsed after alignment and the full range was used instead.
	FellBack bool `json:"fell_back,omitempty"`
}

// Validate checks ordering, spacing alignment and global bounds.
func (r Range) Validate() error {
	if r.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing must be positive: %d", r.TickSpacing)
	}
	if r.TickLower >= r.TickUpper {
		return fmt.Errorf("tick lower %d must be below tick upper %d", r.TickLower, r.TickUpper)
	}
	if r.TickLower%r.TickSpacing != 0 || r.TickUpper%r.TickSpacing != 0 {
		return fmt.Errorf("ticks %d/%d not aligned to spacing %d", r.TickLower, r.TickUpper, r.TickSpacing)
	}
	if r.TickLower < pricemath.MinTick || r.TickUpper > pricemath.MaxTick {
		return fmt.Errorf("ticks %d/%d outside [%d, %d]", r.TickLower, r.TickUpper, pricemath.MinTick, pricemath.MaxTick)
	}
	return nil
}

// TickSpacingForFee maps a fee tier to its tick spacing. Unknown tiers return
// DefaultTickSpacing and false.
func TickSpacingForFee(fee uint32) (int, bool) {
	spacing, ok := feeTickSpacing[fee]
	if !ok {
		return DefaultTickSpacing, false
	}
	return spacing, true
}

// GlobalBounds returns the widest ticks usable with spacing.
func GlobalBounds(spacing int) (int, int) {
	return ceilDiv(pricemath.MinTick, spacing) * spacing, floorDiv(pricemath.MaxTick, spacing) * spacing
}

// IsFullRange reports whether the bounds are the "0"/"∞" sentinels.
func IsFullRange(minPrice, maxPrice string) bool {
	return strings.TrimSpace(minPrice) == NoLowerBound && strings.TrimSpace(maxPrice) == NoUpperBound
}

// Processor converts price ranges into tick ranges.
type Processor struct {
	logger *zap.Logger
}

func NewProcessor(logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger}
}

// Process converts minPrice/maxPrice into an aligned, clamped, non-degenerate
// tick range for a pool with the given fee tier. currentPrice is only used as
// log context.
func (p *Processor) Process(minPrice, maxPrice string, currentPrice float64, fee uint32) (Range, error) {
	spacing, known := TickSpacingForFee(fee)
	if !known {
		p.logger.Warn("unknown fee tier, using default tick spacing",
			zap.Uint32("fee", fee),
			zap.Int("tick_spacing", spacing),
		)
	}
	lowerBound, upperBound := GlobalBounds(spacing)
	full := Range{TickLower: lowerBound, TickUpper: upperBound, TickSpacing: spacing, FullRange: true}

	if IsFullRange(minPrice, maxPrice) {
		return full, nil
	}

	minValue, err := parseBound(minPrice, NoLowerBound, math.SmallestNonzeroFloat64, true)
	if err != nil {
		return Range{}, fmt.Errorf("min price: %w", err)
	}
	maxValue, err := parseBound(maxPrice, NoUpperBound, math.MaxFloat64, false)
	if err != nil {
		return Range{}, fmt.Errorf("max price: %w", err)
	}

	tickLower, err := pricemath.PriceToTick(minValue)
	if err != nil {
		return Range{}, fmt.Errorf("min price: %w", err)
	}
	tickUpper, err := pricemath.PriceToTick(maxValue)
	if err != nil {
		return Range{}, fmt.Errorf("max price: %w", err)
	}

	// Narrow to the grid, never widen past what was asked for.
	tickLower = ceilDiv(tickLower, spacing) * spacing
	tickUpper = floorDiv(tickUpper, spacing) * spacing

	tickLower = max(tickLower, lowerBound)
	tickUpper = min(tickUpper, upperBound)

	if tickLower >= tickUpper {
		p.logger.Warn("degenerate tick range after alignment, falling back to full range",
			zap.String("min_price", minPrice),
			zap.String("max_price", maxPrice),
			zap.Float64("current_price", currentPrice),
			zap.Int("tick_lower", tickLower),
			zap.Int("tick_upper", tickUpper),
			zap.Int("tick_spacing", spacing),
		)
		full.FellBack = true
		return full, nil
	}

	return Range{TickLower: tickLower, TickUpper: tickUpper, TickSpacing: spacing}, nil
}

// parseBound reads one side of a range. A numeric zero lower bound behaves
// like the sentinel and clamps to the global minimum.
func parseBound(input, sentinel string, substitute float64, zeroIsOpen bool) (float64, error) {
	input = strings.TrimSpace(input)
	if input == sentinel {
		return substitute, nil
	}
	value, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, input)
	}
	if value.IsZero() && zeroIsOpen {
		return substitute, nil
	}
	if value.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidPrice, input)
	}
	f, _ := value.Float64()
	switch {
	case math.IsInf(f, 0):
		f = math.MaxFloat64
	case f == 0:
		f = math.SmallestNonzeroFloat64
	}
	return f, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
