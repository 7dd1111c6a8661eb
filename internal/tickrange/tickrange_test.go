package tickrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dexPortal/internal/pricemath"
)

var feeTiers = map[uint32]int{100: 1, 500: 10, 3000: 60, 10000: 200}

func TestTickSpacingForFee(t *testing.T) {
	for fee, want := range feeTiers {
		got, ok := TickSpacingForFee(fee)
		assert.True(t, ok)
		assert.Equal(t, want, got, "fee %d", fee)
	}

	got, ok := TickSpacingForFee(777)
	assert.False(t, ok)
	assert.Equal(t, 60, got)
}

func TestGlobalBounds(t *testing.T) {
	cases := map[int][2]int{
		1:   {-887272, 887272},
		10:  {-887270, 887270},
		60:  {-887220, 887220},
		200: {-887200, 887200},
	}
	for spacing, want := range cases {
		lower, upper := GlobalBounds(spacing)
		assert.Equal(t, want[0], lower, "spacing %d", spacing)
		assert.Equal(t, want[1], upper, "spacing %d", spacing)
	}
}

func TestProcessFullRange(t *testing.T) {
	p := NewProcessor(zap.NewNop())
	for fee, spacing := range feeTiers {
		r, err := p.Process("0", "∞", 1, fee)
		require.NoError(t, err)

		lower, upper := GlobalBounds(spacing)
		assert.Equal(t, lower, r.TickLower)
		assert.Equal(t, upper, r.TickUpper)
		assert.True(t, r.FullRange)
		assert.False(t, r.FellBack)
		assert.Less(t, r.TickLower, r.TickUpper)
		require.NoError(t, r.Validate())
	}
}

func TestProcessCustomRangeAlignedForEveryFeeTier(t *testing.T) {
	p := NewProcessor(nil)
	ranges := [][2]string{{"10", "20"}, {"0.5", "2"}, {"0.0001", "10000"}, {"0", "3"}, {"2", "∞"}}
	for fee, spacing := range feeTiers {
		for _, pr := range ranges {
			r, err := p.Process(pr[0], pr[1], 1, fee)
			require.NoError(t, err)
			assert.Equal(t, spacing, r.TickSpacing)
			assert.Zero(t, r.TickLower%spacing, "fee %d range %v", fee, pr)
			assert.Zero(t, r.TickUpper%spacing, "fee %d range %v", fee, pr)
			assert.GreaterOrEqual(t, r.TickLower, pricemath.MinTick)
			assert.LessOrEqual(t, r.TickUpper, pricemath.MaxTick)
			assert.Less(t, r.TickLower, r.TickUpper)
		}
	}
}

func TestProcessScenarioFee3000(t *testing.T) {
	r, err := NewProcessor(nil).Process("10", "20", 15, 3000)
	require.NoError(t, err)

	// priceToTick(10) = 23027 rounds up to 23040, priceToTick(20) = 29958 rounds down to 29940.
	assert.Equal(t, Range{TickLower: 23040, TickUpper: 29940, TickSpacing: 60}, r)
	require.NoError(t, r.Validate())
}

func TestProcessOpenEndedCustomRangeClamps(t *testing.T) {
	r, err := NewProcessor(nil).Process("0", "20", 1, 500)
	require.NoError(t, err)
	assert.Equal(t, -887270, r.TickLower)
	assert.Equal(t, 29950, r.TickUpper)
	assert.False(t, r.FullRange)

	r, err = NewProcessor(nil).Process("10", "∞", 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 23030, r.TickLower)
	assert.Equal(t, 887270, r.TickUpper)
}

func TestProcessDegenerateFallsBackToFullRange(t *testing.T) {
	p := NewProcessor(nil)

	// Both prices land inside the same 200-tick bucket.
	r, err := p.Process("1.0001", "1.0002", 1, 10000)
	require.NoError(t, err)
	assert.True(t, r.FellBack)
	assert.True(t, r.FullRange)
	assert.Equal(t, -887200, r.TickLower)
	assert.Equal(t, 887200, r.TickUpper)

	// Inverted bounds collapse too.
	r, err = p.Process("20", "10", 1, 3000)
	require.NoError(t, err)
	assert.True(t, r.FellBack)
	require.NoError(t, r.Validate())
}

func TestProcessUnknownFeeUsesDefaultSpacing(t *testing.T) {
	r, err := NewProcessor(nil).Process("10", "20", 1, 777)
	require.NoError(t, err)
	assert.Equal(t, 60, r.TickSpacing)
	assert.Equal(t, 23040, r.TickLower)
	assert.Equal(t, 29940, r.TickUpper)
	require.NoError(t, r.Validate())

	full, err := NewProcessor(nil).Process("0", "∞", 1, 777)
	require.NoError(t, err)
	assert.Equal(t, -887220, full.TickLower)
	assert.Equal(t, 887220, full.TickUpper)
}

func TestProcessNumericZeroLowerBoundIsOpen(t *testing.T) {
	p := NewProcessor(nil)
	for _, lower := range []string{"0.0", "0.000", " 0 "} {
		r, err := p.Process(lower, "20", 1, 3000)
		require.NoError(t, err, lower)
		assert.Equal(t, -887220, r.TickLower, lower)
		assert.Equal(t, 29940, r.TickUpper, lower)
		assert.False(t, r.FellBack, lower)
		require.NoError(t, r.Validate())
	}
}

func TestProcessRejectsBadInput(t *testing.T) {
	p := NewProcessor(nil)
	for _, pr := range [][2]string{{"abc", "2"}, {"1", "x"}, {"-1", "2"}, {"1", "-5"}, {"∞", "2"}, {"1", "0"}, {"1", "0.0"}} {
		_, err := p.Process(pr[0], pr[1], 1, 3000)
		assert.ErrorIs(t, err, ErrInvalidPrice, "range %v", pr)
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, Range{TickLower: 60, TickUpper: 60, TickSpacing: 60}.Validate())
	assert.Error(t, Range{TickLower: 61, TickUpper: 120, TickSpacing: 60}.Validate())
	assert.Error(t, Range{TickLower: -887280, TickUpper: 120, TickSpacing: 60}.Validate())
	assert.Error(t, Range{TickLower: 0, TickUpper: 120}.Validate())
	assert.NoError(t, Range{TickLower: -60, TickUpper: 120, TickSpacing: 60}.Validate())
}

func TestDivisionHelpers(t *testing.T) {
	assert.Equal(t, -2, floorDiv(-7, 5))
	assert.Equal(t, -1, ceilDiv(-7, 5))
	assert.Equal(t, 1, floorDiv(7, 5))
	assert.Equal(t, 2, ceilDiv(7, 5))
	assert.Equal(t, -3, floorDiv(-15, 5))
	assert.Equal(t, -3, ceilDiv(-15, 5))
}
