package pricemath

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTick(t *testing.T) {
	cases := []struct {
		price float64
		want  int
	}{
		{price: 1, want: 0},
		{price: 10, want: 23027},
		{price: 20, want: 29958},
		{price: 100, want: 46054},
		{price: 0.0001, want: -92109},
		{price: 1.5, want: 4054},
	}
	for _, tc := range cases {
		got, err := PriceToTick(tc.price)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "price %v", tc.price)
	}
}

func TestPriceToTickRejectsNonPositive(t *testing.T) {
	for _, price := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := PriceToTick(price)
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", price)
	}
}

func TestTickToPriceRoundTripWithinOneTick(t *testing.T) {
	for _, price := range []float64{0.0003, 0.5, 1.5, 3.14159, 42, 12345.678} {
		tick, err := PriceToTick(price)
		require.NoError(t, err)

		back := TickToPrice(tick)
		assert.LessOrEqual(t, back, price*(1+1e-12))
		assert.Greater(t, back*tickBase, price*(1-1e-12))
	}
	assert.Equal(t, 1.0, TickToPrice(0))
}

func TestEncodeSqrtPriceX96Unit(t *testing.T) {
	got, err := EncodeSqrtPriceX96(1)
	require.NoError(t, err)
	assert.Equal(t, "79228162514264337593543950336", got.String())
	assert.Equal(t, 0, got.Cmp(Q96()))
}

func TestEncodeSqrtPriceX96Errors(t *testing.T) {
	for _, price := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		_, err := EncodeSqrtPriceX96(price)
		assert.ErrorIs(t, err, ErrInvalidPrice, "price %v", price)
	}
}

func TestEncodeSqrtPriceX96TinyPriceFallsBack(t *testing.T) {
	got, err := EncodeSqrtPriceX96(1e-60)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(SqrtPriceOneX96()))
	assert.False(t, IsUnitPrice(1e-60))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, price := range []float64{0.0001, 1, 100, 1000000, 2.5, 5e7} {
		encoded, err := EncodeSqrtPriceX96(price)
		require.NoError(t, err)

		decoded, err := DecodeSqrtPriceX96(encoded)
		require.NoError(t, err)
		assert.InEpsilon(t, price, decoded, 1e-6, "price %v", price)
	}
}

func TestDecodeSqrtPriceX96(t *testing.T) {
	price, err := DecodeSqrtPriceX96(new(big.Int).Lsh(Q96(), 1))
	require.NoError(t, err)
	assert.InEpsilon(t, 4.0, price, 1e-12)

	_, err = DecodeSqrtPriceX96(big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
	_, err = DecodeSqrtPriceX96(big.NewInt(-5))
	assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
	_, err = DecodeSqrtPriceX96(nil)
	assert.ErrorIs(t, err, ErrInvalidSqrtPrice)
}

func TestConstantsAreCopies(t *testing.T) {
	one := SqrtPriceOneX96()
	one.SetInt64(7)
	assert.Equal(t, "79228162514264337593543950336", SqrtPriceOneX96().String())
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1.0001", FormatPrice(TickToPrice(1)))
}
