package infra

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericToDecimal_Zero(t *testing.T) {
	v, err := NumericToDecimal(DecimalToNumeric(decimal.Zero))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestNumericToDecimal_TwoPlaces(t *testing.T) {
	// 1525 * 10^-2 = 15.25
	n := pgtype.Numeric{Int: big.NewInt(1525), Exp: -2, Valid: true}
	v, err := NumericToDecimal(n)
	require.NoError(t, err)
	assert.Equal(t, "15.25", v.String())
}

func TestNumericToDecimal_PositiveExponent(t *testing.T) {
	// 8 * 10^2 = 800
	n := pgtype.Numeric{Int: big.NewInt(8), Exp: 2, Valid: true}
	v, err := NumericToDecimal(n)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(800).Equal(v))
}

func TestNumericToDecimal_Negative(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(-500), Exp: -2, Valid: true}
	v, err := NumericToDecimal(n)
	require.NoError(t, err)
	assert.Equal(t, "-5", v.String())
}

func TestNumericToDecimal_NullReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{Valid: false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL")
}

func TestNumericToDecimal_NaNReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{NaN: true, Valid: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NaN")
}

func TestNumericToDecimal_InfinityReturnsError(t *testing.T) {
	_, err := NumericToDecimal(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true})
	require.Error(t, err)
}

func TestNumericToDecimal_DoesNotAliasInt(t *testing.T) {
	raw := big.NewInt(100)
	v, err := NumericToDecimal(pgtype.Numeric{Int: raw, Exp: 0, Valid: true})
	require.NoError(t, err)
	raw.SetInt64(5)
	assert.Equal(t, "100", v.String())
}

func TestDecimalToNumeric_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "15.5", "9999999999.99", "100"} {
		d := decimal.RequireFromString(s)
		n := DecimalToNumeric(d)
		assert.True(t, n.Valid)
		back, err := NumericToDecimal(n)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), s)
	}
}

func TestNullableNumericToDecimal(t *testing.T) {
	v, err := NullableNumericToDecimal(pgtype.Numeric{})
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = NullableNumericToDecimal(DecimalToNumeric(decimal.NewFromInt(7)))
	require.NoError(t, err)
	assert.Equal(t, "7", v.String())
}
