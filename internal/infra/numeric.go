package infra

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a pgtype.Numeric (from a PostgreSQL numeric(p,2)
// money column) to a decimal. NULL, NaN and infinities are rejected.
func NumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, fmt.Errorf("numeric value is NULL")
	}
	if n.NaN {
		return decimal.Zero, fmt.Errorf("numeric value is NaN")
	}
	if n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, fmt.Errorf("numeric value is infinite")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}

	// pgtype.Numeric stores value as Int * 10^Exp, the same shape decimal uses.
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp), nil
}

// DecimalToNumeric converts a decimal to pgtype.Numeric for writing money columns.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              d.Coefficient(),
		Exp:              d.Exponent(),
		NaN:              false,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}

// NullableNumericToDecimal treats NULL as zero, for aggregates such as SUM over no rows.
func NullableNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	return NumericToDecimal(n)
}
