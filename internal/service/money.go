package service

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Flat tax applied when the guest opts in at checkout. Amounts are whole
// currency units, so the tax is rounded to the nearest integer.
var taxRate = decimal.NewFromFloat(0.18)

func taxOn(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Round(0)
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
