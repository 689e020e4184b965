package shared

import "github.com/shopspring/decimal"

// PaymentTolerance is the maximum shortfall accepted when reconciling
// tendered amounts against an invoice grand total.
var PaymentTolerance = decimal.RequireFromString("0.05")

// Round2 rounds a monetary amount half-up to two decimal places.
// Rounding is applied per line before aggregation; invoice totals are
// sums of already-rounded lines.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Round3 rounds a weight to three decimal places (kilograms).
func Round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// Percent returns amount × percent / 100, rounded to two decimals.
func Percent(amount decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(percent).Div(decimal.NewFromInt(100)))
}
