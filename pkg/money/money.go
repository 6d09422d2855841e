// Package money centralizes monetary arithmetic. All amounts in the system
// are exact decimals; floating point never touches a balance.
package money

import "github.com/shopspring/decimal"

// Tolerance is the maximum difference two amounts may have and still be
// treated as matching. It exists for split-tender and installment checks
// where the business accepts a one-cent rounding difference.
var Tolerance = decimal.RequireFromString("0.01")

// InstallmentTolerance is the looser margin applied when matching an
// installment payment against the plan's fixed amount. Cash rounding at the
// front desk produces a few cents of drift; a whole currency unit does not.
var InstallmentTolerance = decimal.RequireFromString("0.10")

// Zero is the zero amount.
var Zero = decimal.Zero

// Matches reports whether a and b differ by at most Tolerance.
func Matches(a, b decimal.Decimal) bool {
	return MatchesWithin(a, b, Tolerance)
}

// MatchesWithin reports whether a and b differ by at most tol.
func MatchesWithin(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Sum adds a list of amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(a decimal.Decimal) bool {
	return a.GreaterThan(decimal.Zero)
}

// FromString parses an amount, returning the zero value on failure.
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
