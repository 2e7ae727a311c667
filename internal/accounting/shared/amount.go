package shared

import (
	"github.com/shopspring/decimal"
)

// Tolerance is the smallest imbalance treated as a real difference.
var Tolerance = decimal.New(1, -2)

// TVARates lists the rates a line may carry, in percent.
var TVARates = []int{0, 7, 10, 14, 20}

// ValidTVARate reports whether rate is one of TVARates.
func ValidTVARate(rate int) bool {
	for _, r := range TVARates {
		if r == rate {
			return true
		}
	}
	return false
}

// Balanced reports whether debit and credit differ by less than Tolerance.
func Balanced(debit, credit decimal.Decimal) bool {
	return debit.Sub(credit).Abs().LessThan(Tolerance)
}

// HasCentPrecision reports whether d carries at most two fraction digits.
func HasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// TVAAmount derives the tax on base at rate percent.
func TVAAmount(base decimal.Decimal, rate int) decimal.Decimal {
	if rate == 0 {
		return decimal.Zero
	}
	return Round2(base.Mul(decimal.NewFromInt(int64(rate))).Div(decimal.NewFromInt(100)))
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Money renders d with exactly two fraction digits.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
