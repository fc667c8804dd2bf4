// Package money holds the rounding and quantity helpers shared by every
// component that displays or serializes prices and weights.
package money

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity rules, in kilograms.
var (
	Step      = decimal.RequireFromString("0.5")
	MinItem   = decimal.RequireFromString("0.5")
	MinOrder  = decimal.NewFromInt(1)
	Tolerance = decimal.RequireFromString("0.000001")

	// MaxQuantity caps a single line. Larger input is clamped when snapped
	// and rejected when typed.
	MaxQuantity = decimal.NewFromInt(1000)
)

// maxIntDigits is the number of integer digits in MaxQuantity.
const maxIntDigits = 4

// epsilon is the float64 machine epsilon (2^-52).
const epsilon = 2.220446049250313e-16

var two = decimal.NewFromInt(2)

// FormatMoney rounds half away from zero to cents and renders two fixed decimals.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Round returns amount rounded to cents.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// FormatFloat formats a binary float amount. The epsilon bias keeps values
// such as 1.005 from rounding down because of their float representation.
// Non-finite input renders as "0.00".
func FormatFloat(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "0.00"
	}
	rounded := math.Floor((amount+epsilon)*100+0.5) / 100
	return strconv.FormatFloat(rounded, 'f', 2, 64)
}

// SnapToHalfStep rounds to the nearest 0.5 and never returns less than 0.5
// or more than MaxQuantity.
func SnapToHalfStep(v decimal.Decimal) decimal.Decimal {
	snapped := ClampQuantity(v).Mul(two).Round(0).Div(two)
	if snapped.LessThan(MinItem) {
		return MinItem
	}
	return snapped
}

// SnapFloat is SnapToHalfStep for float input; NaN and ±Inf snap to 0.5.
func SnapFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MinItem
	}
	return SnapToHalfStep(decimal.NewFromFloat(v))
}

// ClampQuantity bounds v to [0, MaxQuantity]. Values too small to matter
// become zero. Magnitude is read from the coefficient length and exponent,
// so an extreme exponent is never rescaled.
func ClampQuantity(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	if exceedsMax(v) {
		return MaxQuantity
	}
	if intDigits(v) < -12 {
		return decimal.Zero
	}
	return v
}

func exceedsMax(v decimal.Decimal) bool {
	return v.Sign() > 0 && (intDigits(v) > maxIntDigits || v.GreaterThan(MaxQuantity))
}

// intDigits is the position of the most significant digit of a non-zero v:
// 1 for 1..9, 4 for 1000..9999, 0 for 0.1..0.9, negative below that.
func intDigits(v decimal.Decimal) int64 {
	return int64(len(v.Coefficient().Text(10))) + int64(v.Exponent())
}

// SnapText snaps free-typed quantity text. Anything that does not parse as a
// finite number snaps to 0.5.
func SnapText(s string) decimal.Decimal {
	s = normalize(s)
	if s == "" {
		return MinItem
	}
	v, ok := parsePlain(s)
	if !ok {
		return MinItem
	}
	return SnapToHalfStep(v)
}

// ParseAmount parses a non-negative decimal typed by the user. Empty input is
// a valid zero; invalid, negative, exponent-notation or above-MaxQuantity
// input returns zero and false.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = normalize(s)
	if s == "" {
		return decimal.Zero, true
	}
	v, ok := parsePlain(s)
	if !ok || v.IsNegative() || exceedsMax(v) {
		return decimal.Zero, false
	}
	return v, true
}

// parsePlain parses positional decimal text. Exponent notation is refused.
func parsePlain(s string) (decimal.Decimal, bool) {
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}

// FormatQuantity renders a quantity with one fixed decimal ("0.5", "1.0").
func FormatQuantity(q decimal.Decimal) string {
	return q.StringFixed(1)
}

// IsHalfStep reports whether q is a multiple of 0.5 within Tolerance.
func IsHalfStep(q decimal.Decimal) bool {
	nearest := q.Mul(two).Round(0).Div(two)
	return q.Sub(nearest).Abs().LessThanOrEqual(Tolerance)
}

// normalize accepts a comma decimal separator and a trailing "kg" unit.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "kg"))
	return strings.Replace(s, ",", ".", 1)
}
