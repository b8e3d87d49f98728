// Package money provides integer minor-unit arithmetic for prices and tax.
//
// All arithmetic is integer-only. Rates are expressed in basis points
// (1 bps = 0.01%), so 7% is 700.
package money

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// BasisPoints is the denominator of a rate expressed in basis points.
const BasisPoints = 10000

// MaxRate is the largest supported rate: 100%.
const MaxRate Rate = BasisPoints

// MaxAmount bounds every price, line total and subtotal in cents. Totals
// built from amounts at or below it, plus tax at MaxRate, still fit in int64.
const MaxAmount int64 = 1_000_000_000_000_000

// Rate is a percentage expressed in basis points.
type Rate int64

// Valid reports whether r is within [0, MaxRate].
func (r Rate) Valid() bool {
	return r >= 0 && r <= MaxRate
}

// Mul returns amount × n when both are non-negative and the product stays
// within MaxAmount.
func Mul(amount, n int64) (int64, bool) {
	if amount < 0 || n < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(amount), uint64(n))
	if hi != 0 || lo > uint64(MaxAmount) {
		return 0, false
	}
	return int64(lo), true
}

// Add returns a + b when both are non-negative and the sum stays within
// MaxAmount.
func Add(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > MaxAmount-b {
		return 0, false
	}
	return a + b, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseRate parses a percentage such as "7", "7.25" or "7%" into a Rate.
// At most two decimal places are accepted.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, fmt.Errorf("parse rate: empty")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("parse rate %q: want digits with an optional fraction", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse rate %q: at most two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", s, err)
	}
	if w > int64(MaxRate)/100 || !Rate(w*100+f).Valid() {
		return 0, fmt.Errorf("parse rate %q: above %s", s, MaxRate)
	}
	return Rate(w*100 + f), nil
}

// String renders the rate as a percentage with two decimals: "7.00%".
func (r Rate) String() string {
	return fmt.Sprintf("%d.%02d%%", int64(r)/100, int64(r)%100)
}

// Apply returns amount × rate rounded half up to the nearest minor unit.
//
// The computation is exact for every int64 amount: (amount × bps + 5000) /
// 10000 is carried out in 128 bits. Negative amounts round half away from
// zero so Apply(-x) == -Apply(x). Apply panics if r is not Valid.
func (r Rate) Apply(amount int64) int64 {
	if !r.Valid() {
		panic(fmt.Sprintf("money: rate %d bps out of range", int64(r)))
	}
	neg := amount < 0
	abs := uint64(amount)
	if neg {
		abs = uint64(-(amount + 1)) + 1
	}
	hi, lo := bits.Mul64(abs, uint64(r))
	lo, carry := bits.Add64(lo, BasisPoints/2, 0)
	hi += carry
	// r <= BasisPoints keeps hi below the divisor and the quotient <= abs.
	q, _ := bits.Div64(hi, lo, BasisPoints)
	if neg {
		if q > math.MaxInt64 {
			return math.MinInt64
		}
		return -int64(q)
	}
	return int64(q)
}

// Format renders cents as fixed-point major units: 1924 -> "19.24", -5 -> "-0.05".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Parse converts a fixed-point major-unit string ("8.99", "12", "-1.26")
// into cents. Only a leading sign is accepted.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(digits, ".")
	if whole == "" || len(frac) > 2 || !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("parse amount %q: invalid format", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if w > MaxAmount/100 || w*100+f > MaxAmount {
		return 0, fmt.Errorf("parse amount %q: above %s", s, Format(MaxAmount))
	}
	cents := w*100 + f
	if neg {
		cents = -cents
	}
	return cents, nil
}
