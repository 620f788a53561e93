// Package money converts caller-supplied monetary amounts into exact
// integer minor units (cents). Nothing downstream of this package rounds.
package money

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidCents  = errors.New("invalid cents")
)

// Scale is the number of fractional digits of the currency.
const Scale = 2

var (
	amountPattern = regexp.MustCompile(`^-?\d+(\.\d{0,2})?$`)

	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseString converts a decimal string such as "150.75" or "150,75" into cents.
func ParseString(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if !amountPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q is not a decimal with up to %d fractional digits", ErrInvalidAmount, s, Scale)
	}

	// "150." is accepted by the pattern but not by decimal.
	s = strings.TrimSuffix(s, ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	return toCents(d)
}

// ParseFloat rounds f to two fractional digits and converts it into cents.
func ParseFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite number", ErrInvalidAmount, f)
	}

	return toCents(decimal.NewFromFloat(f).Round(Scale))
}

// ExactCents converts an already-scaled number of cents, rejecting anything
// that is not a whole number.
func ExactCents(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidCents, f)
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v is out of range", ErrInvalidCents, f)
	}

	return int64(f), nil
}

// Format renders cents as a decimal string with exactly two fractional digits.
func Format(cents int64) string {
	return decimal.New(cents, -Scale).StringFixed(Scale)
}

func toCents(d decimal.Decimal) (int64, error) {
	c := d.Shift(Scale)
	if c.GreaterThan(maxCents) || c.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}

	return c.IntPart(), nil
}
