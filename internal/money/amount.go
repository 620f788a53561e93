package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type amountKind uint8

const (
	kindUnset amountKind = iota
	kindText
	kindNumber
	kindMinorUnits
)

// Amount is a monetary value as the caller supplied it: either a decimal
// string or a number. The zero Amount is invalid.
type Amount struct {
	kind amountKind
	text string
	num  float64
	c    int64
}

// Text wraps a decimal string amount.
func Text(s string) Amount {
	return Amount{kind: kindText, text: s}
}

// Number wraps a numeric amount.
func Number(f float64) Amount {
	return Amount{kind: kindNumber, num: f}
}

// MinorUnits wraps an amount already expressed in cents.
func MinorUnits(c int64) Amount {
	return Amount{kind: kindMinorUnits, c: c}
}

// IsZero reports whether no amount was supplied.
func (a Amount) IsZero() bool {
	return a.kind == kindUnset
}

// Cents parses the amount into exact minor units.
func (a Amount) Cents() (int64, error) {
	switch a.kind {
	case kindText:
		return ParseString(a.text)
	case kindNumber:
		return ParseFloat(a.num)
	case kindMinorUnits:
		return a.c, nil
	default:
		return 0, fmt.Errorf("%w: amount required", ErrInvalidAmount)
	}
}

func (a Amount) String() string {
	switch a.kind {
	case kindText:
		return a.text
	case kindNumber:
		return strconv.FormatFloat(a.num, 'f', -1, 64)
	case kindMinorUnits:
		return Format(a.c)
	default:
		return ""
	}
}

// UnmarshalJSON accepts a JSON string ("150,75") or a JSON number (150.75).
// null leaves the amount unset.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}

	if b[0] == '"' {
		var s string

		err := json.Unmarshal(b, &s)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}

		*a = Text(s)

		return nil
	}

	var f float64

	err := json.Unmarshal(b, &f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	*a = Number(f)

	return nil
}
