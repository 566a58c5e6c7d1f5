// Package types provides the numeric types used by the ledger.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4),
// stored as a scaled BIGINT. Report quantities are signed: manual deductions
// are negative.
type Quantity int64

const QuantityScale int64 = 10_000

// NewQuantity creates a Quantity of whole units.
func NewQuantity(units int64) Quantity { return Quantity(units * QuantityScale) }

// ParseQuantity parses a decimal string such as "12.5".
func ParseQuantity(s string) (Quantity, error) { return parseQuantityString(s) }

// MustQuantity parses s and panics on error. Use only in tests and constants.
func MustQuantity(s string) Quantity {
	q, err := parseQuantityString(s)
	if err != nil {
		panic(err)
	}
	return q
}

func NewQuantityFromFloat64(v float64) Quantity {
	return Quantity(math.Round(v * float64(QuantityScale)))
}

func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) Float64() float64 { return float64(q) / float64(QuantityScale) }

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	neg := q < 0
	v := q
	if neg {
		v = -v
	}
	intPart := int64(v) / QuantityScale
	frac := int64(v) % QuantityScale
	if neg {
		return fmt.Sprintf("-%d.%04d", intPart, frac)
	}
	return fmt.Sprintf("%d.%04d", intPart, frac)
}

// MarshalJSON encodes Quantity as JSON number (not string), preserving 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string and parses to fixed-point (4 digits).
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	// If string, unquote first.
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := parseQuantityString(s)
		if err != nil {
			return err
		}
		*q = parsed
		return nil
	}

	// Otherwise treat as number token.
	parsed, err := parseQuantityString(string(data))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

var (
	maxIntPart    = math.MaxInt64 / QuantityScale
	maxScaled     = decimal.NewFromInt(math.MaxInt64)
	errOutOfRange = errors.New("quantity out of range")
)

func parseQuantityString(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty quantity")
	}

	// Exponent form is what some JSON encoders emit for large or tiny numbers.
	if strings.ContainsAny(s, "eE") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("parse quantity: %w", err)
		}
		scaled := d.Shift(4).Truncate(0)
		if scaled.Abs().GreaterThan(maxScaled) {
			return 0, errOutOfRange
		}
		return Quantity(scaled.IntPart()), nil
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intStr, fracStr, _ := strings.Cut(s, ".")
	if intStr == "" && fracStr == "" {
		return 0, fmt.Errorf("parse quantity %q: no digits", s)
	}
	if !digitsOnly(intStr) || !digitsOnly(fracStr) {
		return 0, fmt.Errorf("parse quantity %q: invalid character", s)
	}

	intPart := int64(0)
	if intStr != "" {
		var err error
		intPart, err = strconv.ParseInt(intStr, 10, 64)
		if err != nil {
			return 0, errOutOfRange
		}
	}

	// Normalize fractional part to 4 digits (pad right, truncate extra digits).
	if len(fracStr) > 4 {
		fracStr = fracStr[:4]
	}
	for len(fracStr) < 4 {
		fracStr += "0"
	}
	frac, err := strconv.ParseInt(fracStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity fractional part: %w", err)
	}

	if intPart > maxIntPart || (intPart == maxIntPart && frac > math.MaxInt64%QuantityScale) {
		return 0, errOutOfRange
	}
	v := intPart*QuantityScale + frac
	if neg {
		v = -v
	}
	return Quantity(v), nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Min returns the smaller of a and b.
func Min(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Quantity) Quantity {
	if a > b {
		return a
	}
	return b
}

// Sum adds up quantities.
func Sum(qs ...Quantity) Quantity {
	var total Quantity
	for _, q := range qs {
		total += q
	}
	return total
}

// Decimal converts q to an exact decimal.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

// NewQuantityFromDecimal rounds d half away from zero to 4 fractional digits.
func NewQuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity(d.Shift(4).Round(0).IntPart())
}

// Ratio is the number of source units consumed per produced unit.
// Ratios are arbitrary precision; the product with a Quantity is rounded
// back to 4 digits.
type Ratio = decimal.Decimal

// NewRatio creates a Ratio from a decimal string.
func NewRatio(s string) (Ratio, error) {
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ratio: %w", err)
	}
	return r, nil
}

// MustRatio creates a Ratio from a string, panics on error.
func MustRatio(s string) Ratio {
	return decimal.RequireFromString(s)
}

// MulRatio returns q × r rounded to the quantity scale.
func (q Quantity) MulRatio(r Ratio) Quantity {
	return NewQuantityFromDecimal(q.Decimal().Mul(r))
}
