package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact, arbitrary-precision decimal token quantity. Token
// amounts carry up to 18 fractional digits, so all balance arithmetic and
// every stored-vs-computed comparison goes through this type; floating point
// is never involved.
//
// The zero value is a valid zero amount.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount returns the zero amount.
func ZeroAmount() Amount {
	return Amount{d: decimal.Zero}
}

// ParseAmount parses a decimal string into an Amount. The round trip
// ParseAmount(s).String() is lossless for canonical decimal strings.
// Negative values are rejected: ledger quantities are non-negative.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("parsing amount %q: %w", s, ErrNegativeAmount)
	}
	return Amount{d: d}, nil
}

// MustAmount parses a decimal string and panics on failure. For constants
// and tests only.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b. The result may be negative; callers that require a
// non-negative result must check IsNegative.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.d.LessThan(b.d) {
		return a
	}
	return b
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports whether a and b represent the same quantity.
// 1.0 and 1.000 compare equal.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// IsNegative reports whether the amount is below zero. Only subtraction
// results can be negative; parsed amounts never are.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// String returns the canonical decimal string representation.
func (a Amount) String() string {
	return a.d.String()
}

// MarshalJSON encodes the amount as a JSON string, preserving full precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

// UnmarshalJSON decodes an amount from a JSON string or bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
