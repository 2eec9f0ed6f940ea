// Package types provides common value types shared across the domain.
package types

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Quantity is a whole-unit stock quantity.
//
// Stock is counted in indivisible units (pieces), so a plain int64 matches
// the Postgres BIGINT column without scaling tricks.
type Quantity int64

func (q Quantity) Int64() int64      { return int64(q) }
func (q Quantity) IsZero() bool      { return q == 0 }
func (q Quantity) IsPositive() bool  { return q > 0 }
func (q Quantity) IsNegative() bool  { return q < 0 }
func (q Quantity) Neg() Quantity     { return -q }
func (q Quantity) String() string    { return strconv.FormatInt(int64(q), 10) }

func (q Quantity) Abs() Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// MinorUnits represents a monetary value in minor currency units (cents).
// Storage: int64 - sufficient for ±922 trillion minor units.
type MinorUnits int64

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsPositive() bool { return m > 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }
func (m MinorUnits) Neg() MinorUnits  { return -m }

func (m MinorUnits) Abs() MinorUnits {
	if m < 0 {
		return -m
	}
	return m
}

// Money is a decimal monetary value in major units, used at the API boundary.
// decimal.Decimal avoids float rounding when parsing amounts like "12.50".
type Money = decimal.Decimal

// ParseMoney parses a major-unit amount ("12.50") into minor units (1250).
// Fails on more than two fractional digits rather than rounding silently.
func ParseMoney(s string) (MinorUnits, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("parse money %q: more than two decimal places", s)
	}
	return MinorUnits(cents.IntPart()), nil
}

// FormatMoney renders minor units as a major-unit decimal string ("12.50").
func FormatMoney(m MinorUnits) string {
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
