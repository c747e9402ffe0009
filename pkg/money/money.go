// Package money provides the fixed-point monetary value used by the ledger.
//
// Invariants:
//   - Amount is always stored in the smallest unit (two decimal places).
//   - Arithmetic on Amount is exact integer arithmetic; comparisons never use a tolerance.
//   - Add, Sub and MulRate fail with ErrAmountOverflow instead of wrapping.
//   - Rate multiplication rounds half-to-even to the smallest unit.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by an Amount.
const Decimals = 2

var (
	// ErrInvalidAmount is returned when a value can not be parsed as an amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountOverflow is returned when a value does not fit the smallest-unit range.
	ErrAmountOverflow = errors.New("amount exceeds maximum safe integer value")
)

// Amount is a monetary value in the smallest unit (cents).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromUnits returns the amount for a whole number of major units.
func FromUnits(units int64) Amount {
	return Amount(units * 100)
}

// FromMinor returns the amount for a number of minor units.
func FromMinor(minor int64) Amount {
	return Amount(minor)
}

// Parse parses a decimal string such as "12.34". Values with more than
// two fractional digits are rounded half-to-even.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return fromDecimal(d)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func fromDecimal(d decimal.Decimal) (Amount, error) {
	minor := d.Shift(Decimals).RoundBank(0)
	if minor.GreaterThan(decimal.NewFromInt(math.MaxInt64)) ||
		minor.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrAmountOverflow
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount as a decimal in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Decimals)
}

// Minor returns the raw smallest-unit value.
func (a Amount) Minor() int64 { return int64(a) }

// Add returns a + b, or ErrAmountOverflow when the sum leaves the int64 range.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%s + %s: %w", a, b, ErrAmountOverflow)
	}
	return a + b, nil
}

// Sub returns a - b, or ErrAmountOverflow when the difference leaves the int64 range.
func (a Amount) Sub(b Amount) (Amount, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, fmt.Errorf("%s - %s: %w", a, b, ErrAmountOverflow)
	}
	return a - b, nil
}

func (a Amount) IsZero() bool     { return a == 0 }
func (a Amount) IsPositive() bool { return a > 0 }
func (a Amount) IsNegative() bool { return a < 0 }

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// MulRate returns a * bps / 10000, rounded half-to-even to the smallest unit.
func (a Amount) MulRate(bps int64) (Amount, error) {
	r := decimal.NewFromInt(int64(a)).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(10000))
	return fromDecimal(r.Shift(-Decimals))
}

// String returns the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Decimals)
}

// MarshalJSON encodes the amount as a decimal string, e.g. "1000.00".
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
