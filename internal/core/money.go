// Package core holds the recurring-bill data model: templates, instances,
// founder payments, skip rules, periods and money.
//
// Money is always integer cents internally. Decimal strings exist only at
// the wire boundary (AMQP messages, HTTP payloads) and are converted exactly
// once, here.
package core

import (
	"github.com/shopspring/decimal"
)

// Money is an amount in integer cents. Arithmetic on cents is exact, which
// the split invariant (payments sum to the instance amount) depends on.
type Money struct {
	Cents int64
}

// CentsOf builds a Money from a raw cent count.
func CentsOf(cents int64) Money {
	return Money{Cents: cents}
}

// ParseMoney converts a decimal string ("150.00", "12,34") to cents with
// half-up rounding on the third decimal place. Only positive amounts are
// accepted; bills and transactions carry direction separately.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(normalizeDecimal(s))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// String renders the canonical two-decimal form ("150.00").
func (m Money) String() string {
	return decimal.New(m.Cents, -2).StringFixed(2)
}

// Float64 is for display only; calculations stay in cents.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func normalizeDecimal(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ',':
			out = append(out, '.')
		case ' ', '\t':
		default:
			out = append(out, c)
		}
	}
	return string(out)
}
