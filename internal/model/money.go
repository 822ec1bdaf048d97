package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCommodityMismatch is returned when combining amounts of different commodities.
var ErrCommodityMismatch = errors.New("commodity mismatch")

// Money is an exact amount of a commodity. The amount is kept at the
// commodity's scale, so Numerator/Denominator reproduce the stored fraction.
type Money struct {
	Amount    decimal.Decimal
	Commodity *Commodity
}

// NewMoney rounds amount to the commodity scale.
func NewMoney(amount decimal.Decimal, c *Commodity) Money {
	return Money{Amount: amount.RoundBank(c.Scale()), Commodity: c}
}

// ParseMoney parses a decimal string such as "-3.50".
func ParseMoney(s string, c *Commodity) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return NewMoney(d, c), nil
}

// MoneyFromFraction builds Money from a stored num/denom pair.
func MoneyFromFraction(num, denom int64, c *Commodity) Money {
	if denom == 0 {
		return Zero(c)
	}
	amount := decimal.NewFromInt(num).DivRound(decimal.NewFromInt(denom), c.Scale()+4)
	return NewMoney(amount, c)
}

// Zero returns a zero amount of c.
func Zero(c *Commodity) Money {
	return Money{Amount: decimal.Zero, Commodity: c}
}

// Numerator returns the amount expressed in units of 1/Denominator.
func (m Money) Numerator() int64 {
	return m.Amount.Mul(decimal.NewFromInt(m.Denominator())).Round(0).IntPart()
}

// Denominator is the commodity's smallest fraction; always positive.
func (m Money) Denominator() int64 {
	if m.Commodity == nil {
		return 100
	}
	return m.Commodity.Fraction()
}

// Add returns m + o. Both must share a commodity.
func (m Money) Add(o Money) (Money, error) {
	if !m.Commodity.Same(o.Commodity) {
		return Money{}, fmt.Errorf("adding %s to %s: %w", o.Commodity, m.Commodity, ErrCommodityMismatch)
	}
	return Money{Amount: m.Amount.Add(o.Amount), Commodity: m.Commodity}, nil
}

// Sub returns m - o. Both must share a commodity.
func (m Money) Sub(o Money) (Money, error) {
	return m.Add(o.Neg())
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Commodity: m.Commodity}
}

// Abs returns |m|.
func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Commodity: m.Commodity}
}

// Times multiplies by rate and re-expresses the result in commodity to.
func (m Money) Times(rate decimal.Decimal, to *Commodity) Money {
	return NewMoney(m.Amount.Mul(rate), to)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Equal compares amount and commodity.
func (m Money) Equal(o Money) bool {
	return m.Commodity.Same(o.Commodity) && m.Amount.Equal(o.Amount)
}

func (m Money) String() string {
	if m.Commodity == nil {
		return m.Amount.String()
	}
	return m.Amount.StringFixed(m.Commodity.Scale()) + " " + m.Commodity.Mnemonic
}
