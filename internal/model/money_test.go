package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func usd() *Commodity { return BuiltinCurrency("USD") }
func eur() *Commodity { return BuiltinCurrency("EUR") }
func jpy() *Commodity { return BuiltinCurrency("JPY") }

func TestMoney_Fraction(t *testing.T) {
	tests := []struct {
		amount    string
		commodity *Commodity
		num       int64
		denom     int64
	}{
		{"3.50", usd(), 350, 100},
		{"-3.5", usd(), -350, 100},
		{"0", usd(), 0, 100},
		{"1200", jpy(), 1200, 1},
		{"10.005", usd(), 1000, 100}, // banker's rounding at the commodity scale
	}
	for _, tt := range tests {
		m := NewMoney(dec(tt.amount), tt.commodity)
		assert.Equal(t, tt.num, m.Numerator(), "Numerator(%s)", tt.amount)
		assert.Equal(t, tt.denom, m.Denominator(), "Denominator(%s)", tt.amount)
	}
}

func TestMoneyFromFraction(t *testing.T) {
	m := MoneyFromFraction(-350, 100, usd())
	assert.True(t, m.Amount.Equal(dec("-3.50")))
	assert.Equal(t, "-3.50 USD", m.String())

	m = MoneyFromFraction(7, 2, usd())
	assert.True(t, m.Amount.Equal(dec("3.5")))

	assert.True(t, MoneyFromFraction(5, 0, usd()).IsZero())
}

func TestMoney_AddMismatch(t *testing.T) {
	a := NewMoney(dec("1"), usd())
	b := NewMoney(dec("1"), eur())

	_, err := a.Add(b)
	require.ErrorIs(t, err, ErrCommodityMismatch)

	sum, err := a.Add(NewMoney(dec("2.25"), usd()))
	require.NoError(t, err)
	assert.True(t, sum.Equal(NewMoney(dec("3.25"), usd())))

	diff, err := a.Sub(NewMoney(dec("2.25"), usd()))
	require.NoError(t, err)
	assert.True(t, diff.IsNegative())
	assert.Equal(t, "1.25 USD", diff.Abs().String())
}

func TestMoney_Times(t *testing.T) {
	m := NewMoney(dec("10.00"), eur())
	got := m.Times(dec("1.1"), usd())
	assert.Equal(t, "11.00 USD", got.String())
}

func TestCommodity_Scale(t *testing.T) {
	assert.Equal(t, int32(2), usd().Scale())
	assert.Equal(t, int32(0), jpy().Scale())
	c := &Commodity{SmallestFraction: 100000000}
	assert.Equal(t, int32(8), c.Scale())
}

func TestNormalizeNamespace(t *testing.T) {
	assert.Equal(t, NamespaceCurrency, NormalizeNamespace("ISO4217"))
	assert.Equal(t, NamespaceCurrency, NormalizeNamespace("currency"))
	assert.Equal(t, "NASDAQ", NormalizeNamespace("NASDAQ"))
}

func TestBuiltinCurrency(t *testing.T) {
	c := BuiltinCurrency("usd")
	require.NotNil(t, c)
	assert.Equal(t, CommodityUID("USD"), c.UID)
	assert.Nil(t, BuiltinCurrency("XXX"))
	assert.Len(t, BuiltinCurrencies(), 7)
}
