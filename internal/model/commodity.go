package model

import (
	"strings"

	"github.com/cleared-dev/gnuledger/internal/id"
)

// Commodity namespaces.
const (
	NamespaceCurrency = "CURRENCY"
	NamespaceISO4217  = "ISO4217"
	NamespaceTemplate = "template"
)

// Commodity is a currency or security.
type Commodity struct {
	Base
	Mnemonic         string
	Namespace        string
	Fullname         string
	LocalSymbol      string
	Cusip            string
	SmallestFraction int64
	QuoteFlag        bool
	QuoteSource      string
	QuoteTZ          string
}

// NormalizeNamespace maps ISO4217 onto CURRENCY; both name the same namespace.
func NormalizeNamespace(ns string) string {
	if strings.EqualFold(ns, NamespaceISO4217) || strings.EqualFold(ns, NamespaceCurrency) {
		return NamespaceCurrency
	}
	return ns
}

// IsCurrency reports whether the commodity lives in the currency namespace.
func (c *Commodity) IsCurrency() bool {
	return NormalizeNamespace(c.Namespace) == NamespaceCurrency
}

// CurrencyCode returns the mnemonic.
func (c *Commodity) CurrencyCode() string { return c.Mnemonic }

// Scale returns the number of decimal digits implied by the smallest fraction
// (100 -> 2, 1 -> 0).
func (c *Commodity) Scale() int32 {
	var scale int32
	for f := c.SmallestFraction; f >= 10; f /= 10 {
		scale++
	}
	return scale
}

// Fraction returns the smallest fraction, defaulting to 100 for malformed records.
func (c *Commodity) Fraction() int64 {
	if c.SmallestFraction <= 0 {
		return 100
	}
	return c.SmallestFraction
}

// Same reports whether a and b denote the same commodity.
func (c *Commodity) Same(o *Commodity) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.UID != "" && o.UID != "" {
		return c.UID == o.UID
	}
	return c.Mnemonic == o.Mnemonic && NormalizeNamespace(c.Namespace) == NormalizeNamespace(o.Namespace)
}

func (c *Commodity) String() string { return c.Mnemonic }

// CommodityUID returns the deterministic UID used for a built-in currency.
func CommodityUID(code string) string {
	return id.Named("commodity:" + strings.ToUpper(code))
}

// BuiltinCurrencies are the currencies kept available even when the
// commodities table has not been seeded.
func BuiltinCurrencies() []*Commodity {
	return []*Commodity{
		builtin("AUD", "Australian Dollar", "$", 100),
		builtin("CAD", "Canadian Dollar", "$", 100),
		builtin("CHF", "Swiss Franc", "Fr.", 100),
		builtin("EUR", "Euro", "€", 100),
		builtin("GBP", "Pound Sterling", "£", 100),
		builtin("JPY", "Yen", "¥", 1),
		builtin("USD", "US Dollar", "$", 100),
	}
}

// BuiltinCurrency returns the built-in currency for code, or nil.
func BuiltinCurrency(code string) *Commodity {
	code = strings.ToUpper(code)
	for _, c := range BuiltinCurrencies() {
		if c.Mnemonic == code {
			return c
		}
	}
	return nil
}

func builtin(code, name, symbol string, fraction int64) *Commodity {
	return &Commodity{
		Base:             Base{UID: CommodityUID(code)},
		Mnemonic:         code,
		Namespace:        NamespaceCurrency,
		Fullname:         name,
		LocalSymbol:      symbol,
		SmallestFraction: fraction,
		QuoteFlag:        true,
		QuoteSource:      "currency",
	}
}
