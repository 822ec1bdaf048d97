package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price types.
const (
	PriceTypeLast        = "last"
	PriceTypeTransaction = "transaction"
	PriceTypeUnknown     = "unknown"
)

// Price sources.
const (
	PriceSourceUser      = "user:price"
	PriceSourceEditor    = "user:price-editor"
	PriceSourceXferDlg   = "user:xfer-dialog"
	PriceSourceQuote     = "Finance::Quote"
	PriceSourceIdentity  = "identity"
	PriceSourceInversion = "inverted"
)

// Price is the value of one unit of CommodityUID expressed in CurrencyUID,
// as the fraction ValueNum/ValueDenom.
type Price struct {
	Base
	CommodityUID string
	CurrencyUID  string
	Date         time.Time
	Source       string
	Type         string
	ValueNum     int64
	ValueDenom   int64
}

// NewPrice creates an unsaved price dated now.
func NewPrice(commodityUID, currencyUID string, num, denom int64) *Price {
	return &Price{
		Base:         NewBase(),
		CommodityUID: commodityUID,
		CurrencyUID:  currencyUID,
		Date:         time.Now().UTC(),
		Source:       PriceSourceUser,
		Type:         PriceTypeUnknown,
		ValueNum:     num,
		ValueDenom:   denom,
	}
}

// PriceFromDecimal stores rate as an exact fraction.
func PriceFromDecimal(commodityUID, currencyUID string, rate decimal.Decimal) *Price {
	denom := int64(1)
	if exp := rate.Exponent(); exp < 0 {
		denom = decimal.New(1, -exp).IntPart()
	}
	num := rate.Mul(decimal.NewFromInt(denom)).IntPart()
	return NewPrice(commodityUID, currencyUID, num, denom)
}

// IdentityPrice is the 1/1 price of a commodity in itself.
func IdentityPrice(commodityUID string) *Price {
	p := NewPrice(commodityUID, commodityUID, 1, 1)
	p.Source = PriceSourceIdentity
	return p
}

// IsValid reports whether both parts of the fraction are positive.
func (p *Price) IsValid() bool {
	return p.ValueNum > 0 && p.ValueDenom > 0
}

// Rate returns the price as a decimal.
func (p *Price) Rate() decimal.Decimal {
	return decimal.NewFromInt(p.ValueNum).DivRound(decimal.NewFromInt(p.ValueDenom), 16)
}

// Invert swaps the commodity roles and the fraction.
func (p *Price) Invert() *Price {
	inv := *p
	inv.CommodityUID, inv.CurrencyUID = p.CurrencyUID, p.CommodityUID
	inv.ValueNum, inv.ValueDenom = p.ValueDenom, p.ValueNum
	return &inv
}

// Convert expresses m, which must be in the price's commodity, in the
// price's currency c.
func (p *Price) Convert(m Money, c *Commodity) Money {
	amount := m.Amount.Mul(decimal.NewFromInt(p.ValueNum)).DivRound(decimal.NewFromInt(p.ValueDenom), c.Scale()+4)
	return NewMoney(amount, c)
}
