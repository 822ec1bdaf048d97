package model

import (
	"fmt"
	"time"
)

// SplitType is the side of a split.
type SplitType string

const (
	Debit  SplitType = "DEBIT"
	Credit SplitType = "CREDIT"
)

// Invert returns the opposite side.
func (t SplitType) Invert() SplitType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// ParseSplitType accepts DEBIT or CREDIT.
func ParseSplitType(s string) (SplitType, error) {
	switch SplitType(s) {
	case Debit, Credit:
		return SplitType(s), nil
	}
	return "", fmt.Errorf("unknown split type %q", s)
}

// Reconcile states, as stored in splits.reconcile_state.
const (
	ReconcileNew        byte = 'n'
	ReconcileCleared    byte = 'c'
	ReconcileReconciled byte = 'y'
	ReconcileFrozen     byte = 'f'
	ReconcileVoided     byte = 'v'
)

// Split is one leg of a transaction. Value is in the transaction commodity,
// Quantity in the account commodity; both are kept non-negative and Type
// carries the sign.
type Split struct {
	Base
	TransactionUID      string
	AccountUID          string
	Type                SplitType
	Value               Money
	Quantity            Money
	Memo                string
	ReconcileState      byte
	ReconcileDate       time.Time
	ScheduledAccountUID string
}

// NewSplit creates a split whose quantity equals its value. A negative value
// becomes a CREDIT of the absolute amount.
func NewSplit(value Money, accountUID string) *Split {
	t := Debit
	if value.IsNegative() {
		t = Credit
	}
	return &Split{
		Base:           NewBase(),
		AccountUID:     accountUID,
		Type:           t,
		Value:          value.Abs(),
		Quantity:       value.Abs(),
		ReconcileState: ReconcileNew,
	}
}

// SignedValue is the value with CREDIT negated.
func (s *Split) SignedValue() Money {
	if s.Type == Credit {
		return s.Value.Neg()
	}
	return s.Value
}

// SignedQuantity is the quantity with CREDIT negated.
func (s *Split) SignedQuantity() Money {
	if s.Type == Credit {
		return s.Quantity.Neg()
	}
	return s.Quantity
}

// IsMultiCurrency reports whether value and quantity use different commodities.
func (s *Split) IsMultiCurrency() bool {
	return !s.Value.Commodity.Same(s.Quantity.Commodity)
}

// IsEquivalentTo compares everything except identity.
func (s *Split) IsEquivalentTo(o *Split) bool {
	return s.AccountUID == o.AccountUID &&
		s.Type == o.Type &&
		s.Value.Equal(o.Value) &&
		s.Quantity.Equal(o.Quantity) &&
		s.Memo == o.Memo
}
