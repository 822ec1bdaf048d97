package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction groups splits that should sum to zero in its commodity.
type Transaction struct {
	Base
	Description        string
	Notes              string
	Number             string
	Timestamp          time.Time
	Commodity          *Commodity
	Splits             []*Split
	Exported           bool
	Template           bool
	ScheduledActionUID string
}

// NewTransaction creates an unsaved transaction dated now.
func NewTransaction(description string, c *Commodity) *Transaction {
	return &Transaction{
		Base:        NewBase(),
		Description: description,
		Timestamp:   time.Now().UTC(),
		Commodity:   c,
	}
}

// AddSplit attaches a split to the transaction.
func (t *Transaction) AddSplit(s *Split) {
	s.TransactionUID = t.UID
	t.Splits = append(t.Splits, s)
}

// SetUID changes the UID and keeps the splits pointing at it.
func (t *Transaction) SetUID(uid string) {
	t.UID = uid
	for _, s := range t.Splits {
		s.TransactionUID = uid
	}
}

// Imbalance returns debits minus credits over split values. Transactions
// with a split valued in another commodity report zero; they are balanced by
// their quantities instead.
func (t *Transaction) Imbalance() Money {
	sum := decimal.Zero
	for _, s := range t.Splits {
		if !s.Value.Commodity.Same(t.Commodity) {
			return Zero(t.Commodity)
		}
		sum = sum.Add(s.SignedValue().Amount)
	}
	return Money{Amount: sum, Commodity: t.Commodity}
}

// IsBalanced reports whether Imbalance is zero.
func (t *Transaction) IsBalanced() bool {
	return t.Imbalance().IsZero()
}

// CreateAutoBalanceSplit appends a split cancelling the imbalance and returns
// it, or returns nil when the transaction already balances. The split has no
// account; the caller assigns the imbalance account before saving.
func (t *Transaction) CreateAutoBalanceSplit() *Split {
	imbalance := t.Imbalance()
	if imbalance.IsZero() {
		return nil
	}
	s := NewSplit(imbalance.Neg(), "")
	t.AddSplit(s)
	return s
}

// SplitUIDs returns the UIDs of all splits.
func (t *Transaction) SplitUIDs() []string {
	uids := make([]string, len(t.Splits))
	for i, s := range t.Splits {
		uids[i] = s.UID
	}
	return uids
}
