package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// Service validates and records transactions in a book.
type Service struct {
	l *ledger.Ledger
}

// NewService creates a journal Service.
func NewService(l *ledger.Ledger) *Service {
	return &Service{l: l}
}

// Validate runs ValidateTransaction against the book's accounts.
func (s *Service) Validate(ctx context.Context, tx *model.Transaction) error {
	verrs, err := ValidateTransaction(ctx, tx, s.l.Accounts)
	if err != nil {
		return err
	}
	return Joined(verrs)
}

// Add validates tx and inserts it with its splits.
func (s *Service) Add(ctx context.Context, tx *model.Transaction) error {
	if err := s.Validate(ctx, tx); err != nil {
		return err
	}
	if err := s.l.Transactions.Add(ctx, tx, store.Insert); err != nil {
		return fmt.Errorf("saving transaction: %w", err)
	}
	return nil
}

// AddDoubleParams holds parameters for a two-split transfer.
type AddDoubleParams struct {
	Date          time.Time
	Description   string
	Number        string
	Notes         string
	Memo          string
	DebitAccount  string // full name
	CreditAccount string // full name
	Amount        decimal.Decimal
	// Currency defaults to the debit account's commodity.
	Currency string
}

// AddDouble records Amount moving from CreditAccount to DebitAccount. Legs
// in an account of another commodity are converted with the latest price.
func (s *Service) AddDouble(ctx context.Context, p AddDoubleParams) (*model.Transaction, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("amount %s must be positive", p.Amount)
	}
	debit, err := s.l.Accounts.ByFullName(ctx, p.DebitAccount)
	if err != nil {
		return nil, err
	}
	credit, err := s.l.Accounts.ByFullName(ctx, p.CreditAccount)
	if err != nil {
		return nil, err
	}

	currency := debit.Commodity
	if p.Currency != "" {
		if currency, err = s.l.Commodities.Currency(ctx, p.Currency); err != nil {
			return nil, err
		}
	}

	tx := model.NewTransaction(p.Description, currency)
	tx.Number = p.Number
	tx.Notes = p.Notes
	if !p.Date.IsZero() {
		tx.Timestamp = p.Date.UTC()
	}

	value := model.NewMoney(p.Amount, currency)
	for _, leg := range []struct {
		acc    *model.Account
		amount model.Money
	}{{debit, value}, {credit, value.Neg()}} {
		split := model.NewSplit(leg.amount, leg.acc.UID)
		split.Memo = p.Memo
		if !leg.acc.Commodity.Same(currency) {
			q, ok, err := s.l.Prices.Convert(ctx, leg.amount, leg.acc.Commodity)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("no price from %s to %s", currency, leg.acc.Commodity)
			}
			split.Quantity = q.Abs()
		}
		tx.AddSplit(split)
	}

	if err := s.Add(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Lines flattens transactions into CSV lines, one per split.
func (s *Service) Lines(ctx context.Context, txs []*model.Transaction) ([]Line, error) {
	accounts := make(map[string]*model.Account)
	var lines []Line
	for _, tx := range txs {
		for _, split := range tx.Splits {
			acc, ok := accounts[split.AccountUID]
			if !ok {
				var err error
				acc, err = s.l.Accounts.Get(ctx, split.AccountUID)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return nil, err
				}
				accounts[split.AccountUID] = acc
			}
			lines = append(lines, lineOf(tx, split, acc))
		}
	}
	return lines, nil
}

// AccountLines returns the lines of every transaction touching an account,
// newest first.
func (s *Service) AccountLines(ctx context.Context, fullName string) ([]Line, error) {
	uid, err := s.l.Accounts.UIDByFullName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, fmt.Errorf("account %s: %w", fullName, store.ErrNotFound)
	}
	txs, err := s.l.Transactions.AllForAccount(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.Lines(ctx, txs)
}

func lineOf(tx *model.Transaction, split *model.Split, acc *model.Account) Line {
	line := Line{
		Date:           tx.Timestamp,
		TransactionUID: tx.UID,
		Number:         tx.Number,
		Description:    tx.Description,
		Notes:          tx.Notes,
		Memo:           split.Memo,
		Amount:         split.SignedQuantity().Amount,
		Value:          split.SignedValue().Amount,
		ReconcileDate:  split.ReconcileDate,
	}
	if split.ReconcileState != 0 {
		line.Reconcile = string(split.ReconcileState)
	}
	if tx.Commodity != nil {
		line.Commodity = tx.Commodity.Mnemonic
	}
	if acc != nil {
		line.AccountFullName = acc.FullName
		line.AccountName = acc.Name
	}
	return line
}
