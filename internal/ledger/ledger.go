// Package ledger wires the store adapters of one book database together and
// manages the registry of books in a data directory.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/prefs"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// Options configure the adapters of a ledger.
type Options = store.Options

// Ledger is an open book: its database and every adapter over it.
type Ledger struct {
	DB   *sql.DB
	Path string
	// UID and Prefs are set when the book is opened through a Manager.
	UID   string
	Prefs *prefs.Prefs
	Opts  Options

	Commodities      *store.Commodities
	Prices           *store.Prices
	Splits           *store.Splits
	Transactions     *store.Transactions
	Accounts         *store.Accounts
	Recurrences      *store.Recurrences
	ScheduledActions *store.ScheduledActions
	BudgetAmounts    *store.BudgetAmounts
	Budgets          *store.Budgets

	log zerolog.Logger
}

// Open opens (creating if needed) the book database at path, applies the
// schema and seeds the built-in currencies.
func Open(ctx context.Context, path string, opts Options) (*Ledger, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateBook(db); err != nil {
		db.Close()
		return nil, err
	}
	l, err := wire(db, opts)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing adapters: %w", err)
	}
	l.Path = path
	if err := l.Commodities.SeedCurrencies(ctx); err != nil {
		l.Close()
		return nil, err
	}
	l.log.Debug().Str("path", path).Msg("book opened")
	return l, nil
}

func wire(db *sql.DB, opts Options) (*Ledger, error) {
	l := &Ledger{DB: db, Opts: opts, log: opts.Logger}
	var err error
	if l.Commodities, err = store.NewCommodities(db, opts); err != nil {
		return nil, err
	}
	if l.Prices, err = store.NewPrices(db, opts, l.Commodities); err != nil {
		return nil, err
	}
	if l.Splits, err = store.NewSplits(db, opts, l.Commodities); err != nil {
		return nil, err
	}
	if l.Transactions, err = store.NewTransactions(db, opts, l.Commodities, l.Splits); err != nil {
		return nil, err
	}
	if l.Accounts, err = store.NewAccounts(db, opts, l.Commodities, l.Prices, l.Transactions); err != nil {
		return nil, err
	}
	if l.Recurrences, err = store.NewRecurrences(db, opts); err != nil {
		return nil, err
	}
	if l.ScheduledActions, err = store.NewScheduledActions(db, opts, l.Recurrences, l.Transactions); err != nil {
		return nil, err
	}
	if l.BudgetAmounts, err = store.NewBudgetAmounts(db, opts, l.Splits); err != nil {
		return nil, err
	}
	if l.Budgets, err = store.NewBudgets(db, opts, l.BudgetAmounts, l.Recurrences, l.Accounts); err != nil {
		return nil, err
	}
	return l, nil
}

// Close releases the prepared statements and the database.
func (l *Ledger) Close() error {
	var errs []error
	for _, c := range []interface{ Close() error }{
		l.Commodities, l.Prices, l.Splits, l.Transactions, l.Accounts,
		l.Recurrences, l.ScheduledActions, l.BudgetAmounts, l.Budgets,
	} {
		errs = append(errs, c.Close())
	}
	errs = append(errs, l.DB.Close())
	return errors.Join(errs...)
}

// InTx runs fn in one database transaction. Adapters called with the ctx
// passed to fn take part in it.
func (l *Ledger) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, l.DB, fn)
}

// OpeningBalances returns, without saving them, the transactions that carry
// every account's current balance into a new book.
func (l *Ledger) OpeningBalances(ctx context.Context) ([]*model.Transaction, error) {
	txs, err := l.Accounts.OpeningBalanceTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("building opening balances: %w", err)
	}
	return txs, nil
}

// ClearCaches drops every adapter cache, for use after the database was
// changed behind the adapters' back.
func (l *Ledger) ClearCaches() {
	l.Commodities.ClearCache()
	l.Prices.ClearCache()
	l.Splits.ClearCache()
	l.Accounts.ClearCache()
}
