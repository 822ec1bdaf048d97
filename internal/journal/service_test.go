package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

func openBook(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), filepath.Join(t.TempDir(), "book.db"), ledger.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func addAccount(t *testing.T, l *ledger.Ledger, fullName string, typ model.AccountType, code string) *model.Account {
	t.Helper()
	ctx := context.Background()
	c, err := l.Commodities.Currency(ctx, code)
	require.NoError(t, err)
	uid, err := l.Accounts.CreateAccountHierarchy(ctx, fullName, typ)
	require.NoError(t, err)
	acc, err := l.Accounts.Get(ctx, uid)
	require.NoError(t, err)
	if !acc.Commodity.Same(c) {
		acc.Commodity = c
		require.NoError(t, l.Accounts.Add(ctx, acc, store.Replace))
	}
	return acc
}

func TestAddDouble(t *testing.T) {
	ctx := context.Background()
	l := openBook(t)
	bank := addAccount(t, l, "Assets:Checking", model.AccountTypeBank, "USD")
	food := addAccount(t, l, "Expenses:Groceries", model.AccountTypeExpense, "USD")
	svc := NewService(l)

	tx, err := svc.AddDouble(ctx, AddDoubleParams{
		Date:          date(2025, 1, 15),
		Description:   "Weekly shop",
		DebitAccount:  "Expenses:Groceries",
		CreditAccount: "Assets:Checking",
		Amount:        dec("54.20"),
		Memo:          "market",
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", tx.Commodity.Mnemonic)
	require.Len(t, tx.Splits, 2)

	balance, err := l.Accounts.CurrentBalance(ctx, food.UID)
	require.NoError(t, err)
	assert.Equal(t, "54.20 USD", balance.String())
	balance, err = l.Accounts.CurrentBalance(ctx, bank.UID)
	require.NoError(t, err)
	assert.Equal(t, "-54.20 USD", balance.String())

	lines, err := svc.AccountLines(ctx, "Assets:Checking")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	byAccount := map[string]Line{}
	for _, line := range lines {
		byAccount[line.AccountFullName] = line
	}
	assert.True(t, byAccount["Assets:Checking"].Value.Equal(dec("-54.20")))
	assert.True(t, byAccount["Expenses:Groceries"].Amount.Equal(dec("54.20")))
	assert.Equal(t, "market", byAccount["Expenses:Groceries"].Memo)
	assert.Equal(t, "Weekly shop", byAccount["Assets:Checking"].Description)
	assert.Equal(t, "n", byAccount["Assets:Checking"].Reconcile)
	assert.True(t, date(2025, 1, 15).Equal(byAccount["Assets:Checking"].Date))
}

func TestAddDouble_ConvertsForeignLeg(t *testing.T) {
	ctx := context.Background()
	l := openBook(t)
	addAccount(t, l, "Assets:Checking", model.AccountTypeBank, "USD")
	euros := addAccount(t, l, "Assets:Euro Cash", model.AccountTypeCash, "EUR")

	usdC, err := l.Commodities.Currency(ctx, "USD")
	require.NoError(t, err)
	eurC, err := l.Commodities.Currency(ctx, "EUR")
	require.NoError(t, err)
	svc := NewService(l)

	_, err = svc.AddDouble(ctx, AddDoubleParams{
		Description:   "Exchange",
		DebitAccount:  "Assets:Euro Cash",
		CreditAccount: "Assets:Checking",
		Amount:        dec("100"),
		Currency:      "USD",
	})
	require.Error(t, err, "no USD to EUR price yet")

	require.NoError(t, l.Prices.Add(ctx, model.NewPrice(usdC.UID, eurC.UID, 9, 10), store.Insert))
	tx, err := svc.AddDouble(ctx, AddDoubleParams{
		Description:   "Exchange",
		DebitAccount:  "Assets:Euro Cash",
		CreditAccount: "Assets:Checking",
		Amount:        dec("100"),
		Currency:      "USD",
	})
	require.NoError(t, err)
	assert.True(t, tx.IsBalanced())

	balance, err := l.Accounts.CurrentBalance(ctx, euros.UID)
	require.NoError(t, err)
	assert.Equal(t, "90.00 EUR", balance.String())
}

func TestAdd_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	l := openBook(t)
	addAccount(t, l, "Expenses:Groceries", model.AccountTypeExpense, "USD")
	parent, err := l.Accounts.ByFullName(ctx, "Expenses")
	require.NoError(t, err)
	parent.Placeholder = true
	require.NoError(t, l.Accounts.Add(ctx, parent, store.Replace))
	svc := NewService(l)

	_, err = svc.AddDouble(ctx, AddDoubleParams{
		Description:   "Misfiled",
		DebitAccount:  "Expenses",
		CreditAccount: "Expenses:Groceries",
		Amount:        dec("5"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed: postable")

	_, err = svc.AddDouble(ctx, AddDoubleParams{
		DebitAccount:  "Expenses:Groceries",
		CreditAccount: "Expenses:Groceries",
		Amount:        dec("-5"),
	})
	assert.ErrorContains(t, err, "must be positive")

	_, err = svc.AddDouble(ctx, AddDoubleParams{
		DebitAccount:  "Expenses:Nowhere",
		CreditAccount: "Expenses:Groceries",
		Amount:        dec("5"),
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := l.Transactions.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
