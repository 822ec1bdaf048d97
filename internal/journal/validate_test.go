package journal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// mockAccounts implements AccountGetter for testing.
type mockAccounts struct {
	byUID map[string]*model.Account
	err   error
}

func (m *mockAccounts) Get(_ context.Context, uid string) (*model.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	acc, ok := m.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("accounts %s: %w", uid, store.ErrNotFound)
	}
	return acc, nil
}

func newMockAccounts(accs ...*model.Account) *mockAccounts {
	m := &mockAccounts{byUID: make(map[string]*model.Account)}
	for _, a := range accs {
		m.byUID[a.UID] = a
	}
	return m
}

var usd = model.BuiltinCurrency("USD")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func transfer(debit, credit *model.Account, amount string) *model.Transaction {
	tx := model.NewTransaction("transfer", usd)
	v := model.NewMoney(dec(amount), usd)
	tx.AddSplit(model.NewSplit(v, debit.UID))
	tx.AddSplit(model.NewSplit(v.Neg(), credit.UID))
	return tx
}

func rules(verrs []ValidationError) []Rule {
	var out []Rule
	for _, ve := range verrs {
		out = append(out, ve.Rule)
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	bank := model.NewAccount("Bank", model.AccountTypeBank, usd)
	food := model.NewAccount("Food", model.AccountTypeExpense, usd)

	verrs, err := ValidateTransaction(context.Background(), transfer(food, bank, "12.50"), newMockAccounts(bank, food))
	require.NoError(t, err)
	assert.Empty(t, verrs)
}

func TestValidate_UnbalancedIsAllowed(t *testing.T) {
	bank := model.NewAccount("Bank", model.AccountTypeBank, usd)
	tx := model.NewTransaction("cash out", usd)
	tx.AddSplit(model.NewSplit(model.NewMoney(dec("-20"), usd), bank.UID))

	verrs, err := ValidateTransaction(context.Background(), tx, newMockAccounts(bank))
	require.NoError(t, err)
	assert.Empty(t, verrs)
}

func TestValidate_Rules(t *testing.T) {
	bank := model.NewAccount("Bank", model.AccountTypeBank, usd)
	food := model.NewAccount("Food", model.AccountTypeExpense, usd)
	expenses := model.NewAccount("Expenses", model.AccountTypeExpense, usd)
	expenses.Placeholder = true
	euros := model.NewAccount("Euros", model.AccountTypeBank, model.BuiltinCurrency("EUR"))
	accounts := newMockAccounts(bank, food, expenses, euros)

	tests := []struct {
		name  string
		build func() *model.Transaction
		want  []Rule
	}{
		{
			name: "no splits",
			build: func() *model.Transaction {
				return model.NewTransaction("empty", usd)
			},
			want: []Rule{RuleHasSplits},
		},
		{
			name: "no currency",
			build: func() *model.Transaction {
				tx := transfer(food, bank, "1")
				tx.Commodity = nil
				return tx
			},
			want: []Rule{RuleCommodity},
		},
		{
			name: "unknown account",
			build: func() *model.Transaction {
				return transfer(model.NewAccount("Ghost", model.AccountTypeExpense, usd), bank, "5")
			},
			want: []Rule{RuleAccountExists},
		},
		{
			name: "placeholder account",
			build: func() *model.Transaction {
				return transfer(expenses, bank, "5")
			},
			want: []Rule{RulePostable},
		},
		{
			name: "split of another transaction",
			build: func() *model.Transaction {
				tx := transfer(food, bank, "5")
				tx.Splits[1].TransactionUID = "elsewhere"
				return tx
			},
			want: []Rule{RuleSplitOwner},
		},
		{
			name: "sub-cent amount",
			build: func() *model.Transaction {
				tx := transfer(food, bank, "5")
				tx.Splits[0].Value = model.Money{Amount: dec("5.005"), Commodity: usd}
				return tx
			},
			want: []Rule{RulePrecision},
		},
		{
			name: "zero denominator",
			build: func() *model.Transaction {
				broken := *usd
				broken.SmallestFraction = 0
				tx := transfer(food, bank, "5")
				tx.Splits[0].Quantity = model.Money{Amount: dec("5"), Commodity: &broken}
				return tx
			},
			want: []Rule{RuleDenominator},
		},
		{
			name: "quantity in the wrong commodity",
			build: func() *model.Transaction {
				return transfer(euros, bank, "5")
			},
			want: []Rule{RuleQuantity},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verrs, err := ValidateTransaction(context.Background(), tt.build(), accounts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rules(verrs))
		})
	}
}

func TestValidate_LookupError(t *testing.T) {
	bank := model.NewAccount("Bank", model.AccountTypeBank, usd)
	boom := errors.New("disk on fire")
	_, err := ValidateTransaction(context.Background(), transfer(bank, bank, "1"), &mockAccounts{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestJoined(t *testing.T) {
	assert.NoError(t, Joined(nil))

	err := Joined([]ValidationError{
		{Rule: RuleHasSplits, UID: "t1", Description: "transaction has no splits"},
		{Rule: RulePostable, UID: "s1", Description: "account Expenses is a placeholder"},
	})
	require.Error(t, err)
	assert.Equal(t, "validation failed: has-splits [t1]: transaction has no splits; postable [s1]: account Expenses is a placeholder", err.Error())
}
