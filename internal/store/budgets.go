package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cleared-dev/gnuledger/internal/model"
)

// BudgetAmounts stores the planned amounts of budgets. Amounts are in the
// commodity of their account.
type BudgetAmounts struct {
	*Adapter[*model.BudgetAmount]
	splits *Splits
}

// NewBudgetAmounts prepares the budget amounts adapter.
func NewBudgetAmounts(db *sql.DB, opts Options, splits *Splits) (*BudgetAmounts, error) {
	b := &BudgetAmounts{splits: splits}
	a, err := newAdapter(db, opts, table[*model.BudgetAmount]{
		name: "budget_amounts",
		columns: []string{"budget_uid", "account_uid", "amount_num", "amount_denom",
			"period_num", "notes"},
		bind:    bindBudgetAmount,
		scan:    scanBudgetAmount,
		resolve: b.resolve,
	})
	if err != nil {
		return nil, err
	}
	b.Adapter = a
	return b, nil
}

func bindBudgetAmount(_ context.Context, b *model.BudgetAmount) ([]any, error) {
	if b.BudgetUID == "" || b.AccountUID == "" {
		return nil, errors.New("budget amount needs a budget and an account")
	}
	return []any{b.BudgetUID, b.AccountUID, b.Amount.Numerator(), b.Amount.Denominator(),
		b.PeriodNum, nullString(b.Notes)}, nil
}

func scanBudgetAmount(row scanner) (*model.BudgetAmount, error) {
	b := &model.BudgetAmount{}
	var br baseRow
	var num, denom int64
	var notes sql.NullString
	err := row.Scan(br.targets(&b.Base, &b.BudgetUID, &b.AccountUID, &num, &denom, &b.PeriodNum, &notes)...)
	if err != nil {
		return nil, err
	}
	br.apply(&b.Base)
	b.Notes = notes.String
	b.Amount = model.Money{Amount: fraction(num, denom)}
	return b, nil
}

func (b *BudgetAmounts) resolve(ctx context.Context, amounts []*model.BudgetAmount) error {
	for _, m := range amounts {
		c, err := b.AccountCommodity(ctx, m.AccountUID)
		if err != nil {
			return err
		}
		m.Amount = model.NewMoney(m.Amount.Amount, c)
	}
	return nil
}

// AccountCommodity returns the commodity budget amounts of an account use.
func (b *BudgetAmounts) AccountCommodity(ctx context.Context, accountUID string) (*model.Commodity, error) {
	return b.splits.AccountCommodity(ctx, accountUID)
}

// ForBudget returns the amounts of a budget.
func (b *BudgetAmounts) ForBudget(ctx context.Context, budgetUID string) ([]*model.BudgetAmount, error) {
	return b.All(ctx, Where("budget_uid = ?", budgetUID).OrderBy("id"))
}

// DeleteForBudget removes the amounts of a budget.
func (b *BudgetAmounts) DeleteForBudget(ctx context.Context, budgetUID string) (int64, error) {
	return b.DeleteWhere(ctx, Where("budget_uid = ?", budgetUID))
}

// ForAccount returns every budget amount planned for an account.
func (b *BudgetAmounts) ForAccount(ctx context.Context, accountUID string) ([]*model.BudgetAmount, error) {
	return b.All(ctx, Where("account_uid = ?", accountUID).OrderBy("id"))
}

// SumForAccount adds up the amounts planned for an account across budgets.
func (b *BudgetAmounts) SumForAccount(ctx context.Context, accountUID string) (model.Money, error) {
	c, err := b.AccountCommodity(ctx, accountUID)
	if err != nil {
		return model.Money{}, err
	}
	amounts, err := b.ForAccount(ctx, accountUID)
	if err != nil {
		return model.Money{}, err
	}
	sum := model.Zero(c)
	for _, m := range amounts {
		if sum, err = sum.Add(m.Amount); err != nil {
			return model.Money{}, err
		}
	}
	return sum, nil
}

// Budgets stores budgets with their recurrence and amounts.
type Budgets struct {
	*Adapter[*model.Budget]
	amounts     *BudgetAmounts
	recurrences *Recurrences
	accounts    *Accounts
}

// NewBudgets prepares the budgets adapter.
func NewBudgets(db *sql.DB, opts Options, amounts *BudgetAmounts, recurrences *Recurrences, accounts *Accounts) (*Budgets, error) {
	b := &Budgets{amounts: amounts, recurrences: recurrences, accounts: accounts}
	a, err := newAdapter(db, opts, table[*model.Budget]{
		name:    "budgets",
		columns: []string{"name", "description", "recurrence_uid", "num_periods"},
		bind:    bindBudget,
		scan:    scanBudget,
		resolve: b.resolve,
	})
	if err != nil {
		return nil, err
	}
	b.Adapter = a
	return b, nil
}

func bindBudget(_ context.Context, b *model.Budget) ([]any, error) {
	if b.Recurrence == nil {
		return nil, errors.New("budget has no recurrence")
	}
	return []any{b.Name, nullString(b.Description), b.Recurrence.UID, b.NumPeriods}, nil
}

func scanBudget(row scanner) (*model.Budget, error) {
	b := &model.Budget{}
	var br baseRow
	var description sql.NullString
	var recurrence string
	if err := row.Scan(br.targets(&b.Base, &b.Name, &description, &recurrence, &b.NumPeriods)...); err != nil {
		return nil, err
	}
	br.apply(&b.Base)
	b.Description = description.String
	b.Recurrence = &model.Recurrence{Base: model.Base{UID: recurrence}}
	return b, nil
}

func (b *Budgets) resolve(ctx context.Context, budgets []*model.Budget) error {
	for _, m := range budgets {
		r, err := b.recurrences.Get(ctx, m.Recurrence.UID)
		if err != nil {
			return err
		}
		m.Recurrence = r
		if m.Amounts, err = b.amounts.ForBudget(ctx, m.UID); err != nil {
			return err
		}
	}
	return nil
}

// Add writes the recurrence, the budget and then replaces its amounts. A
// budget without amounts is rejected with ErrEmptyBudget.
func (b *Budgets) Add(ctx context.Context, m *model.Budget, method UpdateMethod) error {
	if len(m.Amounts) == 0 {
		return fmt.Errorf("adding budget %q: %w", m.Name, ErrEmptyBudget)
	}
	return b.inTx(ctx, func(ctx context.Context) error {
		if err := b.recurrences.Add(ctx, m.Recurrence, method); err != nil {
			return err
		}
		if err := b.Adapter.Add(ctx, m, method); err != nil {
			return err
		}
		if _, err := b.amounts.DeleteForBudget(ctx, m.UID); err != nil {
			return err
		}
		for _, amount := range m.Amounts {
			amount.BudgetUID = m.UID
			if err := b.amounts.Add(ctx, amount, method); err != nil {
				return err
			}
		}
		return nil
	})
}

// BulkAdd writes recurrences, budgets and amounts atomically.
func (b *Budgets) BulkAdd(ctx context.Context, budgets []*model.Budget, method UpdateMethod) (int64, error) {
	var n int64
	err := b.inTx(ctx, func(ctx context.Context) error {
		var recurrences []*model.Recurrence
		var amounts []*model.BudgetAmount
		for _, m := range budgets {
			recurrences = append(recurrences, m.Recurrence)
			for _, amount := range m.Amounts {
				amount.BudgetUID = m.UID
				amounts = append(amounts, amount)
			}
		}
		if _, err := b.recurrences.BulkAdd(ctx, recurrences, method); err != nil {
			return err
		}
		var err error
		if n, err = b.Adapter.BulkAdd(ctx, budgets, method); err != nil {
			return err
		}
		_, err = b.amounts.BulkAdd(ctx, amounts, method)
		return err
	})
	return n, err
}

// ForAccount returns the budgets planning amounts for an account, by name.
func (b *Budgets) ForAccount(ctx context.Context, accountUID string) ([]*model.Budget, error) {
	return b.All(ctx, Where("budgets.uid IN (SELECT DISTINCT budget_uid FROM budget_amounts WHERE account_uid = ?)",
		accountUID).OrderBy("budgets.name"))
}

// AccountSum returns the combined balance, in the default currency, of the
// accounts a budget covers between start and end.
func (b *Budgets) AccountSum(ctx context.Context, budgetUID string, start, end int64) (model.Money, error) {
	amounts, err := b.amounts.ForBudget(ctx, budgetUID)
	if err != nil {
		return model.Money{}, err
	}
	uids := make([]string, 0, len(amounts))
	seen := make(map[string]bool)
	for _, m := range amounts {
		if !seen[m.AccountUID] {
			seen[m.AccountUID] = true
			uids = append(uids, m.AccountUID)
		}
	}
	return b.accounts.AccountsBalanceByUID(ctx, uids, start, end)
}
