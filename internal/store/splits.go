package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/gnuledger/internal/cache"
	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// Splits stores the legs of transactions.
type Splits struct {
	*Adapter[*model.Split]
	commodities *Commodities

	accountCommodity cache.Cache[string, *model.Commodity]
}

// NewSplits prepares the splits adapter. Splits are read joined with their
// transaction and account to learn the value and quantity commodities.
func NewSplits(db *sql.DB, opts Options, commodities *Commodities) (*Splits, error) {
	a, err := newAdapter(db, opts, table[*model.Split]{
		name: "splits",
		columns: []string{"memo", "type", "value_num", "value_denom", "quantity_num",
			"quantity_denom", "account_uid", "transaction_uid", "reconcile_state",
			"reconcile_date", "sched_account_uid"},
		extra: []string{"transactions.commodity_uid", "accounts.commodity_uid"},
		join: " JOIN transactions ON transactions.uid = splits.transaction_uid" +
			" JOIN accounts ON accounts.uid = splits.account_uid",
		bind: bindSplit,
		scan: scanSplit,
	})
	if err != nil {
		return nil, err
	}
	s := &Splits{
		Adapter:          a,
		commodities:      commodities,
		accountCommodity: cache.Nop[string, *model.Commodity]{},
	}
	if opts.Cache {
		s.accountCommodity = cache.NewMap[string, *model.Commodity]()
	}
	s.t.resolve = s.resolve
	return s, nil
}

func bindSplit(_ context.Context, s *model.Split) ([]any, error) {
	if s.AccountUID == "" {
		return nil, errors.New("split has no account")
	}
	if s.TransactionUID == "" {
		return nil, errors.New("split has no transaction")
	}
	state := s.ReconcileState
	if state == 0 {
		state = model.ReconcileNew
	}
	var reconciled any
	if !s.ReconcileDate.IsZero() {
		reconciled = database.FormatTime(s.ReconcileDate)
	}
	return []any{nullString(s.Memo), string(s.Type),
		s.Value.Numerator(), s.Value.Denominator(),
		s.Quantity.Numerator(), s.Quantity.Denominator(),
		s.AccountUID, s.TransactionUID, string(state), reconciled,
		nullString(s.ScheduledAccountUID)}, nil
}

func scanSplit(row scanner) (*model.Split, error) {
	s := &model.Split{}
	var br baseRow
	var memo, state, sched sql.NullString
	var typ, valueCommodity, quantityCommodity string
	var valueNum, valueDenom, quantityNum, quantityDenom int64
	var reconciled database.Time
	err := row.Scan(br.targets(&s.Base, &memo, &typ, &valueNum, &valueDenom, &quantityNum,
		&quantityDenom, &s.AccountUID, &s.TransactionUID, &state, &reconciled, &sched,
		&valueCommodity, &quantityCommodity)...)
	if err != nil {
		return nil, err
	}
	br.apply(&s.Base)
	s.Memo, s.ScheduledAccountUID = memo.String, sched.String
	s.Type = model.SplitType(typ)
	s.ReconcileState = model.ReconcileNew
	if state.String != "" {
		s.ReconcileState = state.String[0]
	}
	s.ReconcileDate = reconciled.Time
	// Commodities are placeholders until resolve loads them.
	s.Value = model.Money{Amount: fraction(valueNum, valueDenom), Commodity: &model.Commodity{Base: model.Base{UID: valueCommodity}}}
	s.Quantity = model.Money{Amount: fraction(quantityNum, quantityDenom), Commodity: &model.Commodity{Base: model.Base{UID: quantityCommodity}}}
	return s, nil
}

func fraction(num, denom int64) decimal.Decimal {
	if denom == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(denom))
}

func (s *Splits) resolve(ctx context.Context, splits []*model.Split) error {
	for _, sp := range splits {
		vc, err := s.commodities.ByUID(ctx, sp.Value.Commodity.UID)
		if err != nil {
			return err
		}
		qc, err := s.commodities.ByUID(ctx, sp.Quantity.Commodity.UID)
		if err != nil {
			return err
		}
		sp.Value = model.NewMoney(sp.Value.Amount, vc)
		sp.Quantity = model.NewMoney(sp.Quantity.Amount, qc)
	}
	return nil
}

// Add writes a split. Any method other than Insert marks the owning
// transaction as modified and not exported.
func (s *Splits) Add(ctx context.Context, sp *model.Split, method UpdateMethod) error {
	if err := s.Adapter.Add(ctx, sp, method); err != nil {
		return err
	}
	if method == Insert {
		return nil
	}
	_, err := s.exec(ctx, "UPDATE transactions SET is_exported = 0, modified_at = ? WHERE uid = ?",
		database.FormatTime(time.Now()), sp.TransactionUID)
	if err != nil {
		return fmt.Errorf("touching transaction %s: %w", sp.TransactionUID, err)
	}
	return nil
}

// ComputeSplitBalances sums the split quantities of each account between
// start and end (Unix millis, model.Always for an open end). Template
// transactions are excluded. Accounts without splits are absent from the map.
func (s *Splits) ComputeSplitBalances(ctx context.Context, accountUIDs []string, start, end int64) (map[string]model.Money, error) {
	if len(accountUIDs) == 0 {
		return map[string]model.Money{}, nil
	}
	cond, args := in("splits.account_uid", accountUIDs)
	query := "SELECT SUM(splits.quantity_num), splits.quantity_denom, splits.type," +
		" splits.account_uid, accounts.commodity_uid" +
		" FROM splits" +
		" JOIN transactions ON transactions.uid = splits.transaction_uid" +
		" JOIN accounts ON accounts.uid = splits.account_uid" +
		" WHERE " + cond +
		" AND transactions.is_template = 0 AND splits.quantity_denom > 0"
	switch {
	case start != model.Always && end != model.Always:
		query += " AND transactions.timestamp BETWEEN ? AND ?"
		args = append(args, start, end)
	case end != model.Always:
		query += " AND transactions.timestamp <= ?"
		args = append(args, end)
	case start != model.Always:
		query += " AND transactions.timestamp >= ?"
		args = append(args, start)
	}
	query += " GROUP BY splits.account_uid, splits.type, splits.quantity_denom"

	type part struct {
		sum, denom int64
		credit     bool
		commodity  string
	}
	parts := make(map[string][]part)
	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("computing split balances: %w", err)
	}
	for rows.Next() {
		var p part
		var typ, account string
		if err := rows.Scan(&p.sum, &p.denom, &typ, &account, &p.commodity); err != nil {
			rows.Close()
			return nil, err
		}
		p.credit = model.SplitType(typ) == model.Credit
		parts[account] = append(parts[account], p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balances := make(map[string]model.Money, len(parts))
	for account, ps := range parts {
		c, err := s.commodities.ByUID(ctx, ps[0].commodity)
		if err != nil {
			return nil, err
		}
		total := decimal.Zero
		for _, p := range ps {
			amount := fraction(p.sum, p.denom)
			if p.credit {
				amount = amount.Neg()
			}
			total = total.Add(amount)
		}
		balances[account] = model.NewMoney(total, c)
	}
	return balances, nil
}

// SplitsForTransaction returns the splits of a transaction in insertion order.
func (s *Splits) SplitsForTransaction(ctx context.Context, transactionUID string) ([]*model.Split, error) {
	return s.All(ctx, Where("splits.transaction_uid = ?", transactionUID).OrderBy("splits.id"))
}

// SplitsForTransactionInAccount returns the splits of a transaction that
// touch one account, smallest value first.
func (s *Splits) SplitsForTransactionInAccount(ctx context.Context, transactionUID, accountUID string) ([]*model.Split, error) {
	return s.All(ctx, Where("splits.transaction_uid = ? AND splits.account_uid = ?", transactionUID, accountUID).
		OrderBy("splits.value_num"))
}

// SplitsForAccount returns every split posted to an account.
func (s *Splits) SplitsForAccount(ctx context.Context, accountUID string) ([]*model.Split, error) {
	return s.All(ctx, Where("splits.account_uid = ?", accountUID).OrderBy("splits.id"))
}

// ReassignAccount moves every split of oldUID to newUID.
func (s *Splits) ReassignAccount(ctx context.Context, oldUID, newUID string) (int64, error) {
	return s.UpdateAll(ctx, "account_uid", newUID, Where("account_uid = ?", oldUID))
}

// AccountCommodity returns the commodity of an account.
func (s *Splits) AccountCommodity(ctx context.Context, accountUID string) (*model.Commodity, error) {
	if c, ok := s.accountCommodity.Get(accountUID); ok {
		return c, nil
	}
	var uid string
	err := s.conn(ctx).QueryRowContext(ctx, "SELECT commodity_uid FROM accounts WHERE uid = ?", accountUID).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("accounts", accountUID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading account commodity: %w", err)
	}
	c, err := s.commodities.ByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.accountCommodity.Put(accountUID, c)
	return c, nil
}

// InvalidateAccountCommodity drops the cached commodity of an account.
func (s *Splits) InvalidateAccountCommodity(accountUID string) {
	s.accountCommodity.Invalidate(accountUID)
}

// ClearCache drops the cached account commodities.
func (s *Splits) ClearCache() {
	s.accountCommodity.Clear()
}

// TransactionUID returns the transaction a split belongs to.
func (s *Splits) TransactionUID(ctx context.Context, splitUID string) (string, error) {
	return s.Attribute(ctx, splitUID, "transaction_uid")
}

// Delete removes a split, and its transaction when no split is left.
func (s *Splits) Delete(ctx context.Context, uid string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, func(ctx context.Context) error {
		txUID, err := s.TransactionUID(ctx, uid)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if deleted, err = s.Adapter.Delete(ctx, uid); err != nil {
			return err
		}
		left, err := s.scalar(ctx, "SELECT COUNT(*) FROM splits WHERE transaction_uid = ?", txUID)
		if err != nil {
			return err
		}
		if left == 0 {
			if _, err := s.exec(ctx, "DELETE FROM transactions WHERE uid = ?", txUID); err != nil {
				return fmt.Errorf("deleting empty transaction %s: %w", txUID, err)
			}
		}
		return nil
	})
	return deleted, err
}
