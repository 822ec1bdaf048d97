package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// TimestampKind picks the earliest or latest transaction in Timestamp.
type TimestampKind int

const (
	Earliest TimestampKind = iota
	Latest
)

// Transactions stores transactions together with their splits.
type Transactions struct {
	*Adapter[*model.Transaction]
	commodities *Commodities
	splits      *Splits
	accounts    *Accounts // set by NewAccounts
}

// NewTransactions prepares the transactions adapter.
func NewTransactions(db *sql.DB, opts Options, commodities *Commodities, splits *Splits) (*Transactions, error) {
	a, err := newAdapter(db, opts, table[*model.Transaction]{
		name: "transactions",
		columns: []string{"name", "description", "timestamp", "is_exported", "currency_code",
			"commodity_uid", "scheduled_action_uid", "is_template", "number"},
		bind: bindTransaction,
		scan: scanTransaction,
	})
	if err != nil {
		return nil, err
	}
	t := &Transactions{Adapter: a, commodities: commodities, splits: splits}
	t.t.resolve = t.resolve
	return t, nil
}

func bindTransaction(_ context.Context, t *model.Transaction) ([]any, error) {
	if t.Commodity == nil {
		return nil, errors.New("transaction has no commodity")
	}
	return []any{t.Description, nullString(t.Notes), model.Millis(t.Timestamp), boolInt(t.Exported),
		t.Commodity.CurrencyCode(), t.Commodity.UID, nullString(t.ScheduledActionUID),
		boolInt(t.Template), nullString(t.Number)}, nil
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	t := &model.Transaction{}
	var br baseRow
	var notes, sched, number sql.NullString
	var ts int64
	var code, commodity string
	err := row.Scan(br.targets(&t.Base, &t.Description, &notes, &ts, &t.Exported, &code,
		&commodity, &sched, &t.Template, &number)...)
	if err != nil {
		return nil, err
	}
	br.apply(&t.Base)
	t.Notes, t.ScheduledActionUID, t.Number = notes.String, sched.String, number.String
	t.Timestamp = model.FromMillis(ts)
	t.Commodity = &model.Commodity{Base: model.Base{UID: commodity}, Mnemonic: code}
	return t, nil
}

func (t *Transactions) resolve(ctx context.Context, txs []*model.Transaction) error {
	for _, tx := range txs {
		c, err := t.commodities.ByUID(ctx, tx.Commodity.UID)
		if err != nil {
			return err
		}
		tx.Commodity = c
		if tx.Splits, err = t.splits.SplitsForTransaction(ctx, tx.UID); err != nil {
			return err
		}
	}
	return nil
}

// Add writes a transaction and its splits in one database transaction.
// An unbalanced transaction first gets a split on the imbalance account of
// its commodity. When the transaction already existed, splits no longer
// attached to it are deleted. On error tx is left without the balancing
// split, so it can be fixed and added again.
func (t *Transactions) Add(ctx context.Context, tx *model.Transaction, method UpdateMethod) (err error) {
	var auto *model.Split
	defer func() {
		if err != nil && auto != nil {
			tx.Splits = slices.DeleteFunc(tx.Splits, func(s *model.Split) bool { return s == auto })
		}
	}()

	return t.inTx(ctx, func(ctx context.Context) error {
		auto = tx.CreateAutoBalanceSplit()
		if auto != nil {
			uid, err := t.accounts.OrCreateImbalanceAccountUID(ctx, tx.Commodity)
			if err != nil {
				return err
			}
			auto.AccountUID = uid
			t.log.Debug().Str("transaction", tx.UID).Stringer("amount", auto.Value).Msg("auto-balanced")
		}

		_, err := t.ID(ctx, tx.UID)
		existed := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := t.Adapter.Add(ctx, tx, method); err != nil {
			return err
		}
		for _, s := range tx.Splits {
			s.TransactionUID = tx.UID
			m := method
			if s == auto {
				m = Insert
			}
			if err := t.splits.Add(ctx, s, m); err != nil {
				return err
			}
		}
		if existed {
			cond, args := in("uid", tx.SplitUIDs())
			n, err := t.exec(ctx, "DELETE FROM splits WHERE transaction_uid = ? AND NOT "+cond,
				append([]any{tx.UID}, args...)...)
			if err != nil {
				return fmt.Errorf("deleting stale splits of %s: %w", tx.UID, err)
			}
			if n > 0 {
				t.log.Debug().Str("transaction", tx.UID).Int64("splits", n).Msg("removed stale splits")
			}
		}
		return nil
	})
}

// BulkAdd writes transactions, then all their splits, then drops any
// transaction left without splits. Nothing is written if any step fails.
func (t *Transactions) BulkAdd(ctx context.Context, txs []*model.Transaction, method UpdateMethod) (int64, error) {
	var n int64
	err := t.inTx(ctx, func(ctx context.Context) error {
		var err error
		if n, err = t.Adapter.BulkAdd(ctx, txs, method); err != nil {
			return err
		}
		var splits []*model.Split
		for _, tx := range txs {
			for _, s := range tx.Splits {
				s.TransactionUID = tx.UID
				splits = append(splits, s)
			}
		}
		if _, err := t.splits.BulkAdd(ctx, splits, method); err != nil {
			return err
		}
		_, err = t.DeleteWithNoSplits(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteWithNoSplits removes transactions that have no splits.
func (t *Transactions) DeleteWithNoSplits(ctx context.Context) (int64, error) {
	return t.DeleteWhere(ctx, Where("uid NOT IN (SELECT transaction_uid FROM splits)"))
}

func inAccount(accountUID string) Query {
	return Where("transactions.uid IN (SELECT transaction_uid FROM splits WHERE account_uid = ?)", accountUID)
}

// AllForAccount returns the non-template transactions touching an account,
// newest first.
func (t *Transactions) AllForAccount(ctx context.Context, accountUID string) ([]*model.Transaction, error) {
	return t.All(ctx, inAccount(accountUID).And("transactions.is_template = 0").
		OrderBy("transactions.timestamp DESC", "transactions.number DESC", "transactions.id DESC"))
}

// ScheduledForAccount returns the template transactions touching an account.
func (t *Transactions) ScheduledForAccount(ctx context.Context, accountUID string) ([]*model.Transaction, error) {
	return t.All(ctx, inAccount(accountUID).And("transactions.is_template = 1").
		OrderBy("transactions.timestamp DESC", "transactions.id DESC"))
}

// Templates returns every template transaction.
func (t *Transactions) Templates(ctx context.Context) ([]*model.Transaction, error) {
	return t.All(ctx, Where("is_template = 1").OrderBy("timestamp DESC"))
}

// CountForAccount counts the non-template transactions touching an account.
func (t *Transactions) CountForAccount(ctx context.Context, accountUID string) (int64, error) {
	return t.Count(ctx, inAccount(accountUID).And("transactions.is_template = 0"))
}

// DeleteForAccount removes every transaction with a split in the account.
func (t *Transactions) DeleteForAccount(ctx context.Context, accountUID string) (int64, error) {
	return t.DeleteWhere(ctx, Where("uid IN (SELECT transaction_uid FROM splits WHERE account_uid = ?)", accountUID))
}

// DeleteAllNonTemplate removes every regular transaction.
func (t *Transactions) DeleteAllNonTemplate(ctx context.Context) (int64, error) {
	return t.DeleteWhere(ctx, Where("is_template = 0"))
}

// ToExportSince returns non-template transactions not yet exported and
// modified at or after since, oldest change first.
func (t *Transactions) ToExportSince(ctx context.Context, since time.Time) ([]*model.Transaction, error) {
	return t.All(ctx, Where("is_template = 0 AND is_exported = 0 AND modified_at >= ?", database.FormatTime(since)).
		OrderBy("modified_at ASC", "id ASC"))
}

// MarkExported flags the non-template transactions modified at or after since.
func (t *Transactions) MarkExported(ctx context.Context, since time.Time) (int64, error) {
	return t.UpdateAll(ctx, "is_exported", 1, Where("is_template = 0 AND modified_at >= ?", database.FormatTime(since)))
}

// Balance is the effect of one transaction on one account's balance.
func (t *Transactions) Balance(ctx context.Context, transactionUID, accountUID string) (model.Money, error) {
	account, err := t.accounts.Get(ctx, accountUID)
	if err != nil {
		return model.Money{}, err
	}
	splits, err := t.splits.SplitsForTransactionInAccount(ctx, transactionUID, accountUID)
	if err != nil {
		return model.Money{}, err
	}
	return account.BalanceOf(splits)
}

// Move reassigns the transaction's splits in src to dst and returns how many moved.
func (t *Transactions) Move(ctx context.Context, transactionUID, srcAccountUID, dstAccountUID string) (int64, error) {
	var n int64
	err := t.inTx(ctx, func(ctx context.Context) error {
		splits, err := t.splits.SplitsForTransactionInAccount(ctx, transactionUID, srcAccountUID)
		if err != nil {
			return err
		}
		for _, s := range splits {
			s.AccountUID = dstAccountUID
		}
		n, err = t.splits.BulkAdd(ctx, splits, Update)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("moving transaction %s: %w", transactionUID, err)
	}
	return n, nil
}

// CountNonTemplate counts regular transactions.
func (t *Transactions) CountNonTemplate(ctx context.Context) (int64, error) {
	return t.Count(ctx, Where("is_template = 0"))
}

// TemplateCount counts template transactions.
func (t *Transactions) TemplateCount(ctx context.Context) (int64, error) {
	return t.Count(ctx, Where("is_template = 1"))
}

// SplitCount counts the splits of a transaction.
func (t *Transactions) SplitCount(ctx context.Context, transactionUID string) (int64, error) {
	return t.scalar(ctx, "SELECT COUNT(*) FROM splits WHERE transaction_uid = ?", transactionUID)
}

// Suggestions returns up to ten earlier transactions in an account whose
// description starts with prefix, one per description, most recent first.
func (t *Transactions) Suggestions(ctx context.Context, accountUID, prefix string) ([]*model.Transaction, error) {
	like := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix) + "%"
	return t.All(ctx, inAccount(accountUID).
		And(`transactions.is_template = 0 AND transactions.name LIKE ? ESCAPE '\'`, like).
		GroupBy("transactions.name").
		OrderBy("MAX(transactions.timestamp) DESC").
		Limit(10))
}

// Timestamp returns the earliest or latest timestamp (Unix millis) of the
// regular transactions posted to accounts of the given type and commodity,
// or model.InvalidDate when there are none.
func (t *Transactions) Timestamp(ctx context.Context, kind TimestampKind, accountType model.AccountType, commodityUID string) (int64, error) {
	agg := "MIN"
	if kind == Latest {
		agg = "MAX"
	}
	var ts sql.NullInt64
	err := t.conn(ctx).QueryRowContext(ctx,
		"SELECT "+agg+"(transactions_timestamp) FROM trans_split_acct"+
			" WHERE accounts_type = ? AND accounts_commodity_uid = ? AND transactions_is_template = 0",
		string(accountType), commodityUID).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("reading transaction timestamp: %w", err)
	}
	if !ts.Valid {
		return model.InvalidDate, nil
	}
	return ts.Int64, nil
}

// FirstModified returns the oldest modified_at, or now when there are no
// transactions.
func (t *Transactions) FirstModified(ctx context.Context) (time.Time, error) {
	return t.modified(ctx, "MIN")
}

// LastModified returns the newest modified_at, or now when there are no
// transactions.
func (t *Transactions) LastModified(ctx context.Context) (time.Time, error) {
	return t.modified(ctx, "MAX")
}

func (t *Transactions) modified(ctx context.Context, agg string) (time.Time, error) {
	var ts database.Time
	err := t.conn(ctx).QueryRowContext(ctx, "SELECT "+agg+"(modified_at) FROM transactions").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading modification time: %w", err)
	}
	if !ts.Valid {
		return time.Now().UTC(), nil
	}
	return ts.Time, nil
}
