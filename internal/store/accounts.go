package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// Accounts stores the account tree and computes balances over it.
type Accounts struct {
	*Adapter[*model.Account]
	opts         Options
	commodities  *Commodities
	prices       *Prices
	splits       *Splits
	transactions *Transactions

	mu      sync.Mutex
	rootUID string
}

// NewAccounts prepares the accounts adapter and links it to transactions,
// which need it to find imbalance accounts.
func NewAccounts(db *sql.DB, opts Options, commodities *Commodities, prices *Prices, transactions *Transactions) (*Accounts, error) {
	acc := &Accounts{
		opts:         opts,
		commodities:  commodities,
		prices:       prices,
		splits:       transactions.splits,
		transactions: transactions,
	}
	a, err := newAdapter(db, opts, table[*model.Account]{
		name: "accounts",
		columns: []string{"name", "type", "currency_code", "commodity_uid", "description",
			"parent_account_uid", "is_placeholder", "color_code", "favorite", "full_name",
			"is_hidden", "default_transfer_account_uid", "notes", "is_template"},
		cached:  true,
		bind:    acc.bind,
		scan:    scanAccount,
		resolve: acc.resolve,
	})
	if err != nil {
		return nil, err
	}
	acc.Adapter = a
	transactions.accounts = acc
	return acc, nil
}

func (a *Accounts) bind(ctx context.Context, acc *model.Account) ([]any, error) {
	if acc.Commodity == nil {
		return nil, errors.New("account has no commodity")
	}
	if acc.Type == "" {
		return nil, errors.New("account has no type")
	}
	if !acc.IsRoot() {
		if acc.ParentUID == "" {
			root, err := a.RootAccountUID(ctx)
			if err != nil {
				return nil, err
			}
			acc.ParentUID = root
		}
		if err := a.checkParent(ctx, acc); err != nil {
			return nil, err
		}
		full, err := a.qualifiedName(ctx, acc.Name, acc.ParentUID)
		if err != nil {
			return nil, err
		}
		if full != "" {
			acc.FullName = full
		}
	} else if acc.FullName == "" {
		acc.FullName = model.RootAccountFullName
	}
	return []any{acc.Name, string(acc.Type), acc.Commodity.CurrencyCode(), acc.Commodity.UID,
		nullString(acc.Description), nullString(acc.ParentUID), boolInt(acc.Placeholder),
		nullString(acc.Color), boolInt(acc.Favorite), acc.FullName, boolInt(acc.Hidden),
		nullString(acc.DefaultTransferUID), nullString(acc.Notes), boolInt(acc.Template)}, nil
}

// checkParent keeps the accounts a tree: the parent may be neither the
// account itself nor one of its descendants.
func (a *Accounts) checkParent(ctx context.Context, acc *model.Account) error {
	if acc.ParentUID == acc.UID {
		return fmt.Errorf("%s as parent of itself: %w", acc.Name, ErrAccountCycle)
	}
	descendants, err := a.DescendantUIDs(ctx, acc.UID, Query{})
	if err != nil {
		return err
	}
	for _, uid := range descendants {
		if uid == acc.ParentUID {
			return fmt.Errorf("%s under its descendant %s: %w", acc.Name, uid, ErrAccountCycle)
		}
	}
	return nil
}

func scanAccount(row scanner) (*model.Account, error) {
	acc := &model.Account{}
	var br baseRow
	var typ, code, commodity string
	var description, parent, color, fullName, transfer, notes sql.NullString
	err := row.Scan(br.targets(&acc.Base, &acc.Name, &typ, &code, &commodity, &description,
		&parent, &acc.Placeholder, &color, &acc.Favorite, &fullName, &acc.Hidden, &transfer,
		&notes, &acc.Template)...)
	if err != nil {
		return nil, err
	}
	br.apply(&acc.Base)
	acc.Type = model.AccountType(typ)
	acc.Description, acc.ParentUID, acc.Color = description.String, parent.String, color.String
	acc.FullName, acc.DefaultTransferUID, acc.Notes = fullName.String, transfer.String, notes.String
	acc.Commodity = &model.Commodity{Base: model.Base{UID: commodity}, Mnemonic: code}
	return acc, nil
}

func (a *Accounts) resolve(ctx context.Context, accounts []*model.Account) error {
	for _, acc := range accounts {
		c, err := a.commodities.ByUID(ctx, acc.Commodity.UID)
		if err != nil {
			return err
		}
		acc.Commodity = c
	}
	return nil
}

// Add writes an account. A non-template ROOT becomes the book's root; any
// other account without a parent is attached to the root, and its full name
// is recomputed from its parent.
func (a *Accounts) Add(ctx context.Context, acc *model.Account, method UpdateMethod) error {
	prev := a.root()
	if acc.IsRoot() && !acc.Template {
		a.setRoot(acc.UID)
	}
	if err := a.Adapter.Add(ctx, acc, method); err != nil {
		a.setRoot(prev)
		return err
	}
	a.splits.InvalidateAccountCommodity(acc.UID)
	return nil
}

// BulkAdd writes all accounts atomically. Parents must precede children.
func (a *Accounts) BulkAdd(ctx context.Context, accounts []*model.Account, method UpdateMethod) (int64, error) {
	prev := a.root()
	for _, acc := range accounts {
		if acc.IsRoot() && !acc.Template {
			a.setRoot(acc.UID)
		}
	}
	n, err := a.Adapter.BulkAdd(ctx, accounts, method)
	if err != nil {
		a.setRoot(prev)
		return 0, err
	}
	for _, acc := range accounts {
		a.splits.InvalidateAccountCommodity(acc.UID)
	}
	return n, nil
}

func (a *Accounts) root() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rootUID
}

func (a *Accounts) setRoot(uid string) {
	a.mu.Lock()
	a.rootUID = uid
	a.mu.Unlock()
}

// ClearCache drops the cached accounts and root uid.
func (a *Accounts) ClearCache() {
	a.Adapter.ClearCache()
	a.setRoot("")
}

// RootAccountUID returns the uid of the book's ROOT account, creating the
// account when the book has none.
func (a *Accounts) RootAccountUID(ctx context.Context) (string, error) {
	if uid := a.root(); uid != "" {
		return uid, nil
	}
	uids, err := a.texts(ctx, "SELECT uid FROM accounts WHERE type = ? AND is_template = 0 ORDER BY id LIMIT 1",
		string(model.AccountTypeRoot))
	if err != nil {
		return "", err
	}
	// A root seen inside a transaction may still be rolled back.
	_, inTx := database.TxFrom(ctx)
	if len(uids) > 0 {
		if !inTx {
			a.setRoot(uids[0])
		}
		return uids[0], nil
	}

	c, err := a.commodities.DefaultCommodity(ctx)
	if err != nil {
		return "", err
	}
	root := model.NewAccount(model.RootAccountName, model.AccountTypeRoot, c)
	root.FullName = model.RootAccountFullName
	if err := a.Adapter.Add(ctx, root, Insert); err != nil {
		return "", fmt.Errorf("creating root account: %w", err)
	}
	a.log.Info().Str("uid", root.UID).Msg("created root account")
	if !inTx {
		a.setRoot(root.UID)
	}
	return root.UID, nil
}

// qualifiedName computes the full name of an account named name under
// parentUID. It returns "" when the parent is not stored yet.
func (a *Accounts) qualifiedName(ctx context.Context, name, parentUID string) (string, error) {
	if parentUID == "" {
		return name, nil
	}
	parent, err := a.FullyQualifiedName(ctx, parentUID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.JoinFullName(parent, name), nil
}

// FullyQualifiedName walks up the parents of an account and joins their
// names. ROOT accounts contribute nothing; the walk also stops at an account
// without parent and at a parent already visited.
func (a *Accounts) FullyQualifiedName(ctx context.Context, uid string) (string, error) {
	var names []string
	seen := make(map[string]bool)
	for cur := uid; ; {
		seen[cur] = true
		var name, typ string
		var parent sql.NullString
		err := a.conn(ctx).QueryRowContext(ctx,
			"SELECT name, type, parent_account_uid FROM accounts WHERE uid = ?", cur).Scan(&name, &typ, &parent)
		if errors.Is(err, sql.ErrNoRows) {
			return "", notFound("accounts", cur)
		}
		if err != nil {
			return "", fmt.Errorf("reading account %s: %w", cur, err)
		}
		if model.AccountType(typ) == model.AccountTypeRoot {
			break
		}
		names = append([]string{name}, names...)
		if !parent.Valid || parent.String == "" || seen[parent.String] {
			break
		}
		cur = parent.String
	}
	return strings.Join(names, model.AccountNameSeparator), nil
}

// UIDByFullName returns the uid of the account with fullName, or "".
func (a *Accounts) UIDByFullName(ctx context.Context, fullName string) (string, error) {
	uids, err := a.texts(ctx, "SELECT uid FROM accounts WHERE full_name = ? ORDER BY id LIMIT 1", fullName)
	if err != nil || len(uids) == 0 {
		return "", err
	}
	return uids[0], nil
}

// ByFullName returns the account with fullName, or ErrNotFound.
func (a *Accounts) ByFullName(ctx context.Context, fullName string) (*model.Account, error) {
	uid, err := a.UIDByFullName(ctx, fullName)
	if err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, notFound("accounts", fullName)
	}
	return a.Get(ctx, uid)
}

// ImbalanceAccount returns the auto-balance account of commodity c, or nil.
func (a *Accounts) ImbalanceAccount(ctx context.Context, c *model.Commodity) (*model.Account, error) {
	acc, err := a.ByFullName(ctx, model.ImbalanceAccountName(c))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return acc, err
}

// OrCreateImbalanceAccount returns the auto-balance account of commodity c,
// creating it under the root. New imbalance accounts are hidden when the
// book does not use double entry.
func (a *Accounts) OrCreateImbalanceAccount(ctx context.Context, c *model.Commodity) (*model.Account, error) {
	acc, err := a.ImbalanceAccount(ctx, c)
	if err != nil || acc != nil {
		return acc, err
	}
	root, err := a.RootAccountUID(ctx)
	if err != nil {
		return nil, err
	}
	acc = model.NewAccount(model.ImbalanceAccountName(c), model.AccountTypeBank, c)
	acc.ParentUID = root
	acc.Hidden = !a.opts.useDoubleEntry()
	if err := a.Add(ctx, acc, Insert); err != nil {
		return nil, fmt.Errorf("creating imbalance account: %w", err)
	}
	return acc, nil
}

// OrCreateImbalanceAccountUID is OrCreateImbalanceAccount returning the uid.
func (a *Accounts) OrCreateImbalanceAccountUID(ctx context.Context, c *model.Commodity) (string, error) {
	acc, err := a.OrCreateImbalanceAccount(ctx, c)
	if err != nil {
		return "", err
	}
	return acc.UID, nil
}

// CreateAccountHierarchy makes sure every account along fullName exists,
// creating the missing ones with type t in the default commodity, and
// returns the uid of the last one.
func (a *Accounts) CreateAccountHierarchy(ctx context.Context, fullName string, t model.AccountType) (string, error) {
	tokens := model.SplitFullName(fullName)
	if len(tokens) == 0 {
		return "", errors.New("creating account hierarchy: full name required")
	}
	uid, err := a.RootAccountUID(ctx)
	if err != nil {
		return "", err
	}
	c, err := a.commodities.DefaultCommodity(ctx)
	if err != nil {
		return "", err
	}

	var created []*model.Account
	var path string
	for _, token := range tokens {
		path = model.JoinFullName(path, token)
		existing, err := a.UIDByFullName(ctx, path)
		if err != nil {
			return "", err
		}
		if existing != "" {
			uid = existing
			continue
		}
		acc := model.NewAccount(token, t, c)
		acc.ParentUID = uid
		acc.FullName = path
		created = append(created, acc)
		uid = acc.UID
	}
	if len(created) > 0 {
		if _, err := a.BulkAdd(ctx, created, Insert); err != nil {
			return "", fmt.Errorf("creating account hierarchy %q: %w", fullName, err)
		}
	}
	return uid, nil
}

// OrCreateOpeningBalanceAccountUID returns the equity account receiving
// opening balances, creating it when needed.
func (a *Accounts) OrCreateOpeningBalanceAccountUID(ctx context.Context) (string, error) {
	uid, err := a.UIDByFullName(ctx, model.OpeningBalancesFullName)
	if err != nil || uid != "" {
		return uid, err
	}
	return a.CreateAccountHierarchy(ctx, model.OpeningBalancesFullName, model.AccountTypeEquity)
}

// ReassignDescendants moves the children of oldParentUID under
// newParentUID and rewrites the full names of the whole subtree.
func (a *Accounts) ReassignDescendants(ctx context.Context, oldParentUID, newParentUID string) error {
	defer a.cache.Clear()
	return a.inTx(ctx, func(ctx context.Context) error {
		uids, err := a.DescendantUIDs(ctx, oldParentUID, Query{})
		if err != nil || len(uids) == 0 {
			return err
		}
		for _, uid := range uids {
			if uid == newParentUID {
				return fmt.Errorf("reassigning children of %s to %s: %w", oldParentUID, uid, ErrAccountCycle)
			}
		}
		newParent, err := a.Get(ctx, newParentUID)
		if err != nil {
			return err
		}
		parentFull := ""
		if !newParent.IsRoot() {
			parentFull = newParent.FullName
		}

		// DescendantUIDs lists parents before their children.
		fullNames := make(map[string]string, len(uids))
		for _, uid := range uids {
			acc, err := a.Get(ctx, uid)
			if err != nil {
				return err
			}
			if acc.ParentUID == oldParentUID {
				acc.ParentUID = newParentUID
				acc.FullName = model.JoinFullName(parentFull, acc.Name)
				_, err = a.exec(ctx, "UPDATE accounts SET parent_account_uid = ?, full_name = ? WHERE uid = ?",
					newParentUID, acc.FullName, uid)
			} else {
				acc.FullName = fullNames[acc.ParentUID] + model.AccountNameSeparator + acc.Name
				_, err = a.exec(ctx, "UPDATE accounts SET full_name = ? WHERE uid = ?", acc.FullName, uid)
			}
			if err != nil {
				return fmt.Errorf("reassigning account %s: %w", uid, err)
			}
			fullNames[uid] = acc.FullName
			a.cache.Invalidate(uid)
		}
		return nil
	})
}

// RecursiveDelete removes an account, its descendants and every transaction
// touching any of them. It refuses to delete ROOT and reports false then.
func (a *Accounts) RecursiveDelete(ctx context.Context, uid string) (bool, error) {
	t, err := a.Type(ctx, uid)
	if err != nil {
		return false, err
	}
	if t == model.AccountTypeRoot {
		return false, nil
	}
	defer a.cache.Clear()
	err = a.inTx(ctx, func(ctx context.Context) error {
		uids, err := a.DescendantUIDs(ctx, uid, Query{})
		if err != nil {
			return err
		}
		uids = append(uids, uid)
		for _, u := range uids {
			if _, err := a.transactions.DeleteForAccount(ctx, u); err != nil {
				return err
			}
		}
		cond, args := in("uid", uids)
		n, err := a.DeleteWhere(ctx, Where(cond, args...))
		if err != nil {
			return err
		}
		a.log.Debug().Str("account", uid).Int64("deleted", n).Msg("recursive delete")
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting account %s: %w", uid, err)
	}
	return true, nil
}

// Delete removes one account. Its children move to the root. References to
// it as default transfer account are cleared by the schema.
func (a *Accounts) Delete(ctx context.Context, uid string) (bool, error) {
	var deleted bool
	defer a.cache.Clear()
	err := a.inTx(ctx, func(ctx context.Context) error {
		root, err := a.RootAccountUID(ctx)
		if err != nil {
			return err
		}
		if uid != root {
			if err := a.ReassignDescendants(ctx, uid, root); err != nil {
				return err
			}
			deleted, err = a.Adapter.Delete(ctx, uid)
			return err
		}

		// ROOT contributes nothing to full names, only the parent changes.
		if deleted, err = a.Adapter.Delete(ctx, uid); err != nil || !deleted {
			return err
		}
		a.setRoot("")
		if root, err = a.RootAccountUID(ctx); err != nil {
			return err
		}
		_, err = a.exec(ctx, "UPDATE accounts SET parent_account_uid = ? WHERE parent_account_uid = ?", root, uid)
		return err
	})
	return deleted, err
}

// DeleteAll empties the book: prices, splits, transactions, schedules,
// budgets, recurrences and accounts.
func (a *Accounts) DeleteAll(ctx context.Context) (int64, error) {
	var n int64
	err := a.inTx(ctx, func(ctx context.Context) error {
		for _, tbl := range []string{"prices", "splits", "transactions", "scheduled_actions",
			"budget_amounts", "budgets", "recurrences"} {
			if _, err := a.exec(ctx, "DELETE FROM "+tbl); err != nil {
				return fmt.Errorf("clearing %s: %w", tbl, err)
			}
		}
		var err error
		n, err = a.Adapter.DeleteAll(ctx)
		return err
	})
	a.setRoot("")
	a.prices.ClearCache()
	a.splits.ClearCache()
	return n, err
}

// List returns every account except ROOT and templates.
func (a *Accounts) List(ctx context.Context) ([]*model.Account, error) {
	return a.All(ctx, Where("type != ? AND is_template = 0", string(model.AccountTypeRoot)).OrderBy("full_name"))
}

// DescendantUIDs returns the uids below an account, level by level, each
// level ordered by full name. An account excluded by filter hides its
// descendants too.
func (a *Accounts) DescendantUIDs(ctx context.Context, uid string, filter Query) ([]string, error) {
	var out []string
	level := []string{uid}
	seen := map[string]bool{uid: true}
	for len(level) > 0 {
		cond, args := in("parent_account_uid", level)
		q := Where(cond, args...)
		if len(filter.where) > 0 {
			q = q.And(strings.Join(filter.where, " AND "), filter.args...)
		}
		next, err := a.texts(ctx, "SELECT uid FROM accounts"+q.whereClause()+" ORDER BY full_name", q.args...)
		if err != nil {
			return nil, err
		}
		level = level[:0]
		for _, u := range next {
			if !seen[u] {
				seen[u] = true
				level = append(level, u)
			}
		}
		out = append(out, level...)
	}
	return out, nil
}

// Descendants returns the accounts below uid in DescendantUIDs order.
func (a *Accounts) Descendants(ctx context.Context, uid string) ([]*model.Account, error) {
	uids, err := a.DescendantUIDs(ctx, uid, Query{})
	if err != nil {
		return nil, err
	}
	out := make([]*model.Account, 0, len(uids))
	for _, u := range uids {
		acc, err := a.Get(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// Children returns the uids of the direct children, in creation order.
func (a *Accounts) Children(ctx context.Context, uid string) ([]string, error) {
	return a.texts(ctx, "SELECT uid FROM accounts WHERE parent_account_uid = ? ORDER BY id", uid)
}

func hiddenFilter(q Query, showHidden bool) Query {
	if showHidden {
		return q
	}
	return q.And("accounts.is_hidden = 0")
}

// SubAccounts returns the direct children of uid.
func (a *Accounts) SubAccounts(ctx context.Context, uid string, showHidden bool) ([]*model.Account, error) {
	return a.All(ctx, hiddenFilter(Where("parent_account_uid = ?", uid), showHidden).OrderBy("name"))
}

// SubAccountCount counts the direct children of uid.
func (a *Accounts) SubAccountCount(ctx context.Context, uid string) (int64, error) {
	return a.Count(ctx, Where("parent_account_uid = ?", uid))
}

// TopLevel returns the accounts directly below the root.
func (a *Accounts) TopLevel(ctx context.Context, showHidden bool) ([]*model.Account, error) {
	root, err := a.RootAccountUID(ctx)
	if err != nil {
		return nil, err
	}
	q := Where("type != ? AND (parent_account_uid IS NULL OR parent_account_uid = ?)",
		string(model.AccountTypeRoot), root)
	return a.All(ctx, hiddenFilter(q, showHidden).OrderBy("name"))
}

// Favorites returns the accounts marked favorite.
func (a *Accounts) Favorites(ctx context.Context, showHidden bool) ([]*model.Account, error) {
	return a.All(ctx, hiddenFilter(Where("favorite = 1"), showHidden).OrderBy("full_name"))
}

// Recent returns up to n accounts with the most recent transactions.
func (a *Accounts) Recent(ctx context.Context, n int, showHidden bool) ([]*model.Account, error) {
	q := "SELECT splits.account_uid FROM splits" +
		" JOIN transactions ON transactions.uid = splits.transaction_uid" +
		" JOIN accounts ON accounts.uid = splits.account_uid"
	if !showHidden {
		q += " WHERE accounts.is_hidden = 0"
	}
	q += fmt.Sprintf(" GROUP BY splits.account_uid ORDER BY MAX(transactions.timestamp) DESC LIMIT %d", n)
	uids, err := a.texts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Account, 0, len(uids))
	for _, u := range uids {
		acc, err := a.Get(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// ExportableAccounts returns the accounts touched by transactions modified
// at or after since, by full name.
func (a *Accounts) ExportableAccounts(ctx context.Context, since time.Time) ([]*model.Account, error) {
	return a.All(ctx, Where("accounts.uid IN (SELECT splits.account_uid FROM splits"+
		" JOIN transactions ON transactions.uid = splits.transaction_uid"+
		" WHERE transactions.modified_at >= ?)", database.FormatTime(since)).OrderBy("full_name"))
}

// FullName returns the stored full name of an account.
func (a *Accounts) FullName(ctx context.Context, uid string) (string, error) {
	return a.Attribute(ctx, uid, "full_name")
}

// Name returns the name of an account.
func (a *Accounts) Name(ctx context.Context, uid string) (string, error) {
	return a.Attribute(ctx, uid, "name")
}

// ParentUID returns the parent uid of an account, "" for roots.
func (a *Accounts) ParentUID(ctx context.Context, uid string) (string, error) {
	return a.Attribute(ctx, uid, "parent_account_uid")
}

// Type returns the type of an account.
func (a *Accounts) Type(ctx context.Context, uid string) (model.AccountType, error) {
	t, err := a.Attribute(ctx, uid, "type")
	return model.AccountType(t), err
}

func (a *Accounts) flag(ctx context.Context, uid, column string) (bool, error) {
	v, err := a.Attribute(ctx, uid, column)
	return v == "1", err
}

// IsPlaceholder reports whether an account only groups other accounts.
func (a *Accounts) IsPlaceholder(ctx context.Context, uid string) (bool, error) {
	return a.flag(ctx, uid, "is_placeholder")
}

// IsHidden reports whether an account is hidden.
func (a *Accounts) IsHidden(ctx context.Context, uid string) (bool, error) {
	return a.flag(ctx, uid, "is_hidden")
}

// IsFavorite reports whether an account is a favorite.
func (a *Accounts) IsFavorite(ctx context.Context, uid string) (bool, error) {
	return a.flag(ctx, uid, "favorite")
}

// Commodity returns the commodity of an account.
func (a *Accounts) Commodity(ctx context.Context, uid string) (*model.Commodity, error) {
	return a.splits.AccountCommodity(ctx, uid)
}

// TransactionCount counts the regular transactions touching an account.
func (a *Accounts) TransactionCount(ctx context.Context, uid string) (int64, error) {
	return a.transactions.CountForAccount(ctx, uid)
}

// TransactionMaxSplitNum returns the largest split count among the
// transactions touching an account.
func (a *Accounts) TransactionMaxSplitNum(ctx context.Context, uid string) (int64, error) {
	return a.scalar(ctx, "SELECT MAX(trans_split_count) FROM trans_extra_info"+
		" WHERE trans_acct_t_uid IN (SELECT DISTINCT transactions_uid FROM trans_split_acct WHERE accounts_uid = ?)", uid)
}

// CommoditiesInUse returns the commodities of the regular accounts.
func (a *Accounts) CommoditiesInUse(ctx context.Context) ([]*model.Commodity, error) {
	uids, err := a.texts(ctx, "SELECT DISTINCT commodity_uid FROM accounts WHERE is_template = 0 ORDER BY currency_code")
	if err != nil {
		return nil, err
	}
	out := make([]*model.Commodity, 0, len(uids))
	for _, u := range uids {
		c, err := a.commodities.ByUID(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CommoditiesInUseCount counts the distinct commodities used by accounts,
// ignoring the template namespace.
func (a *Accounts) CommoditiesInUseCount(ctx context.Context) (int64, error) {
	return a.scalar(ctx, "SELECT COUNT(DISTINCT accounts.commodity_uid) FROM accounts"+
		" JOIN commodities ON commodities.uid = accounts.commodity_uid"+
		" WHERE commodities.namespace != ?", model.NamespaceTemplate)
}

// Balance returns the balance of an account between start and end (Unix
// millis or model.Always), optionally including its descendants converted
// into its commodity.
func (a *Accounts) Balance(ctx context.Context, uid string, start, end int64, includeSub bool) (model.Money, error) {
	acc, err := a.Get(ctx, uid)
	if err != nil {
		return model.Money{}, err
	}
	return a.computeBalance(ctx, acc, start, end, includeSub, nil)
}

// CurrentBalance is the all-time balance including descendants.
func (a *Accounts) CurrentBalance(ctx context.Context, uid string) (model.Money, error) {
	return a.Balance(ctx, uid, model.Always, model.Always, true)
}

// computeBalance keeps the all-time balance with descendants in the balance
// column; the schema clears it whenever splits, prices or the tree change.
// seen holds the accounts already summed on the way down.
func (a *Accounts) computeBalance(ctx context.Context, acc *model.Account, start, end int64, includeSub bool, seen map[string]bool) (model.Money, error) {
	if seen == nil {
		seen = make(map[string]bool)
	}
	seen[acc.UID] = true
	cacheable := start == model.Always && end == model.Always && includeSub
	if cacheable {
		cached, err := a.Attribute(ctx, acc.UID, "balance")
		if err != nil {
			return model.Money{}, err
		}
		if cached != "" {
			if d, err := decimal.NewFromString(cached); err == nil {
				return model.NewMoney(d, acc.Commodity), nil
			}
		}
	}
	a.log.Debug().Str("account", acc.String()).Int64("start", start).Int64("end", end).
		Bool("sub", includeSub).Msg("computing balance")

	splits, err := a.splits.ComputeSplitBalances(ctx, []string{acc.UID}, start, end)
	if err != nil {
		return model.Money{}, err
	}
	balance, ok := splits[acc.UID]
	if !ok {
		balance = model.Zero(acc.Commodity)
	}
	balance.Commodity = acc.Commodity
	if !acc.Type.HasDebitNormalBalance() {
		balance = balance.Neg()
	}

	if includeSub {
		children, err := a.Children(ctx, acc.UID)
		if err != nil {
			return model.Money{}, err
		}
		for _, uid := range children {
			if seen[uid] {
				a.log.Warn().Str("account", acc.String()).Str("child", uid).Msg("account cycle, child skipped")
				continue
			}
			child, err := a.Get(ctx, uid)
			if err != nil {
				return model.Money{}, err
			}
			sub, err := a.computeBalance(ctx, child, start, end, true, seen)
			if err != nil {
				return model.Money{}, err
			}
			if sub.IsZero() {
				continue
			}
			converted, ok, err := a.prices.Convert(ctx, sub, acc.Commodity)
			if err != nil {
				return model.Money{}, err
			}
			if !ok {
				a.log.Warn().Str("account", child.String()).Str("from", sub.Commodity.Mnemonic).
					Str("to", acc.Commodity.Mnemonic).Msg("no price, child balance excluded")
				continue
			}
			if balance, err = balance.Add(converted); err != nil {
				return model.Money{}, err
			}
		}
	}

	if cacheable {
		if err := a.UpdateColumn(ctx, acc.UID, "balance", balance.Amount.String()); err != nil {
			return model.Money{}, err
		}
	}
	return balance, nil
}

// Balances returns the own balance of each account between start and end,
// signed by the account type. Accounts without splits are absent.
func (a *Accounts) Balances(ctx context.Context, accounts []*model.Account, start, end int64) (map[string]model.Money, error) {
	uids := make([]string, len(accounts))
	for i, acc := range accounts {
		uids[i] = acc.UID
	}
	balances, err := a.splits.ComputeSplitBalances(ctx, uids, start, end)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if b, ok := balances[acc.UID]; ok && !acc.Type.HasDebitNormalBalance() {
			balances[acc.UID] = b.Neg()
		}
	}
	return balances, nil
}

// AccountsBalance sums the own balances of accounts converted into
// currency. Balances without a price to currency are left out.
func (a *Accounts) AccountsBalance(ctx context.Context, accounts []*model.Account, currency *model.Commodity, start, end int64) (model.Money, error) {
	total := model.Zero(currency)
	var balances map[string]model.Money
	if start != model.Always || end != model.Always {
		var err error
		if balances, err = a.Balances(ctx, accounts, start, end); err != nil {
			return model.Money{}, err
		}
	}
	for _, acc := range accounts {
		var b model.Money
		if balances == nil {
			var err error
			if b, err = a.computeBalance(ctx, acc, start, end, false, nil); err != nil {
				return model.Money{}, err
			}
		} else {
			var ok bool
			if b, ok = balances[acc.UID]; !ok {
				continue
			}
		}
		if b.IsZero() {
			continue
		}
		converted, ok, err := a.prices.Convert(ctx, b, currency)
		if err != nil {
			return model.Money{}, err
		}
		if !ok {
			a.log.Warn().Str("account", acc.String()).Str("to", currency.Mnemonic).
				Msg("no price, balance excluded")
			continue
		}
		if total, err = total.Add(converted); err != nil {
			return model.Money{}, err
		}
	}
	return total, nil
}

// AccountsBalanceByUID is AccountsBalance in the default currency.
func (a *Accounts) AccountsBalanceByUID(ctx context.Context, uids []string, start, end int64) (model.Money, error) {
	currency, err := a.commodities.DefaultCommodity(ctx)
	if err != nil {
		return model.Money{}, err
	}
	accounts := make([]*model.Account, 0, len(uids))
	for _, uid := range uids {
		acc, err := a.Find(ctx, uid)
		if err != nil {
			return model.Money{}, err
		}
		if acc != nil {
			accounts = append(accounts, acc)
		}
	}
	return a.AccountsBalance(ctx, accounts, currency, start, end)
}

// BalancesByType sums the balances of all regular accounts of type t.
func (a *Accounts) BalancesByType(ctx context.Context, t model.AccountType, currency *model.Commodity, start, end int64) (model.Money, error) {
	accounts, err := a.All(ctx, Where("type = ? AND is_template = 0", string(t)))
	if err != nil {
		return model.Money{}, err
	}
	return a.AccountsBalance(ctx, accounts, currency, start, end)
}

// OpeningBalanceTransactions builds, for every account with a non-zero own
// balance, a transaction moving that balance against the opening balances
// equity account. The transactions are marked exported and not saved.
func (a *Accounts) OpeningBalanceTransactions(ctx context.Context) ([]*model.Transaction, error) {
	accounts, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Transaction
	var equityUID string
	for _, acc := range accounts {
		balance, err := a.computeBalance(ctx, acc, model.Always, model.Always, false, nil)
		if err != nil {
			return nil, err
		}
		if balance.IsZero() {
			continue
		}
		if equityUID == "" {
			if equityUID, err = a.OrCreateOpeningBalanceAccountUID(ctx); err != nil {
				return nil, err
			}
		}
		tx := model.NewTransaction("Opening Balances", acc.Commodity)
		tx.Notes = acc.Name
		tx.Exported = true

		side := model.Debit
		if balance.IsNegative() == acc.Type.HasDebitNormalBalance() {
			side = model.Credit
		}
		split := model.NewSplit(balance.Abs(), acc.UID)
		split.Type = side
		pair := model.NewSplit(balance.Abs(), equityUID)
		pair.Type = side.Invert()
		tx.AddSplit(split)
		tx.AddSplit(pair)
		out = append(out, tx)
	}
	return out, nil
}
