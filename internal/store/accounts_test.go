package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/model"
)

func TestAccounts_RootAccountUID(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})

	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	again, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, again)

	parent, err := b.accounts.ParentUID(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, parent)
	typ, err := b.accounts.Type(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeRoot, typ)

	n, err := b.accounts.Count(ctx, Where("type = ?", string(model.AccountTypeRoot)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestAccounts_FullyQualifiedName(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})

	uid, err := b.accounts.CreateAccountHierarchy(ctx, "Assets:Bank:Checking", model.AccountTypeBank)
	require.NoError(t, err)

	name, err := b.accounts.FullyQualifiedName(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Assets:Bank:Checking", name)
	stored, err := b.accounts.FullName(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, name, stored)

	// Reusing the path creates nothing new.
	again, err := b.accounts.CreateAccountHierarchy(ctx, "Assets:Bank:Checking", model.AccountTypeBank)
	require.NoError(t, err)
	assert.Equal(t, uid, again)

	all, err := b.accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, acc := range all {
		assert.NotEqual(t, acc.UID, acc.ParentUID)
		fq, err := b.accounts.FullyQualifiedName(ctx, acc.UID)
		require.NoError(t, err)
		assert.Equal(t, acc.FullName, fq)
	}
}

func TestAccounts_FullNameFollowsParent(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	expenses := b.account(t, "Expenses", model.AccountTypeExpense, usd, "")
	food := b.account(t, "Food", model.AccountTypeExpense, usd, expenses.UID)
	assert.Equal(t, "Expenses:Food", food.FullName)

	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, expenses.ParentUID)
	assert.Equal(t, "Expenses", expenses.FullName)
}

func TestAccounts_RejectsCycles(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	loop := model.NewAccount("Loop", model.AccountTypeAsset, usd)
	loop.ParentUID = loop.UID
	require.ErrorIs(t, b.accounts.Add(ctx, loop, Insert), ErrAccountCycle)
	n, err := b.accounts.Count(ctx, Where("uid = ?", loop.UID))
	require.NoError(t, err)
	assert.Zero(t, n)

	top := b.account(t, "Top", model.AccountTypeAsset, usd, "")
	mid := b.account(t, "Mid", model.AccountTypeAsset, usd, top.UID)
	leaf := b.account(t, "Leaf", model.AccountTypeAsset, usd, mid.UID)

	for _, parent := range []*model.Account{top, mid, leaf} {
		t.Run(parent.Name, func(t *testing.T) {
			moved := *top
			moved.ParentUID = parent.UID
			assert.ErrorIs(t, b.accounts.Add(ctx, &moved, Update), ErrAccountCycle)
		})
	}

	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	stored, err := b.accounts.ParentUID(ctx, top.UID)
	require.NoError(t, err)
	assert.Equal(t, root, stored)
	assert.ErrorIs(t, b.accounts.ReassignDescendants(ctx, top.UID, leaf.UID), ErrAccountCycle)
}

func TestAccounts_BalanceSurvivesStoredCycle(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	top := b.account(t, "Top", model.AccountTypeAsset, usd, "")
	mid := b.account(t, "Mid", model.AccountTypeAsset, usd, top.UID)
	cash := b.account(t, "Cash", model.AccountTypeCash, usd, "")
	b.transfer(t, "fund", "40", usd, cash.UID, mid.UID)

	// Written behind the store's back, as an older or foreign database might.
	_, err := b.db.ExecContext(ctx, "UPDATE accounts SET parent_account_uid = ? WHERE uid = ?", mid.UID, top.UID)
	require.NoError(t, err)

	balance, err := b.accounts.CurrentBalance(ctx, top.UID)
	require.NoError(t, err)
	assert.Equal(t, "40.00 USD", balance.String())
}

func TestAccounts_RecursiveDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	assets := b.account(t, "Assets", model.AccountTypeAsset, usd, "")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, assets.UID)
	savings := b.account(t, "Savings", model.AccountTypeBank, usd, bank.UID)
	expenses := b.account(t, "Expenses", model.AccountTypeExpense, usd, "")

	crossing := b.transfer(t, "groceries", "20", usd, bank.UID, expenses.UID)
	inside := b.transfer(t, "move", "5", usd, bank.UID, savings.UID)

	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	ok, err := b.accounts.RecursiveDelete(ctx, root)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.accounts.RecursiveDelete(ctx, assets.UID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, uid := range []string{assets.UID, bank.UID, savings.UID} {
		acc, err := b.accounts.Find(ctx, uid)
		require.NoError(t, err)
		assert.Nil(t, acc, uid)
	}
	for _, uid := range []string{crossing.UID, inside.UID} {
		tx, err := b.transactions.Find(ctx, uid)
		require.NoError(t, err)
		assert.Nil(t, tx, uid)
	}

	// The transaction leaving the subtree is gone entirely, not just its
	// split inside the subtree.
	left, err := b.splits.SplitsForAccount(ctx, expenses.UID)
	require.NoError(t, err)
	assert.Empty(t, left)
	kept, err := b.accounts.Find(ctx, expenses.UID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestAccounts_ReassignDescendants(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	assets := b.account(t, "Assets", model.AccountTypeAsset, usd, "")
	old := b.account(t, "Old", model.AccountTypeAsset, usd, assets.UID)
	a := b.account(t, "A", model.AccountTypeBank, usd, old.UID)
	a1 := b.account(t, "A1", model.AccountTypeBank, usd, a.UID)
	bb := b.account(t, "B", model.AccountTypeBank, usd, old.UID)
	dst := b.account(t, "New", model.AccountTypeAsset, usd, assets.UID)

	require.NoError(t, b.accounts.ReassignDescendants(ctx, old.UID, dst.UID))

	want := map[string]string{
		a.UID:  "Assets:New:A",
		a1.UID: "Assets:New:A:A1",
		bb.UID: "Assets:New:B",
	}
	for uid, full := range want {
		got, err := b.accounts.FullName(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, full, got)
	}

	children, err := b.accounts.Children(ctx, dst.UID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.UID, bb.UID}, children)
	parent, err := b.accounts.ParentUID(ctx, a1.UID)
	require.NoError(t, err)
	assert.Equal(t, a.UID, parent)

	n, err := b.accounts.SubAccountCount(ctx, old.UID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAccounts_ReassignToRoot(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	assets := b.account(t, "Assets", model.AccountTypeAsset, usd, "")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, assets.UID)
	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)

	require.NoError(t, b.accounts.ReassignDescendants(ctx, assets.UID, root))
	full, err := b.accounts.FullName(ctx, bank.UID)
	require.NoError(t, err)
	assert.Equal(t, "Bank", full)
}

func TestAccounts_DescendantUIDs(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	top := b.account(t, "Top", model.AccountTypeAsset, usd, "")
	zed := b.account(t, "Zed", model.AccountTypeAsset, usd, top.UID)
	alpha := b.account(t, "Alpha", model.AccountTypeAsset, usd, top.UID)
	deep := b.account(t, "Deep", model.AccountTypeAsset, usd, zed.UID)
	hidden := model.NewAccount("Hidden", model.AccountTypeAsset, usd)
	hidden.ParentUID = top.UID
	hidden.Hidden = true
	require.NoError(t, b.accounts.Add(ctx, hidden, Insert))

	uids, err := b.accounts.DescendantUIDs(ctx, top.UID, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{alpha.UID, hidden.UID, zed.UID, deep.UID}, uids)

	visible, err := b.accounts.DescendantUIDs(ctx, top.UID, Where("is_hidden = 0"))
	require.NoError(t, err)
	assert.Equal(t, []string{alpha.UID, zed.UID, deep.UID}, visible)
}

func TestAccounts_CoffeeScenario(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	bankUID, err := b.accounts.CreateAccountHierarchy(ctx, "Assets:Bank", model.AccountTypeBank)
	require.NoError(t, err)

	tx := model.NewTransaction("Coffee", usd)
	tx.AddSplit(model.NewSplit(money(t, "-3.50", usd), bankUID))
	require.NoError(t, b.transactions.Add(ctx, tx, Insert))

	balance, err := b.accounts.Balance(ctx, bankUID, model.Always, model.Always, true)
	require.NoError(t, err)
	assert.Equal(t, "-3.50 USD", balance.String())

	imbalance, err := b.accounts.ImbalanceAccount(ctx, usd)
	require.NoError(t, err)
	require.NotNil(t, imbalance)
	balance, err = b.accounts.Balance(ctx, imbalance.UID, model.Always, model.Always, true)
	require.NoError(t, err)
	assert.Equal(t, "3.50 USD", balance.String())

	// Assets rolls up its child.
	assetsUID, err := b.accounts.UIDByFullName(ctx, "Assets")
	require.NoError(t, err)
	balance, err = b.accounts.CurrentBalance(ctx, assetsUID)
	require.NoError(t, err)
	assert.Equal(t, "-3.50 USD", balance.String())
}

func TestAccounts_BalanceRollupConvertsWithPrice(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd, eur := b.currency(t, "USD"), b.currency(t, "EUR")

	parent := b.account(t, "Assets", model.AccountTypeAsset, usd, "")
	euro := b.account(t, "Euro", model.AccountTypeBank, eur, parent.UID)

	tx := model.NewTransaction("deposit", eur)
	tx.AddSplit(model.NewSplit(money(t, "100", eur), euro.UID))
	require.NoError(t, b.transactions.Add(ctx, tx, Insert))

	// Without a price the child is left out of the rollup.
	balance, err := b.accounts.Balance(ctx, parent.UID, model.Always, model.Always, true)
	require.NoError(t, err)
	assert.Equal(t, "0.00 USD", balance.String())

	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 11, 10), Insert))

	balance, err = b.accounts.Balance(ctx, parent.UID, model.Always, model.Always, true)
	require.NoError(t, err)
	assert.Equal(t, "110.00 USD", balance.String())

	own, err := b.accounts.Balance(ctx, parent.UID, model.Always, model.Always, false)
	require.NoError(t, err)
	assert.True(t, own.IsZero())

	total, err := b.accounts.AccountsBalance(ctx, []*model.Account{parent, euro}, usd, model.Always, model.Always)
	require.NoError(t, err)
	assert.Equal(t, "110.00 USD", total.String())
}

func TestAccounts_BalanceCacheClearedBySplits(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, "")
	income := b.account(t, "Salary", model.AccountTypeIncome, usd, "")

	b.transfer(t, "pay", "100", usd, income.UID, bank.UID)
	balance, err := b.accounts.CurrentBalance(ctx, bank.UID)
	require.NoError(t, err)
	assert.Equal(t, "100.00 USD", balance.String())
	cached, err := b.accounts.Attribute(ctx, bank.UID, "balance")
	require.NoError(t, err)
	assert.NotEmpty(t, cached)

	b.transfer(t, "pay", "50", usd, income.UID, bank.UID)
	cached, err = b.accounts.Attribute(ctx, bank.UID, "balance")
	require.NoError(t, err)
	assert.Empty(t, cached)

	balance, err = b.accounts.CurrentBalance(ctx, bank.UID)
	require.NoError(t, err)
	assert.Equal(t, "150.00 USD", balance.String())
	balance, err = b.accounts.CurrentBalance(ctx, income.UID)
	require.NoError(t, err)
	assert.Equal(t, "150.00 USD", balance.String())
}

func TestAccounts_BalanceTimeRange(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, "")
	income := b.account(t, "Salary", model.AccountTypeIncome, usd, "")

	first := b.transfer(t, "jan", "10", usd, income.UID, bank.UID)
	second := b.transfer(t, "feb", "20", usd, income.UID, bank.UID)
	_, err := b.transactions.UpdateAll(ctx, "timestamp", int64(1000), Where("uid = ?", first.UID))
	require.NoError(t, err)
	_, err = b.transactions.UpdateAll(ctx, "timestamp", int64(5000), Where("uid = ?", second.UID))
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end int64
		want       string
	}{
		{"all", model.Always, model.Always, "30.00 USD"},
		{"until", model.Always, 2000, "10.00 USD"},
		{"from", 2000, model.Always, "20.00 USD"},
		{"between", 500, 1500, "10.00 USD"},
		{"empty", 6000, 7000, "0.00 USD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.accounts.Balance(ctx, bank.UID, tt.start, tt.end, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	byType, err := b.accounts.BalancesByType(ctx, model.AccountTypeIncome, usd, model.Always, 2000)
	require.NoError(t, err)
	assert.Equal(t, "10.00 USD", byType.String())
}

func TestAccounts_ImbalanceAccountHiddenWithoutDoubleEntry(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{Prefs: mapPrefs{PrefUseDoubleEntry: false}})
	usd := b.currency(t, "USD")

	acc, err := b.accounts.OrCreateImbalanceAccount(ctx, usd)
	require.NoError(t, err)
	assert.True(t, acc.Hidden)
	assert.Equal(t, "Imbalance-USD", acc.FullName)

	again, err := b.accounts.OrCreateImbalanceAccount(ctx, usd)
	require.NoError(t, err)
	assert.Equal(t, acc.UID, again.UID)
}

func TestAccounts_Delete(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	assets := b.account(t, "Assets", model.AccountTypeAsset, usd, "")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, assets.UID)
	savings := b.account(t, "Savings", model.AccountTypeBank, usd, bank.UID)
	card := model.NewAccount("Card", model.AccountTypeCredit, usd)
	card.DefaultTransferUID = assets.UID
	require.NoError(t, b.accounts.Add(ctx, card, Insert))

	ok, err := b.accounts.Delete(ctx, assets.UID)
	require.NoError(t, err)
	assert.True(t, ok)

	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	parent, err := b.accounts.ParentUID(ctx, bank.UID)
	require.NoError(t, err)
	assert.Equal(t, root, parent)

	for uid, want := range map[string]string{bank.UID: "Bank", savings.UID: "Bank:Savings"} {
		stored, err := b.accounts.FullName(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, want, stored)
		found, err := b.accounts.UIDByFullName(ctx, want)
		require.NoError(t, err)
		assert.Equal(t, uid, found)
	}

	transfer, err := b.accounts.Attribute(ctx, card.UID, "default_transfer_account_uid")
	require.NoError(t, err)
	assert.Empty(t, transfer)
}

func TestAccounts_ListingsAndFlags(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")

	bank := b.account(t, "Bank", model.AccountTypeBank, usd, "")
	fav := model.NewAccount("Cash", model.AccountTypeCash, usd)
	fav.Favorite = true
	require.NoError(t, b.accounts.Add(ctx, fav, Insert))
	hidden := model.NewAccount("Old", model.AccountTypeBank, usd)
	hidden.Hidden = true
	hidden.Placeholder = true
	require.NoError(t, b.accounts.Add(ctx, hidden, Insert))
	b.account(t, "Sub", model.AccountTypeBank, usd, bank.UID)

	top, err := b.accounts.TopLevel(ctx, false)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	top, err = b.accounts.TopLevel(ctx, true)
	require.NoError(t, err)
	assert.Len(t, top, 3)

	favs, err := b.accounts.Favorites(ctx, false)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, fav.UID, favs[0].UID)

	isFav, err := b.accounts.IsFavorite(ctx, fav.UID)
	require.NoError(t, err)
	assert.True(t, isFav)
	isHidden, err := b.accounts.IsHidden(ctx, hidden.UID)
	require.NoError(t, err)
	assert.True(t, isHidden)
	isPlaceholder, err := b.accounts.IsPlaceholder(ctx, bank.UID)
	require.NoError(t, err)
	assert.False(t, isPlaceholder)

	subs, err := b.accounts.SubAccounts(ctx, bank.UID, false)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	b.transfer(t, "withdraw", "10", usd, bank.UID, fav.UID)
	recent, err := b.accounts.Recent(ctx, 5, false)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	count, err := b.accounts.TransactionCount(ctx, bank.UID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	maxSplits, err := b.accounts.TransactionMaxSplitNum(ctx, bank.UID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, maxSplits)

	inUse, err := b.accounts.CommoditiesInUseCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inUse)
}

func TestAccounts_OpeningBalanceTransactions(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, "")
	card := b.account(t, "Card", model.AccountTypeCredit, usd, "")
	b.account(t, "Unused", model.AccountTypeBank, usd, "")

	b.transfer(t, "spend", "40", usd, card.UID, bank.UID)

	txs, err := b.accounts.OpeningBalanceTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	equity, err := b.accounts.UIDByFullName(ctx, model.OpeningBalancesFullName)
	require.NoError(t, err)
	require.NotEmpty(t, equity)

	for _, tx := range txs {
		assert.True(t, tx.Exported)
		assert.True(t, tx.IsBalanced())
		require.Len(t, tx.Splits, 2)
		assert.Equal(t, equity, tx.Splits[1].AccountUID)
		switch tx.Splits[0].AccountUID {
		case bank.UID:
			assert.Equal(t, model.Debit, tx.Splits[0].Type)
		case card.UID:
			assert.Equal(t, model.Credit, tx.Splits[0].Type)
		default:
			t.Fatalf("unexpected account %s", tx.Splits[0].AccountUID)
		}
		assert.Equal(t, "40.00 USD", tx.Splits[0].Value.String())
	}
}

func TestAccounts_DeleteAll(t *testing.T) {
	ctx := context.Background()
	b := newTestBook(t, Options{})
	usd := b.currency(t, "USD")
	bank := b.account(t, "Bank", model.AccountTypeBank, usd, "")
	cash := b.account(t, "Cash", model.AccountTypeCash, usd, "")
	b.transfer(t, "withdraw", "10", usd, bank.UID, cash.UID)
	eur := b.currency(t, "EUR")
	require.NoError(t, b.prices.Add(ctx, model.NewPrice(eur.UID, usd.UID, 11, 10), Insert))

	_, err := b.accounts.DeleteAll(ctx)
	require.NoError(t, err)

	for _, count := range []func(context.Context, Query) (int64, error){
		b.accounts.Count, b.transactions.Count, b.splits.Count, b.prices.Count,
	} {
		n, err := count(ctx, Query{})
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	p, err := b.prices.Price(ctx, eur, usd)
	require.NoError(t, err)
	assert.Nil(t, p)

	// A fresh root is created on demand.
	root, err := b.accounts.RootAccountUID(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}
