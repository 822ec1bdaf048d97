package model

import (
	"fmt"
	"strings"
)

// AccountType classifies accounts and fixes their normal balance side.
type AccountType string

const (
	AccountTypeCash       AccountType = "CASH"
	AccountTypeBank       AccountType = "BANK"
	AccountTypeCredit     AccountType = "CREDIT"
	AccountTypeAsset      AccountType = "ASSET"
	AccountTypeLiability  AccountType = "LIABILITY"
	AccountTypeIncome     AccountType = "INCOME"
	AccountTypeExpense    AccountType = "EXPENSE"
	AccountTypePayable    AccountType = "PAYABLE"
	AccountTypeReceivable AccountType = "RECEIVABLE"
	AccountTypeEquity     AccountType = "EQUITY"
	AccountTypeCurrency   AccountType = "CURRENCY"
	AccountTypeStock      AccountType = "STOCK"
	AccountTypeMutual     AccountType = "MUTUAL"
	AccountTypeTrading    AccountType = "TRADING"
	AccountTypeRoot       AccountType = "ROOT"
)

// AccountTypes lists every type in display order.
var AccountTypes = []AccountType{
	AccountTypeCash, AccountTypeBank, AccountTypeCredit, AccountTypeAsset,
	AccountTypeLiability, AccountTypeIncome, AccountTypeExpense, AccountTypePayable,
	AccountTypeReceivable, AccountTypeEquity, AccountTypeCurrency, AccountTypeStock,
	AccountTypeMutual, AccountTypeTrading, AccountTypeRoot,
}

// HasDebitNormalBalance reports whether debits increase the account's balance.
func (t AccountType) HasDebitNormalBalance() bool {
	switch t {
	case AccountTypeCredit, AccountTypeLiability, AccountTypeIncome,
		AccountTypePayable, AccountTypeEquity, AccountTypeTrading:
		return false
	default:
		return true
	}
}

// ParseAccountType accepts any casing of a known type.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AccountTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown account type %q", s)
}

const (
	// RootAccountName is the name of every book's root account.
	RootAccountName = "Root Account"
	// RootAccountFullName is stored as the root's full name; it never appears
	// in descendants' full names.
	RootAccountFullName = " "
	// TemplateAccountName names the root of scheduled-transaction templates.
	TemplateAccountName = "Template Root"
	// AccountNameSeparator joins the segments of a full name.
	AccountNameSeparator = ":"
	// ImbalanceAccountPrefix prefixes the per-commodity auto-balance accounts.
	ImbalanceAccountPrefix = "Imbalance-"
	// OpeningBalancesFullName is the equity account receiving opening balances.
	OpeningBalancesFullName = "Equity:Opening Balances"
)

// Account is a node in the account tree.
type Account struct {
	Base
	Name               string
	FullName           string
	Description        string
	Type               AccountType
	Commodity          *Commodity
	ParentUID          string // empty only for root accounts
	DefaultTransferUID string
	Color              string
	Notes              string
	Placeholder        bool
	Hidden             bool
	Favorite           bool
	Template           bool
}

// NewAccount creates an unsaved account.
func NewAccount(name string, t AccountType, c *Commodity) *Account {
	return &Account{Base: NewBase(), Name: name, FullName: name, Type: t, Commodity: c}
}

// IsRoot reports whether this is a ROOT account.
func (a *Account) IsRoot() bool { return a.Type == AccountTypeRoot }

func (a *Account) String() string {
	if a.FullName != "" && a.FullName != RootAccountFullName {
		return a.FullName
	}
	return a.Name
}

// JoinFullName appends name to a parent's full name. Children of the root
// have their own name as full name.
func JoinFullName(parentFullName, name string) string {
	if parentFullName == "" || parentFullName == RootAccountFullName {
		return name
	}
	return parentFullName + AccountNameSeparator + name
}

// SplitFullName splits a full name into its segments.
func SplitFullName(fullName string) []string {
	var out []string
	for _, s := range strings.Split(fullName, AccountNameSeparator) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ImbalanceAccountName returns the name of the auto-balance account for c.
func ImbalanceAccountName(c *Commodity) string {
	return ImbalanceAccountPrefix + c.CurrencyCode()
}

// BalanceOf sums the splits posted to this account. Debits increase the
// balance of debit-normal accounts and decrease the others.
func (a *Account) BalanceOf(splits []*Split) (Money, error) {
	balance := Zero(a.Commodity)
	debitNormal := a.Type.HasDebitNormalBalance()
	for _, s := range splits {
		if s.AccountUID != a.UID {
			continue
		}
		amount := s.Quantity
		if s.Value.Commodity.Same(a.Commodity) {
			amount = s.Value
		}
		var err error
		if (s.Type == Debit) == debitNormal {
			balance, err = balance.Add(amount)
		} else {
			balance, err = balance.Sub(amount)
		}
		if err != nil {
			return Money{}, fmt.Errorf("balance of %s: %w", a, err)
		}
	}
	return balance, nil
}
