package accounts

import "github.com/cleared-dev/gnuledger/internal/model"

// DefaultChart returns the common household account tree offered to new
// books. Rows carry no commodity; importing them uses the book default.
func DefaultChart() []Row {
	return []Row{
		{Type: model.AccountTypeAsset, FullName: "Assets", Placeholder: true},
		{Type: model.AccountTypeAsset, FullName: "Assets:Current Assets", Placeholder: true},
		{Type: model.AccountTypeBank, FullName: "Assets:Current Assets:Checking Account"},
		{Type: model.AccountTypeBank, FullName: "Assets:Current Assets:Savings Account"},
		{Type: model.AccountTypeCash, FullName: "Assets:Current Assets:Cash in Wallet"},
		{Type: model.AccountTypeLiability, FullName: "Liabilities", Placeholder: true},
		{Type: model.AccountTypeCredit, FullName: "Liabilities:Credit Card"},
		{Type: model.AccountTypeIncome, FullName: "Income", Placeholder: true},
		{Type: model.AccountTypeIncome, FullName: "Income:Salary"},
		{Type: model.AccountTypeIncome, FullName: "Income:Interest Income"},
		{Type: model.AccountTypeExpense, FullName: "Expenses", Placeholder: true},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Groceries"},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Dining"},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Housing", Placeholder: true},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Housing:Rent"},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Utilities"},
		{Type: model.AccountTypeExpense, FullName: "Expenses:Transportation"},
		{Type: model.AccountTypeEquity, FullName: "Equity", Placeholder: true},
		{Type: model.AccountTypeEquity, FullName: model.OpeningBalancesFullName},
	}
}
