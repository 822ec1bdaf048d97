package model

// Budget plans amounts per account over a number of recurrence periods.
type Budget struct {
	Base
	Name        string
	Description string
	NumPeriods  int
	Recurrence  *Recurrence
	Amounts     []*BudgetAmount
}

// NewBudget creates an unsaved budget.
func NewBudget(name string, r *Recurrence, periods int) *Budget {
	return &Budget{Base: NewBase(), Name: name, Recurrence: r, NumPeriods: periods}
}

// AddAmount attaches an amount to the budget.
func (b *Budget) AddAmount(a *BudgetAmount) {
	a.BudgetUID = b.UID
	b.Amounts = append(b.Amounts, a)
}

// AccountUIDs returns the distinct accounts the budget covers, in order.
func (b *Budget) AccountUIDs() []string {
	seen := make(map[string]bool)
	var uids []string
	for _, a := range b.Amounts {
		if !seen[a.AccountUID] {
			seen[a.AccountUID] = true
			uids = append(uids, a.AccountUID)
		}
	}
	return uids
}

// BudgetAmount is the planned amount for one account in one period.
type BudgetAmount struct {
	Base
	BudgetUID  string
	AccountUID string
	PeriodNum  int64
	Amount     Money
	Notes      string
}

// NewBudgetAmount creates an unsaved budget amount.
func NewBudgetAmount(accountUID string, period int64, amount Money) *BudgetAmount {
	return &BudgetAmount{Base: NewBase(), AccountUID: accountUID, PeriodNum: period, Amount: amount}
}
