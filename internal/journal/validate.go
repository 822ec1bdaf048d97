package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// Rule names a check a transaction must pass before it is saved.
type Rule string

const (
	RuleCommodity     Rule = "commodity"
	RuleHasSplits     Rule = "has-splits"
	RuleSplitOwner    Rule = "split-owner"
	RuleAccountExists Rule = "account-exists"
	RulePostable      Rule = "postable"
	RuleDenominator   Rule = "denominator"
	RulePrecision     Rule = "precision"
	RuleQuantity      Rule = "quantity-commodity"
)

// ValidationError describes a single rule violation.
type ValidationError struct {
	Rule        Rule
	UID         string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.UID, e.Description)
}

// AccountGetter looks up accounts by uid. *store.Accounts satisfies it.
type AccountGetter interface {
	Get(ctx context.Context, uid string) (*model.Account, error)
}

// ValidateTransaction checks tx and its splits. The error is only for
// failed lookups; rule violations are returned as ValidationErrors.
// An unbalanced transaction is valid: saving it books the difference to the
// imbalance account.
func ValidateTransaction(ctx context.Context, tx *model.Transaction, accounts AccountGetter) ([]ValidationError, error) {
	var errs []ValidationError

	if tx.Commodity == nil {
		errs = append(errs, ValidationError{
			Rule:        RuleCommodity,
			UID:         tx.UID,
			Description: "transaction has no currency",
		})
	}
	if len(tx.Splits) == 0 {
		errs = append(errs, ValidationError{
			Rule:        RuleHasSplits,
			UID:         tx.UID,
			Description: "transaction has no splits",
		})
	}

	for _, s := range tx.Splits {
		if s.TransactionUID != tx.UID {
			errs = append(errs, ValidationError{
				Rule:        RuleSplitOwner,
				UID:         s.UID,
				Description: fmt.Sprintf("split belongs to transaction %q", s.TransactionUID),
			})
		}

		for _, m := range []model.Money{s.Value, s.Quantity} {
			if m.Commodity != nil && m.Commodity.SmallestFraction <= 0 {
				errs = append(errs, ValidationError{
					Rule:        RuleDenominator,
					UID:         s.UID,
					Description: fmt.Sprintf("%s has denominator %d", m.Commodity, m.Commodity.SmallestFraction),
				})
			} else if !exact(m) {
				errs = append(errs, ValidationError{
					Rule:        RulePrecision,
					UID:         s.UID,
					Description: fmt.Sprintf("%s is finer than 1/%d", m.Amount, m.Denominator()),
				})
			}
		}

		acc, err := accounts.Get(ctx, s.AccountUID)
		if errors.Is(err, store.ErrNotFound) {
			errs = append(errs, ValidationError{
				Rule:        RuleAccountExists,
				UID:         s.UID,
				Description: fmt.Sprintf("unknown account %q", s.AccountUID),
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up account %s: %w", s.AccountUID, err)
		}
		if acc.Placeholder {
			errs = append(errs, ValidationError{
				Rule:        RulePostable,
				UID:         s.UID,
				Description: fmt.Sprintf("account %s is a placeholder", acc),
			})
		}
		if acc.Commodity != nil && s.Quantity.Commodity != nil && !acc.Commodity.Same(s.Quantity.Commodity) {
			errs = append(errs, ValidationError{
				Rule:        RuleQuantity,
				UID:         s.UID,
				Description: fmt.Sprintf("quantity in %s, account %s is in %s", s.Quantity.Commodity, acc, acc.Commodity),
			})
		}
	}

	return errs, nil
}

// exact reports whether m fits the smallest fraction of its commodity.
func exact(m model.Money) bool {
	scaled := m.Amount.Mul(decimal.NewFromInt(m.Denominator()))
	return scaled.Equal(scaled.Floor())
}

// Joined turns violations into one error, or nil.
func Joined(verrs []ValidationError) error {
	if len(verrs) == 0 {
		return nil
	}
	msgs := make([]string, len(verrs))
	for i, ve := range verrs {
		msgs[i] = ve.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
