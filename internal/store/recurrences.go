package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// Recurrences stores the repeat rules of scheduled actions and budgets.
type Recurrences struct {
	*Adapter[*model.Recurrence]
}

// NewRecurrences prepares the recurrences adapter.
func NewRecurrences(db *sql.DB, opts Options) (*Recurrences, error) {
	a, err := newAdapter(db, opts, table[*model.Recurrence]{
		name: "recurrences",
		columns: []string{"recurrence_mult", "recurrence_period_type", "recurrence_byday",
			"recurrence_period_start", "recurrence_period_end"},
		bind: bindRecurrence,
		scan: scanRecurrence,
	})
	if err != nil {
		return nil, err
	}
	return &Recurrences{Adapter: a}, nil
}

func bindRecurrence(_ context.Context, r *model.Recurrence) ([]any, error) {
	if r.PeriodType == "" {
		return nil, errors.New("recurrence has no period type")
	}
	if r.PeriodStart.IsZero() {
		return nil, errors.New("recurrence has no start")
	}
	mult := r.Multiplier
	if mult < 1 {
		mult = 1
	}
	var end any
	if r.PeriodEnd != nil {
		end = database.FormatTime(*r.PeriodEnd)
	}
	return []any{mult, string(r.PeriodType), nullString(r.ByDaysString()),
		database.FormatTime(r.PeriodStart), end}, nil
}

func scanRecurrence(row scanner) (*model.Recurrence, error) {
	r := &model.Recurrence{}
	var br baseRow
	var period string
	var byDays sql.NullString
	var start, end database.Time
	if err := row.Scan(br.targets(&r.Base, &r.Multiplier, &period, &byDays, &start, &end)...); err != nil {
		return nil, err
	}
	br.apply(&r.Base)
	pt, err := model.ParsePeriodType(period)
	if err != nil {
		return nil, err
	}
	r.PeriodType = pt
	r.ByDays = model.ParseByDays(byDays.String)
	r.PeriodStart = start.Time
	if end.Valid {
		t := end.Time
		r.PeriodEnd = &t
	}
	return r, nil
}
