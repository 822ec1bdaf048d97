package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/model"
)

// ScheduledActions stores recurring transactions and backups. Each action
// owns one recurrence row.
type ScheduledActions struct {
	*Adapter[*model.ScheduledAction]
	recurrences  *Recurrences
	transactions *Transactions
}

// NewScheduledActions prepares the scheduled actions adapter.
func NewScheduledActions(db *sql.DB, opts Options, recurrences *Recurrences, transactions *Transactions) (*ScheduledActions, error) {
	s := &ScheduledActions{recurrences: recurrences, transactions: transactions}
	a, err := newAdapter(db, opts, table[*model.ScheduledAction]{
		name: "scheduled_actions",
		columns: []string{"action_uid", "type", "start_time", "end_time", "last_run", "is_enabled",
			"tag", "total_frequency", "recurrence_uid", "auto_create", "auto_notify",
			"adv_creation", "adv_notify", "template_act_uid", "execution_count", "name"},
		bind:    bindScheduledAction,
		scan:    scanScheduledAction,
		resolve: s.resolve,
	})
	if err != nil {
		return nil, err
	}
	s.Adapter = a
	return s, nil
}

func millisOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return model.Millis(t)
}

func timeOrZero(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return model.FromMillis(ms)
}

func bindScheduledAction(_ context.Context, a *model.ScheduledAction) ([]any, error) {
	if a.Recurrence == nil {
		return nil, errors.New("scheduled action has no recurrence")
	}
	if a.ActionUID == "" {
		return nil, errors.New("scheduled action has no action uid")
	}
	return []any{a.ActionUID, string(a.ActionType), millisOrZero(a.StartTime), millisOrZero(a.EndTime),
		millisOrZero(a.LastRun), boolInt(a.Enabled), nullString(a.Tag), a.TotalFrequency,
		a.Recurrence.UID, boolInt(a.AutoCreate), boolInt(a.AutoNotify), a.AdvanceCreateDays,
		a.AdvanceNotifyDays, nullString(a.TemplateAccountUID), a.InstanceCount, nullString(a.Name)}, nil
}

func scanScheduledAction(row scanner) (*model.ScheduledAction, error) {
	a := &model.ScheduledAction{}
	var br baseRow
	var typ, recurrence string
	var start, end, last int64
	var tag, template, name sql.NullString
	err := row.Scan(br.targets(&a.Base, &a.ActionUID, &typ, &start, &end, &last, &a.Enabled, &tag,
		&a.TotalFrequency, &recurrence, &a.AutoCreate, &a.AutoNotify, &a.AdvanceCreateDays,
		&a.AdvanceNotifyDays, &template, &a.InstanceCount, &name)...)
	if err != nil {
		return nil, err
	}
	br.apply(&a.Base)
	if a.ActionType, err = model.ParseActionType(typ); err != nil {
		return nil, err
	}
	a.StartTime, a.EndTime, a.LastRun = timeOrZero(start), timeOrZero(end), timeOrZero(last)
	a.Tag, a.TemplateAccountUID, a.Name = tag.String, template.String, name.String
	a.Recurrence = &model.Recurrence{Base: model.Base{UID: recurrence}}
	return a, nil
}

func (s *ScheduledActions) resolve(ctx context.Context, actions []*model.ScheduledAction) error {
	for _, a := range actions {
		r, err := s.recurrences.Get(ctx, a.Recurrence.UID)
		if err != nil {
			return err
		}
		a.Recurrence = r
		if a.Name != "" {
			continue
		}
		if a.ActionType != model.ActionTransaction {
			a.Name = string(a.ActionType)
			continue
		}
		desc, err := s.transactions.Attribute(ctx, a.ActionUID, "name")
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		a.Name = desc
	}
	return nil
}

// Add writes the recurrence, then the action.
func (s *ScheduledActions) Add(ctx context.Context, a *model.ScheduledAction, method UpdateMethod) error {
	if a.Recurrence == nil {
		return fmt.Errorf("adding scheduled action %s: no recurrence", a.UID)
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.recurrences.Add(ctx, a.Recurrence, method); err != nil {
			return err
		}
		return s.Adapter.Add(ctx, a, method)
	})
}

// BulkAdd writes all recurrences, then all actions, atomically.
func (s *ScheduledActions) BulkAdd(ctx context.Context, actions []*model.ScheduledAction, method UpdateMethod) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		recurrences := make([]*model.Recurrence, 0, len(actions))
		for _, a := range actions {
			if a.Recurrence != nil {
				recurrences = append(recurrences, a.Recurrence)
			}
		}
		added, err := s.recurrences.BulkAdd(ctx, recurrences, method)
		if err != nil {
			return err
		}
		s.log.Debug().Int64("recurrences", added).Msg("added recurrences for scheduled actions")
		n, err = s.Adapter.BulkAdd(ctx, actions, method)
		return err
	})
	return n, err
}

// UpdateRecurrenceAttributes rewrites the stored recurrence of an action
// and its schedule bounds, keeping the recurrence uid already stored.
func (s *ScheduledActions) UpdateRecurrenceAttributes(ctx context.Context, a *model.ScheduledAction) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(ctx context.Context) error {
		uid, err := s.Attribute(ctx, a.UID, "recurrence_uid")
		if err != nil {
			return err
		}
		a.Recurrence.UID = uid
		if err := s.recurrences.Update(ctx, a.Recurrence); err != nil {
			return err
		}
		a.ModifiedAt = time.Now().UTC()
		n, err = s.exec(ctx, "UPDATE scheduled_actions SET start_time = ?, end_time = ?, tag = ?,"+
			" total_frequency = ?, modified_at = ? WHERE uid = ?",
			millisOrZero(a.StartTime), millisOrZero(a.EndTime), nullString(a.Tag), a.TotalFrequency,
			database.FormatTime(a.ModifiedAt), a.UID)
		return err
	})
	s.cache.Invalidate(a.UID)
	if err != nil {
		return 0, fmt.Errorf("updating recurrence of %s: %w", a.UID, err)
	}
	return n, nil
}

// ByActionUID returns the actions firing the template transaction or book uid.
func (s *ScheduledActions) ByActionUID(ctx context.Context, actionUID string) ([]*model.ScheduledAction, error) {
	return s.All(ctx, Where("action_uid = ?", actionUID))
}

// AllEnabled returns the enabled actions.
func (s *ScheduledActions) AllEnabled(ctx context.Context) ([]*model.ScheduledAction, error) {
	return s.All(ctx, Where("is_enabled = 1"))
}

// Due returns the enabled actions due at now.
func (s *ScheduledActions) Due(ctx context.Context, now time.Time) ([]*model.ScheduledAction, error) {
	enabled, err := s.AllEnabled(ctx)
	if err != nil {
		return nil, err
	}
	var due []*model.ScheduledAction
	for _, a := range enabled {
		if a.IsDue(now) {
			due = append(due, a)
		}
	}
	return due, nil
}

// ActionInstanceCount counts the transactions created by an action.
func (s *ScheduledActions) ActionInstanceCount(ctx context.Context, uid string) (int64, error) {
	return s.scalar(ctx, "SELECT COUNT(*) FROM transactions WHERE scheduled_action_uid = ?", uid)
}

// ByType returns the actions of type t.
func (s *ScheduledActions) ByType(ctx context.Context, t model.ActionType) ([]*model.ScheduledAction, error) {
	return s.All(ctx, Where("type = ?", string(t)))
}

// CountByType counts the actions of type t.
func (s *ScheduledActions) CountByType(ctx context.Context, t model.ActionType) (int64, error) {
	return s.Count(ctx, Where("type = ?", string(t)))
}
