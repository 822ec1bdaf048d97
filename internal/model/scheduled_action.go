package model

import (
	"fmt"
	"strings"
	"time"
)

// ActionType is what a scheduled action does when it fires.
type ActionType string

const (
	ActionTransaction ActionType = "TRANSACTION"
	ActionBackup      ActionType = "BACKUP"
)

// ParseActionType accepts any casing; "EXPORT" is an alias of BACKUP.
func ParseActionType(s string) (ActionType, error) {
	switch strings.ToUpper(s) {
	case string(ActionTransaction):
		return ActionTransaction, nil
	case string(ActionBackup), "EXPORT":
		return ActionBackup, nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// ScheduledAction fires a template transaction or a backup on a recurrence.
type ScheduledAction struct {
	Base
	ActionType         ActionType
	ActionUID          string // template transaction or book being backed up
	Name               string
	StartTime          time.Time
	EndTime            time.Time // zero = no end
	LastRun            time.Time // zero = never run
	Tag                string
	Enabled            bool
	TotalFrequency     int // 0 = unlimited
	InstanceCount      int
	AutoCreate         bool
	AutoNotify         bool
	AdvanceCreateDays  int
	AdvanceNotifyDays  int
	TemplateAccountUID string
	Recurrence         *Recurrence
}

// NewScheduledAction creates an enabled, unsaved action.
func NewScheduledAction(t ActionType, actionUID string, r *Recurrence) *ScheduledAction {
	return &ScheduledAction{
		Base:       NewBase(),
		ActionType: t,
		ActionUID:  actionUID,
		StartTime:  r.PeriodStart,
		Enabled:    true,
		AutoCreate: true,
		Recurrence: r,
	}
}

// NextScheduledTime returns when the action should next fire.
func (a *ScheduledAction) NextScheduledTime() time.Time {
	if a.LastRun.IsZero() || a.Recurrence == nil {
		return a.StartTime
	}
	return a.Recurrence.Next(a.LastRun)
}

// IsDue reports whether the action should fire at now.
func (a *ScheduledAction) IsDue(now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.TotalFrequency > 0 && a.InstanceCount >= a.TotalFrequency {
		return false
	}
	next := a.NextScheduledTime()
	if !a.EndTime.IsZero() && next.After(a.EndTime) {
		return false
	}
	return !next.After(now.AddDate(0, 0, a.AdvanceCreateDays))
}
