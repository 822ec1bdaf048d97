package model

import (
	"fmt"
	"strings"
	"time"
)

// PeriodType is the unit a recurrence repeats in.
type PeriodType string

const (
	PeriodHour        PeriodType = "HOUR"
	PeriodDay         PeriodType = "DAY"
	PeriodWeek        PeriodType = "WEEK"
	PeriodMonth       PeriodType = "MONTH"
	PeriodEndOfMonth  PeriodType = "END_OF_MONTH"
	PeriodNthWeekday  PeriodType = "NTH_WEEKDAY"
	PeriodLastWeekday PeriodType = "LAST_WEEKDAY"
	PeriodYear        PeriodType = "YEAR"
)

// ParsePeriodType accepts any casing of a known period type.
func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(strings.ToUpper(s))
	switch p {
	case PeriodHour, PeriodDay, PeriodWeek, PeriodMonth, PeriodEndOfMonth,
		PeriodNthWeekday, PeriodLastWeekday, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown period type %q", s)
}

// Recurrence describes how often a scheduled action or budget period repeats.
type Recurrence struct {
	Base
	PeriodType  PeriodType
	Multiplier  int
	PeriodStart time.Time
	PeriodEnd   *time.Time
	ByDays      []time.Weekday
}

// NewRecurrence creates an unsaved recurrence starting now.
func NewRecurrence(p PeriodType, multiplier int) *Recurrence {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Recurrence{Base: NewBase(), PeriodType: p, Multiplier: multiplier, PeriodStart: time.Now().UTC()}
}

var dayCodes = []string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ByDaysString encodes ByDays as "MO,WE,FR".
func (r *Recurrence) ByDaysString() string {
	codes := make([]string, len(r.ByDays))
	for i, d := range r.ByDays {
		codes[i] = dayCodes[d]
	}
	return strings.Join(codes, ",")
}

// ParseByDays decodes "MO,WE,FR". Unknown codes are skipped.
func ParseByDays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var days []time.Weekday
	for _, code := range strings.Split(s, ",") {
		for i, c := range dayCodes {
			if strings.TrimSpace(code) == c {
				days = append(days, time.Weekday(i))
			}
		}
	}
	return days
}

// Next returns the first occurrence strictly after from.
func (r *Recurrence) Next(from time.Time) time.Time {
	n := r.Multiplier
	if n < 1 {
		n = 1
	}
	switch r.PeriodType {
	case PeriodHour:
		return from.Add(time.Duration(n) * time.Hour)
	case PeriodDay:
		return from.AddDate(0, 0, n)
	case PeriodWeek:
		return r.nextWeekly(from, n)
	case PeriodEndOfMonth:
		first := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), 0, from.Location())
		return first.AddDate(0, n+1, -1)
	case PeriodNthWeekday:
		nth := (from.Day() - 1) / 7
		first := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), 0, from.Location()).AddDate(0, n, 0)
		offset := (int(from.Weekday()) - int(first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, offset+7*nth)
	case PeriodLastWeekday:
		first := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), 0, from.Location()).AddDate(0, n, 0)
		last := first.AddDate(0, 1, -1)
		back := (int(last.Weekday()) - int(from.Weekday()) + 7) % 7
		return last.AddDate(0, 0, -back)
	case PeriodYear:
		return from.AddDate(n, 0, 0)
	default:
		return from.AddDate(0, n, 0)
	}
}

func (r *Recurrence) nextWeekly(from time.Time, n int) time.Time {
	if len(r.ByDays) == 0 {
		return from.AddDate(0, 0, 7*n)
	}
	for i := 1; i < 7-int(from.Weekday()); i++ {
		c := from.AddDate(0, 0, i)
		if r.hasDay(c.Weekday()) {
			return c
		}
	}
	// Roll over to the first listed day of the week n weeks on.
	weekStart := from.AddDate(0, 0, -int(from.Weekday())+7*n)
	for i := 0; i < 7; i++ {
		c := weekStart.AddDate(0, 0, i)
		if r.hasDay(c.Weekday()) {
			return c
		}
	}
	return from.AddDate(0, 0, 7*n)
}

func (r *Recurrence) hasDay(d time.Weekday) bool {
	for _, b := range r.ByDays {
		if b == d {
			return true
		}
	}
	return false
}
