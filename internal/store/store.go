// Package store persists the ledger model in a book database. Each table has
// an adapter built on the generic Adapter; the adapters also carry the
// ledger's business rules (auto-balancing, balance rollups, cascades).
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/cleared-dev/gnuledger/internal/model"
)

// ErrNotFound is returned when a record, id or uid does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmptyBudget is returned when saving a budget without amounts.
var ErrEmptyBudget = errors.New("budget has no amounts")

// ErrAccountCycle is returned when an account would become its own ancestor.
var ErrAccountCycle = errors.New("account cannot be its own ancestor")

// ErrNoActiveBook is matched by NoActiveBookError.
var ErrNoActiveBook = errors.New("no active book")

// Record is any model persisted by an Adapter.
type Record interface {
	GetBase() *model.Base
}

// UpdateMethod selects how Add writes a record.
type UpdateMethod int

const (
	// Insert fails on a duplicate uid.
	Insert UpdateMethod = iota
	// Update fails with ErrNotFound when the uid is absent.
	Update
	// Replace inserts or overwrites the row with the same uid in place.
	Replace
)

func (m UpdateMethod) String() string {
	switch m {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Replace:
		return "replace"
	}
	return fmt.Sprintf("UpdateMethod(%d)", int(m))
}

// Preferences is the per-book key/value store the adapters read settings from.
type Preferences interface {
	GetString(key string) string
	GetBool(key string) bool
	IsSet(key string) bool
	Set(key string, value any) error
}

// Preference keys read by the adapters.
const (
	PrefDefaultCurrency = "default_currency"
	PrefUseDoubleEntry  = "use_double_entry"
	PrefLastExportTime  = "last_export_time"
)

// Options are shared by every adapter of one book.
type Options struct {
	Logger zerolog.Logger
	Prefs  Preferences // may be nil
	// Currency is the fallback default currency code when no preference is set.
	Currency string
	// Cache enables the record caches.
	Cache bool
}

func (o Options) useDoubleEntry() bool {
	if o.Prefs == nil || !o.Prefs.IsSet(PrefUseDoubleEntry) {
		return true
	}
	return o.Prefs.GetBool(PrefUseDoubleEntry)
}

// IsConstraint reports whether err is a SQLite constraint violation, such as
// a duplicate uid on Insert or a dangling foreign key.
func IsConstraint(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func notFound(table, key string) error {
	return fmt.Errorf("%s %s: %w", table, key, ErrNotFound)
}

// NoActiveBookError lists the registry rows when no book is marked active.
type NoActiveBookError struct {
	Books []*model.Book
}

func (e *NoActiveBookError) Error() string {
	var b strings.Builder
	b.WriteString("no active book")
	if len(e.Books) == 0 {
		b.WriteString(" (registry is empty)")
		return b.String()
	}
	b.WriteString("; known books:")
	for _, book := range e.Books {
		fmt.Fprintf(&b, "\n  uid=%s created=%s source=%s",
			book.UID, book.CreatedAt.Format(time.RFC3339), book.SourceURI)
	}
	return b.String()
}

func (e *NoActiveBookError) Is(target error) bool { return target == ErrNoActiveBook }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
