package model

import (
	"math"
	"time"

	"github.com/cleared-dev/gnuledger/internal/id"
)

const (
	// Always marks an unbounded end of a time range.
	Always int64 = -1
	// InvalidDate is returned by timestamp queries that match nothing.
	InvalidDate int64 = math.MinInt64
)

// Base holds the columns every persisted record carries.
type Base struct {
	ID         int64 // database row id, 0 until persisted
	UID        string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// NewBase returns a Base with a fresh UID.
func NewBase() Base {
	now := time.Now().UTC()
	return Base{UID: id.New(), CreatedAt: now, ModifiedAt: now}
}

// GetBase exposes the embedded Base to generic code.
func (b *Base) GetBase() *Base { return b }

// Persisted reports whether the record has a database row id.
func (b *Base) Persisted() bool { return b.ID != 0 }

// Millis converts t to Unix milliseconds, the timestamp format stored in the book.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
