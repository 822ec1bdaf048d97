package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the number of hex characters in a GnuCash GUID.
const Length = 32

// namespace seeds deterministic UIDs for built-in records.
var namespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// New returns a random 32-char lowercase hex UID.
func New() string {
	return Format(uuid.New())
}

// Named returns a deterministic UID for a well-known name, e.g. "commodity:USD".
func Named(name string) string {
	return Format(uuid.NewSHA1(namespace, []byte(name)))
}

// Format renders a UUID without dashes.
func Format(u uuid.UUID) string {
	return strings.ReplaceAll(u.String(), "-", "")
}

// Valid reports whether s is a 32-char lowercase hex UID.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Parse normalizes a UID given either as 32 hex chars or as a dashed UUID.
func Parse(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if Valid(s) {
		return s, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid uid %q: %w", s, err)
	}
	return Format(u), nil
}

// IsBookDatabase reports whether a file name belongs to a book database.
// Book databases are named by the book UID with an optional ".db" suffix.
func IsBookDatabase(name string) bool {
	return Valid(strings.TrimSuffix(name, ".db"))
}
