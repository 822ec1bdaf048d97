// Package prefs keeps the per-book preferences file next to each book
// database.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

const suffix = ".prefs.yaml"

// Prefs is one book's preferences, written back on every Set.
type Prefs struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// Path returns the preferences file of a book in dir.
func Path(dir, bookUID string) string {
	return filepath.Join(dir, bookUID+suffix)
}

// Open loads the preferences of bookUID from dir. A missing file is an
// empty set of preferences.
func Open(dir, bookUID string) (*Prefs, error) {
	p := &Prefs{v: viper.New(), path: Path(dir, bookUID)}
	p.v.SetConfigFile(p.path)
	p.v.SetConfigType("yaml")
	if err := p.v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading preferences %s: %w", p.path, err)
	}
	return p, nil
}

// Remove deletes the preferences file of a book, if any.
func Remove(dir, bookUID string) error {
	err := os.Remove(Path(dir, bookUID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing preferences: %w", err)
	}
	return nil
}

// File returns the path the preferences are stored at.
func (p *Prefs) File() string { return p.path }

func (p *Prefs) GetString(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v.GetString(key)
}

func (p *Prefs) GetBool(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v.GetBool(key)
}

func (p *Prefs) IsSet(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.v.IsSet(key)
}

// GetTime returns a time stored with SetTime, or the zero time.
func (p *Prefs) GetTime(key string) time.Time {
	s := p.GetString(key)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Set stores value under key and saves the file.
func (p *Prefs) Set(key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}
	if err := p.v.WriteConfigAs(p.path); err != nil {
		return fmt.Errorf("writing preferences %s: %w", p.path, err)
	}
	return nil
}

// SetTime stores t in UTC with nanosecond precision.
func (p *Prefs) SetTime(key string, t time.Time) error {
	return p.Set(key, t.UTC().Format(time.RFC3339Nano))
}
