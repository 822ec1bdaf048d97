package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/id"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/prefs"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// RegistryFile is the name of the books registry database in a data directory.
const RegistryFile = "books.db"

// Manager owns a data directory: the books registry and one database plus
// one preferences file per book.
type Manager struct {
	dir   string
	db    *sql.DB
	Books *store.Books
	opts  Options
	log   zerolog.Logger
}

// NewManager opens the registry in dir. opts are applied to every ledger the
// manager opens; their Prefs are replaced by the book's own preferences.
func NewManager(dir string, opts Options) (*Manager, error) {
	db, err := database.Open(filepath.Join(dir, RegistryFile))
	if err != nil {
		return nil, err
	}
	if err := database.MigrateRegistry(db); err != nil {
		db.Close()
		return nil, err
	}
	books, err := store.NewBooks(db, opts)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing books registry: %w", err)
	}
	return &Manager{dir: dir, db: db, Books: books, opts: opts, log: opts.Logger}, nil
}

// Dir returns the data directory.
func (m *Manager) Dir() string { return m.dir }

// Close closes the registry.
func (m *Manager) Close() error {
	return errors.Join(m.Books.Close(), m.db.Close())
}

// BookPath returns the database file of a book.
func (m *Manager) BookPath(uid string) string {
	return filepath.Join(m.dir, uid+".db")
}

// CreateBook creates a book database with its root account, registers it
// under name (a default name when empty) and makes it the active book.
func (m *Manager) CreateBook(ctx context.Context, name string) (*model.Book, error) {
	uid := id.New()
	l, err := m.open(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}
	root, err := l.Accounts.RootAccountUID(ctx)
	if cerr := l.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("creating book root: %w", err)
	}

	book := model.NewBook(root)
	book.UID = uid
	book.DisplayName = name
	book.SourceURI = m.BookPath(uid)
	if err := m.Books.Add(ctx, book, store.Insert); err != nil {
		return nil, fmt.Errorf("registering book: %w", err)
	}
	if _, err := m.Books.SetActive(ctx, uid); err != nil {
		return nil, err
	}
	m.log.Info().Str("book", uid).Str("name", book.DisplayName).Msg("book created")
	return book, nil
}

// OpenBook opens a registered book with its preferences.
func (m *Manager) OpenBook(ctx context.Context, uid string) (*Ledger, error) {
	if _, err := m.Books.Get(ctx, uid); err != nil {
		return nil, err
	}
	return m.open(ctx, uid)
}

func (m *Manager) open(ctx context.Context, uid string) (*Ledger, error) {
	p, err := prefs.Open(m.dir, uid)
	if err != nil {
		return nil, err
	}
	opts := m.opts
	opts.Prefs = p
	l, err := Open(ctx, m.BookPath(uid), opts)
	if err != nil {
		return nil, err
	}
	l.UID = uid
	l.Prefs = p
	return l, nil
}

// OpenActive opens the active book. A registry without an active book is
// repaired first; when there is no book at all a new one is created.
func (m *Manager) OpenActive(ctx context.Context) (*Ledger, error) {
	uid, err := m.Books.ActiveBookUID(ctx)
	if errors.Is(err, store.ErrNoActiveBook) {
		if uid, err = m.Recover(ctx); err == nil && uid == "" {
			var book *model.Book
			if book, err = m.CreateBook(ctx, ""); err == nil {
				uid = book.UID
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return m.OpenBook(ctx, uid)
}

// DeleteBook removes a book's database, preferences and registry row. When
// the active book is deleted another one is activated.
func (m *Manager) DeleteBook(ctx context.Context, uid string) error {
	active, err := m.Books.IsActive(ctx, uid)
	if err != nil {
		return err
	}
	ok, err := m.Books.Delete(ctx, uid)
	if err != nil {
		return fmt.Errorf("unregistering book %s: %w", uid, err)
	}
	if !ok {
		return fmt.Errorf("deleting book %s: %w", uid, store.ErrNotFound)
	}
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(m.BookPath(uid) + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing book database: %w", err)
		}
	}
	if err := prefs.Remove(m.dir, uid); err != nil {
		return err
	}
	m.log.Info().Str("book", uid).Msg("book deleted")
	if active {
		_, err = m.Books.Fix(ctx, nil)
	}
	return err
}

// Recover repairs the registry: books missing from an empty registry are
// found by scanning the data directory, then the first book is activated.
func (m *Manager) Recover(ctx context.Context) (string, error) {
	return m.Books.Fix(ctx, m.findBooks)
}

// findBooks lists the book databases in the data directory.
func (m *Manager) findBooks(ctx context.Context) ([]*model.Book, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	var books []*model.Book
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") || !id.IsBookDatabase(e.Name()) {
			continue
		}
		uid := strings.TrimSuffix(e.Name(), ".db")
		l, err := m.open(ctx, uid)
		if err != nil {
			m.log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable book database")
			continue
		}
		root, err := l.Accounts.RootAccountUID(ctx)
		l.Close()
		if err != nil {
			return nil, fmt.Errorf("reading root of %s: %w", uid, err)
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		book := model.NewBook(root)
		book.UID = uid
		book.SourceURI = m.BookPath(uid)
		book.LastSync = info.ModTime().UTC()
		books = append(books, book)
	}
	return books, nil
}

// List returns the registered books in creation order.
func (m *Manager) List(ctx context.Context) ([]*model.Book, error) {
	return m.Books.All(ctx, store.Query{}.OrderBy("id"))
}

// Use activates a registered book.
func (m *Manager) Use(ctx context.Context, uid string) error {
	_, err := m.Books.SetActive(ctx, uid)
	return err
}
