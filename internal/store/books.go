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

// DefaultBookName is the display name used when no book is active.
const DefaultBookName = "Book1"

// Books is the registry of book databases. It lives in its own database,
// not in a book.
type Books struct {
	*Adapter[*model.Book]
}

// NewBooks prepares the books adapter over the registry database.
func NewBooks(db *sql.DB, opts Options) (*Books, error) {
	b := &Books{}
	a, err := newAdapter(db, opts, table[*model.Book]{
		name: "books",
		columns: []string{"name", "root_account_guid", "root_template_guid", "uri",
			"is_active", "last_sync"},
		bind: b.bind,
		scan: scanBook,
	})
	if err != nil {
		return nil, err
	}
	b.Adapter = a
	return b, nil
}

func (b *Books) bind(ctx context.Context, book *model.Book) ([]any, error) {
	if book.DisplayName == "" {
		name, err := b.GenerateDefaultName(ctx)
		if err != nil {
			return nil, err
		}
		book.DisplayName = name
	}
	if book.LastSync.IsZero() {
		book.LastSync = time.Now().UTC()
	}
	return []any{book.DisplayName, book.RootAccountUID, nullString(book.RootTemplateUID),
		nullString(book.SourceURI), boolInt(book.Active), database.FormatTime(book.LastSync)}, nil
}

func scanBook(row scanner) (*model.Book, error) {
	book := &model.Book{}
	var br baseRow
	var template, uri sql.NullString
	var lastSync database.Time
	err := row.Scan(br.targets(&book.Base, &book.DisplayName, &book.RootAccountUID, &template,
		&uri, &book.Active, &lastSync)...)
	if err != nil {
		return nil, err
	}
	br.apply(&book.Base)
	book.RootTemplateUID, book.SourceURI, book.LastSync = template.String, uri.String, lastSync.Time
	return book, nil
}

// SetActive marks uid as the only active book. An empty uid leaves the
// registry unchanged and returns the current active book.
func (b *Books) SetActive(ctx context.Context, uid string) (string, error) {
	if uid == "" {
		return b.ActiveBookUID(ctx)
	}
	err := b.inTx(ctx, func(ctx context.Context) error {
		if _, err := b.exec(ctx, "UPDATE books SET is_active = 0"); err != nil {
			return err
		}
		n, err := b.exec(ctx, "UPDATE books SET is_active = 1 WHERE uid = ?", uid)
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("books", uid)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("activating book %s: %w", uid, err)
	}
	b.log.Info().Str("book", uid).Msg("book activated")
	return uid, nil
}

// IsActive reports whether uid is the active book.
func (b *Books) IsActive(ctx context.Context, uid string) (bool, error) {
	v, err := b.Attribute(ctx, uid, "is_active")
	return v == "1", err
}

// ActiveBookUID returns the active book, or a *NoActiveBookError listing the
// registry when none is marked active.
func (b *Books) ActiveBookUID(ctx context.Context) (string, error) {
	uids, err := b.texts(ctx, "SELECT uid FROM books WHERE is_active = 1 LIMIT 1")
	if err != nil {
		return "", err
	}
	if len(uids) > 0 {
		return uids[0], nil
	}
	books, err := b.All(ctx, Query{}.OrderBy("id"))
	if err != nil {
		return "", err
	}
	return "", &NoActiveBookError{Books: books}
}

// ActiveBook returns the active book record.
func (b *Books) ActiveBook(ctx context.Context) (*model.Book, error) {
	uid, err := b.ActiveBookUID(ctx)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, uid)
}

// ActiveDisplayName returns the name of the active book, or DefaultBookName.
func (b *Books) ActiveDisplayName(ctx context.Context) (string, error) {
	names, err := b.texts(ctx, "SELECT name FROM books WHERE is_active = 1 LIMIT 1")
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return DefaultBookName, nil
	}
	return names[0], nil
}

// AllUIDs returns the uids of every registered book.
func (b *Books) AllUIDs(ctx context.Context) ([]string, error) {
	return b.texts(ctx, "SELECT DISTINCT uid FROM books ORDER BY id")
}

// GenerateDefaultName returns "Book N" for the first N, starting at the
// highest row id, that no book uses yet.
func (b *Books) GenerateDefaultName(ctx context.Context) (string, error) {
	n, err := b.scalar(ctx, "SELECT MAX(id) FROM books")
	if err != nil {
		return "", err
	}
	n = max(n, 1)
	for ; ; n++ {
		name := fmt.Sprintf("Book %d", n)
		used, err := b.scalar(ctx, "SELECT COUNT(*) FROM books WHERE name = ?", name)
		if err != nil {
			return "", err
		}
		if used == 0 {
			return name, nil
		}
	}
}

// BookFinder lists the book databases present on disk, as unsaved records
// carrying at least the uid and root account uid.
type BookFinder func(ctx context.Context) ([]*model.Book, error)

// Fix repairs a registry without an active book. An empty registry is
// rebuilt from the books find reports; then the first book is activated.
// It returns the active uid, or "" when there is no book at all.
func (b *Books) Fix(ctx context.Context, find BookFinder) (string, error) {
	if uid, err := b.ActiveBookUID(ctx); err == nil {
		return uid, nil
	} else if !errors.Is(err, ErrNoActiveBook) {
		return "", err
	}

	n, err := b.Count(ctx, Query{})
	if err != nil {
		return "", err
	}
	if n == 0 && find != nil {
		b.log.Warn().Msg("no books registered, recovering from book databases")
		found, err := find(ctx)
		if err != nil {
			return "", fmt.Errorf("finding book databases: %w", err)
		}
		for _, book := range found {
			if err := b.Add(ctx, book, Insert); err != nil {
				return "", fmt.Errorf("recovering book %s: %w", book.UID, err)
			}
			b.log.Info().Str("book", book.UID).Msg("recovered book record")
		}
	}

	first, err := b.First(ctx, Query{}.OrderBy("id"))
	if errors.Is(err, ErrNotFound) {
		b.log.Warn().Msg("no books")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return b.SetActive(ctx, first.UID)
}
