package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/id"
	"github.com/cleared-dev/gnuledger/internal/model"
)

func newTestRegistry(t *testing.T) *Books {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.MigrateRegistry(db))
	books, err := NewBooks(db, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return books
}

func TestBooks_NoActiveBook(t *testing.T) {
	ctx := context.Background()
	books := newTestRegistry(t)

	_, err := books.ActiveBookUID(ctx)
	require.ErrorIs(t, err, ErrNoActiveBook)

	book := model.NewBook(id.New())
	require.NoError(t, books.Add(ctx, book, Insert))
	_, err = books.ActiveBookUID(ctx)
	var nab *NoActiveBookError
	require.True(t, errors.As(err, &nab))
	require.Len(t, nab.Books, 1)
	assert.Equal(t, book.UID, nab.Books[0].UID)
	assert.Contains(t, err.Error(), book.UID)

	name, err := books.ActiveDisplayName(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultBookName, name)
}

func TestBooks_DefaultNames(t *testing.T) {
	ctx := context.Background()
	books := newTestRegistry(t)

	first := model.NewBook(id.New())
	require.NoError(t, books.Add(ctx, first, Insert))
	second := model.NewBook(id.New())
	require.NoError(t, books.Add(ctx, second, Insert))
	named := model.NewBook(id.New())
	named.DisplayName = "Household"
	require.NoError(t, books.Add(ctx, named, Insert))

	assert.Equal(t, "Book 1", first.DisplayName)
	assert.Equal(t, "Book 2", second.DisplayName)
	assert.Equal(t, "Household", named.DisplayName)

	next, err := books.GenerateDefaultName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Book 3", next)

	uids, err := books.AllUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.UID, second.UID, named.UID}, uids)
}

func TestBooks_SetActive(t *testing.T) {
	ctx := context.Background()
	books := newTestRegistry(t)
	a := model.NewBook(id.New())
	b := model.NewBook(id.New())
	_, err := books.BulkAdd(ctx, []*model.Book{a, b}, Insert)
	require.NoError(t, err)

	for _, uid := range []string{a.UID, b.UID} {
		got, err := books.SetActive(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, uid, got)

		active, err := books.ActiveBookUID(ctx)
		require.NoError(t, err)
		assert.Equal(t, uid, active)
	}

	isActive, err := books.IsActive(ctx, a.UID)
	require.NoError(t, err)
	assert.False(t, isActive)
	isActive, err = books.IsActive(ctx, b.UID)
	require.NoError(t, err)
	assert.True(t, isActive)

	current, err := books.SetActive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, b.UID, current)

	_, err = books.SetActive(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	active, err := books.ActiveBook(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.UID, active.UID)
	name, err := books.ActiveDisplayName(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.DisplayName, name)
}

func TestBooks_Fix(t *testing.T) {
	ctx := context.Background()

	t.Run("empty registry without books", func(t *testing.T) {
		books := newTestRegistry(t)
		uid, err := books.Fix(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, uid)
	})

	t.Run("recovers from book databases", func(t *testing.T) {
		books := newTestRegistry(t)
		found := []*model.Book{model.NewBook(id.New()), model.NewBook(id.New())}
		uid, err := books.Fix(ctx, func(context.Context) ([]*model.Book, error) { return found, nil })
		require.NoError(t, err)
		assert.Equal(t, found[0].UID, uid)

		n, err := books.Count(ctx, Query{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("activates first registered book", func(t *testing.T) {
		books := newTestRegistry(t)
		book := model.NewBook(id.New())
		require.NoError(t, books.Add(ctx, book, Insert))
		called := false
		uid, err := books.Fix(ctx, func(context.Context) ([]*model.Book, error) {
			called = true
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, book.UID, uid)
		assert.False(t, called)

		// An active book is left alone.
		again, err := books.Fix(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, book.UID, again)
	})

	t.Run("finder error", func(t *testing.T) {
		books := newTestRegistry(t)
		boom := errors.New("boom")
		_, err := books.Fix(ctx, func(context.Context) ([]*model.Book, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	})
}
