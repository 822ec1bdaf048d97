package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/gnuledger/internal/cache"
	"github.com/cleared-dev/gnuledger/internal/database"
	"github.com/cleared-dev/gnuledger/internal/id"
	"github.com/cleared-dev/gnuledger/internal/model"
)

type scanner interface {
	Scan(dest ...any) error
}

// table describes how one model maps onto its table.
type table[T Record] struct {
	name string
	// columns are written by bind and read by scan, in order, after the base
	// columns id, uid, created_at and modified_at.
	columns []string
	// extra select expressions read after columns, usually from join.
	extra []string
	join  string
	// cached records are kept in the adapter cache when caching is enabled.
	cached bool

	bind func(ctx context.Context, m T) ([]any, error)
	scan func(row scanner) (T, error)
	// resolve runs once the rows are closed and may query other tables.
	resolve func(ctx context.Context, records []T) error
}

// stmt is a prepared statement. Direct use is serialized; inside a
// transaction the statement is rebound to it and runs unlocked.
type stmt struct {
	mu sync.Mutex
	s  *sql.Stmt
}

func (st *stmt) exec(ctx context.Context, args ...any) (sql.Result, error) {
	if tx, ok := database.TxFrom(ctx); ok {
		return tx.StmtContext(ctx, st.s).ExecContext(ctx, args...)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.ExecContext(ctx, args...)
}

// Adapter provides the record operations shared by every table.
type Adapter[T Record] struct {
	db    *sql.DB
	log   zerolog.Logger
	t     table[T]
	cache cache.Cache[string, T]

	insert  stmt
	update  stmt
	replace stmt
}

func newAdapter[T Record](db *sql.DB, opts Options, t table[T]) (*Adapter[T], error) {
	a := &Adapter[T]{
		db:  db,
		log: opts.Logger.With().Str("table", t.name).Logger(),
		t:   t,
	}
	if opts.Cache && t.cached {
		a.cache = cache.NewMap[string, T]()
	} else {
		a.cache = cache.Nop[string, T]{}
	}

	cols := append([]string{"uid", "created_at", "modified_at"}, t.columns...)
	sets := make([]string, len(t.columns))
	upserts := make([]string, len(t.columns))
	for i, c := range t.columns {
		sets[i] = c + " = ?"
		upserts[i] = c + " = excluded." + c
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name, strings.Join(cols, ", "), placeholders(len(cols)))
	updateSQL := fmt.Sprintf("UPDATE %s SET %s, modified_at = ? WHERE uid = ?",
		t.name, strings.Join(sets, ", "))
	replaceSQL := insertSQL + " ON CONFLICT(uid) DO UPDATE SET " +
		strings.Join(append(upserts, "modified_at = excluded.modified_at"), ", ")

	for _, p := range []struct {
		st  *stmt
		sql string
	}{{&a.insert, insertSQL}, {&a.update, updateSQL}, {&a.replace, replaceSQL}} {
		s, err := db.Prepare(p.sql)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("preparing %s statements: %w", t.name, err)
		}
		p.st.s = s
	}
	return a, nil
}

// Close releases the prepared statements.
func (a *Adapter[T]) Close() error {
	var errs []error
	for _, st := range []*stmt{&a.insert, &a.update, &a.replace} {
		if st.s != nil {
			errs = append(errs, st.s.Close())
			st.s = nil
		}
	}
	return errors.Join(errs...)
}

// Table returns the table name.
func (a *Adapter[T]) Table() string { return a.t.name }

func (a *Adapter[T]) conn(ctx context.Context) database.Execer {
	return database.Conn(ctx, a.db)
}

// inTx runs fn in the transaction carried by ctx, opening one if needed.
func (a *Adapter[T]) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, a.db, fn)
}

// Add writes m using method and sets its ID. The cached copy of m is dropped
// whether or not the write succeeds, since m may be that copy.
func (a *Adapter[T]) Add(ctx context.Context, m T, method UpdateMethod) error {
	b := m.GetBase()
	if b.UID == "" {
		b.UID = id.New()
	}
	defer a.cache.Invalidate(b.UID)
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.ModifiedAt = now

	values, err := a.t.bind(ctx, m)
	if err != nil {
		return fmt.Errorf("binding %s %s: %w", a.t.name, b.UID, err)
	}
	base := []any{b.UID, database.FormatTime(b.CreatedAt), database.FormatTime(b.ModifiedAt)}

	switch method {
	case Insert:
		res, err := a.insert.exec(ctx, append(base, values...)...)
		if err != nil {
			return fmt.Errorf("inserting %s %s: %w", a.t.name, b.UID, err)
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading %s id: %w", a.t.name, err)
		}
	case Update:
		res, err := a.update.exec(ctx, append(values, database.FormatTime(b.ModifiedAt), b.UID)...)
		if err != nil {
			return fmt.Errorf("updating %s %s: %w", a.t.name, b.UID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return notFound(a.t.name, b.UID)
		}
		if b.ID == 0 {
			if b.ID, err = a.ID(ctx, b.UID); err != nil {
				return err
			}
		}
	case Replace:
		if _, err := a.replace.exec(ctx, append(base, values...)...); err != nil {
			return fmt.Errorf("replacing %s %s: %w", a.t.name, b.UID, err)
		}
		if b.ID, err = a.ID(ctx, b.UID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("adding %s: unknown %s", a.t.name, method)
	}
	return nil
}

// Insert is Add with Insert.
func (a *Adapter[T]) Insert(ctx context.Context, m T) error { return a.Add(ctx, m, Insert) }

// Update is Add with Update.
func (a *Adapter[T]) Update(ctx context.Context, m T) error { return a.Add(ctx, m, Update) }

// Replace is Add with Replace.
func (a *Adapter[T]) Replace(ctx context.Context, m T) error { return a.Add(ctx, m, Replace) }

// BulkAdd writes all records in one transaction; either all are written or none.
func (a *Adapter[T]) BulkAdd(ctx context.Context, records []T, method UpdateMethod) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	err := a.inTx(ctx, func(ctx context.Context) error {
		for _, m := range records {
			if err := a.Add(ctx, m, method); err != nil {
				return err
			}
		}
		return nil
	})
	a.cache.Clear()
	if err != nil {
		return 0, fmt.Errorf("bulk %s into %s: %w", method, a.t.name, err)
	}
	a.log.Debug().Int("count", len(records)).Stringer("method", method).Msg("bulk add")
	return int64(len(records)), nil
}

func (a *Adapter[T]) selectSQL(q Query) string {
	cols := make([]string, 0, 4+len(a.t.columns)+len(a.t.extra))
	for _, c := range append([]string{"id", "uid", "created_at", "modified_at"}, a.t.columns...) {
		cols = append(cols, a.t.name+"."+c)
	}
	cols = append(cols, a.t.extra...)
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + a.t.name + a.t.join + q.whereClause() + q.tail()
}

func (a *Adapter[T]) read(ctx context.Context, q Query) ([]T, error) {
	rows, err := a.conn(ctx).QueryContext(ctx, a.selectSQL(q), q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", a.t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		m, err := a.t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", a.t.name, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// All returns the records matching q.
func (a *Adapter[T]) All(ctx context.Context, q Query) ([]T, error) {
	out, err := a.read(ctx, q)
	if err != nil {
		return nil, err
	}
	if a.t.resolve != nil && len(out) > 0 {
		if err := a.t.resolve(ctx, out); err != nil {
			return nil, fmt.Errorf("loading %s: %w", a.t.name, err)
		}
	}
	return out, nil
}

// First returns the first record matching q, or ErrNotFound.
func (a *Adapter[T]) First(ctx context.Context, q Query) (T, error) {
	var zero T
	out, err := a.All(ctx, q.Limit(1))
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, notFound(a.t.name, "record")
	}
	return out[0], nil
}

// Get returns the record with uid, or ErrNotFound.
func (a *Adapter[T]) Get(ctx context.Context, uid string) (T, error) {
	if m, ok := a.cache.Get(uid); ok {
		return m, nil
	}
	var zero T
	out, err := a.All(ctx, Where(a.t.name+".uid = ?", uid))
	if err != nil {
		return zero, err
	}
	if len(out) == 0 {
		return zero, notFound(a.t.name, uid)
	}
	a.cache.Put(uid, out[0])
	return out[0], nil
}

// Find is Get returning the zero value instead of ErrNotFound.
func (a *Adapter[T]) Find(ctx context.Context, uid string) (T, error) {
	m, err := a.Get(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		var zero T
		return zero, nil
	}
	return m, err
}

// Delete removes the record with uid and reports whether it existed.
func (a *Adapter[T]) Delete(ctx context.Context, uid string) (bool, error) {
	res, err := a.conn(ctx).ExecContext(ctx, "DELETE FROM "+a.t.name+" WHERE uid = ?", uid)
	if err != nil {
		return false, fmt.Errorf("deleting %s %s: %w", a.t.name, uid, err)
	}
	a.cache.Invalidate(uid)
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteWhere removes the rows matching q. q may only reference this table.
func (a *Adapter[T]) DeleteWhere(ctx context.Context, q Query) (int64, error) {
	res, err := a.conn(ctx).ExecContext(ctx, "DELETE FROM "+a.t.name+q.whereClause(), q.args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", a.t.name, err)
	}
	a.cache.Clear()
	return res.RowsAffected()
}

// ClearCache drops the record cache.
func (a *Adapter[T]) ClearCache() { a.cache.Clear() }

// DeleteAll empties the table.
func (a *Adapter[T]) DeleteAll(ctx context.Context) (int64, error) {
	return a.DeleteWhere(ctx, Query{})
}

// ID returns the row id of uid.
func (a *Adapter[T]) ID(ctx context.Context, uid string) (int64, error) {
	var rowID int64
	err := a.conn(ctx).QueryRowContext(ctx, "SELECT id FROM "+a.t.name+" WHERE uid = ?", uid).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound(a.t.name, uid)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up %s id: %w", a.t.name, err)
	}
	return rowID, nil
}

// UID returns the uid of row id.
func (a *Adapter[T]) UID(ctx context.Context, rowID int64) (string, error) {
	var uid string
	err := a.conn(ctx).QueryRowContext(ctx, "SELECT uid FROM "+a.t.name+" WHERE id = ?", rowID).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(a.t.name, fmt.Sprintf("id %d", rowID))
	}
	if err != nil {
		return "", fmt.Errorf("looking up %s uid: %w", a.t.name, err)
	}
	return uid, nil
}

// UpdateColumn sets one column of the record with uid.
func (a *Adapter[T]) UpdateColumn(ctx context.Context, uid, column string, value any) error {
	res, err := a.conn(ctx).ExecContext(ctx,
		"UPDATE "+a.t.name+" SET "+column+" = ? WHERE uid = ?", value, uid)
	if err != nil {
		return fmt.Errorf("updating %s.%s: %w", a.t.name, column, err)
	}
	a.cache.Invalidate(uid)
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return notFound(a.t.name, uid)
	}
	return nil
}

// UpdateAll sets column on every row matching q.
func (a *Adapter[T]) UpdateAll(ctx context.Context, column string, value any, q Query) (int64, error) {
	args := append([]any{value}, q.args...)
	res, err := a.conn(ctx).ExecContext(ctx,
		"UPDATE "+a.t.name+" SET "+column+" = ?"+q.whereClause(), args...)
	if err != nil {
		return 0, fmt.Errorf("updating %s.%s: %w", a.t.name, column, err)
	}
	a.cache.Clear()
	return res.RowsAffected()
}

// Attribute reads one column of the record with uid; NULL reads as "".
func (a *Adapter[T]) Attribute(ctx context.Context, uid, column string) (string, error) {
	var v sql.NullString
	err := a.conn(ctx).QueryRowContext(ctx,
		"SELECT "+column+" FROM "+a.t.name+" WHERE uid = ?", uid).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(a.t.name, uid)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s.%s: %w", a.t.name, column, err)
	}
	return v.String, nil
}

// Count returns the number of rows matching q.
func (a *Adapter[T]) Count(ctx context.Context, q Query) (int64, error) {
	return a.scalar(ctx, "SELECT COUNT(*) FROM "+a.t.name+a.t.join+q.whereClause(), q.args...)
}

// scalar runs a query returning one integer; NULL reads as 0.
func (a *Adapter[T]) scalar(ctx context.Context, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := a.conn(ctx).QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("querying %s: %w", a.t.name, err)
	}
	return n.Int64, nil
}

// texts runs a query returning one text column.
func (a *Adapter[T]) texts(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := a.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", a.t.name, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s.String)
	}
	return out, rows.Err()
}

// exec runs a statement on the carried transaction or the database.
func (a *Adapter[T]) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := a.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// baseRow scans the base columns.
type baseRow struct {
	created  database.Time
	modified database.Time
}

func (r *baseRow) targets(b *model.Base, rest ...any) []any {
	return append([]any{&b.ID, &b.UID, &r.created, &r.modified}, rest...)
}

func (r *baseRow) apply(b *model.Base) {
	b.CreatedAt = r.created.Time
	b.ModifiedAt = r.modified.Time
}
