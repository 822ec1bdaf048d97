// Package export writes the transactions changed since the previous export
// to CSV and keeps a history of export runs.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/gnuledger/internal/journal"
	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// TimePrefs stores the time of the last export. *prefs.Prefs satisfies it.
type TimePrefs interface {
	GetTime(key string) time.Time
	SetTime(key string, t time.Time) error
}

// Result describes one export run.
type Result struct {
	Since        time.Time
	At           time.Time
	Transactions int
	Lines        int
}

// Exporter exports the transactions of one book.
type Exporter struct {
	l     *ledger.Ledger
	prefs TimePrefs
	log   zerolog.Logger
	now   func() time.Time
}

// New creates an Exporter. The last export time is read from and written
// to p.
func New(l *ledger.Ledger, p TimePrefs, log zerolog.Logger) *Exporter {
	return &Exporter{l: l, prefs: p, log: log, now: time.Now}
}

// Export writes, one line per split, every transaction not yet exported
// and modified since the last export. The transactions are then flagged as
// exported and the last export time moves to now.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (Result, error) {
	res := Result{
		Since: e.prefs.GetTime(store.PrefLastExportTime),
		At:    e.now().UTC(),
	}

	txs, err := e.l.Transactions.ToExportSince(ctx, res.Since)
	if err != nil {
		return res, fmt.Errorf("loading transactions to export: %w", err)
	}
	lines, err := journal.NewService(e.l).Lines(ctx, txs)
	if err != nil {
		return res, err
	}
	if err := journal.WriteLines(w, lines); err != nil {
		return res, fmt.Errorf("writing export: %w", err)
	}

	if _, err := e.l.Transactions.MarkExported(ctx, res.Since); err != nil {
		return res, fmt.Errorf("marking transactions exported: %w", err)
	}
	if err := e.prefs.SetTime(store.PrefLastExportTime, res.At); err != nil {
		return res, err
	}

	res.Transactions, res.Lines = len(txs), len(lines)
	e.log.Info().Time("since", res.Since).Int("transactions", res.Transactions).Msg("transactions exported")
	return res, nil
}

// ExportFile exports to path and records the run in the export log of
// logDir, when logDir is not empty.
func (e *Exporter) ExportFile(ctx context.Context, path, logDir string) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return Result{}, fmt.Errorf("creating export file: %w", err)
	}
	res, err := e.Export(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing export file: %w", cerr)
	}
	if err != nil {
		return res, err
	}

	if logDir != "" {
		entry := Entry{
			Timestamp:    res.At,
			Book:         e.l.UID,
			File:         path,
			Since:        res.Since,
			Transactions: res.Transactions,
			Lines:        res.Lines,
		}
		if err := Append(logDir, []Entry{entry}); err != nil {
			return res, err
		}
	}
	return res, nil
}
