package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the export log.
type Entry struct {
	Timestamp    time.Time
	Book         string
	File         string
	Since        time.Time
	Transactions int
	Lines        int
}

// Header is the CSV header for export-log.csv.
const Header = "timestamp,book,file,since,transactions,lines"

// LogFile is the export log's name inside its directory.
const LogFile = "export-log.csv"

const (
	numFields       = 6
	colTimestamp    = 0
	colBook         = 1
	colFile         = 2
	colSince        = 3
	colTransactions = 4
	colLines        = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colBook] = e.Book
	row[colFile] = e.File
	if !e.Since.IsZero() {
		row[colSince] = e.Since.Format(time.RFC3339)
	}
	row[colTransactions] = strconv.Itoa(e.Transactions)
	row[colLines] = strconv.Itoa(e.Lines)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	var since time.Time
	if record[colSince] != "" {
		if since, err = time.Parse(time.RFC3339, record[colSince]); err != nil {
			return Entry{}, fmt.Errorf("parsing since %q: %w", record[colSince], err)
		}
	}
	txs, err := strconv.Atoi(record[colTransactions])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing transactions %q: %w", record[colTransactions], err)
	}
	lines, err := strconv.Atoi(record[colLines])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing lines %q: %w", record[colLines], err)
	}

	return Entry{
		Timestamp:    ts,
		Book:         record[colBook],
		File:         record[colFile],
		Since:        since,
		Transactions: txs,
		Lines:        lines,
	}, nil
}

// Append writes entries to <dir>/export-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	path := filepath.Join(dir, LogFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening export log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/export-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	path := filepath.Join(dir, LogFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening export log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading export log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
