package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// layout describes a statement CSV by its header. Column names are matched
// case-insensitively; optional columns may be missing or left empty.
type layout struct {
	name       string
	dateFormat string

	date, description, amount string
	reference, kind, memo     string

	// ref builds the reference of a line read without one.
	ref func(line StatementLine, rec record) string
}

// record is one data row with the header positions of its layout.
type record struct {
	cols   map[string]int
	fields []string
}

func (r record) get(column string) string {
	if column == "" {
		return ""
	}
	if i, ok := r.cols[strings.ToLower(column)]; ok && i < len(r.fields) {
		return strings.TrimSpace(r.fields[i])
	}
	return ""
}

func (l layout) parse(r io.Reader) ([]StatementLine, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s CSV: %w", l.name, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{l.date, l.description, l.amount} {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("%s CSV: missing %q column", l.name, required)
		}
	}

	lines := make([]StatementLine, 0, len(rows)-1)
	for i, fields := range rows[1:] {
		line, err := l.line(record{cols: cols, fields: fields})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (l layout) line(rec record) (StatementLine, error) {
	raw := rec.get(l.date)
	date, err := time.Parse(l.dateFormat, raw)
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing date %q: %w", raw, err)
	}
	raw = rec.get(l.amount)
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return StatementLine{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}

	line := StatementLine{
		Date:        date,
		Description: rec.get(l.description),
		Amount:      amount,
		Reference:   rec.get(l.reference),
		Type:        rec.get(l.kind),
		Memo:        rec.get(l.memo),
	}
	if line.Reference == "" && l.ref != nil {
		line.Reference = l.ref(line, rec)
	}
	return line, nil
}
