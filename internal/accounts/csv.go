package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cleared-dev/gnuledger/internal/model"
)

const (
	numFields      = 12
	colType        = 0
	colFullName    = 1
	colName        = 2
	colCode        = 3
	colDesc        = 4
	colColor       = 5
	colNotes       = 6
	colMnemonic    = 7
	colNamespace   = 8
	colHidden      = 9
	colTax         = 10
	colPlaceholder = 11
)

var header = []string{
	"type", "full_name", "name", "code", "description", "color", "notes",
	"commoditym", "commodityn", "hidden", "tax", "place_holder",
}

// Row is one account line of a GnuCash accounts CSV.
type Row struct {
	Type        model.AccountType
	FullName    string
	Name        string
	Code        string
	Description string
	Color       string
	Notes       string
	Mnemonic    string
	Namespace   string
	Hidden      bool
	Tax         bool
	Placeholder bool
}

// Depth is the number of segments in the row's full name.
func (r Row) Depth() int { return len(model.SplitFullName(r.FullName)) }

// ReadAccounts reads an accounts CSV. The first line is the header.
func ReadAccounts(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteAccounts writes accounts in GnuCash's CSV layout. ROOT and template
// accounts are skipped.
func WriteAccounts(w io.Writer, accounts []*model.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	line := 2
	for _, acc := range accounts {
		if acc.IsRoot() || acc.Template {
			continue
		}
		if err := cw.Write(MarshalRow(RowOf(acc))); err != nil {
			return fmt.Errorf("writing row %d: %w", line, err)
		}
		line++
	}
	cw.Flush()
	return cw.Error()
}

// RowOf describes an account as a CSV row.
func RowOf(acc *model.Account) Row {
	row := Row{
		Type:        acc.Type,
		FullName:    acc.FullName,
		Name:        acc.Name,
		Description: acc.Description,
		Color:       acc.Color,
		Notes:       acc.Notes,
		Hidden:      acc.Hidden,
		Placeholder: acc.Placeholder,
	}
	if acc.Commodity != nil {
		row.Mnemonic = acc.Commodity.Mnemonic
		row.Namespace = acc.Commodity.Namespace
	}
	return row
}

// MarshalRow converts a Row to CSV fields.
func MarshalRow(row Row) []string {
	rec := make([]string, numFields)
	rec[colType] = string(row.Type)
	rec[colFullName] = row.FullName
	rec[colName] = row.Name
	rec[colCode] = row.Code
	rec[colDesc] = row.Description
	rec[colColor] = row.Color
	rec[colNotes] = row.Notes
	rec[colMnemonic] = row.Mnemonic
	rec[colNamespace] = row.Namespace
	rec[colHidden] = flag(row.Hidden)
	rec[colTax] = flag(row.Tax)
	rec[colPlaceholder] = flag(row.Placeholder)
	return rec
}

// UnmarshalRow converts CSV fields to a Row.
func UnmarshalRow(record []string) (Row, error) {
	if len(record) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	t, err := model.ParseAccountType(record[colType])
	if err != nil {
		return Row{}, err
	}
	if len(model.SplitFullName(record[colFullName])) == 0 {
		return Row{}, fmt.Errorf("empty full_name")
	}

	row := Row{
		Type:        t,
		FullName:    record[colFullName],
		Name:        record[colName],
		Code:        record[colCode],
		Description: record[colDesc],
		Color:       record[colColor],
		Notes:       record[colNotes],
		Mnemonic:    record[colMnemonic],
		Namespace:   record[colNamespace],
	}
	if row.Hidden, err = parseFlag("hidden", record[colHidden]); err != nil {
		return Row{}, err
	}
	if row.Tax, err = parseFlag("tax", record[colTax]); err != nil {
		return Row{}, err
	}
	if row.Placeholder, err = parseFlag("place_holder", record[colPlaceholder]); err != nil {
		return Row{}, err
	}
	if row.Name == "" {
		tokens := model.SplitFullName(row.FullName)
		row.Name = tokens[len(tokens)-1]
	}
	return row, nil
}

func flag(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

func parseFlag(col, s string) (bool, error) {
	switch s {
	case "T", "t", "":
		return s != "", nil
	case "F", "f":
		return false, nil
	default:
		return false, fmt.Errorf("parsing %s %q: want T or F", col, s)
	}
}
