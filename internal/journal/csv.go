package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Header is the CSV header of a transactions file: one row per split.
const Header = "date,transaction_id,number,description,notes,commodity,memo,full_account_name,account_name,amount,value,reconcile,reconcile_date"

const (
	numFields        = 13
	dateFormat       = "2006-01-02"
	colDate          = 0
	colTxID          = 1
	colNumber        = 2
	colDesc          = 3
	colNotes         = 4
	colCommodity     = 5
	colMemo          = 6
	colFullName      = 7
	colAccountName   = 8
	colAmount        = 9
	colValue         = 10
	colReconcile     = 11
	colReconcileDate = 12
)

// Line is one split of a transaction as written to CSV. Amount is the signed
// quantity in the account's commodity, Value the signed value in the
// transaction's commodity.
type Line struct {
	Date            time.Time
	TransactionUID  string
	Number          string
	Description     string
	Notes           string
	Commodity       string
	Memo            string
	AccountFullName string
	AccountName     string
	Amount          decimal.Decimal
	Value           decimal.Decimal
	Reconcile       string
	ReconcileDate   time.Time
}

// ReadLines reads all lines from a transactions CSV reader.
func ReadLines(r io.Reader) ([]Line, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var lines []Line
	for i, rec := range records[1:] {
		line, err := UnmarshalLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// WriteLines writes lines to w, header first.
func WriteLines(w io.Writer, lines []Line) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, line := range lines {
		if err := cw.Write(MarshalLine(line)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts a Line to a CSV row.
func MarshalLine(line Line) []string {
	row := make([]string, numFields)
	row[colDate] = line.Date.Format(dateFormat)
	row[colTxID] = line.TransactionUID
	row[colNumber] = line.Number
	row[colDesc] = line.Description
	row[colNotes] = line.Notes
	row[colCommodity] = line.Commodity
	row[colMemo] = line.Memo
	row[colFullName] = line.AccountFullName
	row[colAccountName] = line.AccountName
	row[colAmount] = line.Amount.String()
	row[colValue] = line.Value.String()
	row[colReconcile] = line.Reconcile
	if !line.ReconcileDate.IsZero() {
		row[colReconcileDate] = line.ReconcileDate.Format(dateFormat)
	}
	return row
}

// UnmarshalLine converts a CSV row to a Line.
func UnmarshalLine(record []string) (Line, error) {
	if len(record) != numFields {
		return Line{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Line{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return Line{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}
	value, err := decimal.NewFromString(record[colValue])
	if err != nil {
		return Line{}, fmt.Errorf("parsing value %q: %w", record[colValue], err)
	}

	var reconciled time.Time
	if record[colReconcileDate] != "" {
		reconciled, err = time.Parse(dateFormat, record[colReconcileDate])
		if err != nil {
			return Line{}, fmt.Errorf("parsing reconcile_date %q: %w", record[colReconcileDate], err)
		}
	}

	return Line{
		Date:            date,
		TransactionUID:  record[colTxID],
		Number:          record[colNumber],
		Description:     record[colDesc],
		Notes:           record[colNotes],
		Commodity:       record[colCommodity],
		Memo:            record[colMemo],
		AccountFullName: record[colFullName],
		AccountName:     record[colAccountName],
		Amount:          amount,
		Value:           value,
		Reconcile:       record[colReconcile],
		ReconcileDate:   reconciled,
	}, nil
}
