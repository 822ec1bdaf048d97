package accounts

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/model"
)

func TestRoundTrip(t *testing.T) {
	usd := model.BuiltinCurrency("USD")
	checking := model.NewAccount("Checking", model.AccountTypeBank, usd)
	checking.FullName = "Assets:Checking"
	checking.Description = "Main account"
	checking.Color = "#1469EB"
	checking.Notes = "opened 2019"
	assets := model.NewAccount("Assets", model.AccountTypeAsset, usd)
	assets.Placeholder = true
	assets.Hidden = true

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, []*model.Account{assets, checking}))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, RowOf(assets), got[0])
	assert.Equal(t, RowOf(checking), got[1])
	assert.True(t, got[0].Placeholder)
	assert.True(t, got[0].Hidden)
	assert.False(t, got[0].Tax)
	assert.Equal(t, "USD", got[1].Mnemonic)
	assert.Equal(t, model.NamespaceCurrency, got[1].Namespace)
}

func TestWriteAccounts_Layout(t *testing.T) {
	usd := model.BuiltinCurrency("USD")
	root := model.NewAccount(model.RootAccountName, model.AccountTypeRoot, usd)
	tmpl := model.NewAccount(model.TemplateAccountName, model.AccountTypeRoot, usd)
	tmpl.Template = true
	cash := model.NewAccount("Cash", model.AccountTypeCash, usd)

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, []*model.Account{root, tmpl, cash}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "type,full_name,name,code,description,color,notes,commoditym,commodityn,hidden,tax,place_holder", lines[0])
	assert.Equal(t, "CASH,Cash,Cash,,,,,USD,CURRENCY,F,F,F", lines[1])
}

func TestUnmarshalRow_Errors(t *testing.T) {
	valid := []string{"BANK", "Assets:Bank", "Bank", "", "", "", "", "USD", "CURRENCY", "F", "F", "F"}
	with := func(col int, v string) []string {
		rec := append([]string(nil), valid...)
		rec[col] = v
		return rec
	}

	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{"short record", valid[:5], "expected 12 fields"},
		{"unknown type", with(colType, "PIGGYBANK"), "unknown account type"},
		{"empty full name", with(colFullName, " : "), "empty full_name"},
		{"bad hidden flag", with(colHidden, "yes"), "parsing hidden"},
		{"bad placeholder flag", with(colPlaceholder, "1"), "parsing place_holder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRow(tt.record)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	row, err := UnmarshalRow(valid)
	require.NoError(t, err)
	assert.Equal(t, model.AccountTypeBank, row.Type)
	assert.Equal(t, 2, row.Depth())
}

func TestUnmarshalRow_NameFromFullName(t *testing.T) {
	row, err := UnmarshalRow([]string{"expense", "Expenses:Dining", "", "", "", "", "", "", "", "", "", "t"})
	require.NoError(t, err)
	assert.Equal(t, "Dining", row.Name)
	assert.Equal(t, model.AccountTypeExpense, row.Type)
	assert.True(t, row.Placeholder)
	assert.False(t, row.Hidden)
}

func TestReadAccounts_FieldCount(t *testing.T) {
	_, err := ReadAccounts(strings.NewReader("type,full_name\nBANK,Bank\n"))
	assert.Error(t, err)

	rows, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadTestdata(t *testing.T) {
	f, err := os.Open("testdata/accounts.csv")
	require.NoError(t, err)
	defer f.Close()

	rows, err := ReadAccounts(f)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "Trips, flights and hotels", rows[3].Description)
	assert.Equal(t, "ISO4217", rows[3].Namespace)
	assert.True(t, rows[0].Placeholder)
	assert.True(t, rows[4].Hidden)
	assert.Equal(t, "#1469EB", rows[1].Color)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart()
	require.NotEmpty(t, chart)

	seen := make(map[string]bool)
	for _, row := range chart {
		tokens := model.SplitFullName(row.FullName)
		require.NotEmpty(t, tokens)
		if len(tokens) > 1 {
			parent := strings.Join(tokens[:len(tokens)-1], model.AccountNameSeparator)
			assert.True(t, seen[parent], "%s listed before its parent", row.FullName)
		}
		assert.NotEmpty(t, row.Type, "%s has no type", row.FullName)
		seen[row.FullName] = true
	}
	assert.True(t, seen[model.OpeningBalancesFullName])
}
