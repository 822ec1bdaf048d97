package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/gnuledger/internal/commands"
	"github.com/cleared-dev/gnuledger/internal/config"
)

const checking = "Assets:Current Assets:Checking Account"

func runGnuledger(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--home", home, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func initHome(t *testing.T, args ...string) string {
	t.Helper()
	home := t.TempDir()
	_, err := runGnuledger(t, home, append([]string{"init"}, args...)...)
	require.NoError(t, err)
	return home
}

func TestInit_CreatesStructure(t *testing.T) {
	home := t.TempDir()
	out, err := runGnuledger(t, home, "init", "--name", "Household")
	require.NoError(t, err)
	assert.Contains(t, out, `book "Household"`)
	assert.Contains(t, out, "19 accounts")

	for _, d := range []string{"logs", "exports", "import", filepath.Join("import", "processed")} {
		assert.DirExists(t, filepath.Join(home, d))
	}
	assert.FileExists(t, filepath.Join(home, "books.db"))

	cfg, err := config.Load(filepath.Join(home, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, home, cfg.Data.Dir)
	assert.Equal(t, filepath.Join(home, "exports"), cfg.Transactions.ExportDir)

	out, err = runGnuledger(t, home, "book", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Household")
	assert.Contains(t, out, "*")
}

func TestInit_RefusesSecondTime(t *testing.T) {
	home := initHome(t)
	_, err := runGnuledger(t, home, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already holds")
}

func TestBook_CreateUseDelete(t *testing.T) {
	home := initHome(t, "--no-chart")

	out, err := runGnuledger(t, home, "book", "create", "Business", "--no-chart")
	require.NoError(t, err)
	assert.Contains(t, out, `Created book "Business"`)

	out, err = runGnuledger(t, home, "book", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Book 1")
	assert.Contains(t, out, "Business")

	_, err = runGnuledger(t, home, "book", "use", "no-such-book")
	assert.Error(t, err)
	_, err = runGnuledger(t, home, "book", "delete", "no-such-book")
	assert.Error(t, err)
}

func TestAccount_AddAndList(t *testing.T) {
	home := initHome(t, "--no-chart")

	out, err := runGnuledger(t, home, "account", "add", "Expenses:Travel:Flights", "--type", "expense")
	require.NoError(t, err)
	assert.Contains(t, out, "Added Expenses:Travel:Flights")

	_, err = runGnuledger(t, home, "account", "add", "Expenses:Travel:Flights", "--type", "expense")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runGnuledger(t, home, "account", "add", "Expenses:Oddities", "--type", "nonsense")
	assert.Error(t, err)

	out, err = runGnuledger(t, home, "account", "list")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^Expenses:Travel\s+EXPENSE`, out)
	assert.Contains(t, out, "Expenses:Travel:Flights")
	assert.Contains(t, out, "EXPENSE")
}

func TestAccount_MoveAndDelete(t *testing.T) {
	home := initHome(t)

	out, err := runGnuledger(t, home, "account", "move", "Expenses:Housing", "Liabilities")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved Expenses:Housing to Liabilities:Housing")

	out, err = runGnuledger(t, home, "account", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Liabilities:Housing:Rent")
	assert.NotContains(t, out, "Expenses:Housing")

	_, err = runGnuledger(t, home, "account", "delete", "Liabilities:Housing", "--recursive")
	require.NoError(t, err)
	out, err = runGnuledger(t, home, "account", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Housing")

	_, err = runGnuledger(t, home, "account", "delete", "Liabilities:Housing")
	assert.Error(t, err)
}

func TestAccount_ExportImport(t *testing.T) {
	home := initHome(t)
	path := filepath.Join(t.TempDir(), "accounts.csv")
	_, err := runGnuledger(t, home, "account", "export", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	other := initHome(t, "--no-chart")
	out, err := runGnuledger(t, other, "account", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 19 accounts")

	out, err = runGnuledger(t, other, "account", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 accounts")
}

func TestTx_AddAndBalance(t *testing.T) {
	home := initHome(t)

	out, err := runGnuledger(t, home, "tx", "add", "--desc", "June rent", "--amount", "1200",
		"--from", checking, "--to", "Expenses:Housing:Rent", "--date", "2025-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-06-01")
	assert.Contains(t, out, "1200.00 USD")

	out, err = runGnuledger(t, home, "account", "balance", checking)
	require.NoError(t, err)
	assert.Contains(t, out, "-1200.00 USD")

	out, err = runGnuledger(t, home, "account", "balance", "Expenses")
	require.NoError(t, err)
	assert.Contains(t, out, "1200.00 USD")

	out, err = runGnuledger(t, home, "account", "balance", "Expenses", "--no-sub")
	require.NoError(t, err)
	assert.Contains(t, out, "\t0.00 USD")

	out, err = runGnuledger(t, home, "account", "balance", checking, "--to", "2025-05-31")
	require.NoError(t, err)
	assert.Contains(t, out, "\t0.00 USD")

	out, err = runGnuledger(t, home, "account", "balance", checking, "--from", "2025-06-01", "--to", "2025-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "-1200.00 USD")

	out, err = runGnuledger(t, home, "tx", "list", "--account", "Expenses:Housing:Rent")
	require.NoError(t, err)
	assert.Contains(t, out, "June rent")
	assert.Contains(t, out, checking)
}

func TestTx_AddRejectsBadInput(t *testing.T) {
	home := initHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"negative amount", []string{"--amount", "-5", "--from", checking, "--to", "Expenses:Dining"}},
		{"bad amount", []string{"--amount", "five", "--from", checking, "--to", "Expenses:Dining"}},
		{"placeholder account", []string{"--amount", "5", "--from", checking, "--to", "Expenses"}},
		{"unknown account", []string{"--amount", "5", "--from", checking, "--to", "Expenses:Nope"}},
		{"bad date", []string{"--amount", "5", "--from", checking, "--to", "Expenses:Dining", "--date", "01/06/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"tx", "add", "--desc", "x"}, tt.args...)
			_, err := runGnuledger(t, home, args...)
			assert.Error(t, err)
		})
	}
}

func TestPrice_AddGet(t *testing.T) {
	home := initHome(t, "--no-chart")

	_, err := runGnuledger(t, home, "price", "get", "EUR", "USD")
	require.Error(t, err)

	out, err := runGnuledger(t, home, "price", "add", "eur", "usd", "1.25")
	require.NoError(t, err)
	assert.Contains(t, out, "1 EUR = 1.25 USD")

	out, err = runGnuledger(t, home, "price", "get", "USD", "EUR")
	require.NoError(t, err)
	assert.Contains(t, out, "1 USD = 0.8 EUR")

	_, err = runGnuledger(t, home, "price", "add", "EUR", "USD", "0")
	assert.Error(t, err)
}

func TestImport_Inbox(t *testing.T) {
	home := initHome(t)
	data, err := os.ReadFile(filepath.Join("..", "importer", "testdata", "simple.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(home, "import", "feb.csv"), data, 0o644))

	out, err := runGnuledger(t, home, "import", "--account", checking)
	require.NoError(t, err)
	assert.Contains(t, out, "feb.csv: 3 added, 0 skipped")
	assert.FileExists(t, filepath.Join(home, "import", "processed", "feb.csv"))
	assert.NoFileExists(t, filepath.Join(home, "import", "feb.csv"))

	out, err = runGnuledger(t, home, "account", "balance", checking)
	require.NoError(t, err)
	assert.Contains(t, out, "2746.25 USD")

	out, err = runGnuledger(t, home, "import", "--account", checking)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to import")

	_, err = runGnuledger(t, home, "import", "--account", checking, "--format", "qif")
	assert.Error(t, err)
}

func TestExport_OnlyOnce(t *testing.T) {
	home := initHome(t)
	_, err := runGnuledger(t, home, "tx", "add", "--desc", "Lunch", "--amount", "12.50",
		"--from", checking, "--to", "Expenses:Dining")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	out, err := runGnuledger(t, home, "export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 1 transactions (2 lines)")
	assert.FileExists(t, path)

	out, err = runGnuledger(t, home, "export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "date,transaction_id")
	assert.NotContains(t, out, "Lunch")

	out, err = runGnuledger(t, home, "export", "history")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}
