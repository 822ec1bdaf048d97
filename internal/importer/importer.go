// Package importer turns bank statement CSV files into transactions.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// StatementLine is one row of a bank statement. A positive Amount is money
// coming into the account.
type StatementLine struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Reference   string
	Type        string
	Memo        string
}

// Parser converts a bank CSV file into StatementLines.
type Parser interface {
	Parse(r io.Reader) ([]StatementLine, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&SimpleParser{})
	return r
}

// ImportDir is the inbox subdirectory of the data directory.
const ImportDir = "import"

// processedDir is where imported files are moved.
const processedDir = "processed"

// Scan returns the CSV files waiting in <dataDir>/import/.
func Scan(dataDir string) ([]FileInfo, error) {
	dir := filepath.Join(dataDir, ImportDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(dataDir, fileName string) error {
	src := filepath.Join(dataDir, ImportDir, fileName)
	dstDir := filepath.Join(dataDir, ImportDir, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

// Result counts what an import did.
type Result struct {
	Added   int
	Skipped int
}

// Importer books statement lines into a book.
type Importer struct {
	l   *ledger.Ledger
	log zerolog.Logger
}

// New creates an Importer for an open book.
func New(l *ledger.Ledger, log zerolog.Logger) *Importer {
	return &Importer{l: l, log: log}
}

// Import books each line as a transaction with one split on the account
// named fullName. The other side goes to the imbalance account of the
// account's commodity until it is categorised. Lines whose reference was
// already imported into the account, and zero amounts, are skipped. Either
// every transaction is saved or none.
func (im *Importer) Import(ctx context.Context, fullName string, lines []StatementLine) (Result, error) {
	var res Result
	acc, err := im.l.Accounts.ByFullName(ctx, fullName)
	if err != nil {
		return res, err
	}

	err = im.l.InTx(ctx, func(ctx context.Context) error {
		imbalance, err := im.l.Accounts.OrCreateImbalanceAccountUID(ctx, acc.Commodity)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		var txs []*model.Transaction
		for _, line := range lines {
			if line.Amount.IsZero() {
				res.Skipped++
				continue
			}
			if line.Reference != "" {
				dup := seen[line.Reference]
				if !dup {
					if dup, err = im.imported(ctx, acc.UID, line.Reference); err != nil {
						return err
					}
				}
				if dup {
					im.log.Debug().Str("reference", line.Reference).Msg("skipping imported line")
					res.Skipped++
					continue
				}
				seen[line.Reference] = true
			}

			tx := model.NewTransaction(line.Description, acc.Commodity)
			tx.Timestamp = line.Date.UTC()
			tx.Number = line.Reference
			split := model.NewSplit(model.NewMoney(line.Amount, acc.Commodity), acc.UID)
			split.Memo = line.Memo
			tx.AddSplit(split)
			tx.CreateAutoBalanceSplit().AccountUID = imbalance
			txs = append(txs, tx)
		}
		if len(txs) == 0 {
			return nil
		}
		if _, err := im.l.Transactions.BulkAdd(ctx, txs, store.Insert); err != nil {
			return fmt.Errorf("saving imported transactions: %w", err)
		}
		res.Added = len(txs)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	im.log.Info().Str("account", fullName).Int("added", res.Added).Int("skipped", res.Skipped).Msg("statement imported")
	return res, nil
}

// ImportFile parses path with p and imports it into fullName.
func (im *Importer) ImportFile(ctx context.Context, p Parser, fullName, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	lines, err := p.Parse(f)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return im.Import(ctx, fullName, lines)
}

func (im *Importer) imported(ctx context.Context, accountUID, reference string) (bool, error) {
	n, err := im.l.Transactions.Count(ctx, store.Where("transactions.number = ?", reference).
		And("transactions.uid IN (SELECT transaction_uid FROM splits WHERE account_uid = ?)", accountUID))
	return n > 0, err
}
