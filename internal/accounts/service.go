package accounts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

// Service moves account trees between a book and CSV files.
type Service struct {
	l *ledger.Ledger
}

// NewService creates a Service over an open book.
func NewService(l *ledger.Ledger) *Service {
	return &Service{l: l}
}

// Export writes every account of the book, ordered by full name.
func (s *Service) Export(ctx context.Context, w io.Writer) (int, error) {
	accs, err := s.l.Accounts.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing accounts: %w", err)
	}
	if err := WriteAccounts(w, accs); err != nil {
		return 0, fmt.Errorf("writing accounts: %w", err)
	}
	return len(accs), nil
}

// Save exports the accounts to path.
func (s *Service) Save(ctx context.Context, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("creating export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()
	return s.Export(ctx, f)
}

// Load imports the accounts CSV at path.
func (s *Service) Load(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening accounts file: %w", err)
	}
	defer f.Close()

	rows, err := ReadAccounts(f)
	if err != nil {
		return 0, err
	}
	return s.Import(ctx, rows)
}

// Import creates the accounts described by rows and returns how many were
// added. Accounts whose full name already exists are left alone; missing
// parents are created with the child's type. Nothing is saved on error.
func (s *Service) Import(ctx context.Context, rows []Row) (int, error) {
	rows = append([]Row(nil), rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Depth() < rows[j].Depth() })

	added := 0
	err := s.l.InTx(ctx, func(ctx context.Context) error {
		b := batch{l: s.l, uids: make(map[string]string)}
		for _, row := range rows {
			acc, err := b.account(ctx, row)
			if err != nil {
				return fmt.Errorf("importing %q: %w", row.FullName, err)
			}
			if acc != nil {
				b.pending = append(b.pending, acc)
				b.uids[acc.FullName] = acc.UID
				added++
			}
		}
		return b.flush(ctx)
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// SeedDefaultChart adds the accounts of DefaultChart that the book lacks.
func (s *Service) SeedDefaultChart(ctx context.Context) (int, error) {
	c, err := s.l.Commodities.DefaultCommodity(ctx)
	if err != nil {
		return 0, err
	}
	rows := DefaultChart()
	for i := range rows {
		rows[i].Mnemonic = c.Mnemonic
		rows[i].Namespace = c.Namespace
	}
	return s.Import(ctx, rows)
}

// Move re-parents the account fullName under newParent (the root when empty)
// and returns its new full name. Descendants follow.
func (s *Service) Move(ctx context.Context, fullName, newParent string) (string, error) {
	stored, err := s.l.Accounts.ByFullName(ctx, fullName)
	if err != nil {
		return "", err
	}
	// stored may be the cached record; it must keep its parent if the move fails.
	moving := *stored
	acc := &moving

	var moved string
	err = s.l.InTx(ctx, func(ctx context.Context) error {
		parent, err := s.l.Accounts.RootAccountUID(ctx)
		if err != nil {
			return err
		}
		if newParent != "" {
			if parent, err = s.l.Accounts.UIDByFullName(ctx, newParent); err != nil {
				return err
			}
			if parent == "" {
				return fmt.Errorf("parent %s: %w", newParent, store.ErrNotFound)
			}
		}

		descendants, err := s.l.Accounts.Descendants(ctx, acc.UID)
		if err != nil {
			return err
		}
		if parent == acc.UID {
			return fmt.Errorf("cannot move %s under itself", fullName)
		}
		for _, d := range descendants {
			if d.UID == parent {
				return fmt.Errorf("cannot move %s under its descendant %s", fullName, d.FullName)
			}
		}

		acc.ParentUID = parent
		if err := s.l.Accounts.Add(ctx, acc, store.Update); err != nil {
			return err
		}
		// Full names are rebuilt from the parent chain on every update.
		for _, d := range descendants {
			if err := s.l.Accounts.Add(ctx, d, store.Update); err != nil {
				return err
			}
		}
		moved = acc.FullName
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("moving %s: %w", fullName, err)
	}
	return moved, nil
}

// batch collects new accounts so they are inserted with one BulkAdd.
type batch struct {
	l       *ledger.Ledger
	pending []*model.Account
	uids    map[string]string // full name -> uid, pending or stored
}

func (b *batch) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if _, err := b.l.Accounts.BulkAdd(ctx, b.pending, store.Insert); err != nil {
		return err
	}
	b.pending = nil
	return nil
}

func (b *batch) lookup(ctx context.Context, fullName string) (string, error) {
	if uid, ok := b.uids[fullName]; ok {
		return uid, nil
	}
	uid, err := b.l.Accounts.UIDByFullName(ctx, fullName)
	if err != nil {
		return "", err
	}
	if uid != "" {
		b.uids[fullName] = uid
	}
	return uid, nil
}

// account builds the account for row, or returns nil when it exists.
func (b *batch) account(ctx context.Context, row Row) (*model.Account, error) {
	tokens := model.SplitFullName(row.FullName)
	fullName := tokens[0]
	for _, t := range tokens[1:] {
		fullName = model.JoinFullName(fullName, t)
	}
	existing, err := b.lookup(ctx, fullName)
	if err != nil || existing != "" {
		return nil, err
	}

	var parentUID string
	if len(tokens) == 1 {
		parentUID, err = b.l.Accounts.RootAccountUID(ctx)
	} else {
		parentName := fullName[:len(fullName)-len(tokens[len(tokens)-1])-len(model.AccountNameSeparator)]
		parentUID, err = b.lookup(ctx, parentName)
		if err == nil && parentUID == "" {
			// Intermediate accounts may hang below pending ones.
			if err = b.flush(ctx); err == nil {
				parentUID, err = b.l.Accounts.CreateAccountHierarchy(ctx, parentName, row.Type)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	c, err := b.commodity(ctx, row)
	if err != nil {
		return nil, err
	}
	acc := model.NewAccount(tokens[len(tokens)-1], row.Type, c)
	acc.FullName = fullName
	acc.ParentUID = parentUID
	acc.Description = row.Description
	acc.Color = row.Color
	acc.Notes = row.Notes
	acc.Hidden = row.Hidden
	acc.Placeholder = row.Placeholder
	return acc, nil
}

func (b *batch) commodity(ctx context.Context, row Row) (*model.Commodity, error) {
	if row.Mnemonic == "" {
		return b.l.Commodities.DefaultCommodity(ctx)
	}
	ns := row.Namespace
	if ns == "" {
		ns = model.NamespaceCurrency
	}
	return b.l.Commodities.Commodity(ctx, row.Mnemonic, ns)
}
