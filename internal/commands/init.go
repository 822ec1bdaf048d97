package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/accounts"
	"github.com/cleared-dev/gnuledger/internal/config"
	"github.com/cleared-dev/gnuledger/internal/importer"
	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/store"
)

func newInitCommand(a *app) *cobra.Command {
	var name string
	var noChart bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory with a first book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), a, cmd.OutOrStdout(), name, !noChart)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name of the first book")
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "do not create the default accounts")

	return cmd
}

func runInit(ctx context.Context, a *app, out io.Writer, name string, chart bool) error {
	dir, err := filepath.Abs(a.cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	a.cfg.Data.Dir = dir

	// Create directory structure.
	dirs := []string{
		"logs",
		"exports",
		importer.ImportDir,
		filepath.Join(importer.ImportDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write gnuledger.yaml unless one exists.
	if _, err := os.Stat(a.configPath); errors.Is(err, os.ErrNotExist) {
		cfg := *a.cfg
		cfg.Transactions.ExportDir = filepath.Join(dir, "exports")
		if err := config.Save(a.configPath, &cfg); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	}

	m, err := a.manager()
	if err != nil {
		return err
	}
	defer m.Close()

	books, err := m.List(ctx)
	if err != nil {
		return err
	}
	if len(books) > 0 {
		return fmt.Errorf("%s already holds %d book(s)", dir, len(books))
	}

	book, err := m.CreateBook(ctx, name)
	if err != nil {
		return err
	}
	l, err := m.OpenBook(ctx, book.UID)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := configureBook(ctx, a, l); err != nil {
		return err
	}
	n := 0
	if chart {
		if n, err = accounts.NewService(l).SeedDefaultChart(ctx); err != nil {
			return fmt.Errorf("creating default accounts: %w", err)
		}
	}

	fmt.Fprintf(out, "Initialized %s with book %q (%s, %d accounts)\n", dir, book.DisplayName, book.UID, n)
	return nil
}

// configureBook stores the configured defaults in a new book's preferences.
func configureBook(ctx context.Context, a *app, l *ledger.Ledger) error {
	if err := l.Prefs.Set(store.PrefUseDoubleEntry, a.cfg.Transactions.DoubleEntry); err != nil {
		return err
	}
	return l.Commodities.SetDefaultCurrencyCode(ctx, a.cfg.Currency)
}
