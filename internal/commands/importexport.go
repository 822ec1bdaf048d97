package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/export"
	"github.com/cleared-dev/gnuledger/internal/importer"
	"github.com/cleared-dev/gnuledger/internal/ledger"
)

func newImportCommand(a *app) *cobra.Command {
	var account, format string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a bank statement CSV into an account",
		Long: `Import a bank statement CSV into an account. Without a file, every CSV
waiting in <home>/import/ is imported and then moved to import/processed/.
The other side of each line is booked to the imbalance account.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = a.cfg.Transactions.ImportFormat
			}
			p := importer.DefaultRegistry().Get(format)
			if p == nil {
				return fmt.Errorf("unknown import format %q", format)
			}

			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				im := importer.New(l, a.log)
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					res, err := im.ImportFile(ctx, p, account, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d added, %d skipped\n", args[0], res.Added, res.Skipped)
					return nil
				}

				files, err := importer.Scan(a.cfg.Data.Dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintf(out, "Nothing to import in %s\n", filepath.Join(a.cfg.Data.Dir, importer.ImportDir))
					return nil
				}
				for _, f := range files {
					res, err := im.ImportFile(ctx, p, account, f.Path)
					if err != nil {
						return fmt.Errorf("%s: %w", f.Name, err)
					}
					if err := importer.MarkProcessed(a.cfg.Data.Dir, f.Name); err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d added, %d skipped\n", f.Name, res.Added, res.Skipped)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "full name of the account the statement belongs to")
	cmd.Flags().StringVarP(&format, "format", "f", "", "statement format: chase or simple (default from config)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the transactions changed since the last export",
		Long: `Export, one CSV line per split, the transactions added or changed since
the previous export and mark them exported. The file defaults to a
timestamped name in the export directory; "-" writes to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				ex := export.New(l, l.Prefs, a.log)

				if len(args) == 1 && args[0] == "-" {
					_, err := ex.Export(ctx, cmd.OutOrStdout())
					return err
				}

				path := ""
				if len(args) == 1 {
					path = args[0]
				} else {
					dir := a.cfg.Transactions.ExportDir
					if dir == "" {
						dir = filepath.Join(a.cfg.Data.Dir, "exports")
					}
					path = filepath.Join(dir, fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102-150405")))
				}

				res, err := ex.ExportFile(ctx, path, filepath.Join(a.cfg.Data.Dir, "logs"))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions (%d lines) to %s\n", res.Transactions, res.Lines, path)
				return nil
			})
		},
	}
	cmd.AddCommand(newExportHistoryCommand(a))
	return cmd
}

func newExportHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show previous export runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := export.Read(filepath.Join(a.cfg.Data.Dir, "logs"))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exports yet")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tBOOK\tTRANSACTIONS\tFILE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Timestamp.Format(time.RFC3339), e.Book, e.Transactions, e.File)
			}
			return tw.Flush()
		},
	}
}
