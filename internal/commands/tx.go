package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/journal"
	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

const dateLayout = "2006-01-02"

func newTxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transaction"},
		Short:   "Record and list transactions",
	}
	cmd.AddCommand(newTxAddCommand(a), newTxListCommand(a))
	return cmd
}

func newTxAddCommand(a *app) *cobra.Command {
	var p journal.AddDoubleParams
	var amount, date string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record money moving from one account to another",
		Example: `  gnuledger tx add --desc "Weekly shop" --amount 54.20 \
    --from "Assets:Current Assets:Checking Account" --to Expenses:Groceries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if p.Amount, err = decimal.NewFromString(amount); err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			if date != "" {
				if p.Date, err = time.Parse(dateLayout, date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}

			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				tx, err := journal.NewService(l).AddDouble(ctx, p)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s %s\n",
					tx.Timestamp.Format(dateLayout), tx.UID, model.NewMoney(p.Amount, tx.Commodity))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&p.Description, "desc", "d", "", "description")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount, positive")
	cmd.Flags().StringVar(&p.CreditAccount, "from", "", "full name of the account the money leaves")
	cmd.Flags().StringVar(&p.DebitAccount, "to", "", "full name of the account the money goes to")
	cmd.Flags().StringVar(&p.Currency, "currency", "", "transaction currency (default: the --to account's)")
	cmd.Flags().StringVar(&date, "date", "", "date, YYYY-MM-DD (default: now)")
	cmd.Flags().StringVar(&p.Memo, "memo", "", "memo of both splits")
	cmd.Flags().StringVar(&p.Number, "num", "", "check or reference number")
	cmd.Flags().StringVar(&p.Notes, "notes", "", "notes")
	for _, f := range []string{"desc", "amount", "from", "to"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newTxListCommand(a *app) *cobra.Command {
	var account string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, one line per split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				svc := journal.NewService(l)

				var lines []journal.Line
				var err error
				if account != "" {
					lines, err = svc.AccountLines(ctx, account)
				} else {
					var txs []*model.Transaction
					q := store.Where("is_template = 0").OrderBy("timestamp DESC", "id DESC")
					if limit > 0 {
						q = q.Limit(limit)
					}
					if txs, err = l.Transactions.All(ctx, q); err == nil {
						lines, err = svc.Lines(ctx, txs)
					}
				}
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DATE\tDESCRIPTION\tACCOUNT\tAMOUNT")
				for _, line := range lines {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", line.Date.Format(dateLayout), line.Description,
						line.AccountFullName, line.Amount.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "only transactions touching this account")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "most recent transactions to show, 0 for all")
	return cmd
}

// parsePeriod turns optional YYYY-MM-DD bounds into Unix millis. to is
// inclusive of its whole day.
func parsePeriod(from, to string) (start, end int64, err error) {
	start, end = model.Always, model.Always
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --from %q: %w", from, err)
		}
		start = model.Millis(t)
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --to %q: %w", to, err)
		}
		end = model.Millis(t.AddDate(0, 0, 1)) - 1
	}
	return start, end, nil
}
