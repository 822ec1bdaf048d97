package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/accounts"
	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage the accounts of the active book",
	}
	cmd.AddCommand(
		newAccountAddCommand(a),
		newAccountListCommand(a),
		newAccountBalanceCommand(a),
		newAccountDeleteCommand(a),
		newAccountMoveCommand(a),
		newAccountExportCommand(a),
		newAccountImportCommand(a),
		newAccountSeedCommand(a),
	)
	return cmd
}

func newAccountAddCommand(a *app) *cobra.Command {
	var typ, currency, description string
	var placeholder bool

	cmd := &cobra.Command{
		Use:   "add <full name>",
		Short: "Add an account, creating missing parents",
		Long: `Add an account given its colon separated full name, e.g.
"Expenses:Travel:Flights". Missing parents are created with the same type.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseAccountType(typ)
			if err != nil {
				return err
			}
			row := accounts.Row{
				Type:        t,
				FullName:    args[0],
				Description: description,
				Placeholder: placeholder,
			}
			if currency != "" {
				row.Mnemonic = strings.ToUpper(currency)
				row.Namespace = model.NamespaceCurrency
			}

			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				n, err := accounts.NewService(l).Import(ctx, []accounts.Row{row})
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("account %q already exists", row.FullName)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", row.FullName)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(model.AccountTypeAsset), "account type")
	cmd.Flags().StringVar(&currency, "currency", "", "account currency (default: the book's currency)")
	cmd.Flags().StringVar(&description, "description", "", "account description")
	cmd.Flags().BoolVar(&placeholder, "placeholder", false, "the account only groups other accounts")
	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	var showHidden bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				accs, err := l.Accounts.List(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ACCOUNT\tTYPE\tBALANCE")
				for _, acc := range accs {
					if acc.Hidden && !showHidden {
						continue
					}
					balance, err := l.Accounts.CurrentBalance(ctx, acc.UID)
					if err != nil {
						return err
					}
					name := acc.FullName
					if acc.Placeholder {
						name += " (placeholder)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", name, acc.Type, balance)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&showHidden, "all", false, "include hidden accounts")
	return cmd
}

func newAccountBalanceCommand(a *app) *cobra.Command {
	var from, to string
	var noSub bool

	cmd := &cobra.Command{
		Use:   "balance <full name>",
		Short: "Show the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parsePeriod(from, to)
			if err != nil {
				return err
			}
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				acc, err := l.Accounts.ByFullName(ctx, args[0])
				if err != nil {
					return err
				}
				balance, err := l.Accounts.Balance(ctx, acc.UID, start, end, !noSub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", acc.FullName, balance)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().BoolVar(&noSub, "no-sub", false, "exclude sub-accounts")
	return cmd
}

func newAccountDeleteCommand(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "delete <full name>",
		Short: "Delete an account",
		Long: `Delete an account. Its children move up to the root account unless
--recursive is given, which deletes them with all their transactions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				uid, err := l.Accounts.UIDByFullName(ctx, args[0])
				if err != nil {
					return err
				}
				if uid == "" {
					return fmt.Errorf("account %q not found", args[0])
				}

				del := l.Accounts.Delete
				if recursive {
					del = l.Accounts.RecursiveDelete
				}
				ok, err := del(ctx, uid)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("account %q was not deleted", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete sub-accounts and transactions too")
	return cmd
}

func newAccountMoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <full name> [new parent]",
		Short: "Move an account and its sub-accounts under another parent",
		Long:  "Move an account and its sub-accounts. Without a new parent it becomes a top level account.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := ""
			if len(args) == 2 {
				parent = args[1]
			}
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				moved, err := accounts.NewService(l).Move(ctx, args[0], parent)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], moved)
				return nil
			})
		},
	}
}

func newAccountExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the accounts as GnuCash CSV to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				svc := accounts.NewService(l)
				if len(args) == 0 {
					_, err := svc.Export(ctx, cmd.OutOrStdout())
					return err
				}
				n, err := svc.Save(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d accounts to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newAccountImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create the accounts of a GnuCash CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				n, err := accounts.NewService(l).Load(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", n)
				return nil
			})
		},
	}
}

func newAccountSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				n, err := accounts.NewService(l).SeedDefaultChart(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d accounts\n", n)
				return nil
			})
		},
	}
}
