package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/accounts"
)

func newBookCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the books of the data directory",
	}
	cmd.AddCommand(
		newBookCreateCommand(a),
		newBookListCommand(a),
		newBookUseCommand(a),
		newBookDeleteCommand(a),
		newBookRecoverCommand(a),
	)
	return cmd
}

func newBookCreateCommand(a *app) *cobra.Command {
	var noChart bool

	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a book and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := ""
			if len(args) == 1 {
				name = args[0]
			}

			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

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
			if !noChart {
				if _, err := accounts.NewService(l).SeedDefaultChart(ctx); err != nil {
					return fmt.Errorf("creating default accounts: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created book %q (%s)\n", book.DisplayName, book.UID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noChart, "no-chart", false, "do not create the default accounts")
	return cmd
}

func newBookListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			books, err := m.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(books) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No books. Run 'gnuledger init' to create one.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVE\tUID\tNAME\tLAST SYNC")
			for _, b := range books {
				mark := ""
				if b.Active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, b.UID, b.DisplayName, b.LastSync.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newBookUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <uid>",
		Short: "Make a book the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Use(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active book is now %s\n", args[0])
			return nil
		},
	}
}

func newBookDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete a book with its database and preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted book %s\n", args[0])
			return nil
		},
	}
}

func newBookRecoverCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Rebuild the registry from the book databases on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			uid, err := m.Recover(cmd.Context())
			if err != nil {
				return err
			}
			if uid == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No books found")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active book is %s\n", uid)
			return nil
		},
	}
}
