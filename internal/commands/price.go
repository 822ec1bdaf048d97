package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/model"
	"github.com/cleared-dev/gnuledger/internal/store"
)

func newPriceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Record and look up exchange rates",
	}
	cmd.AddCommand(newPriceAddCommand(a), newPriceGetCommand(a))
	return cmd
}

func newPriceAddCommand(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:     "add <commodity> <currency> <rate>",
		Short:   "Record the value of one unit of commodity in currency",
		Example: `  gnuledger price add EUR USD 1.0842`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[2], err)
			}
			if !rate.IsPositive() {
				return fmt.Errorf("rate %s must be positive", rate)
			}
			var when time.Time
			if date != "" {
				if when, err = time.Parse(dateLayout, date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}

			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				commodity, err := l.Commodities.Currency(ctx, strings.ToUpper(args[0]))
				if err != nil {
					return err
				}
				currency, err := l.Commodities.Currency(ctx, strings.ToUpper(args[1]))
				if err != nil {
					return err
				}

				p := model.PriceFromDecimal(commodity.UID, currency.UID, rate)
				if !when.IsZero() {
					p.Date = when.UTC()
				}
				if err := l.Prices.Add(ctx, p, store.Insert); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "1 %s = %s %s\n", commodity, p.Rate(), currency)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date of the rate, YYYY-MM-DD (default: now)")
	return cmd
}

func newPriceGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <commodity> <currency>",
		Short: "Show the latest rate between two currencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := strings.ToUpper(args[0]), strings.ToUpper(args[1])
			return a.withBook(cmd.Context(), func(ctx context.Context, _ *ledger.Manager, l *ledger.Ledger) error {
				p, err := l.Prices.PriceForCurrencies(ctx, from, to)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("no price from %s to %s", from, to)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "1 %s = %s %s\n", from, p.Rate(), to)
				return nil
			})
		},
	}
}
