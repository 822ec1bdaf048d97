package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/gnuledger/internal/buildinfo"
	"github.com/cleared-dev/gnuledger/internal/config"
	"github.com/cleared-dev/gnuledger/internal/ledger"
	"github.com/cleared-dev/gnuledger/internal/logger"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	home       string
	configPath string
	logLevel   string
	currency   string

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:     "gnuledger",
		Short:   "Double-entry bookkeeping on SQLite books",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.home, "home", "", "data directory (default $GNULEDGER_HOME or ~/.gnuledger)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <home>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&a.currency, "currency", "", "default currency of new books")

	rootCmd.AddCommand(
		newInitCommand(a),
		newBookCommand(a),
		newAccountCommand(a),
		newTxCommand(a),
		newPriceCommand(a),
		newImportCommand(a),
		newExportCommand(a),
	)

	return rootCmd
}

// load resolves the configuration: .env, then the config file, then
// GNULEDGER_* variables, then flags.
func (a *app) load(cmd *cobra.Command) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	path := a.configPath
	if path == "" {
		home := a.home
		if home == "" {
			env := config.Default()
			if err := config.ApplyEnv(env); err != nil {
				return err
			}
			home = env.Data.Dir
		}
		path = filepath.Join(home, config.FileName)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return err
	}

	if a.home != "" {
		cfg.Data.Dir = a.home
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.currency != "" {
		cfg.Currency = a.currency
	}
	cfg.Log.Out = cmd.ErrOrStderr()

	a.cfg = cfg
	a.configPath = path
	a.log = logger.NewWithConfig(cfg.Log)
	return nil
}

func (a *app) options() ledger.Options {
	return ledger.Options{
		Logger:   a.log,
		Currency: a.cfg.Currency,
		Cache:    a.cfg.Data.Cache,
	}
}

// manager opens the registry of the data directory.
func (a *app) manager() (*ledger.Manager, error) {
	m, err := ledger.NewManager(a.cfg.Data.Dir, a.options())
	if err != nil {
		return nil, fmt.Errorf("opening data directory %s: %w", a.cfg.Data.Dir, err)
	}
	return m, nil
}

// withBook runs fn on the active book.
func (a *app) withBook(ctx context.Context, fn func(ctx context.Context, m *ledger.Manager, l *ledger.Ledger) error) error {
	m, err := a.manager()
	if err != nil {
		return err
	}
	defer m.Close()

	l, err := m.OpenActive(ctx)
	if err != nil {
		return err
	}
	defer l.Close()
	return fn(ctx, m, l)
}
