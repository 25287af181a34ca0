package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcclellann/advledger/pkg/balances"
	"github.com/mcclellann/advledger/pkg/config"
	"github.com/mcclellann/advledger/pkg/ledger"
	"github.com/mcclellann/advledger/pkg/loader"
	"github.com/mcclellann/advledger/pkg/logger"
	"github.com/mcclellann/advledger/pkg/models"
	"github.com/mcclellann/advledger/pkg/report"
	"github.com/mcclellann/advledger/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configFile string
	debug      bool

	cfg    *config.Config
	log    *zap.Logger
	dbPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Advance ledger balances calculator.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Debug output, or no debug output.")
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (default ./advledger.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "create-db",
			Short: "Initialize sqlite3 database.",
			Args:  cobra.NoArgs,
			RunE:  a.createDB,
		},
		&cobra.Command{
			Use:   "drop-db",
			Short: "Delete sqlite3 database.",
			Args:  cobra.NoArgs,
			RunE:  a.dropDB,
		},
		&cobra.Command{
			Use:   "load FILENAME",
			Short: "Load events with data from csv file.",
			Args:  cobra.ExactArgs(1),
			RunE:  a.load,
		},
		&cobra.Command{
			Use:   "balances [END_DATE]",
			Short: "Display balance statistics as of END_DATE (default today).",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.balances,
		},
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	logCfg := logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	if a.debug {
		logCfg.Level = "debug"
		fmt.Fprintln(cmd.OutOrStdout(), "[Debug mode is on]")
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}

	a.dbPath, err = filepath.Abs(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("invalid db.path: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) createDB(cmd *cobra.Command, args []string) error {
	err := store.CreateDB(cmd.Context(), a.dbPath, store.WithLogger(a.log))
	if errors.Is(err, store.ErrAlreadyExists) {
		fmt.Fprintln(cmd.OutOrStdout(), "Database already exists")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized database at %s\n", a.dbPath)
	return nil
}

func (a *app) dropDB(cmd *cobra.Command, args []string) error {
	err := store.DropDB(a.dbPath)
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprintf(cmd.OutOrStdout(), "SQLite database does not exist at %s\n", a.dbPath)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted SQLite database at %s\n", a.dbPath)
	return nil
}

func (a *app) load(cmd *cobra.Command, args []string) error {
	filename := args[0]
	events, err := loader.New().LoadFile(filename)
	if err != nil {
		return err
	}

	led, closeFn, err := a.openLedger(cmd)
	if err != nil || led == nil {
		return err
	}
	defer closeFn()

	n, err := led.Import(cmd.Context(), events)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d events from %s\n", n, filename)
	return nil
}

func (a *app) balances(cmd *cobra.Command, args []string) error {
	endDate := models.Today()
	if len(args) == 1 {
		d, err := models.ParseDate(args[0])
		if err != nil {
			return err
		}
		endDate = d
	}

	led, closeFn, err := a.openLedger(cmd)
	if err != nil || led == nil {
		return err
	}
	defer closeFn()

	res, err := led.Balances(cmd.Context(), endDate)
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), res)
}

// openLedger returns a nil ledger (and no error) after telling the user to run
// create-db when the database does not exist.
func (a *app) openLedger(cmd *cobra.Command) (*ledger.Ledger, func(), error) {
	s, err := store.OpenSQLiteStore(cmd.Context(), a.dbPath, store.WithLogger(a.log))
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprintf(cmd.OutOrStdout(), "Database does not exist at %s, please create it using `create-db` command\n", a.dbPath)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var calcOpts []balances.Option
	calcOpts = append(calcOpts, balances.WithDailyRate(a.cfg.Engine.DailyRate))
	if a.cfg.Engine.TrackAppliedInterest {
		calcOpts = append(calcOpts, balances.WithAppliedInterestTracking())
	}
	led := ledger.NewLedger(s, ledger.WithLogger(a.log), ledger.WithCalculatorOptions(calcOpts...))
	return led, func() { s.Close() }, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
