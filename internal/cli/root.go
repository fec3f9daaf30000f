package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mymoney/internal/backend"
	"mymoney/internal/config"
	"mymoney/internal/core"
	applog "mymoney/internal/log"
	"mymoney/internal/services"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *applog.Logger
	now     func() time.Time
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{now: time.Now}

	rootCmd := &cobra.Command{
		Use:     "mymoney",
		Short:   "Recurring income and expense projection",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from this file instead of .env")

	rootCmd.AddCommand(
		newServeCommand(a),
		newWorkerCommand(a),
		newProjectCommand(a),
		newConsolidateCommand(a),
		newGenerateCommand(a),
		newMigrateCommand(a),
	)

	return rootCmd
}

// NewWorkerRootCommand is the entry point of the standalone worker binary.
func NewWorkerRootCommand() *cobra.Command {
	a := &app{now: time.Now}

	cmd := newWorkerCommand(a)
	cmd.Use = "recurring-worker"
	cmd.Version = Version
	cmd.SilenceUsage = true
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		return a.load()
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load environment variables from this file instead of .env")
	return cmd
}

func (a *app) load() error {
	if a.envFile != "" {
		LoadEnvFile(a.envFile)
	} else {
		LoadEnvFile()
	}

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = SetupLogger(cfg).WithComponent(applog.ComponentCLI)
	return nil
}

// withEngine opens the backend, runs fn and releases the backend.
func (a *app) withEngine(ctx context.Context, fn func(*backend.BackendResult, *services.Engine) error) error {
	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer CloseBackend(a.logger, res)

	return fn(res, services.NewEngine(res.Store, res.Publisher))
}

// periodFlags binds --owner, --year and --month.
type periodFlags struct {
	owner int64
	year  int
	month int
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&p.owner, "owner", 0, "owner id (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().IntVar(&p.year, "year", 0, "year (default: current year)")
	cmd.Flags().IntVar(&p.month, "month", 0, "month 1-12 (default: current month)")
}

// resolve fills missing period values from now and validates the result.
func (p *periodFlags) resolve(now time.Time) (year, month int, err error) {
	if p.owner <= 0 {
		return 0, 0, fmt.Errorf("invalid owner id %d", p.owner)
	}
	year, month = p.year, p.month
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if err := core.ValidateMonth(month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}
