package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mymoney/internal/backend"
	"mymoney/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSQLite(); err != nil {
				return err
			}
			if err := storage.RunMigrations(a.cfg.SQLiteDBPath); err != nil {
				return err
			}
			return printVersion(cmd, a.cfg.SQLiteDBPath)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireSQLite(); err != nil {
				return err
			}
			return printVersion(cmd, a.cfg.SQLiteDBPath)
		},
	})
	return cmd
}

func (a *app) requireSQLite() error {
	if backend.BackendType(a.cfg.DataBackend) != backend.SQLiteBackend {
		return errors.New("migrations only apply to the sqlite backend")
	}
	return nil
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
