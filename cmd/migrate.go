package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chadmayfield/weatherapp/internal/config"
	"github.com/chadmayfield/weatherapp/internal/store"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if dryRun {
		slog.Info("dry run mode, showing pending migrations")
		return showPendingMigrations(cmd, cfg)
	}

	// Opening the store automatically runs migrations.
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	version, err := goose.GetDBVersion(s.DB())
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	slog.Info("migrations complete", "version", version)
	return nil
}

func showPendingMigrations(cmd *cobra.Command, cfg *config.Config) error {
	fsys, dir, dialect, err := store.MigrationSource(cfg.Storage.Driver)
	if err != nil {
		return err
	}

	driverName := "sqlite"
	if cfg.Storage.Driver == "postgres" {
		driverName = "pgx"
	}
	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		current = 0
	}

	out := cmd.OutOrStdout()
	pending, err := goose.CollectMigrations(dir, current, goose.MaxVersion)
	if errors.Is(err, goose.ErrNoMigrationFiles) {
		slog.Info("migration status", "current_version", current, "driver", cfg.Storage.Driver, "pending", 0)
		fmt.Fprintln(out, "no pending migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("collecting migrations: %w", err)
	}

	slog.Info("migration status", "current_version", current, "driver", cfg.Storage.Driver, "pending", len(pending))
	for _, m := range pending {
		if m.Version > current {
			fmt.Fprintf(out, "pending: %d %s\n", m.Version, m.Source)
		}
	}
	return nil
}
