package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chadmayfield/weatherapp/internal/config"
	"github.com/chadmayfield/weatherapp/internal/store"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X github.com/chadmayfield/weatherapp/cmd.Version=...".
var Version = "dev"

var (
	cfgFile   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "weatherapp",
	Short: "Look up current weather for a city and keep a record of every lookup",
	Long: `weatherapp serves a small web page that takes a city name, checks it
against a reference list, fetches current conditions from OpenWeatherMap,
appends the result to SQLite or PostgreSQL, and renders it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json, overrides config)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the default logger it
// describes. The returned func closes the log file, if any.
func loadConfig() (*config.Config, func(), error) {
	setupLogging(logFormat, os.Stderr)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	format := cfg.LogFormat
	if logFormat != "" {
		format = logFormat
	}

	closeLog := func() {}
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closeLog = func() { _ = f.Close() }
	}
	setupLogging(format, out)

	return cfg, closeLog, nil
}

func setupLogging(format string, out io.Writer) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", "weatherapp", "version", Version))
}

// dbStore is satisfied by both SQLiteStore and PostgresStore.
type dbStore interface {
	store.Store
	DB() *sql.DB
}

// openStore opens the configured backend. Opening runs migrations.
func openStore(cfg *config.Config) (dbStore, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.DSN())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := store.NewPostgresStore(cfg.DSN())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
