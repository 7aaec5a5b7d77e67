// climatedb builds the SQLite dataset served by the climate server.
//
//	climatedb migrate
//	climatedb load <measurements.csv> <stations.csv>
//
// The target file is SQLITE_PATH (default Resources/hawaii.sqlite).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"climate-server/internal/config"
	"climate-server/internal/dataset"
	"climate-server/internal/logging"
)

const appName = "climatedb"

var version = "dev"

const usage = `usage: climatedb <command>
  migrate                                  apply pending schema migrations
  load <measurements.csv> <stations.csv>   migrate, then load both CSV exports into an empty dataset
`

func main() {
	if err := config.LoadEnvFile(envFile()); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg, version, appName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg.Path, os.Args[1:], os.Stdout); err != nil {
		slog.Error("climatedb failed", "error", err)
		os.Exit(1)
	}
}

func envFile() string {
	if p, ok := os.LookupEnv("ENV_FILE"); ok {
		return p
	}
	return ".env"
}

func run(ctx context.Context, dbPath string, args []string, out io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch args[0] {
	case "migrate":
		if len(args) != 1 {
			return fmt.Errorf("migrate takes no arguments\n%s", usage)
		}
	case "load":
		if len(args) != 3 {
			return fmt.Errorf("load needs <measurements.csv> <stations.csv>\n%s", usage)
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}

	dbPath = filepath.Clean(dbPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	conn, err := dataset.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	applied, err := dataset.Migrate(ctx, conn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(out, "migrations applied: %d\n", len(applied))

	if args[0] == "load" {
		return loadAll(ctx, conn, args[1], args[2], out)
	}
	return nil
}

func loadAll(ctx context.Context, conn *sql.DB, measurementsPath, stationsPath string, out io.Writer) error {
	stations, err := os.Open(stationsPath)
	if err != nil {
		return fmt.Errorf("open stations: %w", err)
	}
	defer stations.Close()

	measurements, err := os.Open(measurementsPath)
	if err != nil {
		return fmt.Errorf("open measurements: %w", err)
	}
	defer measurements.Close()

	n, err := dataset.Load(ctx, conn, stations, measurements)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	fmt.Fprintf(out, "stations loaded: %d\n", n.Stations)
	fmt.Fprintf(out, "measurements loaded: %d\n", n.Measurements)
	return nil
}
