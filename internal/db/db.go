package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"climate-server/internal/config"

	"github.com/jackc/pgx/v5/stdlib"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrDatasetMissing is returned by Open when the SQLite dataset file does not exist.
var ErrDatasetMissing = errors.New("dataset file not found")

// Open returns a pooled, read-only handle on the dataset. The *sql.DB is safe
// for concurrent use by request handlers; every pooled connection is opened
// with query_only so no handler can mutate the snapshot.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogSQL {
		drv, err := lookupDriver(cfg.Driver)
		if err != nil {
			return nil, err
		}
		db = sql.OpenDB(NewLoggingConnector(drv, dsn, logger))
	} else {
		db, err = sql.Open(cfg.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func lookupDriver(name string) (driver.Driver, error) {
	switch name {
	case "sqlite3":
		return &sqlite3.SQLiteDriver{}, nil
	case "pgx":
		return stdlib.GetDefaultDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", name)
	}
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(cfg config.Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.Driver != "sqlite3" {
		return "", fmt.Errorf("driver %q needs an explicit DSN", cfg.Driver)
	}

	path, rawQuery, _ := strings.Cut(strings.TrimPrefix(cfg.Path, "file:"), "?")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDatasetMissing, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	// mode=ro opens the file read-only at the SQLite layer; _query_only makes
	// every pooled connection reject writes as well. Caller-supplied values for
	// these keys are dropped so they cannot reopen the file writable.
	forced := []string{
		"mode=ro",
		"_query_only=1",
		"_busy_timeout=5000",
	}

	var params []string
	for _, kv := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(kv, "=")
		switch key {
		case "", "mode", "_query_only", "_busy_timeout":
			continue
		}
		params = append(params, kv)
	}
	params = append(params, forced...)

	return "file:" + path + "?" + strings.Join(params, "&"), nil
}
