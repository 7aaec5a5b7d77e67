package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"climate-server/internal/config"
	db "climate-server/internal/db"
	httpapi "climate-server/internal/httpapi"
	climate "climate-server/internal/modules/climate"
	climaterepo "climate-server/internal/modules/climate/repository"
	climateviews "climate-server/internal/modules/climate/views"
)

const shutdownTimeout = 10 * time.Second

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"corsAllowedOrigins", cfg.CORSAllowedOrigins,
		"dbDriver", cfg.Driver,
		"sqlitePath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"dbLogSQL", cfg.LogSQL,
	)

	srv, cleanup, err := Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// Setup opens and verifies the dataset, loads templates and builds the HTTP
// server. Any failure here means the service must not start. cleanup closes
// the database and is a no-op when Setup fails.
func Setup(ctx context.Context, cfg config.Config) (*http.Server, func(), error) {
	dbConn, err := db.Open(ctx, cfg, slog.Default())
	if err != nil {
		return nil, func() {}, fmt.Errorf("open dataset: %w", err)
	}
	cleanup := func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}

	if err := db.VerifySchema(ctx, dbConn, climaterepo.Schema); err != nil {
		cleanup()
		return nil, func() {}, err
	}
	slog.Info("dataset opened", "driver", cfg.Driver)

	if err := climateviews.LoadTemplates(); err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("load templates: %w", err)
	}

	mux := httpapi.NewMux(dbConn)
	climate.RegisterFeature(mux, dbConn)

	return httpapi.NewServer(cfg, mux), cleanup, nil
}
