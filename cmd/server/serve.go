package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/adapters/email"
	web "crewportal/internal/adapters/http"
	"crewportal/internal/adapters/http/perf"
	"crewportal/internal/adapters/storage"
	"crewportal/internal/adapters/storage/devicestate"
	feedbackStore "crewportal/internal/adapters/storage/feedback"
	"crewportal/internal/config"
	"crewportal/internal/logging"
)

const (
	sweepInterval   = 15 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// loadConfig reads the configuration named by --config and installs the
// process logger at the configured level.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Install(os.Stderr, cfg.Log.Level)
	return cfg, nil
}

// openDatabase opens and migrates the SQLite database. Feedback always
// lives here; device state does too unless the valkey backend is chosen.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := storage.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	v, err := storage.SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("database_migrated", "path", cfg.Storage.SQLitePath, "schema", v)
	return nil
}

func initConfig(path string) error {
	if err := config.CreateConfigFile(path); err != nil {
		return err
	}
	fmt.Printf("Wrote example configuration to %s\n", path)
	return nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.Storage.SlowQuery)

	var device devicestate.Store
	switch cfg.Storage.Backend {
	case config.BackendValkey:
		client, err := devicestate.NewValkeyClient(cfg.Storage.ValkeyURI)
		if err != nil {
			return err
		}
		defer client.Close()
		device = devicestate.NewValkeyStore(client)
	default:
		device = devicestate.NewSQLiteStore(timedDB)
	}

	var sender email.Sender
	if cfg.Email.ResendKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendKey, cfg.Email.From)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_configured", "provider", "noop", "reason", "resend key not set; feedback mail is disabled")
		} else {
			slog.Info("email_sender_configured", "provider", "noop")
		}
	}

	api, err := crewapi.New(crewapi.Options{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		Collector:         collector,
	})
	if err != nil {
		return err
	}

	srv, err := web.NewServer(cfg, web.Deps{
		API:       api,
		Device:    device,
		Feedback:  feedbackStore.NewSQLiteStore(timedDB),
		Sender:    sender,
		Collector: collector,
	})
	if err != nil {
		return err
	}
	go srv.SweepSessions(ctx, sweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.ListenAndServe()
	}()
	slog.Info("server_started",
		"version", version,
		"addr", cfg.Server.Addr,
		"env", cfg.Env,
		"backend", cfg.Storage.Backend,
		"schema", storage.LatestSchemaVersion(),
	)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server_shutdown_failed", "error", err)
	}
	return nil
}
