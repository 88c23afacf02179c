package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/config"
	"github.com/JonMunkholm/tablelink/internal/logging"
	"github.com/JonMunkholm/tablelink/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// .env values overwrite the process environment
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"remote", cfg.Remote.URL,
		"port", cfg.Server.Port,
		"audit_enabled", cfg.Audit.Enabled(),
		"import_max_concurrent", cfg.Import.MaxConcurrent,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	tables, err := client.New(client.Config{
		BaseURL:   cfg.Remote.URL,
		Username:  cfg.Remote.User,
		Password:  cfg.Remote.Password,
		Timeout:   cfg.Remote.Timeout,
		RateLimit: cfg.Remote.RateLimit,
		RateBurst: cfg.Remote.RateBurst,
		Format:    cfg.Format.Options(),
	}, client.WithObserver(client.NewLogObserver(logger, cfg.Remote.SlowThreshold)))
	if err != nil {
		slog.Error("failed to create tables client", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	recorder, closeAudit, err := openAudit(ctx, cfg)
	if err != nil {
		slog.Error("failed to open audit store", "error", err)
		os.Exit(1)
	}
	defer closeAudit()

	server := web.NewServer(web.Deps{Client: tables, Recorder: recorder}, cfg)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := server.Imports().Active(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openAudit connects the Postgres audit store when a database is configured
// and falls back to an in-memory log otherwise.
func openAudit(ctx context.Context, cfg *config.Config) (*audit.Recorder, func(), error) {
	if !cfg.Audit.Enabled() {
		slog.Info("no audit database configured, keeping audit log in memory")
		return audit.NewRecorder(audit.NewMemoryStore(10000)), func() {}, nil
	}

	if cfg.Audit.Migrate {
		if err := audit.Migrate(cfg.Audit.URL); err != nil {
			return nil, nil, err
		}
	}

	pool, err := audit.OpenPool(ctx, audit.PoolConfig{
		URL:             cfg.Audit.URL,
		MaxConns:        cfg.Audit.MaxConns,
		MinConns:        cfg.Audit.MinConns,
		MaxConnLifetime: cfg.Audit.MaxConnLifetime,
		MaxConnIdleTime: cfg.Audit.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to audit database")

	return audit.NewRecorder(audit.NewPostgresStore(pool)), pool.Close, nil
}
