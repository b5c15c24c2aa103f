// Command a11y serves the accessibility checker over HTTP (REST + MCP).
//
// Environment:
//
//	A11Y_CONFIG    YAML configuration file, watched for changes
//	PORT           listen port (default 8000)
//	LOG_LEVEL      debug|info|warn|error
//	MCP_TRANSPORT  "stdio" serves MCP on stdin/stdout instead of HTTP
//	AUDIT_DB       SQLite path for the check history (disabled when empty)
//
// See package config for the remaining A11Y_* overrides.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/a11y/api"
	"github.com/hazyhaar/a11y/audit"
	"github.com/hazyhaar/a11y/checker"
	"github.com/hazyhaar/a11y/config"
	"github.com/hazyhaar/a11y/metrics"
	"github.com/hazyhaar/a11y/report"
)

func main() {
	configPath := env("A11Y_CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// stdout carries the MCP stream in stdio mode.
	logOut := os.Stdout
	if mcpTransport == "stdio" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	reg, err := cfg.Registry()
	if err != nil {
		slog.Error("rules", "error", err)
		os.Exit(1)
	}

	// Observers.
	collector := metrics.NewCollector(metrics.WithProcessCollectors())
	checkerOpts := []checker.Option{checker.WithLogger(logger), checker.WithObserver(collector)}
	apiOpts := []api.Option{api.WithLogger(logger), api.WithMetrics(collector)}

	var store *audit.Store
	if cfg.Audit.DBPath != "" {
		auditOpts := []audit.Option{audit.WithLogger(logger)}
		if cfg.Audit.TraceSQL {
			auditOpts = append(auditOpts, audit.WithSQLTrace())
		}
		store, err = audit.Open(cfg.Audit.DBPath, auditOpts...)
		if err != nil {
			slog.Error("audit store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		checkerOpts = append(checkerOpts, checker.WithObserver(store))
		apiOpts = append(apiOpts, api.WithAudit(store))
		if cfg.Audit.Retention > 0 {
			go purgeLoop(ctx, store, cfg.Audit.Retention)
		}
		slog.Info("audit store enabled", "path", cfg.Audit.DBPath)
	}

	chk := checker.New(cfg.Checker(), reg, checkerOpts...)
	srv := api.New(chk, api.Config{
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit.Requests,
		RateWindow:  cfg.Server.RateLimit.Window,
		Version:     report.Version,
	}, apiOpts...)
	defer srv.Close()

	// Rule hot reload. Limits and listener settings need a restart.
	if configPath != "" {
		w := config.NewWatcher(configPath, func(next *config.Config) error {
			if err := next.ApplyEnv(os.LookupEnv); err != nil {
				return err
			}
			reg, err := next.Registry()
			if err != nil {
				return err
			}
			chk.SetRegistry(reg)
			return nil
		}, config.WithWatcherLogger(logger))
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("config watcher", "error", err)
			}
		}()
	}

	if mcpTransport == "stdio" {
		slog.Info("mcp stdio starting", "rules", reg.Len())
		if err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	// HTTP server.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "rules", reg.Len())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func purgeLoop(ctx context.Context, store *audit.Store, retention time.Duration) {
	tick := time.NewTicker(time.Hour)
	defer tick.Stop()
	for {
		n, err := store.Cleanup(ctx, retention)
		if err != nil {
			slog.Warn("audit cleanup", "error", err)
		} else if n > 0 {
			slog.Info("audit cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
