package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/minecraft-exporter/internal/api"
	"github.com/obsidianstack/minecraft-exporter/internal/config"
	"github.com/obsidianstack/minecraft-exporter/internal/lookup"
	"github.com/obsidianstack/minecraft-exporter/internal/scraper"
	"github.com/obsidianstack/minecraft-exporter/internal/session"
	"github.com/obsidianstack/minecraft-exporter/internal/telemetry"
)

func main() {
	flagPath := flag.String("config", "", "path to config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")
	flag.Parse()

	configPath := config.ResolvePath(*flagPath)

	cfg, err := config.OpenOrCreate(configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("minecraft-exporter starting",
		"config", configPath,
		"addr", cfg.Addr(),
		"metrics_path", cfg.MetricsPath,
		"servers", len(cfg.Servers),
	)
	if len(cfg.Servers) == 0 {
		slog.Warn("no servers configured, metrics document will be empty")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Servers and paths are fixed at startup; a changed file is only reported.
	go func() {
		if err := config.Watch(ctx, configPath, func(updated *config.Config) {
			slog.Info("config changed on disk, restart to apply", "servers", len(updated.Servers))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	metrics := telemetry.New()
	fleet := scraper.NewFleet(cfg, session.NewCollector(cfg.RCON), lookup.New(cfg.Lookup), metrics)
	handler := api.New(fleet, api.Paths{Metrics: cfg.MetricsPath, Telemetry: cfg.TelemetryPath}, metrics.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("HTTP server stopped", "err", err)
		cancel()
		os.Exit(1)
	}

	slog.Info("minecraft-exporter shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
