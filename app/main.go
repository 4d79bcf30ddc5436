package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/signal-comb/app/adapters"
	"github.com/lysyi3m/signal-comb/app/api"
	"github.com/lysyi3m/signal-comb/app/cfg"
	"github.com/lysyi3m/signal-comb/app/database"
	"github.com/lysyi3m/signal-comb/app/ingest"
	"github.com/lysyi3m/signal-comb/app/logging"
	"github.com/lysyi3m/signal-comb/app/tasks"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	appCfg, err := cfg.Load()
	if err != nil {
		return err
	}
	if appCfg == nil {
		return nil
	}

	logger := logging.Init(os.Stderr, appCfg.Debug, appCfg.LogFormat)

	slog.Info("Starting Signal Comb",
		"version", appCfg.Version,
		"mode", appCfg.Mode,
		"db_path", appCfg.DBPath,
		"sources_dir", appCfg.SourcesDir)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Debug("Database migrated", "version", version, "dirty", dirty)

	configCache := adapters.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}

	enabled := configCache.GetEnabledConfigs()
	sourceAdapters, err := adapters.BuildAll(enabled, adapters.Deps{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		UserAgent:  appCfg.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to build adapters: %w", err)
	}
	slog.Info("Source configurations loaded", "total", configCache.GetConfigCount(), "enabled", len(enabled))

	store := database.NewStore(db)
	coordinator := ingest.NewCoordinator(store, sourceAdapters, ingest.NewSlogSink(logger),
		ingest.WithConcurrency(appCfg.AdapterConcurrency),
		ingest.WithTrustHistory(appCfg.RecordTrustHistory))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.Mode == cfg.ModeIngest {
		return runOnce(ctx, enabled, store, coordinator)
	}

	return serve(ctx, appCfg, configCache, store, coordinator)
}

func runOnce(ctx context.Context, configs []*adapters.Config, store *database.Store, coordinator *ingest.Coordinator) error {
	for _, config := range configs {
		if len(config.Verified) == 0 {
			continue
		}
		task := tasks.NewSyncSourcesTask(config, store)
		task.Start()
		if err := task.Execute(ctx); err != nil {
			slog.Warn("Failed to sync verified sources", "source", config.Name, "error", err)
		}
	}

	report := coordinator.Run(ctx)
	if coordinator.Adapters() > 0 && report.FailedAdapters() == coordinator.Adapters() {
		return fmt.Errorf("all %d adapters failed", coordinator.Adapters())
	}

	return nil
}

func serve(ctx context.Context, appCfg *cfg.Cfg, configCache *adapters.ConfigCache, store *database.Store, coordinator *ingest.Coordinator) error {
	scheduler := tasks.NewScheduler(configCache, store, coordinator, tasks.SchedulerOptions{
		Interval:    appCfg.SchedulerInterval,
		WorkerCount: appCfg.WorkerCount,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, store, configCache, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case serveErr = <-serverErrChan:
		slog.Error("Server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}
