package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/podcast-sync/app/api"
	"github.com/lysyi3m/podcast-sync/app/cfg"
	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
	"github.com/lysyi3m/podcast-sync/app/ingest"
	"github.com/lysyi3m/podcast-sync/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(); err != nil {
		slog.Error("Podcast Sync stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func run() error {
	appCfg := cfg.Get()
	slog.Info("Starting Podcast Sync", "version", appCfg.Version, "once", appCfg.Once)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "dir", appCfg.FeedsDir, "count", configCache.GetConfigCount())

	contentRepo := database.NewContentRepository(db)
	feedRepo := database.NewFeedRepository(db)
	runRepo := database.NewSyncRunRepository(db)

	httpClient := &http.Client{}
	syncer := ingest.NewSyncer(feed.NewFetcher(httpClient, appCfg.UserAgent), feed.NewExtractor(), contentRepo, feedRepo, runRepo)

	if appCfg.Once {
		return runOnce(configCache, feedRepo, syncer)
	}

	return serve(appCfg, configCache, contentRepo, feedRepo, runRepo, syncer)
}

// runOnce is the cron/CI entry point: register feeds, sync each enabled
// feed once, print the summaries and fail if any run failed.
func runOnce(configCache *feed.ConfigCache, feedRepo database.FeedRepository, syncer ingest.SyncerInterface) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, feedConfig := range configCache.GetConfigs() {
		if err := tasks.NewSyncFeedConfigTask(feedConfig, feedRepo).Execute(ctx); err != nil {
			return err
		}
	}

	results := syncer.RunAll(ctx, configCache.GetEnabledConfigs(), ingest.TriggerCLI)
	if err := writeReport(os.Stdout, results); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !allSucceeded(results) {
		return errors.New("one or more feeds failed to sync")
	}
	return nil
}

func serve(appCfg *cfg.Cfg, configCache *feed.ConfigCache, contentRepo database.ContentRepository,
	feedRepo database.FeedRepository, runRepo database.SyncRunRepository, syncer ingest.SyncerInterface) error {
	scheduler := tasks.NewScheduler(configCache, feedRepo, runRepo, syncer,
		time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer func() {
		scheduler.Stop()
		slog.Info("Background scheduler stopped")
	}()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount, "interval", time.Duration(appCfg.SchedulerInterval)*time.Second)

	handler := api.NewHandler(configCache, contentRepo, feedRepo, runRepo, syncer, scheduler, appCfg.Version)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "base_url", cmp.Or(appCfg.BaseUrl, "http://localhost:"+appCfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig.String())
	case serveErr = <-serverErrChan:
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
