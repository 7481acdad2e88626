// Command ingestd is the ingestion daemon: it watches a directory for
// settled video files, resolves their metadata, renames and moves them into
// the library layout, and writes the result through to the media server.
// Startup follows an env-load, logger-init, OpenTelemetry-init,
// signal-driven graceful shutdown sequence, with the daemon-loop model
// wired through the supervisor in place of an HTTP server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"vaultingest/internal/catalog"
	"vaultingest/internal/config"
	"vaultingest/internal/database"
	"vaultingest/internal/logger"
	"vaultingest/internal/mediaserver"
	"vaultingest/internal/observability"
	"vaultingest/internal/queue"
	"vaultingest/internal/supervisor"
	"vaultingest/internal/watch"
	"vaultingest/internal/workers"
)

const heartbeatInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger.Init("vaultingest", cfg.Env, logger.ParseLevelFromEnv())

	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With("run_id", runID))

	shutdownOTel, err := observability.InitOTel(context.Background(), "vaultingest", runID)
	if err != nil {
		slog.Warn("failed to initialize OpenTelemetry", "error", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				slog.Error("error shutting down OpenTelemetry", "error", err)
			}
		}()
	}

	db, err := database.New(cfg.DatabaseURL, database.PoolConfig{MinConns: cfg.PoolMin, MaxConns: cfg.PoolMax})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	store := queue.New(db, cfg.Retry.BackoffMinutes, cfg.Retry.MaxRetries)
	catalogClient := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.Token, cfg.Catalog.SearchOrder, 2, 5)
	mediaClient := mediaserver.New(cfg.MediaServer.BaseURL, cfg.MediaServer.APIKey, cfg.MediaServer.UserID)

	fileProcessor := workers.NewFileProcessor(store, catalogClient, cfg.DestinationDir)
	updater := workers.NewUpdater(store, mediaClient, cfg.MediaServer.ParentFolderID)
	retryScheduler := workers.NewRetryScheduler(store)

	watchAdapter := watch.New(cfg.WatchDir, cfg.VideoExtensions, cfg.Stability.CheckInterval, cfg.Stability.MinStableChecks,
		func(ctx context.Context, path string) error {
			_, err := store.Add(ctx, path, "", "", "")
			return err
		})

	sup := supervisor.New(db, "migrations")
	sup.Register("file-processor", fileProcessor.Run)
	sup.Register("updater", updater.Run)
	sup.Register("retry-scheduler", retryScheduler.Run)
	sup.Register("watch-adapter", func(ctx context.Context) {
		if err := watchAdapter.Run(ctx); err != nil {
			slog.Error("watch adapter exited with error", "error", err)
		}
	})
	sup.Register("heartbeat", heartbeatLoop(store, runID))

	slog.Info("starting vaultingest", "watch_dir", cfg.WatchDir, "destination_dir", cfg.DestinationDir, "run_id", runID)
	if err := sup.Run(context.Background()); err != nil {
		slog.Error("supervisor exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("vaultingest stopped")
}

// heartbeatLoop logs queue depth by status every 30s, tagged with the run's
// correlation id, so an operator tailing logs sees liveness without
// invoking the CLI.
func heartbeatLoop(store *queue.Store, runID string) supervisor.Loop {
	return func(ctx context.Context) {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counts, err := store.CountByStatus(ctx)
				if err != nil {
					slog.Warn("heartbeat: failed to read queue counts", "run_id", runID, "error", err)
					continue
				}
				slog.Info("heartbeat", "run_id", runID, "counts", counts)
			}
		}
	}
}
