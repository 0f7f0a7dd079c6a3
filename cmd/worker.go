/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"driftline/internal/bootstrap"
	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/usecase/sync"
)

var watchEnvironmentID string

// workerCmd runs the background sync loop: the interval scheduler plus an
// optional filesystem watcher over a local repository clone.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled sync loop",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		tenantID := app.Config.App.Tenant
		pollInterval := time.Duration(app.Config.Scheduler.PollIntervalSeconds) * time.Second

		scheduler := sync.NewScheduler(deps.Sync, tenantID, pollInterval)
		if err := scheduler.Start(ctx); err != nil {
			return errs.Wrap(err, "start scheduler")
		}
		defer scheduler.Stop()
		logging.Info(ctx, "scheduler started", slog.Duration("poll_interval", pollInterval))

		if watchEnvironmentID != "" && app.Config.Repository.Mode == "local" {
			debounce := time.Duration(app.Config.Scheduler.WatcherDebounceSeconds) * time.Second
			watcher := sync.NewWatcher(deps.Sync, tenantID, watchEnvironmentID, app.Config.Repository.LocalPath, debounce)
			if err := watcher.Start(ctx); err != nil {
				return errs.Wrap(err, "start repository watcher")
			}
			defer watcher.Stop()
			logging.Info(ctx, "repository watcher started",
				slog.String("environment_id", watchEnvironmentID),
				slog.String("path", app.Config.Repository.LocalPath))
		}

		suggestionTTL := time.Duration(app.Config.Scheduler.SuggestionTTLDays) * 24 * time.Hour
		snapshotRetention := time.Duration(app.Config.Scheduler.SnapshotRetentionDays) * 24 * time.Hour
		go maintenanceLoop(ctx, deps, tenantID, suggestionTTL, snapshotRetention)

		<-ctx.Done()
		logging.Info(ctx, "worker shutting down")
		return nil
	}),
}

// maintenanceLoop expires stale link suggestions and purges aged drift
// snapshots once an hour.
func maintenanceLoop(ctx context.Context, deps appDeps, tenantID string, suggestionTTL, snapshotRetention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if suggestionTTL > 0 {
			expired, err := deps.Sync.ExpireStaleSuggestions(ctx, tenantID, suggestionTTL)
			if err != nil {
				logging.Warn(ctx, "expire stale suggestions failed", slog.Any("err", errs.Loggable(err)))
			} else if expired > 0 {
				logging.Info(ctx, "expired stale link suggestions", slog.Int64("count", expired))
			}
		}
		if snapshotRetention > 0 {
			purged, err := deps.Drift.PurgeIncidentPayloads(ctx, tenantID, snapshotRetention)
			if err != nil {
				logging.Warn(ctx, "purge incident payloads failed", slog.Any("err", errs.Loggable(err)))
			} else if purged > 0 {
				logging.Info(ctx, "purged drift snapshots", slog.Int64("count", purged))
			}
		}
	}
}

func init() {
	workerCmd.Flags().StringVar(&watchEnvironmentID, "watch-environment", "", "Environment to trigger on local repository file changes")
	rootCmd.AddCommand(workerCmd)
}
