/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"driftline/internal/bootstrap"
	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

var syncKind string

var syncCmd = &cobra.Command{
	Use:   "sync <environment-id>",
	Short: "Request and run a sync pass for an environment",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		environmentID := cmd.Flags().Arg(0)
		tenantID := app.Config.App.Tenant

		kinds := []ports.JobKind{ports.JobKindRepoSync, ports.JobKindEnvSync}
		switch syncKind {
		case "both":
		case string(ports.JobKindRepoSync):
			kinds = []ports.JobKind{ports.JobKindRepoSync}
		case string(ports.JobKindEnvSync):
			kinds = []ports.JobKind{ports.JobKindEnvSync}
		default:
			return errs.Newf("unknown sync kind %q", syncKind)
		}

		for _, kind := range kinds {
			job, isNew, err := deps.Sync.RequestSync(ctx, tenantID, environmentID, kind, "cli")
			if err != nil {
				return errs.Wrapf(err, "request %s", kind)
			}
			if !isNew {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: job %s already active (%s), skipping\n", kind, job.ID, job.Status)
				continue
			}
			if err := deps.Sync.RunJob(ctx, job); err != nil {
				return errs.Wrapf(err, "run %s job %s", kind, job.ID)
			}
			finished, err := deps.Jobs.Get(ctx, job.ID)
			if err != nil {
				return errs.Wrap(err, "fetch job result")
			}
			if finished.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: job %s %s: %s\n", kind, finished.ID, finished.Status, finished.Error)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: job %s %s\n", kind, finished.ID, finished.Status)
		}
		return nil
	}),
}

var syncCancelCmd = &cobra.Command{
	Use:   "sync-cancel <job-id>",
	Short: "Cancel an active sync job",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, deps appDeps) error {
		jobID := cmd.Flags().Arg(0)
		if err := deps.Sync.CancelJob(cmd.Context(), jobID); err != nil {
			return errs.Wrapf(err, "cancel job %s", jobID)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "job cancelled: %s\n", jobID)
		return err
	}),
}

func init() {
	syncCmd.Flags().StringVar(&syncKind, "kind", "both", "Sync kind: repo_sync, env_sync or both")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(syncCancelCmd)
}
