/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"driftline/internal/bootstrap"
	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <environment-id>",
	Short: "Recompute diff states for all pairs involving an environment",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		environmentID := cmd.Flags().Arg(0)

		if err := deps.Sync.Reconcile(ctx, app.Config.App.Tenant, environmentID); err != nil {
			return errs.Wrapf(err, "reconcile environment %s", environmentID)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "reconciliation completed for environment %s\n", environmentID)
		return err
	}),
}

var diffCmd = &cobra.Command{
	Use:   "diff <source-environment-id> <target-environment-id>",
	Short: "Show diff states between two environments",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		sourceEnvID := cmd.Flags().Arg(0)
		targetEnvID := cmd.Flags().Arg(1)

		states, err := deps.Sync.DiffStatesFor(cmd.Context(), app.Config.App.Tenant, sourceEnvID, targetEnvID)
		if err != nil {
			return errs.Wrap(err, "list diff states")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CANONICAL\tSTATUS\tCOMPUTED")
		for _, state := range states {
			fmt.Fprintf(w, "%s\t%s\t%s\n", state.CanonicalID, state.DiffStatus, state.ComputedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status <environment-id> <canonical-id>",
	Short: "Resolve the sync status of one workflow in an environment",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		environmentID := cmd.Flags().Arg(0)
		canonicalID := cmd.Flags().Arg(1)

		status, err := deps.Sync.WorkflowSyncStatus(cmd.Context(), app.Config.App.Tenant, environmentID, canonicalID)
		if err != nil {
			return errs.Wrap(err, "resolve sync status")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", status)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(statusCmd)
}
