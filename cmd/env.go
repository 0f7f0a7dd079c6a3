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
	"driftline/internal/ports"
)

var (
	envName         string
	envOrdinal      int
	envRuntimeURL   string
	envRepoFolder   string
	envRepoBranch   string
	envSyncInterval int
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage tenant environments",
}

var envAddCmd = &cobra.Command{
	Use:   "add <environment-id>",
	Short: "Register an environment",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		env, err := deps.Sync.RegisterEnvironment(ctx, ports.Environment{
			ID:                  cmd.Flags().Arg(0),
			TenantID:            app.Config.App.Tenant,
			Name:                envName,
			Ordinal:             envOrdinal,
			RuntimeBaseURL:      envRuntimeURL,
			RepoFolder:          envRepoFolder,
			RepoBranch:          envRepoBranch,
			SyncIntervalSeconds: envSyncInterval,
		})
		if err != nil {
			return errs.Wrap(err, "register environment")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "environment registered: %s (ordinal %d)\n", env.ID, env.Ordinal)
		return err
	}),
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered environments",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		envs, err := deps.Sync.Environments(cmd.Context(), app.Config.App.Tenant)
		if err != nil {
			return errs.Wrap(err, "list environments")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tORDINAL\tRUNTIME\tFOLDER\tBRANCH\tINTERVAL")
		for _, env := range envs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%ds\n",
				env.ID, env.Name, env.Ordinal, env.RuntimeBaseURL, env.RepoFolder, env.RepoBranch, env.SyncIntervalSeconds)
		}
		return w.Flush()
	}),
}

func init() {
	envAddCmd.Flags().StringVar(&envName, "name", "", "Display name (defaults to the id)")
	envAddCmd.Flags().IntVar(&envOrdinal, "ordinal", 0, "Promotion order, lower promotes into higher")
	envAddCmd.Flags().StringVar(&envRuntimeURL, "runtime-url", "", "Automation runtime base URL")
	envAddCmd.Flags().StringVar(&envRepoFolder, "repo-folder", "workflows", "Workflow folder inside the repository")
	envAddCmd.Flags().StringVar(&envRepoBranch, "repo-branch", "main", "Repository branch to track")
	envAddCmd.Flags().IntVar(&envSyncInterval, "sync-interval", 300, "Scheduled sync interval in seconds, 0 disables")

	envCmd.AddCommand(envAddCmd)
	envCmd.AddCommand(envListCmd)
	rootCmd.AddCommand(envCmd)
}
