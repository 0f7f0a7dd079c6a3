/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"driftline/internal/bootstrap"
	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/usecase/driftconsole"
)

var (
	consoleEnvironmentID  string
	consoleStatusFilter   string
	consoleRefreshSeconds int
)

// driftConsoleCmd represents the drift incident console
var driftConsoleCmd = &cobra.Command{
	Use:   "drift",
	Short: "Live drift incident console",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		model := driftconsole.NewIncidentModel(ctx, deps.Drift, driftconsole.Options{
			TenantID:        app.Config.App.Tenant,
			EnvironmentID:   consoleEnvironmentID,
			StatusFilter:    consoleStatusFilter,
			RefreshInterval: time.Duration(consoleRefreshSeconds) * time.Second,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run drift console")
		}
		return nil
	}),
}

func init() {
	driftConsoleCmd.Flags().StringVar(&consoleEnvironmentID, "environment", "", "Restrict to one environment")
	driftConsoleCmd.Flags().StringVar(&consoleStatusFilter, "status", "open", "Status filter: open, all or a lifecycle status")
	driftConsoleCmd.Flags().IntVar(&consoleRefreshSeconds, "refresh", 5, "Refresh interval in seconds")

	consoleCmd.AddCommand(driftConsoleCmd)
}
