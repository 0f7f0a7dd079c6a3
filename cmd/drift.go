/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"driftline/internal/bootstrap"
	"driftline/internal/bootstrap/logging"
	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
	"driftline/internal/usecase/drift"
)

var (
	driftActor          string
	driftReason         string
	driftOwner          string
	driftTicket         string
	driftTTLHours       int
	driftOverride       bool
	driftResolutionType string
	driftRetentionDays  int
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Inspect and manage drift incidents",
}

var driftCheckCmd = &cobra.Command{
	Use:   "check <environment-id>",
	Short: "Scan an environment for drift and open an incident if found",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		environmentID := cmd.Flags().Arg(0)

		incident, err := deps.Drift.CheckEnvironmentDrift(ctx, app.Config.App.Tenant, environmentID)
		if err != nil {
			return errs.Wrapf(err, "check drift in %s", environmentID)
		}
		if incident == nil {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "no drift detected")
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "incident %s: %s severity=%s affected=%d\n",
			incident.ID, incident.Status, incident.Severity, len(incident.AffectedWorkflows))
		return err
	}),
}

var driftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drift incidents",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		incidents, err := deps.Drift.ListIncidents(cmd.Context(), app.Config.App.Tenant, ports.IncidentFilter{})
		if err != nil {
			return errs.Wrap(err, "list incidents")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENV\tSTATUS\tSEVERITY\tEXPIRED\tCREATED")
		for _, incident := range incidents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				incident.ID, incident.EnvironmentID, incident.Status, incident.Severity,
				incident.Expired, incident.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	}),
}

func transitionCommand(use, short string, apply func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
			in := drift.TransitionInput{
				IncidentID:    cmd.Flags().Arg(0),
				Actor:         driftActor,
				Reason:        driftReason,
				OwnerUserID:   driftOwner,
				TicketRef:     driftTicket,
				AdminOverride: driftOverride,
			}
			if driftTTLHours > 0 {
				at := time.Now().UTC().Add(time.Duration(driftTTLHours) * time.Hour)
				in.ExpiresAt = &at
			}
			return apply(cmd, app.Config.App.Tenant, deps, in)
		}),
	}
}

func reportIncident(cmd *cobra.Command, incident drift.IncidentView, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "incident %s is now %s\n", incident.ID, incident.Status)
	return err
}

var driftPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge drift snapshots past the retention window",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		retention := time.Duration(driftRetentionDays) * 24 * time.Hour

		purged, err := deps.Drift.PurgeIncidentPayloads(ctx, app.Config.App.Tenant, retention)
		if err != nil {
			return errs.Wrap(err, "purge incident payloads")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged payloads of %d incidents\n", purged)
		return err
	}),
}

var approvalRequestCmd = &cobra.Command{
	Use:   "request-approval <incident-id> <approval-type>",
	Short: "Request a privileged action approval on an incident",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		payload := map[string]any{}
		if driftReason != "" {
			payload["reason"] = driftReason
		}
		if driftResolutionType != "" {
			payload["resolution_type"] = driftResolutionType
		}
		if driftTTLHours > 0 {
			payload["expires_at"] = time.Now().UTC().Add(time.Duration(driftTTLHours) * time.Hour).Format(time.RFC3339)
		}

		approval, err := deps.Drift.RequestApproval(cmd.Context(),
			app.Config.App.Tenant,
			cmd.Flags().Arg(0),
			domaindrift.ApprovalType(cmd.Flags().Arg(1)),
			driftActor,
			payload)
		if err != nil {
			return errs.Wrap(err, "request approval")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "approval requested: %s\n", approval.ID)
		return err
	}),
}

var approvalApproveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending request and execute its action",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		approval, err := deps.Drift.Approve(cmd.Context(), app.Config.App.Tenant, cmd.Flags().Arg(0), driftActor)
		if err != nil {
			return errs.Wrap(err, "approve request")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "approval %s: %s\n", approval.ID, approval.Status)
		return err
	}),
}

var approvalRejectCmd = &cobra.Command{
	Use:   "reject <approval-id>",
	Short: "Reject a pending approval request",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, deps appDeps) error {
		approval, err := deps.Drift.Reject(cmd.Context(), app.Config.App.Tenant, cmd.Flags().Arg(0), driftActor)
		if err != nil {
			return errs.Wrap(err, "reject request")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "approval %s: %s\n", approval.ID, approval.Status)
		return err
	}),
}

func init() {
	ackCmd := transitionCommand("acknowledge <incident-id>", "Acknowledge a detected incident",
		func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error {
			incident, err := deps.Drift.Acknowledge(cmd.Context(), tenantID, in)
			return reportIncident(cmd, incident, err)
		})
	stabilizeCmd := transitionCommand("stabilize <incident-id>", "Mark an incident as stabilized",
		func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error {
			incident, err := deps.Drift.Stabilize(cmd.Context(), tenantID, in)
			return reportIncident(cmd, incident, err)
		})
	reconciledCmd := transitionCommand("reconciled <incident-id>", "Mark an incident as reconciled",
		func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error {
			incident, err := deps.Drift.MarkReconciled(cmd.Context(), tenantID, in)
			return reportIncident(cmd, incident, err)
		})
	extendCmd := transitionCommand("extend <incident-id>", "Extend the TTL of an incident",
		func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error {
			incident, err := deps.Drift.ExtendTTL(cmd.Context(), tenantID, in)
			return reportIncident(cmd, incident, err)
		})
	closeCmd := transitionCommand("close <incident-id>", "Close an incident",
		func(cmd *cobra.Command, tenantID string, deps appDeps, in drift.TransitionInput) error {
			incident, err := deps.Drift.Close(cmd.Context(), tenantID, drift.CloseInput{
				TransitionInput: in,
				ResolutionType:  driftResolutionType,
			})
			return reportIncident(cmd, incident, err)
		})

	driftCmd.PersistentFlags().StringVar(&driftActor, "actor", "cli", "Acting user id")
	driftCmd.PersistentFlags().StringVar(&driftReason, "reason", "", "Transition reason")
	driftCmd.PersistentFlags().StringVar(&driftOwner, "owner", "", "Assign an incident owner")
	driftCmd.PersistentFlags().StringVar(&driftTicket, "ticket", "", "External ticket reference")
	driftCmd.PersistentFlags().IntVar(&driftTTLHours, "ttl-hours", 0, "Set a new TTL, hours from now")
	driftCmd.PersistentFlags().BoolVar(&driftOverride, "admin-override", false, "Bypass lifecycle guards")
	closeCmd.Flags().StringVar(&driftResolutionType, "resolution", "", "Resolution type, required before reconciled")
	approvalRequestCmd.Flags().StringVar(&driftResolutionType, "resolution", "", "Resolution type for close approvals")
	driftPurgeCmd.Flags().IntVar(&driftRetentionDays, "retention-days", 90, "Snapshot retention window in days")

	driftCmd.AddCommand(driftCheckCmd, driftListCmd, ackCmd, stabilizeCmd, reconciledCmd, extendCmd, closeCmd, driftPurgeCmd)
	driftCmd.AddCommand(approvalRequestCmd, approvalApproveCmd, approvalRejectCmd)
	rootCmd.AddCommand(driftCmd)
}
