package drift

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"driftline/internal/bootstrap/logging"
	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// severity thresholds by affected workflow count.
const highSeverityThreshold = 5

// CheckEnvironmentDrift compares each linked runtime observation against its
// repository observation and opens an incident when they diverge. Policy: at
// most one open incident per environment; an existing open incident absorbs
// newly detected drift without a second record.
func (s *Service) CheckEnvironmentDrift(ctx context.Context, tenantID, environmentID string) (*IncidentView, error) {
	mappings, err := s.workflows.ListEnvMaps(ctx, tenantID, environmentID)
	if err != nil {
		return nil, errs.Wrap(err, "list environment mappings")
	}
	gitStates, err := s.workflows.ListGitStates(ctx, tenantID, environmentID)
	if err != nil {
		return nil, errs.Wrap(err, "list git states")
	}
	gitByCanonical := make(map[string]ports.GitState, len(gitStates))
	for _, state := range gitStates {
		gitByCanonical[state.CanonicalID] = state
	}

	affected := make([]string, 0)
	snapshot := make(map[string]any)
	for _, mapping := range mappings {
		if mapping.Status != "linked" || mapping.EnvContentHash == "" {
			continue
		}
		gitState, tracked := gitByCanonical[mapping.CanonicalID]
		if !tracked || gitState.GitContentHash == mapping.EnvContentHash {
			continue
		}
		affected = append(affected, mapping.CanonicalID)
		snapshot[mapping.CanonicalID] = map[string]any{
			"env_content_hash": mapping.EnvContentHash,
			"git_content_hash": gitState.GitContentHash,
			"git_path":         gitState.GitPath,
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}
	sort.Strings(affected)

	existing, err := s.incidents.FindOpenIncident(ctx, tenantID, environmentID)
	if err == nil {
		view := s.view(existing)
		return &view, nil
	}
	if !errors.Is(err, ports.ErrIncidentNotFound) {
		return nil, errs.Wrap(err, "find open incident")
	}

	severity := "medium"
	if len(affected) >= highSeverityThreshold {
		severity = "high"
	}

	now := s.now()
	incident := ports.DriftIncident{
		ID:                newIncidentID(),
		TenantID:          tenantID,
		EnvironmentID:     environmentID,
		Status:            domaindrift.IncidentDetected,
		Severity:          severity,
		AffectedWorkflows: affected,
		DriftSnapshot:     snapshot,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err := s.incidents.CreateIncident(txCtx, incident)
		if err != nil {
			return errs.Wrap(err, "create incident")
		}
		incident = created
		return s.incidents.AppendTransition(txCtx, ports.IncidentTransition{
			IncidentID: incident.ID,
			FromStatus: "",
			ToStatus:   domaindrift.IncidentDetected,
			Actor:      "detector",
			CreatedAt:  now,
		})
	}); err != nil {
		return nil, err
	}

	s.emit(ctx, tenantID, "drift.detected", map[string]any{
		"incident_id":        incident.ID,
		"environment_id":     environmentID,
		"severity":           severity,
		"affected_workflows": affected,
	})
	logging.Info(ctx, "drift incident opened",
		slog.String("incident_id", incident.ID),
		slog.String("environment_id", environmentID),
		slog.Int("affected", len(affected)),
	)

	view := s.view(incident)
	return &view, nil
}
