package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// WorkflowSyncStatus labels one workflow's own divergence between its live
// runtime copy and its repository copy.
func (s *Service) WorkflowSyncStatus(ctx context.Context, tenantID, environmentID, canonicalID string) (drift.SyncStatus, error) {
	env, err := s.workflows.GetEnvironment(ctx, tenantID, environmentID)
	if err != nil {
		return "", errs.Wrap(err, "load environment")
	}

	mapping, err := s.workflows.GetEnvMap(ctx, tenantID, environmentID, canonicalID)
	if err != nil {
		return "", errs.Wrap(err, "load environment mapping")
	}

	runtime := s.runtime(env)
	if runtime == nil {
		return "", errs.Newf("no runtime adapter for environment %s", env.ID)
	}
	runtimeDefinition, err := runtime.GetWorkflow(ctx, mapping.N8NWorkflowID)
	if err != nil {
		return "", errs.Wrap(err, "fetch runtime workflow")
	}

	// LastEnvSyncAt advances on every pass and would read as a perpetual
	// runtime edit; only the change anchor marks real runtime movement.
	runtimeUpdated := mapping.LastEnvChangeAt
	if runtimeUpdated == nil {
		runtimeUpdated = mapping.LinkedAt
	}
	in := drift.SyncStatusInput{
		RuntimeDefinition: runtimeDefinition,
		LastSyncedAt:      mapping.LinkedAt,
		RuntimeUpdatedAt:  runtimeUpdated,
	}

	gitState, err := s.workflows.GetGitState(ctx, tenantID, environmentID, canonicalID)
	switch {
	case errors.Is(err, ports.ErrGitStateNotFound):
		// No repository version; RepoDefinition stays nil.
	case err != nil:
		return "", errs.Wrap(err, "load git state")
	default:
		raw, err := s.repo.GetFileContent(ctx, gitState.GitPath, env.RepoBranch)
		if err != nil {
			return "", errs.Wrap(err, "fetch repository workflow")
		}
		if raw != nil {
			var repoDefinition map[string]any
			if err := json.Unmarshal(raw, &repoDefinition); err != nil {
				return "", errs.Wrapf(err, "decode %s", gitState.GitPath)
			}
			in.RepoDefinition = repoDefinition
			in.RepoUpdatedAt = gitState.LastRepoSyncAt
		}
	}

	status, err := drift.ResolveSyncStatus(in)
	if err != nil {
		return "", errs.Wrap(err, "resolve sync status")
	}
	return status, nil
}

// ComputeMappingStatus classifies one runtime workflow's mapping state.
// Inconsistent combinations are logged, counted, and defaulted to untracked:
// onboarding and partial-sync windows produce them transiently.
func (s *Service) ComputeMappingStatus(ctx context.Context, tenantID, environmentID, n8nWorkflowID string, presentInRuntime bool) (drift.MappingStatus, error) {
	in := drift.MappingInput{PresentInRuntime: presentInRuntime}

	mapping, err := s.workflows.GetEnvMapByRuntimeID(ctx, tenantID, environmentID, n8nWorkflowID)
	switch {
	case errors.Is(err, ports.ErrEnvMapNotFound):
		// No mapping row at all: untracked or missing by runtime presence.
	case err != nil:
		return "", errs.Wrap(err, "load environment mapping")
	default:
		in.HasRuntimeID = mapping.N8NWorkflowID != ""
		in.Ignored = mapping.Status == "ignored"
		in.Deleted = mapping.Status == "deleted"

		canonical, err := s.workflows.GetCanonicalWorkflow(ctx, tenantID, mapping.CanonicalID, ports.CanonicalWorkflowFilter{IncludeDeleted: true})
		switch {
		case errors.Is(err, ports.ErrWorkflowNotFound):
		case err != nil:
			return "", errs.Wrap(err, "load canonical workflow")
		default:
			in.HasCanonicalID = true
			if canonical.DeletedAt != nil {
				in.Deleted = true
			}
		}
	}

	status, consistent := drift.ClassifyMapping(in)
	if !consistent {
		mappingInconsistencies.Add(1)
		logging.Warn(ctx, "inconsistent mapping state defaulted to untracked",
			slog.String("environment_id", environmentID),
			slog.String("n8n_workflow_id", n8nWorkflowID),
			slog.Bool("present_in_runtime", presentInRuntime),
		)
	}
	return status, nil
}
