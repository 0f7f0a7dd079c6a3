package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/normalize"
	"driftline/internal/ports"
)

// SyncEnvironment pulls live runtime state into the identity store. Runtime
// listing failure fails the job; per-workflow fetch failures are collected
// and do not abort the pass.
func (s *Service) SyncEnvironment(ctx context.Context, tenantID, environmentID string) (EnvSyncResult, error) {
	var result EnvSyncResult

	env, err := s.workflows.GetEnvironment(ctx, tenantID, environmentID)
	if err != nil {
		return result, errs.Wrap(err, "load environment")
	}

	runtime := s.runtime(env)
	if runtime == nil {
		return result, errs.Newf("no runtime adapter for environment %s", env.ID)
	}

	summaries, err := runtime.GetWorkflows(ctx)
	if err != nil {
		return result, errs.Wrap(err, "list runtime workflows")
	}

	canonicals, err := s.workflows.ListCanonicalWorkflows(ctx, tenantID, ports.CanonicalWorkflowFilter{})
	if err != nil {
		return result, errs.Wrap(err, "list canonical workflows")
	}
	mappings, err := s.workflows.ListEnvMaps(ctx, tenantID, environmentID)
	if err != nil {
		return result, errs.Wrap(err, "list environment mappings")
	}
	mappedCanonicals := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		mappedCanonicals[m.CanonicalID] = struct{}{}
	}

	for _, summary := range summaries {
		if s.cancelled(ctx) {
			break
		}

		if err := s.syncRuntimeWorkflow(ctx, env, runtime, summary, canonicals, mappedCanonicals, &result); err != nil {
			result.Errors = append(result.Errors, ItemError{Item: summary.ID, Message: err.Error()})
			logging.Warn(ctx, "runtime workflow skipped",
				slog.String("n8n_workflow_id", summary.ID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		result.ObservedIDs = append(result.ObservedIDs, summary.ID)
	}

	logging.Info(ctx, "environment sync pass finished",
		slog.Int("observed", len(result.ObservedIDs)),
		slog.Int("created", len(result.CreatedIDs)),
		slog.Int("updated", len(result.UpdatedIDs)),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *Service) syncRuntimeWorkflow(
	ctx context.Context,
	env ports.Environment,
	runtime ports.RuntimeAdapter,
	summary ports.RuntimeWorkflowSummary,
	canonicals []ports.CanonicalWorkflow,
	mappedCanonicals map[string]struct{},
	result *EnvSyncResult,
) error {
	definition, err := runtime.GetWorkflow(ctx, summary.ID)
	if err != nil {
		return errs.Wrap(err, "fetch workflow definition")
	}

	hash, err := normalize.HashDefinition(definition)
	if err != nil {
		return errs.Wrap(err, "hash workflow definition")
	}

	now := s.now()

	mapping, err := s.workflows.GetEnvMapByRuntimeID(ctx, env.TenantID, env.ID, summary.ID)
	switch {
	case err == nil:
		changed := mapping.EnvContentHash != hash
		mapping.EnvContentHash = hash
		mapping.LastEnvSyncAt = &now
		if changed {
			mapping.LastEnvChangeAt = &now
		}
		if err := s.workflows.UpsertEnvMap(ctx, mapping); err != nil {
			return errs.Wrap(err, "refresh environment mapping")
		}
		if changed {
			result.UpdatedIDs = append(result.UpdatedIDs, mapping.CanonicalID)
		}
		return nil

	case !errors.Is(err, ports.ErrEnvMapNotFound):
		return errs.Wrap(err, "load environment mapping")
	}

	// Untracked runtime workflow. When it closely resembles an existing
	// canonical with no mapping here, suggest the link for a human to accept
	// instead of minting a duplicate identity.
	if suggested, err := s.suggestLink(ctx, env, summary, canonicals, mappedCanonicals); err != nil {
		return err
	} else if suggested {
		return nil
	}

	canonicalID, err := s.mintCanonicalID(ctx, env.TenantID, summary.Name)
	if err != nil {
		return err
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.workflows.CreateCanonicalWorkflow(txCtx, ports.CanonicalWorkflow{
			TenantID:            env.TenantID,
			CanonicalID:         canonicalID,
			DisplayName:         summary.Name,
			OriginEnvironmentID: env.ID,
			CreatedAt:           now,
		}); err != nil {
			return errs.Wrap(err, "create canonical workflow")
		}
		if err := s.workflows.UpsertEnvMap(txCtx, ports.EnvMap{
			TenantID:        env.TenantID,
			EnvironmentID:   env.ID,
			CanonicalID:     canonicalID,
			N8NWorkflowID:   summary.ID,
			EnvContentHash:  hash,
			LastEnvSyncAt:   &now,
			LastEnvChangeAt: &now,
			LinkedAt:        &now,
			Status:          "linked",
		}); err != nil {
			return errs.Wrap(err, "create environment mapping")
		}

		mappedCanonicals[canonicalID] = struct{}{}
		result.CreatedIDs = append(result.CreatedIDs, canonicalID)
		return nil
	})
}

// mintCanonicalID derives a stable id from the workflow name, suffixing a
// short random tail on collision with an existing identity.
func (s *Service) mintCanonicalID(ctx context.Context, tenantID, name string) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "workflow"
	}

	_, err := s.workflows.GetCanonicalWorkflow(ctx, tenantID, base, ports.CanonicalWorkflowFilter{IncludeDeleted: true})
	if errors.Is(err, ports.ErrWorkflowNotFound) {
		return base, nil
	}
	if err != nil {
		return "", errs.Wrap(err, "check canonical id collision")
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(strings.Join(strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' }), "-"), "-")
}
