package sync

import (
	"context"
	"log/slog"
	"sort"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// Reconcile recomputes DiffState for every environment pair touching
// changedEnvironmentID. Rows are fully derived and replaced wholesale per
// pair, so concurrent passes are idempotent and out-of-order completion is
// harmless.
func (s *Service) Reconcile(ctx context.Context, tenantID, changedEnvironmentID string) error {
	changed, err := s.workflows.GetEnvironment(ctx, tenantID, changedEnvironmentID)
	if err != nil {
		return errs.Wrap(err, "load changed environment")
	}

	environments, err := s.workflows.ListEnvironments(ctx, tenantID)
	if err != nil {
		return errs.Wrap(err, "list environments")
	}

	canonicals, err := s.workflows.ListCanonicalWorkflows(ctx, tenantID, ports.CanonicalWorkflowFilter{})
	if err != nil {
		return errs.Wrap(err, "list canonical workflows")
	}
	originOrdinals := make(map[string]int, len(canonicals))
	envOrdinals := make(map[string]int, len(environments))
	for _, env := range environments {
		envOrdinals[env.ID] = env.Ordinal
	}
	for _, canonical := range canonicals {
		originOrdinals[canonical.CanonicalID] = envOrdinals[canonical.OriginEnvironmentID]
	}

	for _, other := range environments {
		if other.ID == changed.ID {
			continue
		}
		if s.cancelled(ctx) {
			return nil
		}

		// Promotion order decides direction: the lower ordinal is the source.
		source, target := changed, other
		if other.Ordinal < changed.Ordinal {
			source, target = other, changed
		}

		if err := s.reconcilePair(ctx, tenantID, source, target, originOrdinals); err != nil {
			return errs.Wrapf(err, "reconcile %s -> %s", source.ID, target.ID)
		}
	}
	return nil
}

func (s *Service) reconcilePair(ctx context.Context, tenantID string, source, target ports.Environment, originOrdinals map[string]int) error {
	sourceMaps, err := s.workflows.ListEnvMaps(ctx, tenantID, source.ID)
	if err != nil {
		return errs.Wrap(err, "list source mappings")
	}
	targetMaps, err := s.workflows.ListEnvMaps(ctx, tenantID, target.ID)
	if err != nil {
		return errs.Wrap(err, "list target mappings")
	}

	previous, err := s.workflows.ListDiffStates(ctx, tenantID, source.ID, target.ID)
	if err != nil {
		return errs.Wrap(err, "list previous diff states")
	}
	previousComputedAt := make(map[string]ports.DiffState, len(previous))
	for _, row := range previous {
		previousComputedAt[row.CanonicalID] = row
	}

	bySource := make(map[string]ports.EnvMap, len(sourceMaps))
	canonicalIDs := make(map[string]struct{}, len(sourceMaps)+len(targetMaps))
	for _, m := range sourceMaps {
		if m.Status != "linked" {
			continue
		}
		bySource[m.CanonicalID] = m
		canonicalIDs[m.CanonicalID] = struct{}{}
	}
	byTarget := make(map[string]ports.EnvMap, len(targetMaps))
	for _, m := range targetMaps {
		if m.Status != "linked" {
			continue
		}
		byTarget[m.CanonicalID] = m
		canonicalIDs[m.CanonicalID] = struct{}{}
	}

	// Repository-side rows count as presence too: a workflow tracked in an
	// environment's repo folder is part of that environment even before a
	// runtime link exists.
	sourceGit, err := s.workflows.ListGitStates(ctx, tenantID, source.ID)
	if err != nil {
		return errs.Wrap(err, "list source git states")
	}
	targetGit, err := s.workflows.ListGitStates(ctx, tenantID, target.ID)
	if err != nil {
		return errs.Wrap(err, "list target git states")
	}
	sourceGitHash := make(map[string]string, len(sourceGit))
	for _, g := range sourceGit {
		sourceGitHash[g.CanonicalID] = g.GitContentHash
		canonicalIDs[g.CanonicalID] = struct{}{}
	}
	targetGitHash := make(map[string]string, len(targetGit))
	for _, g := range targetGit {
		targetGitHash[g.CanonicalID] = g.GitContentHash
		canonicalIDs[g.CanonicalID] = struct{}{}
	}

	ordered := make([]string, 0, len(canonicalIDs))
	for id := range canonicalIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	now := s.now()
	rows := make([]ports.DiffState, 0, len(ordered))
	for _, canonicalID := range ordered {
		sourceMap, inSource := bySource[canonicalID]
		targetMap, inTarget := byTarget[canonicalID]

		sourcePresent, sourceHash := inSource, sourceMap.EnvContentHash
		if !sourcePresent {
			if hash, ok := sourceGitHash[canonicalID]; ok {
				sourcePresent, sourceHash = true, hash
			}
		}
		targetPresent, targetHash := inTarget, targetMap.EnvContentHash
		if !targetPresent {
			if hash, ok := targetGitHash[canonicalID]; ok {
				targetPresent, targetHash = true, hash
			}
		}

		in := drift.DiffInput{
			SourcePresent:         sourcePresent,
			TargetPresent:         targetPresent,
			SourceHash:            sourceHash,
			TargetHash:            targetHash,
			OriginInSourceLineage: originOrdinals[canonicalID] <= source.Ordinal,
		}
		// A pair already known as modified stays modified on a mere re-sync of
		// the target; only a fresh divergence counts as an out-of-band edit.
		if prev, ok := previousComputedAt[canonicalID]; ok && inTarget && targetMap.LastEnvSyncAt != nil && prev.DiffStatus != drift.DiffModified {
			in.TargetChangedSinceLastPass = targetMap.LastEnvSyncAt.After(prev.ComputedAt)
		}

		status, ok := drift.ClassifyDiff(in)
		if !ok {
			continue // pruned by the full replace below
		}
		rows = append(rows, ports.DiffState{
			TenantID:    tenantID,
			SourceEnvID: source.ID,
			TargetEnvID: target.ID,
			CanonicalID: canonicalID,
			DiffStatus:  status,
			ComputedAt:  now,
		})
	}

	if err := s.workflows.ReplaceDiffStates(ctx, tenantID, source.ID, target.ID, rows); err != nil {
		return errs.Wrap(err, "replace diff states")
	}

	logging.Debug(ctx, "pair reconciled",
		slog.String("source_env", source.ID),
		slog.String("target_env", target.ID),
		slog.Int("rows", len(rows)),
	)
	return nil
}

// DiffStatesFor returns the current derived rows for one ordered pair.
func (s *Service) DiffStatesFor(ctx context.Context, tenantID, sourceEnvID, targetEnvID string) ([]ports.DiffState, error) {
	rows, err := s.workflows.ListDiffStates(ctx, tenantID, sourceEnvID, targetEnvID)
	if err != nil {
		return nil, errs.Wrap(err, "list diff states")
	}
	return rows, nil
}
