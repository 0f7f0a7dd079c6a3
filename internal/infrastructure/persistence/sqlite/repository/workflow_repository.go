package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/infrastructure/persistence/sqlite/model"
	"driftline/internal/ports"
)

// WorkflowRepository is the canonical identity store: environments, workflow
// identities, per-environment git/runtime observations, diff states and link
// suggestions.
type WorkflowRepository struct {
	db *gorm.DB
}

var _ ports.WorkflowRepository = (*WorkflowRepository)(nil)

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func (r *WorkflowRepository) CreateEnvironment(ctx context.Context, env ports.Environment) (ports.Environment, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.Environment{}, err
	}

	row := model.Environment{
		ID:                  env.ID,
		TenantID:            env.TenantID,
		Name:                env.Name,
		Ordinal:             env.Ordinal,
		RuntimeBaseURL:      env.RuntimeBaseURL,
		RepoFolder:          env.RepoFolder,
		RepoBranch:          env.RepoBranch,
		SyncIntervalSeconds: env.SyncIntervalSeconds,
		LastSyncAttemptedAt: env.LastSyncAttemptedAt,
		LastSyncCompletedAt: env.LastSyncCompletedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Environment{}, errs.Wrap(err, "insert environment")
	}
	return mapEnvironment(row), nil
}

func (r *WorkflowRepository) GetEnvironment(ctx context.Context, tenantID, environmentID string) (ports.Environment, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.Environment{}, err
	}

	var row model.Environment
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, environmentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Environment{}, ports.ErrEnvironmentNotFound
		}
		return ports.Environment{}, errs.Wrap(err, "query environment")
	}
	return mapEnvironment(row), nil
}

func (r *WorkflowRepository) ListEnvironments(ctx context.Context, tenantID string) ([]ports.Environment, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Environment
	if err := db.Where("tenant_id = ?", tenantID).Order("ordinal asc, id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query environments")
	}

	items := make([]ports.Environment, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEnvironment(row))
	}
	return items, nil
}

func (r *WorkflowRepository) TouchSyncAttempted(ctx context.Context, tenantID, environmentID string, at time.Time) error {
	return r.touchEnvironment(ctx, tenantID, environmentID, "last_sync_attempted_at", at)
}

func (r *WorkflowRepository) TouchSyncCompleted(ctx context.Context, tenantID, environmentID string, at time.Time) error {
	return r.touchEnvironment(ctx, tenantID, environmentID, "last_sync_completed_at", at)
}

func (r *WorkflowRepository) touchEnvironment(ctx context.Context, tenantID, environmentID, column string, at time.Time) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.Environment{}).
		Where("tenant_id = ? AND id = ?", tenantID, environmentID).
		Update(column, at)
	if result.Error != nil {
		return errs.Wrapf(result.Error, "update environment %s", column)
	}
	if result.RowsAffected == 0 {
		return ports.ErrEnvironmentNotFound
	}
	return nil
}

func (r *WorkflowRepository) CreateCanonicalWorkflow(ctx context.Context, wf ports.CanonicalWorkflow) (ports.CanonicalWorkflow, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.CanonicalWorkflow{}, err
	}

	row := model.CanonicalWorkflow{
		TenantID:            wf.TenantID,
		CanonicalID:         wf.CanonicalID,
		DisplayName:         wf.DisplayName,
		OriginEnvironmentID: wf.OriginEnvironmentID,
		CreatedAt:           wf.CreatedAt,
		DeletedAt:           wf.DeletedAt,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return ports.CanonicalWorkflow{}, errs.Wrap(err, "insert canonical workflow")
	}
	return mapCanonicalWorkflow(row), nil
}

func (r *WorkflowRepository) GetCanonicalWorkflow(ctx context.Context, tenantID, canonicalID string, filter ports.CanonicalWorkflowFilter) (ports.CanonicalWorkflow, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.CanonicalWorkflow{}, err
	}

	query := db.Where("tenant_id = ? AND canonical_id = ?", tenantID, canonicalID)
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	var row model.CanonicalWorkflow
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.CanonicalWorkflow{}, ports.ErrWorkflowNotFound
		}
		return ports.CanonicalWorkflow{}, errs.Wrap(err, "query canonical workflow")
	}
	return mapCanonicalWorkflow(row), nil
}

func (r *WorkflowRepository) ListCanonicalWorkflows(ctx context.Context, tenantID string, filter ports.CanonicalWorkflowFilter) ([]ports.CanonicalWorkflow, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("tenant_id = ?", tenantID)
	if !filter.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	var rows []model.CanonicalWorkflow
	if err := query.Order("canonical_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query canonical workflows")
	}

	items := make([]ports.CanonicalWorkflow, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCanonicalWorkflow(row))
	}
	return items, nil
}

func (r *WorkflowRepository) SoftDeleteCanonicalWorkflow(ctx context.Context, tenantID, canonicalID string, at time.Time) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.CanonicalWorkflow{}).
		Where("tenant_id = ? AND canonical_id = ? AND deleted_at IS NULL", tenantID, canonicalID).
		Update("deleted_at", at)
	if result.Error != nil {
		return errs.Wrap(result.Error, "tombstone canonical workflow")
	}
	if result.RowsAffected == 0 {
		return ports.ErrWorkflowNotFound
	}
	return nil
}

func (r *WorkflowRepository) UpsertGitState(ctx context.Context, state ports.GitState) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.GitState{
		TenantID:       state.TenantID,
		EnvironmentID:  state.EnvironmentID,
		CanonicalID:    state.CanonicalID,
		GitPath:        state.GitPath,
		GitContentHash: state.GitContentHash,
		GitCommitSHA:   state.GitCommitSHA,
		LastRepoSyncAt: state.LastRepoSyncAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "environment_id"}, {Name: "canonical_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"git_path":          row.GitPath,
			"git_content_hash":  row.GitContentHash,
			"git_commit_sha":    row.GitCommitSHA,
			"last_repo_sync_at": row.LastRepoSyncAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert git state")
	}
	return nil
}

func (r *WorkflowRepository) GetGitState(ctx context.Context, tenantID, environmentID, canonicalID string) (ports.GitState, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.GitState{}, err
	}

	var row model.GitState
	if err := db.Where(
		"tenant_id = ? AND environment_id = ? AND canonical_id = ?",
		tenantID, environmentID, canonicalID,
	).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.GitState{}, ports.ErrGitStateNotFound
		}
		return ports.GitState{}, errs.Wrap(err, "query git state")
	}
	return mapGitState(row), nil
}

func (r *WorkflowRepository) ListGitStates(ctx context.Context, tenantID, environmentID string) ([]ports.GitState, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.GitState
	if err := db.Where("tenant_id = ? AND environment_id = ?", tenantID, environmentID).
		Order("canonical_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query git states")
	}

	items := make([]ports.GitState, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapGitState(row))
	}
	return items, nil
}

func (r *WorkflowRepository) UpsertEnvMap(ctx context.Context, mapping ports.EnvMap) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.EnvMap{
		TenantID:        mapping.TenantID,
		EnvironmentID:   mapping.EnvironmentID,
		CanonicalID:     mapping.CanonicalID,
		N8NWorkflowID:   mapping.N8NWorkflowID,
		EnvContentHash:  mapping.EnvContentHash,
		LastEnvSyncAt:   mapping.LastEnvSyncAt,
		LastEnvChangeAt: mapping.LastEnvChangeAt,
		LinkedAt:        mapping.LinkedAt,
		LinkedByUserID:  mapping.LinkedByUserID,
		Status:          mapping.Status,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "environment_id"}, {Name: "canonical_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"n8n_workflow_id":    row.N8NWorkflowID,
			"env_content_hash":   row.EnvContentHash,
			"last_env_sync_at":   row.LastEnvSyncAt,
			"last_env_change_at": row.LastEnvChangeAt,
			"linked_at":          row.LinkedAt,
			"linked_by_user_id":  row.LinkedByUserID,
			"status":             row.Status,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert env map")
	}
	return nil
}

func (r *WorkflowRepository) GetEnvMap(ctx context.Context, tenantID, environmentID, canonicalID string) (ports.EnvMap, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.EnvMap{}, err
	}

	var row model.EnvMap
	if err := db.Where(
		"tenant_id = ? AND environment_id = ? AND canonical_id = ?",
		tenantID, environmentID, canonicalID,
	).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EnvMap{}, ports.ErrEnvMapNotFound
		}
		return ports.EnvMap{}, errs.Wrap(err, "query env map")
	}
	return mapEnvMap(row), nil
}

func (r *WorkflowRepository) GetEnvMapByRuntimeID(ctx context.Context, tenantID, environmentID, n8nWorkflowID string) (ports.EnvMap, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.EnvMap{}, err
	}

	var row model.EnvMap
	if err := db.Where(
		"tenant_id = ? AND environment_id = ? AND n8n_workflow_id = ?",
		tenantID, environmentID, n8nWorkflowID,
	).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.EnvMap{}, ports.ErrEnvMapNotFound
		}
		return ports.EnvMap{}, errs.Wrap(err, "query env map by runtime id")
	}
	return mapEnvMap(row), nil
}

func (r *WorkflowRepository) ListEnvMaps(ctx context.Context, tenantID, environmentID string) ([]ports.EnvMap, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.EnvMap
	if err := db.Where("tenant_id = ? AND environment_id = ?", tenantID, environmentID).
		Order("canonical_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query env maps")
	}

	items := make([]ports.EnvMap, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEnvMap(row))
	}
	return items, nil
}

// ReplaceDiffStates swaps the whole derived pair in one transaction so a
// reconciliation pass is atomic and idempotent.
func (r *WorkflowRepository) ReplaceDiffStates(ctx context.Context, tenantID, sourceEnvID, targetEnvID string, rows []ports.DiffState) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := dbFrom(ctx, r.db)
		if err != nil {
			return err
		}

		if err := db.Where(
			"tenant_id = ? AND source_env_id = ? AND target_env_id = ?",
			tenantID, sourceEnvID, targetEnvID,
		).Delete(&model.DiffState{}).Error; err != nil {
			return errs.Wrap(err, "delete stale diff states")
		}

		if len(rows) == 0 {
			return nil
		}

		inserts := make([]model.DiffState, 0, len(rows))
		for _, row := range rows {
			inserts = append(inserts, model.DiffState{
				TenantID:    row.TenantID,
				SourceEnvID: row.SourceEnvID,
				TargetEnvID: row.TargetEnvID,
				CanonicalID: row.CanonicalID,
				DiffStatus:  string(row.DiffStatus),
				ComputedAt:  row.ComputedAt,
			})
		}
		if err := db.Create(&inserts).Error; err != nil {
			return errs.Wrap(err, "insert diff states")
		}
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.ReplaceDiffStates(ports.WithTxContext(ctx, tx), tenantID, sourceEnvID, targetEnvID, rows)
	})
}

func (r *WorkflowRepository) ListDiffStates(ctx context.Context, tenantID, sourceEnvID, targetEnvID string) ([]ports.DiffState, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.DiffState
	if err := db.Where(
		"tenant_id = ? AND source_env_id = ? AND target_env_id = ?",
		tenantID, sourceEnvID, targetEnvID,
	).Order("canonical_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query diff states")
	}

	items := make([]ports.DiffState, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.DiffState{
			TenantID:    row.TenantID,
			SourceEnvID: row.SourceEnvID,
			TargetEnvID: row.TargetEnvID,
			CanonicalID: row.CanonicalID,
			DiffStatus:  drift.DiffStatus(row.DiffStatus),
			ComputedAt:  row.ComputedAt,
		})
	}
	return items, nil
}

func (r *WorkflowRepository) CreateLinkSuggestion(ctx context.Context, suggestion ports.LinkSuggestion) (ports.LinkSuggestion, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.LinkSuggestion{}, err
	}

	row := model.LinkSuggestion{
		ID:            suggestion.ID,
		TenantID:      suggestion.TenantID,
		EnvironmentID: suggestion.EnvironmentID,
		CanonicalID:   suggestion.CanonicalID,
		N8NWorkflowID: suggestion.N8NWorkflowID,
		WorkflowName:  suggestion.WorkflowName,
		Score:         suggestion.Score,
		Status:        string(suggestion.Status),
		CreatedAt:     suggestion.CreatedAt,
		ResolvedAt:    suggestion.ResolvedAt,
		ResolvedBy:    suggestion.ResolvedBy,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.LinkSuggestion{}, errs.Wrap(err, "insert link suggestion")
	}
	return mapLinkSuggestion(row), nil
}

func (r *WorkflowRepository) GetLinkSuggestion(ctx context.Context, tenantID, suggestionID string) (ports.LinkSuggestion, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.LinkSuggestion{}, err
	}

	var row model.LinkSuggestion
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, suggestionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.LinkSuggestion{}, ports.ErrSuggestionNotFound
		}
		return ports.LinkSuggestion{}, errs.Wrap(err, "query link suggestion")
	}
	return mapLinkSuggestion(row), nil
}

func (r *WorkflowRepository) ListLinkSuggestions(ctx context.Context, tenantID, environmentID string, status drift.LinkSuggestionStatus) ([]ports.LinkSuggestion, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("tenant_id = ?", tenantID)
	if environmentID != "" {
		query = query.Where("environment_id = ?", environmentID)
	}
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var rows []model.LinkSuggestion
	if err := query.Order("score desc, id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query link suggestions")
	}

	items := make([]ports.LinkSuggestion, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapLinkSuggestion(row))
	}
	return items, nil
}

func (r *WorkflowRepository) ResolveLinkSuggestion(ctx context.Context, tenantID, suggestionID string, status drift.LinkSuggestionStatus, resolvedBy string, at time.Time) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.LinkSuggestion{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, suggestionID, string(drift.SuggestionOpen)).
		Updates(map[string]any{
			"status":      string(status),
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "resolve link suggestion")
	}
	if result.RowsAffected == 0 {
		return ports.ErrSuggestionNotFound
	}
	return nil
}

func (r *WorkflowRepository) ExpireOpenSuggestionsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.LinkSuggestion{}).
		Where("tenant_id = ? AND status = ? AND created_at < ?", tenantID, string(drift.SuggestionOpen), cutoff).
		Updates(map[string]any{
			"status":      string(drift.SuggestionExpired),
			"resolved_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "expire link suggestions")
	}
	return result.RowsAffected, nil
}

func mapEnvironment(row model.Environment) ports.Environment {
	return ports.Environment{
		ID:                  row.ID,
		TenantID:            row.TenantID,
		Name:                row.Name,
		Ordinal:             row.Ordinal,
		RuntimeBaseURL:      row.RuntimeBaseURL,
		RepoFolder:          row.RepoFolder,
		RepoBranch:          row.RepoBranch,
		SyncIntervalSeconds: row.SyncIntervalSeconds,
		LastSyncAttemptedAt: row.LastSyncAttemptedAt,
		LastSyncCompletedAt: row.LastSyncCompletedAt,
	}
}

func mapCanonicalWorkflow(row model.CanonicalWorkflow) ports.CanonicalWorkflow {
	return ports.CanonicalWorkflow{
		TenantID:            row.TenantID,
		CanonicalID:         row.CanonicalID,
		DisplayName:         row.DisplayName,
		OriginEnvironmentID: row.OriginEnvironmentID,
		CreatedAt:           row.CreatedAt,
		DeletedAt:           row.DeletedAt,
	}
}

func mapGitState(row model.GitState) ports.GitState {
	return ports.GitState{
		TenantID:       row.TenantID,
		EnvironmentID:  row.EnvironmentID,
		CanonicalID:    row.CanonicalID,
		GitPath:        row.GitPath,
		GitContentHash: row.GitContentHash,
		GitCommitSHA:   row.GitCommitSHA,
		LastRepoSyncAt: row.LastRepoSyncAt,
	}
}

func mapEnvMap(row model.EnvMap) ports.EnvMap {
	return ports.EnvMap{
		TenantID:        row.TenantID,
		EnvironmentID:   row.EnvironmentID,
		CanonicalID:     row.CanonicalID,
		N8NWorkflowID:   row.N8NWorkflowID,
		EnvContentHash:  row.EnvContentHash,
		LastEnvSyncAt:   row.LastEnvSyncAt,
		LastEnvChangeAt: row.LastEnvChangeAt,
		LinkedAt:        row.LinkedAt,
		LinkedByUserID:  row.LinkedByUserID,
		Status:          row.Status,
	}
}

func mapLinkSuggestion(row model.LinkSuggestion) ports.LinkSuggestion {
	return ports.LinkSuggestion{
		ID:            row.ID,
		TenantID:      row.TenantID,
		EnvironmentID: row.EnvironmentID,
		CanonicalID:   row.CanonicalID,
		N8NWorkflowID: row.N8NWorkflowID,
		WorkflowName:  row.WorkflowName,
		Score:         row.Score,
		Status:        drift.LinkSuggestionStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		ResolvedAt:    row.ResolvedAt,
		ResolvedBy:    row.ResolvedBy,
	}
}
