package ports

import (
	"context"
	"errors"
	"time"

	"driftline/internal/domain/drift"
)

var (
	ErrEnvironmentNotFound = errors.New("environment not found")
	ErrWorkflowNotFound    = errors.New("canonical workflow not found")
	ErrEnvMapNotFound      = errors.New("environment mapping not found")
	ErrGitStateNotFound    = errors.New("git state not found")
	ErrSuggestionNotFound  = errors.New("link suggestion not found")
)

// Environment is one independently-mutable deployment stage of a tenant.
// Ordinal encodes promotion order (dev < staging < prod).
type Environment struct {
	ID                  string
	TenantID            string
	Name                string
	Ordinal             int
	RuntimeBaseURL      string
	RepoFolder          string
	RepoBranch          string
	SyncIntervalSeconds int
	LastSyncAttemptedAt *time.Time
	LastSyncCompletedAt *time.Time
}

// CanonicalWorkflow is the tenant-scoped identity anchor of one logical
// workflow, independent of its per-environment runtime IDs.
type CanonicalWorkflow struct {
	TenantID            string
	CanonicalID         string
	DisplayName         string
	OriginEnvironmentID string
	CreatedAt           time.Time
	DeletedAt           *time.Time
}

// GitState is the repository-side observation of one canonical workflow in
// one environment. Owned exclusively by the repository sync engine.
type GitState struct {
	TenantID       string
	EnvironmentID  string
	CanonicalID    string
	GitPath        string
	GitContentHash string
	GitCommitSHA   string
	LastRepoSyncAt *time.Time
}

// EnvMap is the runtime-side observation: at most one row per
// (environment, canonical workflow).
type EnvMap struct {
	TenantID       string
	EnvironmentID  string
	CanonicalID    string
	N8NWorkflowID  string
	EnvContentHash string
	LastEnvSyncAt  *time.Time
	// LastEnvChangeAt advances only when the observed content hash differs;
	// LastEnvSyncAt advances on every pass.
	LastEnvChangeAt *time.Time
	LinkedAt        *time.Time
	LinkedByUserID  string
	Status          string // linked, ignored, deleted
}

// LinkSuggestion is a scored candidate match between an untracked runtime
// workflow and an existing canonical workflow.
type LinkSuggestion struct {
	ID            string
	TenantID      string
	EnvironmentID string
	CanonicalID   string
	N8NWorkflowID string
	WorkflowName  string
	Score         float64
	Status        drift.LinkSuggestionStatus
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	ResolvedBy    string
}

// DiffState is one fully-derived pairwise comparison row; the reconciliation
// engine replaces these wholesale every pass.
type DiffState struct {
	TenantID      string
	SourceEnvID   string
	TargetEnvID   string
	CanonicalID   string
	DiffStatus    drift.DiffStatus
	ComputedAt    time.Time
}

type CanonicalWorkflowFilter struct {
	IncludeDeleted bool
}

type WorkflowRepository interface {
	CreateEnvironment(ctx context.Context, env Environment) (Environment, error)
	GetEnvironment(ctx context.Context, tenantID, environmentID string) (Environment, error)
	ListEnvironments(ctx context.Context, tenantID string) ([]Environment, error)
	TouchSyncAttempted(ctx context.Context, tenantID, environmentID string, at time.Time) error
	TouchSyncCompleted(ctx context.Context, tenantID, environmentID string, at time.Time) error

	CreateCanonicalWorkflow(ctx context.Context, wf CanonicalWorkflow) (CanonicalWorkflow, error)
	GetCanonicalWorkflow(ctx context.Context, tenantID, canonicalID string, filter CanonicalWorkflowFilter) (CanonicalWorkflow, error)
	ListCanonicalWorkflows(ctx context.Context, tenantID string, filter CanonicalWorkflowFilter) ([]CanonicalWorkflow, error)
	SoftDeleteCanonicalWorkflow(ctx context.Context, tenantID, canonicalID string, at time.Time) error

	UpsertGitState(ctx context.Context, state GitState) error
	GetGitState(ctx context.Context, tenantID, environmentID, canonicalID string) (GitState, error)
	ListGitStates(ctx context.Context, tenantID, environmentID string) ([]GitState, error)

	UpsertEnvMap(ctx context.Context, mapping EnvMap) error
	GetEnvMap(ctx context.Context, tenantID, environmentID, canonicalID string) (EnvMap, error)
	GetEnvMapByRuntimeID(ctx context.Context, tenantID, environmentID, n8nWorkflowID string) (EnvMap, error)
	ListEnvMaps(ctx context.Context, tenantID, environmentID string) ([]EnvMap, error)

	ReplaceDiffStates(ctx context.Context, tenantID, sourceEnvID, targetEnvID string, rows []DiffState) error
	ListDiffStates(ctx context.Context, tenantID, sourceEnvID, targetEnvID string) ([]DiffState, error)

	CreateLinkSuggestion(ctx context.Context, suggestion LinkSuggestion) (LinkSuggestion, error)
	GetLinkSuggestion(ctx context.Context, tenantID, suggestionID string) (LinkSuggestion, error)
	ListLinkSuggestions(ctx context.Context, tenantID, environmentID string, status drift.LinkSuggestionStatus) ([]LinkSuggestion, error)
	ResolveLinkSuggestion(ctx context.Context, tenantID, suggestionID string, status drift.LinkSuggestionStatus, resolvedBy string, at time.Time) error
	ExpireOpenSuggestionsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)
}
