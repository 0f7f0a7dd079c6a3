// Package sync hosts the ingestion engines and the orchestrator that admits
// their jobs.
package sync

import (
	"context"
	"errors"
	"expvar"
	"time"

	"driftline/internal/ports"
)

var (
	errTenantRequired      = errors.New("tenant id is required")
	errEnvironmentRequired = errors.New("environment id is required")
	errUnknownJobKind      = errors.New("unknown sync job kind")
)

// mappingInconsistencies counts impossible mapping-state combinations that
// were defaulted to untracked. Observable so onboarding bugs surface instead
// of being silently swallowed.
var mappingInconsistencies = expvar.NewInt("driftline_mapping_inconsistencies")

// RuntimeFactory builds the runtime adapter for one environment; each
// environment points at its own automation instance.
type RuntimeFactory func(env ports.Environment) ports.RuntimeAdapter

type Service struct {
	workflows ports.WorkflowRepository
	jobs      ports.JobRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	repo      ports.RepositoryAdapter
	runtime   RuntimeFactory
	emitter   ports.EventEmitter
	now       func() time.Time
}

// NewService wires the sync usecases. Cache and emitter are optional.
func NewService(
	workflows ports.WorkflowRepository,
	jobs ports.JobRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	repo ports.RepositoryAdapter,
	runtime RuntimeFactory,
	emitter ports.EventEmitter,
) *Service {
	return &Service{
		workflows: workflows,
		jobs:      jobs,
		uow:       uow,
		cache:     cache,
		repo:      repo,
		runtime:   runtime,
		emitter:   emitter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RepoSyncResult summarizes one repository sync pass. Synced counts files
// processed without error, including unchanged ones.
type RepoSyncResult struct {
	Synced    int
	Unchanged int
	Created   int
	Updated   int
	Errors    []ItemError
}

// EnvSyncResult summarizes one environment sync pass.
type EnvSyncResult struct {
	ObservedIDs []string
	CreatedIDs  []string
	UpdatedIDs  []string
	Errors      []ItemError
}

// ItemError is one per-item failure inside a bulk ingestion pass.
type ItemError struct {
	Item    string `json:"item"`
	Message string `json:"message"`
}

func (s *Service) emit(ctx context.Context, tenantID, eventType string, metadata map[string]any) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, tenantID, eventType, metadata)
}

func (s *Service) setCacheBestEffort(ctx context.Context, key, value string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, ttl)
}

func (s *Service) getCacheBestEffort(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, found, err := s.cache.Get(ctx, key)
	if err != nil || !found {
		return "", false
	}
	return value, true
}
