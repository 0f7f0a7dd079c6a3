package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrJobNotFound = errors.New("sync job not found")

	// ErrDuplicateActiveJob is returned when the storage uniqueness
	// constraint over (tenant, environment, kind, active) rejects an insert.
	// The orchestrator recovers by re-fetching the winning job.
	ErrDuplicateActiveJob = errors.New("an active sync job already exists for this key")
)

type JobKind string

const (
	JobKindRepoSync JobKind = "repo_sync"
	JobKindEnvSync  JobKind = "env_sync"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Active reports whether a job in this status still holds the
// single-flight slot for its key.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobRunning
}

type SyncJob struct {
	ID            string
	TenantID      string
	EnvironmentID string
	Kind          JobKind
	Status        JobStatus
	Error         string
	RequestedBy   string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
}

type JobRepository interface {
	// Create inserts a pending job. The storage layer is the final arbiter
	// of single-flight: a concurrent insert for the same active key must
	// fail with ErrDuplicateActiveJob.
	Create(ctx context.Context, job SyncJob) (SyncJob, error)
	Get(ctx context.Context, jobID string) (SyncJob, error)
	GetActiveJob(ctx context.Context, tenantID, environmentID string, kind JobKind) (SyncJob, error)
	MarkRunning(ctx context.Context, jobID string, at time.Time) error
	Complete(ctx context.Context, jobID string, at time.Time) error
	Fail(ctx context.Context, jobID string, at time.Time, message string) error
	Cancel(ctx context.Context, jobID string, at time.Time) error
	ListRecent(ctx context.Context, tenantID string, limit int) ([]SyncJob, error)
}
