package sync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// RequestSync admits a sync job under the single-flight rule: at most one
// pending or running job per (tenant, environment, kind). Safe to call from
// any number of overlapping trigger sources.
func (s *Service) RequestSync(ctx context.Context, tenantID, environmentID string, kind ports.JobKind, requestedBy string) (ports.SyncJob, bool, error) {
	if err := ctx.Err(); err != nil {
		return ports.SyncJob{}, false, errs.Wrap(err, "check context")
	}
	if tenantID == "" {
		return ports.SyncJob{}, false, errTenantRequired
	}
	if environmentID == "" {
		return ports.SyncJob{}, false, errEnvironmentRequired
	}
	if kind != ports.JobKindRepoSync && kind != ports.JobKindEnvSync {
		return ports.SyncJob{}, false, errUnknownJobKind
	}

	existing, err := s.jobs.GetActiveJob(ctx, tenantID, environmentID, kind)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ports.ErrJobNotFound) {
		return ports.SyncJob{}, false, errs.Wrap(err, "look up active job")
	}

	// The attempt timestamp moves before job creation succeeds or fails so a
	// racing scheduler never re-triggers immediately.
	if err := s.workflows.TouchSyncAttempted(ctx, tenantID, environmentID, s.now()); err != nil {
		return ports.SyncJob{}, false, errs.Wrap(err, "advance sync attempt timestamp")
	}

	created, err := s.jobs.Create(ctx, ports.SyncJob{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		EnvironmentID: environmentID,
		Kind:          kind,
		Status:        ports.JobPending,
		RequestedBy:   requestedBy,
		CreatedAt:     s.now(),
	})
	if err == nil {
		return created, true, nil
	}

	// Check-then-insert is not atomic across callers; the storage unique
	// constraint is the final arbiter. Losing the race is not an error.
	if errors.Is(err, ports.ErrDuplicateActiveJob) {
		winner, fetchErr := s.jobs.GetActiveJob(ctx, tenantID, environmentID, kind)
		if fetchErr != nil {
			return ports.SyncJob{}, false, errs.Wrap(fetchErr, "refetch winning job")
		}
		return winner, false, nil
	}

	return ports.SyncJob{}, false, errs.Wrap(err, "create sync job")
}

// RunJob executes an admitted job to a terminal status and triggers a
// reconciliation pass on success. Adapter-level failures fail the whole job;
// per-item failures are carried in the result and do not.
func (s *Service) RunJob(ctx context.Context, job ports.SyncJob) error {
	ctx = logging.WithAttrs(ctx,
		slog.String("job_id", job.ID),
		slog.String("tenant_id", job.TenantID),
		slog.String("environment_id", job.EnvironmentID),
		slog.String("kind", string(job.Kind)),
	)

	if err := s.jobs.MarkRunning(ctx, job.ID, s.now()); err != nil {
		return errs.Wrap(err, "mark job running")
	}

	runErr := s.executeJob(ctx, job)
	if runErr != nil {
		if failErr := s.jobs.Fail(ctx, job.ID, s.now(), runErr.Error()); failErr != nil {
			logging.Error(ctx, "mark job failed", slog.Any("err", errs.Loggable(failErr)))
		}
		// Timestamps advance on failure too, so a broken adapter does not
		// turn the scheduler into a tight retry loop.
		if touchErr := s.workflows.TouchSyncAttempted(ctx, job.TenantID, job.EnvironmentID, s.now()); touchErr != nil {
			logging.Error(ctx, "advance sync attempt timestamp", slog.Any("err", errs.Loggable(touchErr)))
		}
		logging.Warn(ctx, "sync job failed", slog.Any("err", errs.Loggable(runErr)))
		return runErr
	}

	if s.jobCancelled(ctx, job.ID) {
		logging.Info(ctx, "sync job cancelled mid-run")
		return nil
	}

	if err := s.jobs.Complete(ctx, job.ID, s.now()); err != nil {
		return errs.Wrap(err, "mark job completed")
	}
	if err := s.workflows.TouchSyncCompleted(ctx, job.TenantID, job.EnvironmentID, s.now()); err != nil {
		logging.Error(ctx, "advance sync completion timestamp", slog.Any("err", errs.Loggable(err)))
	}

	if err := s.Reconcile(ctx, job.TenantID, job.EnvironmentID); err != nil {
		// Reconciliation passes are idempotent full replacements; the next
		// completed sync re-triggers one.
		logging.Warn(ctx, "post-sync reconciliation failed", slog.Any("err", errs.Loggable(err)))
	}

	s.emit(ctx, job.TenantID, "sync.completed", map[string]any{
		"job_id":         job.ID,
		"environment_id": job.EnvironmentID,
		"kind":           string(job.Kind),
	})
	logging.Info(ctx, "sync job completed")
	return nil
}

type jobIDKey struct{}

func withJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

func jobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}

// cancelled is the cooperative cancellation check engines run between
// per-item work units: context cancellation or an out-of-band Cancel both
// stop the loop at the next item boundary.
func (s *Service) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return s.jobCancelled(ctx, jobIDFromContext(ctx))
}

func (s *Service) executeJob(ctx context.Context, job ports.SyncJob) error {
	ctx = withJobID(ctx, job.ID)
	switch job.Kind {
	case ports.JobKindRepoSync:
		_, err := s.SyncRepository(ctx, job.TenantID, job.EnvironmentID)
		return err
	case ports.JobKindEnvSync:
		_, err := s.SyncEnvironment(ctx, job.TenantID, job.EnvironmentID)
		return err
	default:
		return errUnknownJobKind
	}
}

// CancelJob flips an active job to cancelled; running loops observe the
// status between per-item work units.
func (s *Service) CancelJob(ctx context.Context, jobID string) error {
	if err := s.jobs.Cancel(ctx, jobID, s.now()); err != nil {
		return errs.Wrap(err, "cancel job")
	}
	return nil
}

// jobCancelled reports whether the job was cancelled out-of-band; loops call
// this between items for cooperative cancellation.
func (s *Service) jobCancelled(ctx context.Context, jobID string) bool {
	if jobID == "" {
		return false
	}
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return false
	}
	return job.Status == ports.JobCancelled
}
