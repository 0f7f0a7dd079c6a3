package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// Scheduler is a supervised polling loop over a tenant's environments. It is
// an explicit handle with Start/Stop/Running, never package-global state, so
// tests run independent instances side by side. Overlapping triggers are safe
// because RequestSync is idempotent.
type Scheduler struct {
	svc      *Service
	tenantID string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(svc *Service, tenantID string, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Scheduler{svc: svc, tenantID: tenantID, interval: pollInterval}
}

func (sch *Scheduler) Start(ctx context.Context) error {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	if sch.cancel != nil {
		return errs.New("scheduler already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sch.cancel = cancel
	sch.done = make(chan struct{})

	go sch.loop(loopCtx, sch.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. Idempotent.
func (sch *Scheduler) Stop() {
	sch.mu.Lock()
	cancel, done := sch.cancel, sch.done
	sch.cancel, sch.done = nil, nil
	sch.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (sch *Scheduler) Running() bool {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.cancel != nil
}

func (sch *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sch.tick(ctx)
		}
	}
}

func (sch *Scheduler) tick(ctx context.Context) {
	environments, err := sch.svc.workflows.ListEnvironments(ctx, sch.tenantID)
	if err != nil {
		logging.Warn(ctx, "scheduler listing environments failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	now := sch.svc.now()
	for _, env := range environments {
		if ctx.Err() != nil {
			return
		}
		if !environmentDue(env, now) {
			continue
		}

		for _, kind := range []ports.JobKind{ports.JobKindEnvSync, ports.JobKindRepoSync} {
			job, _, err := sch.svc.RequestSync(ctx, sch.tenantID, env.ID, kind, "scheduler")
			if err != nil {
				logging.Warn(ctx, "scheduled sync request failed",
					slog.String("environment_id", env.ID),
					slog.String("kind", string(kind)),
					slog.Any("err", errs.Loggable(err)),
				)
				continue
			}
			// Run any pending job we were handed back, whether we created it
			// or an earlier trigger (watcher, webhook) left it admitted.
			if job.Status != ports.JobPending {
				continue
			}
			if err := sch.svc.RunJob(ctx, job); err != nil {
				// RunJob already recorded the failure on the job row.
				continue
			}
		}
	}
}

func environmentDue(env ports.Environment, now time.Time) bool {
	if env.SyncIntervalSeconds <= 0 {
		return false
	}
	if env.LastSyncAttemptedAt == nil {
		return true
	}
	return now.Sub(*env.LastSyncAttemptedAt) >= time.Duration(env.SyncIntervalSeconds)*time.Second
}
