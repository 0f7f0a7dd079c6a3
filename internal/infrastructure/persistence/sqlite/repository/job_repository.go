package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"driftline/internal/errs"
	"driftline/internal/infrastructure/persistence/sqlite/model"
	"driftline/internal/ports"
)

// JobRepository implements the job service contract. The unique index on
// active_key is the final arbiter of single-flight admission; everything
// above it is advisory.
type JobRepository struct {
	db *gorm.DB
}

var _ ports.JobRepository = (*JobRepository)(nil)

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func activeKey(tenantID, environmentID string, kind ports.JobKind) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, environmentID, kind)
}

func (r *JobRepository) Create(ctx context.Context, job ports.SyncJob) (ports.SyncJob, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.SyncJob{}, err
	}

	key := activeKey(job.TenantID, job.EnvironmentID, job.Kind)
	row := model.SyncJob{
		ID:            job.ID,
		TenantID:      job.TenantID,
		EnvironmentID: job.EnvironmentID,
		Kind:          string(job.Kind),
		Status:        string(ports.JobPending),
		ActiveKey:     &key,
		RequestedBy:   job.RequestedBy,
		CreatedAt:     job.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.SyncJob{}, ports.ErrDuplicateActiveJob
		}
		return ports.SyncJob{}, errs.Wrap(err, "insert sync job")
	}
	return mapSyncJob(row), nil
}

func (r *JobRepository) Get(ctx context.Context, jobID string) (ports.SyncJob, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.SyncJob{}, err
	}

	var row model.SyncJob
	if err := db.Where("id = ?", jobID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SyncJob{}, ports.ErrJobNotFound
		}
		return ports.SyncJob{}, errs.Wrap(err, "query sync job")
	}
	return mapSyncJob(row), nil
}

func (r *JobRepository) GetActiveJob(ctx context.Context, tenantID, environmentID string, kind ports.JobKind) (ports.SyncJob, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.SyncJob{}, err
	}

	var row model.SyncJob
	if err := db.Where("active_key = ?", activeKey(tenantID, environmentID, kind)).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SyncJob{}, ports.ErrJobNotFound
		}
		return ports.SyncJob{}, errs.Wrap(err, "query active sync job")
	}
	return mapSyncJob(row), nil
}

func (r *JobRepository) MarkRunning(ctx context.Context, jobID string, at time.Time) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.SyncJob{}).
		Where("id = ? AND status = ?", jobID, string(ports.JobPending)).
		Updates(map[string]any{
			"status":     string(ports.JobRunning),
			"started_at": at,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "mark job running")
	}
	if result.RowsAffected == 0 {
		return ports.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) Complete(ctx context.Context, jobID string, at time.Time) error {
	return r.finish(ctx, jobID, ports.JobCompleted, at, "")
}

func (r *JobRepository) Fail(ctx context.Context, jobID string, at time.Time, message string) error {
	return r.finish(ctx, jobID, ports.JobFailed, at, message)
}

func (r *JobRepository) Cancel(ctx context.Context, jobID string, at time.Time) error {
	return r.finish(ctx, jobID, ports.JobCancelled, at, "")
}

// finish releases the single-flight slot by nulling active_key in the same
// update that records the terminal status.
func (r *JobRepository) finish(ctx context.Context, jobID string, status ports.JobStatus, at time.Time, message string) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.SyncJob{}).
		Where("id = ? AND status IN ?", jobID, []string{string(ports.JobPending), string(ports.JobRunning)}).
		Updates(map[string]any{
			"status":      string(status),
			"active_key":  nil,
			"finished_at": at,
			"error":       message,
		})
	if result.Error != nil {
		return errs.Wrapf(result.Error, "finish job as %s", status)
	}
	if result.RowsAffected == 0 {
		return ports.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]ports.SyncJob, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("tenant_id = ?", tenantID).Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.SyncJob
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query recent jobs")
	}

	items := make([]ports.SyncJob, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapSyncJob(row))
	}
	return items, nil
}

// isUniqueViolation matches both gorm's translated error and the raw SQLite
// message, since error translation depends on driver configuration.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func mapSyncJob(row model.SyncJob) ports.SyncJob {
	return ports.SyncJob{
		ID:            row.ID,
		TenantID:      row.TenantID,
		EnvironmentID: row.EnvironmentID,
		Kind:          ports.JobKind(row.Kind),
		Status:        ports.JobStatus(row.Status),
		Error:         row.Error,
		RequestedBy:   row.RequestedBy,
		CreatedAt:     row.CreatedAt,
		StartedAt:     row.StartedAt,
		FinishedAt:    row.FinishedAt,
	}
}
