package model

import "time"

// SyncJob carries the single-flight invariant in active_key: the column is
// tenant:environment:kind while the job is pending or running and NULL once
// terminal. SQLite unique indexes allow any number of NULLs, so the unique
// index admits exactly one active job per key.
type SyncJob struct {
	ID            string     `gorm:"column:id;primaryKey"`
	TenantID      string     `gorm:"column:tenant_id;not null;index:idx_sync_jobs_tenant"`
	EnvironmentID string     `gorm:"column:environment_id;not null"`
	Kind          string     `gorm:"column:kind;type:text;not null"`
	Status        string     `gorm:"column:status;type:text;not null"`
	ActiveKey     *string    `gorm:"column:active_key;type:text;uniqueIndex:uq_sync_jobs_active"`
	Error         string     `gorm:"column:error;type:text;not null;default:''"`
	RequestedBy   string     `gorm:"column:requested_by;type:text;not null;default:''"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	StartedAt     *time.Time `gorm:"column:started_at"`
	FinishedAt    *time.Time `gorm:"column:finished_at"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}
