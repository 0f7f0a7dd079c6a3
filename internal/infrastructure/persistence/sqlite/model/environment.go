package model

import "time"

type Environment struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	TenantID            string     `gorm:"column:tenant_id;not null;index:idx_environments_tenant"`
	Name                string     `gorm:"column:name;type:text;not null"`
	Ordinal             int        `gorm:"column:ordinal;not null;default:0"`
	RuntimeBaseURL      string     `gorm:"column:runtime_base_url;type:text;not null;default:''"`
	RepoFolder          string     `gorm:"column:repo_folder;type:text;not null;default:''"`
	RepoBranch          string     `gorm:"column:repo_branch;type:text;not null;default:''"`
	SyncIntervalSeconds int        `gorm:"column:sync_interval_seconds;not null;default:0"`
	LastSyncAttemptedAt *time.Time `gorm:"column:last_sync_attempted_at"`
	LastSyncCompletedAt *time.Time `gorm:"column:last_sync_completed_at"`
}

func (Environment) TableName() string {
	return "environments"
}
