package model

import "time"

// EnvMap is owned by the environment sync engine; one row at most per
// (environment, canonical workflow).
type EnvMap struct {
	TenantID        string     `gorm:"column:tenant_id;primaryKey"`
	EnvironmentID   string     `gorm:"column:environment_id;primaryKey"`
	CanonicalID     string     `gorm:"column:canonical_id;primaryKey"`
	N8NWorkflowID   string     `gorm:"column:n8n_workflow_id;type:text;not null;default:'';index:idx_env_maps_runtime_id"`
	EnvContentHash  string     `gorm:"column:env_content_hash;type:text;not null;default:''"`
	LastEnvSyncAt   *time.Time `gorm:"column:last_env_sync_at"`
	LastEnvChangeAt *time.Time `gorm:"column:last_env_change_at"`
	LinkedAt        *time.Time `gorm:"column:linked_at"`
	LinkedByUserID  string     `gorm:"column:linked_by_user_id;type:text;not null;default:''"`
	Status          string     `gorm:"column:status;type:text;not null;default:'linked'"`
}

func (EnvMap) TableName() string {
	return "env_maps"
}
