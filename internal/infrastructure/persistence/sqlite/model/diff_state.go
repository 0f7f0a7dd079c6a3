package model

import "time"

// DiffState rows are fully derived; the reconciliation engine replaces them
// wholesale per pass.
type DiffState struct {
	TenantID    string    `gorm:"column:tenant_id;primaryKey"`
	SourceEnvID string    `gorm:"column:source_env_id;primaryKey"`
	TargetEnvID string    `gorm:"column:target_env_id;primaryKey"`
	CanonicalID string    `gorm:"column:canonical_id;primaryKey"`
	DiffStatus  string    `gorm:"column:diff_status;type:text;not null"`
	ComputedAt  time.Time `gorm:"column:computed_at;not null"`
}

func (DiffState) TableName() string {
	return "diff_states"
}
