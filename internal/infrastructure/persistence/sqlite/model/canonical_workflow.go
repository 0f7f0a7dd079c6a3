package model

import "time"

// CanonicalWorkflow rows are tombstoned via deleted_at, never hard-deleted
// while referenced.
type CanonicalWorkflow struct {
	TenantID            string     `gorm:"column:tenant_id;primaryKey"`
	CanonicalID         string     `gorm:"column:canonical_id;primaryKey"`
	DisplayName         string     `gorm:"column:display_name;type:text;not null"`
	OriginEnvironmentID string     `gorm:"column:origin_environment_id;type:text;not null;default:''"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null"`
	DeletedAt           *time.Time `gorm:"column:deleted_at"`
}

func (CanonicalWorkflow) TableName() string {
	return "canonical_workflows"
}
