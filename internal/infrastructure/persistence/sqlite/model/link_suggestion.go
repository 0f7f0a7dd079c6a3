package model

import "time"

type LinkSuggestion struct {
	ID            string     `gorm:"column:id;primaryKey"`
	TenantID      string     `gorm:"column:tenant_id;not null;index:idx_link_suggestions_tenant"`
	EnvironmentID string     `gorm:"column:environment_id;not null"`
	CanonicalID   string     `gorm:"column:canonical_id;type:text;not null"`
	N8NWorkflowID string     `gorm:"column:n8n_workflow_id;type:text;not null"`
	WorkflowName  string     `gorm:"column:workflow_name;type:text;not null;default:''"`
	Score         float64    `gorm:"column:score;not null;default:0"`
	Status        string     `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at"`
	ResolvedBy    string     `gorm:"column:resolved_by;type:text;not null;default:''"`
}

func (LinkSuggestion) TableName() string {
	return "link_suggestions"
}
