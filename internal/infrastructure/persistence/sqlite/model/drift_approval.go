package model

import "time"

type DriftApproval struct {
	ID           string     `gorm:"column:id;primaryKey"`
	IncidentID   string     `gorm:"column:incident_id;not null;index:idx_drift_approvals_incident"`
	TenantID     string     `gorm:"column:tenant_id;not null"`
	ApprovalType string     `gorm:"column:approval_type;type:text;not null"`
	Status       string     `gorm:"column:status;type:text;not null;default:'pending'"`
	RequestedBy  string     `gorm:"column:requested_by;type:text;not null"`
	DecidedBy    string     `gorm:"column:decided_by;type:text;not null;default:''"`
	PayloadJSON  string     `gorm:"column:payload_json;type:text;not null;default:''"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	DecidedAt    *time.Time `gorm:"column:decided_at"`
}

func (DriftApproval) TableName() string {
	return "drift_approvals"
}
