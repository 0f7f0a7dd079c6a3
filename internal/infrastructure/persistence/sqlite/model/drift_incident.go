package model

import "time"

// DriftIncident persists affected workflows and the drift snapshot as JSON
// text; the snapshot may be purged by retention independent of status.
type DriftIncident struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	TenantID              string     `gorm:"column:tenant_id;not null;index:idx_drift_incidents_tenant"`
	EnvironmentID         string     `gorm:"column:environment_id;not null"`
	Status                string     `gorm:"column:status;type:text;not null"`
	Severity              string     `gorm:"column:severity;type:text;not null;default:''"`
	OwnerUserID           string     `gorm:"column:owner_user_id;type:text;not null;default:''"`
	TicketRef             string     `gorm:"column:ticket_ref;type:text;not null;default:''"`
	ExpiresAt             *time.Time `gorm:"column:expires_at"`
	AffectedWorkflowsJSON string     `gorm:"column:affected_workflows_json;type:text;not null;default:'[]'"`
	DriftSnapshotJSON     string     `gorm:"column:drift_snapshot_json;type:text;not null;default:''"`
	ResolutionType        string     `gorm:"column:resolution_type;type:text;not null;default:''"`
	PayloadPurgedAt       *time.Time `gorm:"column:payload_purged_at"`
	IsDeleted             bool       `gorm:"column:is_deleted;not null;default:0"`
	CreatedAt             time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;not null"`
}

func (DriftIncident) TableName() string {
	return "drift_incidents"
}

// DriftIncidentTransition is the append-only lifecycle trail.
type DriftIncidentTransition struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	IncidentID string    `gorm:"column:incident_id;not null;index:idx_incident_transitions_incident"`
	FromStatus string    `gorm:"column:from_status;type:text;not null"`
	ToStatus   string    `gorm:"column:to_status;type:text;not null"`
	Actor      string    `gorm:"column:actor;type:text;not null;default:''"`
	Reason     string    `gorm:"column:reason;type:text;not null;default:''"`
	Override   bool      `gorm:"column:override;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (DriftIncidentTransition) TableName() string {
	return "drift_incident_transitions"
}
