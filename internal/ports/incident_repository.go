package ports

import (
	"context"
	"errors"
	"time"

	"driftline/internal/domain/drift"
)

var (
	ErrIncidentNotFound = errors.New("drift incident not found")
	ErrApprovalNotFound = errors.New("drift approval not found")
)

type DriftIncident struct {
	ID                string
	TenantID          string
	EnvironmentID     string
	Status            drift.IncidentStatus
	Severity          string
	OwnerUserID       string
	TicketRef         string
	ExpiresAt         *time.Time
	AffectedWorkflows []string
	DriftSnapshot     map[string]any
	ResolutionType    string
	PayloadPurgedAt   *time.Time
	IsDeleted         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IncidentTransition is one append-only entry of the lifecycle audit trail.
type IncidentTransition struct {
	ID         uint64
	IncidentID string
	FromStatus drift.IncidentStatus
	ToStatus   drift.IncidentStatus
	Actor      string
	Reason     string
	Override   bool
	CreatedAt  time.Time
}

type DriftApproval struct {
	ID           string
	IncidentID   string
	TenantID     string
	ApprovalType drift.ApprovalType
	Status       drift.ApprovalStatus
	RequestedBy  string
	DecidedBy    string
	Payload      map[string]any
	CreatedAt    time.Time
	DecidedAt    *time.Time
}

type IncidentFilter struct {
	EnvironmentID  string
	Statuses       []drift.IncidentStatus
	IncludeDeleted bool
}

type IncidentRepository interface {
	CreateIncident(ctx context.Context, incident DriftIncident) (DriftIncident, error)
	GetIncident(ctx context.Context, tenantID, incidentID string) (DriftIncident, error)
	ListIncidents(ctx context.Context, tenantID string, filter IncidentFilter) ([]DriftIncident, error)
	UpdateIncident(ctx context.Context, incident DriftIncident) error
	FindOpenIncident(ctx context.Context, tenantID, environmentID string) (DriftIncident, error)

	AppendTransition(ctx context.Context, transition IncidentTransition) error
	ListTransitions(ctx context.Context, incidentID string) ([]IncidentTransition, error)

	// PurgePayloads clears drift snapshots of incidents created before the
	// cutoff and stamps payload_purged_at, independent of lifecycle status.
	PurgePayloads(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)

	CreateApproval(ctx context.Context, approval DriftApproval) (DriftApproval, error)
	GetApproval(ctx context.Context, tenantID, approvalID string) (DriftApproval, error)
	ListApprovals(ctx context.Context, tenantID, incidentID string) ([]DriftApproval, error)
	UpdateApproval(ctx context.Context, approval DriftApproval) error
}
