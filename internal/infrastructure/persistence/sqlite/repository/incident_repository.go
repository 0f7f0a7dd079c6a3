package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/infrastructure/persistence/sqlite/model"
	"driftline/internal/ports"
)

type IncidentRepository struct {
	db *gorm.DB
}

var _ ports.IncidentRepository = (*IncidentRepository)(nil)

func NewIncidentRepository(db *gorm.DB) *IncidentRepository {
	return &IncidentRepository{db: db}
}

func (r *IncidentRepository) CreateIncident(ctx context.Context, incident ports.DriftIncident) (ports.DriftIncident, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.DriftIncident{}, err
	}

	row, err := incidentToRow(incident)
	if err != nil {
		return ports.DriftIncident{}, err
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.DriftIncident{}, errs.Wrap(err, "insert drift incident")
	}
	return rowToIncident(row)
}

func (r *IncidentRepository) GetIncident(ctx context.Context, tenantID, incidentID string) (ports.DriftIncident, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.DriftIncident{}, err
	}

	var row model.DriftIncident
	if err := db.Where("tenant_id = ? AND id = ? AND is_deleted = ?", tenantID, incidentID, false).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DriftIncident{}, ports.ErrIncidentNotFound
		}
		return ports.DriftIncident{}, errs.Wrap(err, "query drift incident")
	}
	return rowToIncident(row)
}

func (r *IncidentRepository) ListIncidents(ctx context.Context, tenantID string, filter ports.IncidentFilter) ([]ports.DriftIncident, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("tenant_id = ?", tenantID)
	if !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	if filter.EnvironmentID != "" {
		query = query.Where("environment_id = ?", filter.EnvironmentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}

	var rows []model.DriftIncident
	if err := query.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query drift incidents")
	}

	items := make([]ports.DriftIncident, 0, len(rows))
	for _, row := range rows {
		incident, err := rowToIncident(row)
		if err != nil {
			return nil, err
		}
		items = append(items, incident)
	}
	return items, nil
}

func (r *IncidentRepository) UpdateIncident(ctx context.Context, incident ports.DriftIncident) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	row, err := incidentToRow(incident)
	if err != nil {
		return err
	}

	result := db.Model(&model.DriftIncident{}).
		Where("tenant_id = ? AND id = ?", incident.TenantID, incident.ID).
		Updates(map[string]any{
			"status":                  row.Status,
			"severity":                row.Severity,
			"owner_user_id":           row.OwnerUserID,
			"ticket_ref":              row.TicketRef,
			"expires_at":              row.ExpiresAt,
			"affected_workflows_json": row.AffectedWorkflowsJSON,
			"drift_snapshot_json":     row.DriftSnapshotJSON,
			"resolution_type":         row.ResolutionType,
			"payload_purged_at":       row.PayloadPurgedAt,
			"is_deleted":              row.IsDeleted,
			"updated_at":              row.UpdatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update drift incident")
	}
	if result.RowsAffected == 0 {
		return ports.ErrIncidentNotFound
	}
	return nil
}

func (r *IncidentRepository) FindOpenIncident(ctx context.Context, tenantID, environmentID string) (ports.DriftIncident, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.DriftIncident{}, err
	}

	var row model.DriftIncident
	if err := db.Where(
		"tenant_id = ? AND environment_id = ? AND is_deleted = ? AND status != ?",
		tenantID, environmentID, false, string(drift.IncidentClosed),
	).Order("created_at desc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DriftIncident{}, ports.ErrIncidentNotFound
		}
		return ports.DriftIncident{}, errs.Wrap(err, "query open incident")
	}
	return rowToIncident(row)
}

func (r *IncidentRepository) AppendTransition(ctx context.Context, transition ports.IncidentTransition) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.DriftIncidentTransition{
		IncidentID: transition.IncidentID,
		FromStatus: string(transition.FromStatus),
		ToStatus:   string(transition.ToStatus),
		Actor:      transition.Actor,
		Reason:     transition.Reason,
		Override:   transition.Override,
		CreatedAt:  transition.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "append incident transition")
	}
	return nil
}

func (r *IncidentRepository) ListTransitions(ctx context.Context, incidentID string) ([]ports.IncidentTransition, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.DriftIncidentTransition
	if err := db.Where("incident_id = ?", incidentID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query incident transitions")
	}

	items := make([]ports.IncidentTransition, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.IncidentTransition{
			ID:         row.ID,
			IncidentID: row.IncidentID,
			FromStatus: drift.IncidentStatus(row.FromStatus),
			ToStatus:   drift.IncidentStatus(row.ToStatus),
			Actor:      row.Actor,
			Reason:     row.Reason,
			Override:   row.Override,
			CreatedAt:  row.CreatedAt,
		})
	}
	return items, nil
}

func (r *IncidentRepository) PurgePayloads(ctx context.Context, tenantID string, cutoff time.Time) (int64, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.DriftIncident{}).
		Where("tenant_id = ? AND created_at < ? AND payload_purged_at IS NULL", tenantID, cutoff).
		Updates(map[string]any{
			"drift_snapshot_json": "",
			"payload_purged_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "purge incident payloads")
	}
	return result.RowsAffected, nil
}

func (r *IncidentRepository) CreateApproval(ctx context.Context, approval ports.DriftApproval) (ports.DriftApproval, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.DriftApproval{}, err
	}

	payload := ""
	if approval.Payload != nil {
		encoded, err := json.Marshal(approval.Payload)
		if err != nil {
			return ports.DriftApproval{}, errs.Wrap(err, "encode approval payload")
		}
		payload = string(encoded)
	}

	row := model.DriftApproval{
		ID:           approval.ID,
		IncidentID:   approval.IncidentID,
		TenantID:     approval.TenantID,
		ApprovalType: string(approval.ApprovalType),
		Status:       string(approval.Status),
		RequestedBy:  approval.RequestedBy,
		DecidedBy:    approval.DecidedBy,
		PayloadJSON:  payload,
		CreatedAt:    approval.CreatedAt,
		DecidedAt:    approval.DecidedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "insert drift approval")
	}
	return rowToApproval(row)
}

func (r *IncidentRepository) GetApproval(ctx context.Context, tenantID, approvalID string) (ports.DriftApproval, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return ports.DriftApproval{}, err
	}

	var row model.DriftApproval
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, approvalID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.DriftApproval{}, ports.ErrApprovalNotFound
		}
		return ports.DriftApproval{}, errs.Wrap(err, "query drift approval")
	}
	return rowToApproval(row)
}

func (r *IncidentRepository) ListApprovals(ctx context.Context, tenantID, incidentID string) ([]ports.DriftApproval, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.DriftApproval
	if err := db.Where("tenant_id = ? AND incident_id = ?", tenantID, incidentID).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query drift approvals")
	}

	items := make([]ports.DriftApproval, 0, len(rows))
	for _, row := range rows {
		approval, err := rowToApproval(row)
		if err != nil {
			return nil, err
		}
		items = append(items, approval)
	}
	return items, nil
}

func (r *IncidentRepository) UpdateApproval(ctx context.Context, approval ports.DriftApproval) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.DriftApproval{}).
		Where("tenant_id = ? AND id = ?", approval.TenantID, approval.ID).
		Updates(map[string]any{
			"status":     string(approval.Status),
			"decided_by": approval.DecidedBy,
			"decided_at": approval.DecidedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update drift approval")
	}
	if result.RowsAffected == 0 {
		return ports.ErrApprovalNotFound
	}
	return nil
}

func incidentToRow(incident ports.DriftIncident) (model.DriftIncident, error) {
	affected, err := json.Marshal(incident.AffectedWorkflows)
	if err != nil {
		return model.DriftIncident{}, errs.Wrap(err, "encode affected workflows")
	}

	snapshot := ""
	if incident.DriftSnapshot != nil {
		encoded, err := json.Marshal(incident.DriftSnapshot)
		if err != nil {
			return model.DriftIncident{}, errs.Wrap(err, "encode drift snapshot")
		}
		snapshot = string(encoded)
	}

	return model.DriftIncident{
		ID:                    incident.ID,
		TenantID:              incident.TenantID,
		EnvironmentID:         incident.EnvironmentID,
		Status:                string(incident.Status),
		Severity:              incident.Severity,
		OwnerUserID:           incident.OwnerUserID,
		TicketRef:             incident.TicketRef,
		ExpiresAt:             incident.ExpiresAt,
		AffectedWorkflowsJSON: string(affected),
		DriftSnapshotJSON:     snapshot,
		ResolutionType:        incident.ResolutionType,
		PayloadPurgedAt:       incident.PayloadPurgedAt,
		IsDeleted:             incident.IsDeleted,
		CreatedAt:             incident.CreatedAt,
		UpdatedAt:             incident.UpdatedAt,
	}, nil
}

func rowToIncident(row model.DriftIncident) (ports.DriftIncident, error) {
	var affected []string
	if row.AffectedWorkflowsJSON != "" {
		if err := json.Unmarshal([]byte(row.AffectedWorkflowsJSON), &affected); err != nil {
			return ports.DriftIncident{}, errs.Wrap(err, "decode affected workflows")
		}
	}

	var snapshot map[string]any
	if row.DriftSnapshotJSON != "" {
		if err := json.Unmarshal([]byte(row.DriftSnapshotJSON), &snapshot); err != nil {
			return ports.DriftIncident{}, errs.Wrap(err, "decode drift snapshot")
		}
	}

	return ports.DriftIncident{
		ID:                row.ID,
		TenantID:          row.TenantID,
		EnvironmentID:     row.EnvironmentID,
		Status:            drift.IncidentStatus(row.Status),
		Severity:          row.Severity,
		OwnerUserID:       row.OwnerUserID,
		TicketRef:         row.TicketRef,
		ExpiresAt:         row.ExpiresAt,
		AffectedWorkflows: affected,
		DriftSnapshot:     snapshot,
		ResolutionType:    row.ResolutionType,
		PayloadPurgedAt:   row.PayloadPurgedAt,
		IsDeleted:         row.IsDeleted,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func rowToApproval(row model.DriftApproval) (ports.DriftApproval, error) {
	var payload map[string]any
	if row.PayloadJSON != "" {
		if err := json.Unmarshal([]byte(row.PayloadJSON), &payload); err != nil {
			return ports.DriftApproval{}, errs.Wrap(err, "decode approval payload")
		}
	}

	return ports.DriftApproval{
		ID:           row.ID,
		IncidentID:   row.IncidentID,
		TenantID:     row.TenantID,
		ApprovalType: drift.ApprovalType(row.ApprovalType),
		Status:       drift.ApprovalStatus(row.Status),
		RequestedBy:  row.RequestedBy,
		DecidedBy:    row.DecidedBy,
		Payload:      payload,
		CreatedAt:    row.CreatedAt,
		DecidedAt:    row.DecidedAt,
	}, nil
}
