package drift

import (
	"context"
	"time"

	"github.com/google/uuid"

	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// RequestApproval opens a pending approval gating one lifecycle side effect.
// Payload carries the arguments of the gated call (expiry for extend_ttl,
// resolution type and reason for close).
func (s *Service) RequestApproval(ctx context.Context, tenantID, incidentID string, approvalType domaindrift.ApprovalType, requestedBy string, payload map[string]any) (ports.DriftApproval, error) {
	if !domaindrift.KnownApprovalType(approvalType) {
		return ports.DriftApproval{}, domaindrift.ErrUnknownApprovalType
	}

	incident, err := s.incidents.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "load incident")
	}
	if incident.Status == domaindrift.IncidentClosed {
		return ports.DriftApproval{}, domaindrift.ErrIncidentClosed
	}

	approval, err := s.incidents.CreateApproval(ctx, ports.DriftApproval{
		ID:           uuid.NewString(),
		IncidentID:   incidentID,
		TenantID:     tenantID,
		ApprovalType: approvalType,
		Status:       domaindrift.ApprovalPending,
		RequestedBy:  requestedBy,
		Payload:      payload,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "create approval")
	}

	s.emit(ctx, tenantID, "approval.requested", map[string]any{
		"approval_id": approval.ID,
		"incident_id": incidentID,
		"type":        string(approvalType),
	})
	return approval, nil
}

// Approve records the decision and executes the gated side effect. The
// decider can never be the requester.
func (s *Service) Approve(ctx context.Context, tenantID, approvalID, decidedBy string) (ports.DriftApproval, error) {
	approval, err := s.decide(ctx, tenantID, approvalID, decidedBy, domaindrift.ApprovalApproved)
	if err != nil {
		return ports.DriftApproval{}, err
	}

	if err := s.executeApproved(ctx, tenantID, approval); err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "execute approved side effect")
	}
	return approval, nil
}

// Reject records the decision; the gated side effect never runs.
func (s *Service) Reject(ctx context.Context, tenantID, approvalID, decidedBy string) (ports.DriftApproval, error) {
	return s.decide(ctx, tenantID, approvalID, decidedBy, domaindrift.ApprovalRejected)
}

func (s *Service) decide(ctx context.Context, tenantID, approvalID, decidedBy string, decision domaindrift.ApprovalStatus) (ports.DriftApproval, error) {
	approval, err := s.incidents.GetApproval(ctx, tenantID, approvalID)
	if err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "load approval")
	}
	if err := domaindrift.ValidateApprovalDecision(approval.Status, approval.RequestedBy, decidedBy); err != nil {
		return ports.DriftApproval{}, err
	}

	now := s.now()
	approval.Status = decision
	approval.DecidedBy = decidedBy
	approval.DecidedAt = &now
	if err := s.incidents.UpdateApproval(ctx, approval); err != nil {
		return ports.DriftApproval{}, errs.Wrap(err, "update approval")
	}

	s.emit(ctx, tenantID, "approval."+string(decision), map[string]any{
		"approval_id": approval.ID,
		"incident_id": approval.IncidentID,
		"type":        string(approval.ApprovalType),
	})
	return approval, nil
}

// executeApproved dispatches the lifecycle call the approval gated. The
// transition runs on behalf of the original requester.
func (s *Service) executeApproved(ctx context.Context, tenantID string, approval ports.DriftApproval) error {
	in := TransitionInput{
		IncidentID: approval.IncidentID,
		Actor:      approval.RequestedBy,
		Reason:     payloadString(approval.Payload, "reason"),
	}

	switch approval.ApprovalType {
	case domaindrift.ApprovalAcknowledge:
		if expiry := payloadTime(approval.Payload, "expires_at"); expiry != nil {
			in.ExpiresAt = expiry
		}
		_, err := s.Acknowledge(ctx, tenantID, in)
		return err

	case domaindrift.ApprovalExtendTTL:
		in.ExpiresAt = payloadTime(approval.Payload, "expires_at")
		_, err := s.ExtendTTL(ctx, tenantID, in)
		return err

	case domaindrift.ApprovalClose:
		_, err := s.Close(ctx, tenantID, CloseInput{
			TransitionInput: in,
			ResolutionType:  payloadString(approval.Payload, "resolution_type"),
		})
		return err

	case domaindrift.ApprovalReconcile:
		// Placeholder pending richer reconcile-execution data.
		return nil

	default:
		return domaindrift.ErrUnknownApprovalType
	}
}

// ListApprovals returns an incident's approval records.
func (s *Service) ListApprovals(ctx context.Context, tenantID, incidentID string) ([]ports.DriftApproval, error) {
	approvals, err := s.incidents.ListApprovals(ctx, tenantID, incidentID)
	if err != nil {
		return nil, errs.Wrap(err, "list approvals")
	}
	return approvals, nil
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	value, _ := payload[key].(string)
	return value
}

func payloadTime(payload map[string]any, key string) *time.Time {
	raw := payloadString(payload, key)
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}
