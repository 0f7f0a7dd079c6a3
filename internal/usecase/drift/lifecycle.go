package drift

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"driftline/internal/bootstrap/logging"
	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// GetIncident returns one incident with its derived expiry flag.
func (s *Service) GetIncident(ctx context.Context, tenantID, incidentID string) (IncidentView, error) {
	incident, err := s.incidents.GetIncident(ctx, tenantID, incidentID)
	if err != nil {
		return IncidentView{}, errs.Wrap(err, "load incident")
	}
	return s.view(incident), nil
}

// ListIncidents returns incidents with derived expiry flags.
func (s *Service) ListIncidents(ctx context.Context, tenantID string, filter ports.IncidentFilter) ([]IncidentView, error) {
	incidents, err := s.incidents.ListIncidents(ctx, tenantID, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list incidents")
	}

	views := make([]IncidentView, 0, len(incidents))
	for _, incident := range incidents {
		views = append(views, s.view(incident))
	}
	return views, nil
}

// Acknowledge moves a detected incident forward and may start its TTL clock.
func (s *Service) Acknowledge(ctx context.Context, tenantID string, in TransitionInput) (IncidentView, error) {
	return s.transition(ctx, tenantID, in, domaindrift.IncidentAcknowledged)
}

// Stabilize records that the drift's blast radius is contained.
func (s *Service) Stabilize(ctx context.Context, tenantID string, in TransitionInput) (IncidentView, error) {
	return s.transition(ctx, tenantID, in, domaindrift.IncidentStabilized)
}

// MarkReconciled records that the divergent copies were brought back in line.
func (s *Service) MarkReconciled(ctx context.Context, tenantID string, in TransitionInput) (IncidentView, error) {
	return s.transition(ctx, tenantID, in, domaindrift.IncidentReconciled)
}

// Close takes the direct escape to closed from any non-terminal state. An
// unresolved incident needs a resolution type; from reconciled a reason is
// enough.
func (s *Service) Close(ctx context.Context, tenantID string, in CloseInput) (IncidentView, error) {
	incident, err := s.incidents.GetIncident(ctx, tenantID, in.IncidentID)
	if err != nil {
		return IncidentView{}, errs.Wrap(err, "load incident")
	}

	if in.AdminOverride {
		s.logOverride(ctx, incident, domaindrift.IncidentClosed, in.Actor)
	} else if err := domaindrift.ValidateClose(incident.Status, in.ResolutionType, in.Reason); err != nil {
		return IncidentView{}, err
	}

	if in.ResolutionType != "" {
		incident.ResolutionType = in.ResolutionType
	}
	return s.apply(ctx, tenantID, incident, domaindrift.IncidentClosed, in.TransitionInput)
}

// ExtendTTL pushes an incident's expiry forward; valid while the incident
// has not progressed past acknowledged.
func (s *Service) ExtendTTL(ctx context.Context, tenantID string, in TransitionInput) (IncidentView, error) {
	if in.ExpiresAt == nil {
		return IncidentView{}, errs.New("extend requires a new expiry")
	}

	incident, err := s.incidents.GetIncident(ctx, tenantID, in.IncidentID)
	if err != nil {
		return IncidentView{}, errs.Wrap(err, "load incident")
	}
	if !in.AdminOverride && incident.Status != domaindrift.IncidentDetected && incident.Status != domaindrift.IncidentAcknowledged {
		return IncidentView{}, errs.Wrapf(domaindrift.ErrIllegalTransition, "extend ttl in status %s", incident.Status)
	}
	if in.AdminOverride {
		s.logOverride(ctx, incident, incident.Status, in.Actor)
	}

	// TTL extension keeps the current status; only the clock moves.
	return s.apply(ctx, tenantID, incident, incident.Status, in)
}

func (s *Service) transition(ctx context.Context, tenantID string, in TransitionInput, to domaindrift.IncidentStatus) (IncidentView, error) {
	incident, err := s.incidents.GetIncident(ctx, tenantID, in.IncidentID)
	if err != nil {
		return IncidentView{}, errs.Wrap(err, "load incident")
	}

	if in.AdminOverride {
		s.logOverride(ctx, incident, to, in.Actor)
	} else if err := domaindrift.ValidateTransition(incident.Status, to); err != nil {
		return IncidentView{}, err
	}

	return s.apply(ctx, tenantID, incident, to, in)
}

// apply persists the status change and its append-only transition record in
// one transaction, then emits the lifecycle event.
func (s *Service) apply(ctx context.Context, tenantID string, incident ports.DriftIncident, to domaindrift.IncidentStatus, in TransitionInput) (IncidentView, error) {
	from := incident.Status
	now := s.now()

	incident.Status = to
	incident.UpdatedAt = now
	if in.OwnerUserID != "" {
		incident.OwnerUserID = in.OwnerUserID
	}
	if in.TicketRef != "" {
		incident.TicketRef = in.TicketRef
	}
	if in.ExpiresAt != nil {
		incident.ExpiresAt = in.ExpiresAt
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.incidents.UpdateIncident(txCtx, incident); err != nil {
			return errs.Wrap(err, "update incident")
		}
		if err := s.incidents.AppendTransition(txCtx, ports.IncidentTransition{
			IncidentID: incident.ID,
			FromStatus: from,
			ToStatus:   to,
			Actor:      in.Actor,
			Reason:     in.Reason,
			Override:   in.AdminOverride,
			CreatedAt:  now,
		}); err != nil {
			return errs.Wrap(err, "append transition")
		}
		return nil
	}); err != nil {
		return IncidentView{}, err
	}

	s.emit(ctx, tenantID, "incident."+string(to), map[string]any{
		"incident_id":    incident.ID,
		"environment_id": incident.EnvironmentID,
		"from":           string(from),
		"actor":          in.Actor,
	})
	return s.view(incident), nil
}

func (s *Service) logOverride(ctx context.Context, incident ports.DriftIncident, to domaindrift.IncidentStatus, actor string) {
	logging.Warn(ctx, "admin override on incident transition",
		slog.String("incident_id", incident.ID),
		slog.String("from", string(incident.Status)),
		slog.String("to", string(to)),
		slog.String("actor", actor),
	)
}

// Transitions returns the append-only audit trail of one incident.
func (s *Service) Transitions(ctx context.Context, tenantID, incidentID string) ([]ports.IncidentTransition, error) {
	if _, err := s.incidents.GetIncident(ctx, tenantID, incidentID); err != nil {
		return nil, errs.Wrap(err, "load incident")
	}
	transitions, err := s.incidents.ListTransitions(ctx, incidentID)
	if err != nil {
		return nil, errs.Wrap(err, "list transitions")
	}
	return transitions, nil
}

// HasBlockingIncident reports whether the environment carries an open
// incident whose TTL elapsed; promotion into the environment must hold until
// it is re-acknowledged or force-closed.
func (s *Service) HasBlockingIncident(ctx context.Context, tenantID, environmentID string) (bool, error) {
	incident, err := s.incidents.FindOpenIncident(ctx, tenantID, environmentID)
	if err != nil {
		if errors.Is(err, ports.ErrIncidentNotFound) {
			return false, nil
		}
		return false, errs.Wrap(err, "find open incident")
	}
	return domaindrift.IsExpired(incident.Status, incident.ExpiresAt, s.now()), nil
}

func newIncidentID() string { return uuid.NewString() }
