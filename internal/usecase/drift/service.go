// Package drift hosts the incident lifecycle, approval gating, detection and
// retention usecases.
package drift

import (
	"context"
	"time"

	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/ports"
)

type Service struct {
	incidents ports.IncidentRepository
	workflows ports.WorkflowRepository
	uow       ports.UnitOfWork
	emitter   ports.EventEmitter
	now       func() time.Time
}

func NewService(incidents ports.IncidentRepository, workflows ports.WorkflowRepository, uow ports.UnitOfWork, emitter ports.EventEmitter) *Service {
	return &Service{
		incidents: incidents,
		workflows: workflows,
		uow:       uow,
		emitter:   emitter,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TransitionInput carries one lifecycle step request. AdminOverride bypasses
// state-machine validation for privileged recovery and is always logged.
type TransitionInput struct {
	IncidentID    string
	Actor         string
	Reason        string
	OwnerUserID   string
	TicketRef     string
	ExpiresAt     *time.Time
	AdminOverride bool
}

// CloseInput is TransitionInput plus the resolution recorded on close.
type CloseInput struct {
	TransitionInput
	ResolutionType string
}

// IncidentView is an incident plus its derived expiry flag; every status
// query reports expiry the same way.
type IncidentView struct {
	ports.DriftIncident
	Expired bool
}

func (s *Service) view(incident ports.DriftIncident) IncidentView {
	return IncidentView{
		DriftIncident: incident,
		Expired:       domaindrift.IsExpired(incident.Status, incident.ExpiresAt, s.now()),
	}
}

func (s *Service) emit(ctx context.Context, tenantID, eventType string, metadata map[string]any) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(ctx, tenantID, eventType, metadata)
}
