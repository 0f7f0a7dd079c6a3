package sync

import (
	"context"
	"strings"

	"driftline/internal/errs"
	"driftline/internal/ports"
)

// RegisterEnvironment adds one deployment stage of a tenant. The ordinal
// encodes promotion order and drives reconciliation direction.
func (s *Service) RegisterEnvironment(ctx context.Context, env ports.Environment) (ports.Environment, error) {
	if env.TenantID == "" {
		return ports.Environment{}, errTenantRequired
	}
	if strings.TrimSpace(env.ID) == "" {
		return ports.Environment{}, errs.New("environment id is required")
	}
	if strings.TrimSpace(env.Name) == "" {
		env.Name = env.ID
	}
	created, err := s.workflows.CreateEnvironment(ctx, env)
	if err != nil {
		return ports.Environment{}, errs.Wrapf(err, "register environment %s", env.ID)
	}
	return created, nil
}

func (s *Service) Environments(ctx context.Context, tenantID string) ([]ports.Environment, error) {
	if tenantID == "" {
		return nil, errTenantRequired
	}
	return s.workflows.ListEnvironments(ctx, tenantID)
}
