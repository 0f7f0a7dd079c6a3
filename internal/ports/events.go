package ports

import "context"

// EventEmitter publishes drift and lifecycle notifications. Emission is
// fire-and-forget: implementations log delivery failures and never propagate
// them to the causing operation.
type EventEmitter interface {
	Emit(ctx context.Context, tenantID, eventType string, metadata map[string]any)
}
