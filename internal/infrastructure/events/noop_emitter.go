package events

import (
	"context"
	"log/slog"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/ports"
)

// NoopEmitter logs events at debug level instead of publishing them. Used
// when no broker is configured, and in tests.
type NoopEmitter struct{}

var _ ports.EventEmitter = (*NoopEmitter)(nil)

func NewNoopEmitter() *NoopEmitter { return &NoopEmitter{} }

func (*NoopEmitter) Emit(ctx context.Context, tenantID, eventType string, metadata map[string]any) {
	logging.Debug(ctx, "event dropped (noop emitter)",
		slog.String("tenant_id", tenantID),
		slog.String("event_type", eventType),
		slog.Any("metadata", metadata),
	)
}
