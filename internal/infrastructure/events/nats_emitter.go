// Package events implements notification publishing for drift and lifecycle
// events.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/ports"
)

// NATSEmitter publishes events on <prefix>.<event-type> subjects. Delivery
// failures are logged and dropped; notification is best-effort and must never
// fail the operation that produced the event.
type NATSEmitter struct {
	conn    *nats.Conn
	subject string
}

var _ ports.EventEmitter = (*NATSEmitter)(nil)

func NewNATSEmitter(url, subjectPrefix string) (*NATSEmitter, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	if subjectPrefix == "" {
		subjectPrefix = "driftline"
	}
	return &NATSEmitter{conn: conn, subject: subjectPrefix}, nil
}

type envelope struct {
	TenantID  string         `json:"tenant_id"`
	EventType string         `json:"event_type"`
	EmittedAt time.Time      `json:"emitted_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (e *NATSEmitter) Emit(ctx context.Context, tenantID, eventType string, metadata map[string]any) {
	payload, err := json.Marshal(envelope{
		TenantID:  tenantID,
		EventType: eventType,
		EmittedAt: time.Now().UTC(),
		Metadata:  metadata,
	})
	if err != nil {
		logging.Warn(ctx, "encode event failed", slog.String("event_type", eventType), slog.Any("err", errs.Loggable(err)))
		return
	}

	if err := e.conn.Publish(e.subject+"."+eventType, payload); err != nil {
		logging.Warn(ctx, "publish event failed", slog.String("event_type", eventType), slog.Any("err", errs.Loggable(err)))
	}
}

func (e *NATSEmitter) Close() {
	e.conn.Drain()
}
