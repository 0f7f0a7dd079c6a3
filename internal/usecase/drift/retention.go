package drift

import (
	"context"
	"log/slog"
	"time"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
)

// PurgeIncidentPayloads clears drift snapshots of incidents older than the
// retention window, independent of lifecycle status. The incident record and
// its transition history stay.
func (s *Service) PurgeIncidentPayloads(ctx context.Context, tenantID string, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)

	purged, err := s.incidents.PurgePayloads(ctx, tenantID, cutoff)
	if err != nil {
		return 0, errs.Wrap(err, "purge incident payloads")
	}
	if purged > 0 {
		logging.Info(ctx, "incident payloads purged",
			slog.Int64("count", purged),
			slog.Time("cutoff", cutoff),
		)
	}
	return purged, nil
}
