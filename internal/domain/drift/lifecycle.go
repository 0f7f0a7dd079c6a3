package drift

import (
	"fmt"
	"strings"
	"time"
)

// forwardTransitions is the single loop-back-free path of the incident
// lifecycle. The direct escape to closed is handled by ValidateClose.
var forwardTransitions = map[IncidentStatus]IncidentStatus{
	IncidentDetected:     IncidentAcknowledged,
	IncidentAcknowledged: IncidentStabilized,
	IncidentStabilized:   IncidentReconciled,
	IncidentReconciled:   IncidentClosed,
}

// ValidateTransition checks one forward step of the lifecycle.
func ValidateTransition(from, to IncidentStatus) error {
	if from == IncidentClosed {
		return ErrIncidentClosed
	}
	if next, ok := forwardTransitions[from]; ok && next == to {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// ValidateClose checks the direct escape to closed from any non-terminal
// state. Closing an unresolved incident needs both a resolution type and a
// reason; from reconciled the resolution is already recorded and only the
// reason is required.
func ValidateClose(from IncidentStatus, resolutionType, reason string) error {
	if from == IncidentClosed {
		return ErrIncidentClosed
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if from != IncidentReconciled && strings.TrimSpace(resolutionType) == "" {
		return ErrResolutionTypeRequired
	}
	return nil
}

// IsExpired reports whether an incident's TTL has elapsed without the
// incident progressing past acknowledged.
func IsExpired(status IncidentStatus, expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	if status != IncidentDetected && status != IncidentAcknowledged {
		return false
	}
	return !now.Before(*expiresAt)
}
