package drift

import "errors"

var (
	ErrIllegalTransition      = errors.New("illegal incident transition")
	ErrIncidentClosed         = errors.New("incident is already closed")
	ErrResolutionTypeRequired = errors.New("closing an unresolved incident requires a resolution type")
	ErrReasonRequired         = errors.New("closing an incident requires a reason")
	ErrIncidentExpired        = errors.New("incident TTL has elapsed")

	ErrSelfApproval    = errors.New("approval requester cannot decide their own request")
	ErrApprovalDecided = errors.New("approval request is already decided")
	ErrApproverMissing = errors.New("approval decision requires a deciding user")

	ErrUnknownApprovalType = errors.New("unknown approval type")
)
