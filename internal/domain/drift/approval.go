package drift

import "strings"

// ValidateApprovalDecision gates deciding (approving or rejecting) a
// DriftApproval record: only pending requests can be decided and the
// requester can never decide their own request.
func ValidateApprovalDecision(status ApprovalStatus, requestedBy, decidedBy string) error {
	if status != ApprovalPending {
		return ErrApprovalDecided
	}

	decider := strings.TrimSpace(decidedBy)
	if decider == "" {
		return ErrApproverMissing
	}
	if strings.EqualFold(decider, strings.TrimSpace(requestedBy)) {
		return ErrSelfApproval
	}
	return nil
}

// KnownApprovalType reports whether t names a dispatchable side effect.
func KnownApprovalType(t ApprovalType) bool {
	switch t {
	case ApprovalAcknowledge, ApprovalExtendTTL, ApprovalClose, ApprovalReconcile:
		return true
	default:
		return false
	}
}
