package drift

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTransitionForwardPath(t *testing.T) {
	steps := []struct {
		from IncidentStatus
		to   IncidentStatus
	}{
		{IncidentDetected, IncidentAcknowledged},
		{IncidentAcknowledged, IncidentStabilized},
		{IncidentStabilized, IncidentReconciled},
		{IncidentReconciled, IncidentClosed},
	}
	for _, step := range steps {
		if err := ValidateTransition(step.from, step.to); err != nil {
			t.Fatalf("ValidateTransition(%s, %s) error = %v", step.from, step.to, err)
		}
	}
}

func TestValidateTransitionRejectsSkipsAndLoops(t *testing.T) {
	bad := []struct {
		from IncidentStatus
		to   IncidentStatus
	}{
		{IncidentDetected, IncidentStabilized},
		{IncidentDetected, IncidentReconciled},
		{IncidentAcknowledged, IncidentDetected},
		{IncidentStabilized, IncidentAcknowledged},
	}
	for _, step := range bad {
		err := ValidateTransition(step.from, step.to)
		if !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("ValidateTransition(%s, %s) error = %v, want ErrIllegalTransition", step.from, step.to, err)
		}
	}

	if err := ValidateTransition(IncidentClosed, IncidentAcknowledged); !errors.Is(err, ErrIncidentClosed) {
		t.Fatalf("transition from closed error = %v, want ErrIncidentClosed", err)
	}
}

func TestValidateClose(t *testing.T) {
	if err := ValidateClose(IncidentDetected, "", "drift accepted"); !errors.Is(err, ErrResolutionTypeRequired) {
		t.Fatalf("close from detected without resolution type error = %v, want ErrResolutionTypeRequired", err)
	}

	if err := ValidateClose(IncidentDetected, "accepted", ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("close without reason error = %v, want ErrReasonRequired", err)
	}

	// Resolution was already recorded at reconcile time.
	if err := ValidateClose(IncidentReconciled, "", "all clear"); err != nil {
		t.Fatalf("close from reconciled with only a reason error = %v", err)
	}

	if err := ValidateClose(IncidentAcknowledged, "force_closed", "operator decision"); err != nil {
		t.Fatalf("forced close error = %v", err)
	}

	if err := ValidateClose(IncidentClosed, "accepted", "again"); !errors.Is(err, ErrIncidentClosed) {
		t.Fatalf("close from closed error = %v, want ErrIncidentClosed", err)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		status    IncidentStatus
		expiresAt *time.Time
		want      bool
	}{
		{"no ttl set", IncidentDetected, nil, false},
		{"ttl in the future", IncidentDetected, &future, false},
		{"elapsed while detected", IncidentDetected, &past, true},
		{"elapsed while acknowledged", IncidentAcknowledged, &past, true},
		{"progressed past acknowledged", IncidentStabilized, &past, false},
		{"closed incidents never expire", IncidentClosed, &past, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsExpired(tc.status, tc.expiresAt, now); got != tc.want {
				t.Fatalf("IsExpired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateApprovalDecision(t *testing.T) {
	if err := ValidateApprovalDecision(ApprovalPending, "alice", "alice"); !errors.Is(err, ErrSelfApproval) {
		t.Fatalf("self approval error = %v, want ErrSelfApproval", err)
	}

	if err := ValidateApprovalDecision(ApprovalApproved, "alice", "bob"); !errors.Is(err, ErrApprovalDecided) {
		t.Fatalf("already-decided error = %v, want ErrApprovalDecided", err)
	}

	if err := ValidateApprovalDecision(ApprovalPending, "alice", " "); !errors.Is(err, ErrApproverMissing) {
		t.Fatalf("missing approver error = %v, want ErrApproverMissing", err)
	}

	if err := ValidateApprovalDecision(ApprovalPending, "alice", "bob"); err != nil {
		t.Fatalf("valid decision error = %v", err)
	}
}
