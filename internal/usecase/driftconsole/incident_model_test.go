package driftconsole

import (
	"testing"
	"time"

	domaindrift "driftline/internal/domain/drift"
	"driftline/internal/ports"
	usecasedrift "driftline/internal/usecase/drift"
)

func incidentView(id string, status domaindrift.IncidentStatus, severity string, createdAt time.Time, expired bool) usecasedrift.IncidentView {
	return usecasedrift.IncidentView{
		DriftIncident: ports.DriftIncident{
			ID:        id,
			Status:    status,
			Severity:  severity,
			CreatedAt: createdAt,
		},
		Expired: expired,
	}
}

func TestFilterIncidents(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []usecasedrift.IncidentView{
		incidentView("inc-1", domaindrift.IncidentDetected, "high", base, false),
		incidentView("inc-2", domaindrift.IncidentClosed, "medium", base, false),
		incidentView("inc-3", domaindrift.IncidentStabilized, "medium", base, false),
	}

	tests := []struct {
		name    string
		filter  string
		wantIDs []string
	}{
		{name: "default hides closed", filter: "", wantIDs: []string{"inc-1", "inc-3"}},
		{name: "open hides closed", filter: "open", wantIDs: []string{"inc-1", "inc-3"}},
		{name: "all keeps everything", filter: "all", wantIDs: []string{"inc-1", "inc-2", "inc-3"}},
		{name: "exact status", filter: "stabilized", wantIDs: []string{"inc-3"}},
		{name: "unknown status matches nothing", filter: "archived", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterIncidents(items, tt.filter)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("filterIncidents(%q) returned %d items, want %d", tt.filter, len(got), len(tt.wantIDs))
			}
			for i, item := range got {
				if item.ID != tt.wantIDs[i] {
					t.Errorf("filterIncidents(%q)[%d] = %s, want %s", tt.filter, i, item.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestSortIncidentsOrdersExpiredThenSeverity(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []usecasedrift.IncidentView{
		incidentView("medium-old", domaindrift.IncidentDetected, "medium", base, false),
		incidentView("high", domaindrift.IncidentDetected, "high", base, false),
		incidentView("expired", domaindrift.IncidentDetected, "medium", base, true),
		incidentView("medium-new", domaindrift.IncidentDetected, "medium", base.Add(time.Hour), false),
	}

	got := sortIncidents(items)
	wantIDs := []string{"expired", "high", "medium-new", "medium-old"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("sortIncidents()[%d] = %s, want %s", i, got[i].ID, want)
		}
	}
	if items[0].ID != "medium-old" {
		t.Errorf("sortIncidents mutated its input, items[0] = %s", items[0].ID)
	}
}

func TestFormatTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := func(d time.Duration) *time.Time {
		at := now.Add(d)
		return &at
	}

	tests := []struct {
		name      string
		expiresAt *time.Time
		expired   bool
		want      string
	}{
		{name: "no ttl", expiresAt: nil, want: "-"},
		{name: "expired", expiresAt: in(-time.Hour), expired: true, want: "EXPIRED"},
		{name: "minutes", expiresAt: in(45 * time.Minute), want: "45m"},
		{name: "hours", expiresAt: in(3*time.Hour + 5*time.Minute), want: "3h05m"},
		{name: "days", expiresAt: in(50 * time.Hour), want: "2d2h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTTL(tt.expiresAt, tt.expired, now); got != tt.want {
				t.Errorf("formatTTL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("2f4a1c9e-77aa-4d55-9f00-0123456789ab"); got != "2f4a1c9e" {
		t.Errorf("shortID() = %q, want %q", got, "2f4a1c9e")
	}
	if got := shortID("inc-7"); got != "inc-7" {
		t.Errorf("shortID() = %q, want %q", got, "inc-7")
	}
}
