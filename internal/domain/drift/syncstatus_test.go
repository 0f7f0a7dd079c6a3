package drift

import (
	"testing"
	"time"
)

func runtimeDef(path string) map[string]any {
	return map[string]any{
		"id":   "runtime-id",
		"name": "billing export",
		"nodes": []any{
			map[string]any{
				"name":       "HTTP Request",
				"type":       "n8n-nodes-base.httpRequest",
				"parameters": map[string]any{"path": path},
			},
		},
	}
}

func repoDef(path string) map[string]any {
	// Same workflow as stored in git: no runtime id, volatile noise differs.
	return map[string]any{
		"name":      "billing export",
		"versionId": "v2",
		"nodes": []any{
			map[string]any{
				"name":       "HTTP Request",
				"type":       "n8n-nodes-base.httpRequest",
				"parameters": map[string]any{"path": path},
			},
		},
	}
}

func ts(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return &parsed
}

func TestResolveSyncStatusNoRepoVersion(t *testing.T) {
	got, err := ResolveSyncStatus(SyncStatusInput{RuntimeDefinition: runtimeDef("a")})
	if err != nil {
		t.Fatalf("ResolveSyncStatus() error = %v", err)
	}
	if got != SyncLocalChanges {
		t.Fatalf("ResolveSyncStatus() = %q, want %q", got, SyncLocalChanges)
	}
}

func TestResolveSyncStatusEqualContent(t *testing.T) {
	got, err := ResolveSyncStatus(SyncStatusInput{
		RuntimeDefinition: runtimeDef("a"),
		RepoDefinition:    repoDef("a"),
	})
	if err != nil {
		t.Fatalf("ResolveSyncStatus() error = %v", err)
	}
	if got != SyncInSync {
		t.Fatalf("ResolveSyncStatus() = %q, want %q", got, SyncInSync)
	}
}

func TestResolveSyncStatusAnchoredComparison(t *testing.T) {
	lastSync := "2026-01-10T00:00:00Z"
	before := "2026-01-09T00:00:00Z"
	after := "2026-01-11T00:00:00Z"

	cases := []struct {
		name             string
		runtimeUpdatedAt string
		repoUpdatedAt    string
		want             SyncStatus
	}{
		{"only runtime changed", after, before, SyncLocalChanges},
		{"only repo changed", before, after, SyncUpdateAvailable},
		{"both changed", after, after, SyncConflict},
		{"neither moved past anchor", before, before, SyncLocalChanges},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveSyncStatus(SyncStatusInput{
				RuntimeDefinition: runtimeDef("a"),
				RepoDefinition:    repoDef("b"),
				LastSyncedAt:      ts(t, lastSync),
				RuntimeUpdatedAt:  ts(t, tc.runtimeUpdatedAt),
				RepoUpdatedAt:     ts(t, tc.repoUpdatedAt),
			})
			if err != nil {
				t.Fatalf("ResolveSyncStatus() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("ResolveSyncStatus() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveSyncStatusRecencyFallback(t *testing.T) {
	older := "2026-01-01T00:00:00Z"
	newer := "2026-01-02T00:00:00Z"

	cases := []struct {
		name    string
		runtime string
		repo    string
		want    SyncStatus
	}{
		{"repo newer wins the label", older, newer, SyncUpdateAvailable},
		{"runtime newer wins the label", newer, older, SyncLocalChanges},
		{"equal timestamps default to local changes", older, older, SyncLocalChanges},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveSyncStatus(SyncStatusInput{
				RuntimeDefinition: runtimeDef("a"),
				RepoDefinition:    repoDef("b"),
				RuntimeUpdatedAt:  ts(t, tc.runtime),
				RepoUpdatedAt:     ts(t, tc.repo),
			})
			if err != nil {
				t.Fatalf("ResolveSyncStatus() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("ResolveSyncStatus() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveSyncStatusNoTimestampsAtAll(t *testing.T) {
	got, err := ResolveSyncStatus(SyncStatusInput{
		RuntimeDefinition: runtimeDef("a"),
		RepoDefinition:    repoDef("b"),
	})
	if err != nil {
		t.Fatalf("ResolveSyncStatus() error = %v", err)
	}
	if got != SyncLocalChanges {
		t.Fatalf("ResolveSyncStatus() = %q, want %q", got, SyncLocalChanges)
	}
}
