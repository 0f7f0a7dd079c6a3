package drift

import (
	"time"

	"driftline/internal/normalize"
)

// SyncStatusInput carries the two workflow copies plus the timestamps that
// anchor "changed since last sync". Any timestamp may be nil.
type SyncStatusInput struct {
	RuntimeDefinition map[string]any
	RepoDefinition    map[string]any // nil when no repository version exists
	LastSyncedAt      *time.Time
	RuntimeUpdatedAt  *time.Time
	RepoUpdatedAt     *time.Time
}

// ResolveSyncStatus labels a workflow's own divergence. Decision order:
//
//  1. no repository version -> local_changes (nothing to compare against)
//  2. canonical forms equal -> in_sync
//  3. anchored comparison when last-sync and both update timestamps exist:
//     only runtime changed -> local_changes, only repo changed ->
//     update_available, both -> conflict
//  4. fallback to plain recency between the update timestamps; a tie with
//     differing content defaults to local_changes because normalization
//     noise is likelier than a true conflict and the runtime is the more
//     authoritative default source.
func ResolveSyncStatus(in SyncStatusInput) (SyncStatus, error) {
	if in.RepoDefinition == nil {
		return SyncLocalChanges, nil
	}

	equal, err := normalize.Equal(in.RuntimeDefinition, in.RepoDefinition)
	if err != nil {
		return "", err
	}
	if equal {
		return SyncInSync, nil
	}

	if in.LastSyncedAt != nil && in.RuntimeUpdatedAt != nil && in.RepoUpdatedAt != nil {
		runtimeChanged := in.RuntimeUpdatedAt.After(*in.LastSyncedAt)
		repoChanged := in.RepoUpdatedAt.After(*in.LastSyncedAt)

		switch {
		case runtimeChanged && repoChanged:
			return SyncConflict, nil
		case repoChanged:
			return SyncUpdateAvailable, nil
		case runtimeChanged:
			return SyncLocalChanges, nil
		}
		// Content differs but neither side moved past the anchor; treat the
		// runtime as the side that drifted.
		return SyncLocalChanges, nil
	}

	if in.RuntimeUpdatedAt != nil && in.RepoUpdatedAt != nil {
		switch {
		case in.RepoUpdatedAt.After(*in.RuntimeUpdatedAt):
			return SyncUpdateAvailable, nil
		case in.RuntimeUpdatedAt.After(*in.RepoUpdatedAt):
			return SyncLocalChanges, nil
		}
	}

	return SyncLocalChanges, nil
}
