// Package drift holds the pure decision rules of the cross-environment
// workflow sync core: mapping status precedence, sync status resolution,
// pairwise diff classification and the drift incident state machine. Nothing
// in this package touches storage or I/O.
package drift

// MappingStatus describes how a runtime workflow relates to its canonical
// identity in one environment.
type MappingStatus string

const (
	MappingDeleted   MappingStatus = "deleted"
	MappingIgnored   MappingStatus = "ignored"
	MappingMissing   MappingStatus = "missing"
	MappingUntracked MappingStatus = "untracked"
	MappingLinked    MappingStatus = "linked"
)

// SyncStatus labels a single workflow's divergence between its runtime copy
// and its repository copy. It never merges content.
type SyncStatus string

const (
	SyncInSync          SyncStatus = "in_sync"
	SyncLocalChanges    SyncStatus = "local_changes"
	SyncUpdateAvailable SyncStatus = "update_available"
	SyncConflict        SyncStatus = "conflict"
)

// DiffStatus is the pairwise comparison result for one canonical workflow
// between a source and a target environment.
type DiffStatus string

const (
	DiffUnchanged    DiffStatus = "unchanged"
	DiffModified     DiffStatus = "modified"
	DiffAdded        DiffStatus = "added"
	DiffTargetOnly   DiffStatus = "target_only"
	DiffTargetHotfix DiffStatus = "target_hotfix"
)

// IncidentStatus is the lifecycle state of a drift incident.
type IncidentStatus string

const (
	IncidentDetected     IncidentStatus = "detected"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentStabilized   IncidentStatus = "stabilized"
	IncidentReconciled   IncidentStatus = "reconciled"
	IncidentClosed       IncidentStatus = "closed"
)

// ApprovalStatus is the decision state of a DriftApproval record.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ApprovalType names the lifecycle side effect an approval gates.
type ApprovalType string

const (
	ApprovalAcknowledge ApprovalType = "acknowledge"
	ApprovalExtendTTL   ApprovalType = "extend_ttl"
	ApprovalClose       ApprovalType = "close"
	ApprovalReconcile   ApprovalType = "reconcile"
)

// LinkSuggestionStatus is the resolution state of a link suggestion.
type LinkSuggestionStatus string

const (
	SuggestionOpen     LinkSuggestionStatus = "open"
	SuggestionAccepted LinkSuggestionStatus = "accepted"
	SuggestionRejected LinkSuggestionStatus = "rejected"
	SuggestionExpired  LinkSuggestionStatus = "expired"
)
