package drift

// MappingInput is the full set of facts the mapping-status precedence table
// consumes for one (environment, workflow) pair.
type MappingInput struct {
	HasCanonicalID   bool
	HasRuntimeID     bool
	PresentInRuntime bool
	Deleted          bool
	Ignored          bool
}

// ClassifyMapping applies the precedence table, highest first:
// deleted > ignored > missing > untracked > linked.
//
// consistent=false marks a combination outside the five known patterns.
// Callers must log and count that case but still use the returned default
// (untracked): onboarding and partial-sync windows produce such states
// transiently and they must never be fatal.
func ClassifyMapping(in MappingInput) (status MappingStatus, consistent bool) {
	switch {
	case in.Deleted:
		return MappingDeleted, true
	case in.Ignored:
		return MappingIgnored, true
	case in.HasRuntimeID && !in.PresentInRuntime:
		return MappingMissing, true
	case in.PresentInRuntime && !in.HasCanonicalID:
		return MappingUntracked, true
	case in.HasCanonicalID && in.PresentInRuntime:
		return MappingLinked, true
	default:
		return MappingUntracked, false
	}
}
