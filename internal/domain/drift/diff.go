package drift

// DiffInput is the comparison state for one canonical workflow between a
// source and a target environment.
type DiffInput struct {
	SourcePresent bool
	TargetPresent bool
	SourceHash    string
	TargetHash    string

	// OriginInSourceLineage is true when the workflow was first observed in
	// the source side's lineage (origin ordinal <= source ordinal).
	OriginInSourceLineage bool

	// TargetChangedSinceLastPass is true when the target's own last sync
	// timestamp exceeds the previous reconciliation of this pair, which
	// marks an out-of-band edit that promotion must not silently overwrite.
	TargetChangedSinceLastPass bool
}

// ClassifyDiff maps one (source, target, workflow) triple onto its diff
// status. ok=false means the workflow is present on neither side and the
// DiffState row should be pruned.
func ClassifyDiff(in DiffInput) (status DiffStatus, ok bool) {
	switch {
	case !in.SourcePresent && !in.TargetPresent:
		return "", false
	case in.SourcePresent && !in.TargetPresent:
		return DiffAdded, true
	case !in.SourcePresent && in.TargetPresent:
		return DiffTargetOnly, true
	case in.SourceHash == in.TargetHash:
		return DiffUnchanged, true
	case in.TargetChangedSinceLastPass:
		return DiffTargetHotfix, true
	case in.OriginInSourceLineage:
		return DiffModified, true
	default:
		// Divergence without source lineage and without a fresh target edit:
		// still a modification from the promoting side's point of view.
		return DiffModified, true
	}
}
