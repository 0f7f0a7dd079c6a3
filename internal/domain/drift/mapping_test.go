package drift

import "testing"

// Enumerates every combination of the five input facts and checks the
// precedence table: deleted > ignored > missing > untracked > linked.
func TestClassifyMappingFullEnumeration(t *testing.T) {
	for mask := 0; mask < 1<<5; mask++ {
		in := MappingInput{
			HasCanonicalID:   mask&1 != 0,
			HasRuntimeID:     mask&2 != 0,
			PresentInRuntime: mask&4 != 0,
			Deleted:          mask&8 != 0,
			Ignored:          mask&16 != 0,
		}

		want, wantConsistent := expectedMapping(in)
		got, consistent := ClassifyMapping(in)

		if got != want {
			t.Errorf("ClassifyMapping(%+v) = %q, want %q", in, got, want)
		}
		if consistent != wantConsistent {
			t.Errorf("ClassifyMapping(%+v) consistent = %v, want %v", in, consistent, wantConsistent)
		}
	}
}

// expectedMapping restates the precedence table independently of the
// implementation's switch ordering.
func expectedMapping(in MappingInput) (MappingStatus, bool) {
	if in.Deleted {
		return MappingDeleted, true
	}
	if in.Ignored {
		return MappingIgnored, true
	}
	if in.HasRuntimeID && !in.PresentInRuntime {
		return MappingMissing, true
	}
	if in.PresentInRuntime && !in.HasCanonicalID {
		return MappingUntracked, true
	}
	if in.HasCanonicalID && in.PresentInRuntime {
		return MappingLinked, true
	}
	return MappingUntracked, false
}

func TestClassifyMappingKnownCases(t *testing.T) {
	cases := []struct {
		name string
		in   MappingInput
		want MappingStatus
	}{
		{
			name: "tombstoned wins over everything",
			in:   MappingInput{HasCanonicalID: true, HasRuntimeID: true, PresentInRuntime: true, Deleted: true, Ignored: true},
			want: MappingDeleted,
		},
		{
			name: "ignored wins over missing",
			in:   MappingInput{HasCanonicalID: true, HasRuntimeID: true, PresentInRuntime: false, Ignored: true},
			want: MappingIgnored,
		},
		{
			name: "was linked but gone from runtime",
			in:   MappingInput{HasCanonicalID: true, HasRuntimeID: true, PresentInRuntime: false},
			want: MappingMissing,
		},
		{
			name: "runtime workflow with no canonical identity",
			in:   MappingInput{PresentInRuntime: true},
			want: MappingUntracked,
		},
		{
			name: "healthy link",
			in:   MappingInput{HasCanonicalID: true, HasRuntimeID: true, PresentInRuntime: true},
			want: MappingLinked,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, consistent := ClassifyMapping(tc.in)
			if got != tc.want {
				t.Fatalf("ClassifyMapping() = %q, want %q", got, tc.want)
			}
			if !consistent {
				t.Fatalf("known pattern reported as inconsistent")
			}
		})
	}
}

func TestClassifyMappingInconsistentDefaultsToUntracked(t *testing.T) {
	// Canonical identity with no runtime id and nothing in the runtime:
	// outside the five patterns, must default without raising.
	got, consistent := ClassifyMapping(MappingInput{HasCanonicalID: true})
	if got != MappingUntracked {
		t.Fatalf("ClassifyMapping() = %q, want %q", got, MappingUntracked)
	}
	if consistent {
		t.Fatalf("combination should be flagged inconsistent")
	}
}
