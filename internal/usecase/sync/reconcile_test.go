package sync

import (
	"context"
	"testing"
	"time"

	"driftline/internal/domain/drift"
	"driftline/internal/ports"
)

func seedMapping(t *testing.T, te *testEnv, envID, canonicalID, runtimeID, hash string, syncedAt time.Time) {
	t.Helper()
	if err := te.workflows.UpsertEnvMap(context.Background(), ports.EnvMap{
		TenantID:       "t1",
		EnvironmentID:  envID,
		CanonicalID:    canonicalID,
		N8NWorkflowID:  runtimeID,
		EnvContentHash: hash,
		LastEnvSyncAt:  ptrTime(syncedAt),
		Status:         "linked",
	}); err != nil {
		t.Fatalf("UpsertEnvMap() error = %v", err)
	}
}

func seedCanonical(t *testing.T, te *testEnv, canonicalID, originEnv string) {
	t.Helper()
	if _, err := te.workflows.CreateCanonicalWorkflow(context.Background(), ports.CanonicalWorkflow{
		TenantID:            "t1",
		CanonicalID:         canonicalID,
		DisplayName:         canonicalID,
		OriginEnvironmentID: originEnv,
	}); err != nil {
		t.Fatalf("CreateCanonicalWorkflow() error = %v", err)
	}
}

func diffFor(t *testing.T, te *testEnv, source, target, canonicalID string) drift.DiffStatus {
	t.Helper()
	rows, err := te.workflows.ListDiffStates(context.Background(), "t1", source, target)
	if err != nil {
		t.Fatalf("ListDiffStates() error = %v", err)
	}
	for _, row := range rows {
		if row.CanonicalID == canonicalID {
			return row.DiffStatus
		}
	}
	t.Fatalf("no diff row for %s in %s -> %s (%d rows)", canonicalID, source, target, len(rows))
	return ""
}

func seedGitState(t *testing.T, te *testEnv, envID, canonicalID, hash string) {
	t.Helper()
	if err := te.workflows.UpsertGitState(context.Background(), ports.GitState{
		TenantID:       "t1",
		EnvironmentID:  envID,
		CanonicalID:    canonicalID,
		GitPath:        "workflows/" + canonicalID + ".json",
		GitContentHash: hash,
		GitCommitSHA:   "commit-1",
	}); err != nil {
		t.Fatalf("UpsertGitState() error = %v", err)
	}
}

func TestReconcileUnchangedThenModified(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.createEnvironment(t, "staging", 2)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	seedCanonical(t, te, "order-intake", "dev")
	seedMapping(t, te, "dev", "order-intake", "wf-d1", "H1", past)
	seedMapping(t, te, "staging", "order-intake", "wf-s1", "H1", past)

	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := diffFor(t, te, "dev", "staging", "order-intake"); got != drift.DiffUnchanged {
		t.Errorf("equal hashes diff = %s, want unchanged", got)
	}

	// dev moves ahead.
	seedMapping(t, te, "dev", "order-intake", "wf-d1", "H2", time.Now().UTC())
	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() after change error = %v", err)
	}
	if got := diffFor(t, te, "dev", "staging", "order-intake"); got != drift.DiffModified {
		t.Errorf("source-changed diff = %s, want modified", got)
	}
}

func TestReconcileAddedAndTargetOnly(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.createEnvironment(t, "staging", 2)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	seedCanonical(t, te, "only-dev", "dev")
	seedMapping(t, te, "dev", "only-dev", "wf-d1", "H1", past)

	seedCanonical(t, te, "only-staging", "staging")
	seedMapping(t, te, "staging", "only-staging", "wf-s9", "H9", past)

	if err := te.svc.Reconcile(ctx, "t1", "staging"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := diffFor(t, te, "dev", "staging", "only-dev"); got != drift.DiffAdded {
		t.Errorf("source-only diff = %s, want added", got)
	}
	if got := diffFor(t, te, "dev", "staging", "only-staging"); got != drift.DiffTargetOnly {
		t.Errorf("target-only diff = %s, want target_only", got)
	}
}

func TestReconcileCoversRepoOnlyWorkflows(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.createEnvironment(t, "staging", 2)
	ctx := context.Background()

	// Tracked in both repo folders with diverged content, but no runtime
	// link exists on either side.
	seedCanonical(t, te, "order-intake", "dev")
	seedGitState(t, te, "dev", "order-intake", "H1")
	seedGitState(t, te, "staging", "order-intake", "H2")

	// Tracked only in the source repo folder.
	seedCanonical(t, te, "invoice-export", "dev")
	seedGitState(t, te, "dev", "invoice-export", "H3")

	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := diffFor(t, te, "dev", "staging", "order-intake"); got != drift.DiffModified {
		t.Errorf("repo-only diverged diff = %s, want modified", got)
	}
	if got := diffFor(t, te, "dev", "staging", "invoice-export"); got != drift.DiffAdded {
		t.Errorf("repo-only source diff = %s, want added", got)
	}
}

func TestReconcileDetectsTargetHotfix(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.createEnvironment(t, "prod", 3)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	seedCanonical(t, te, "order-intake", "dev")
	seedMapping(t, te, "dev", "order-intake", "wf-d1", "H1", past)
	seedMapping(t, te, "prod", "order-intake", "wf-p1", "H1", past)

	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() baseline error = %v", err)
	}

	// Someone edits prod directly; the next prod sync observes a new hash
	// with a sync timestamp after the baseline pass.
	seedMapping(t, te, "prod", "order-intake", "wf-p1", "H2-hotfix", time.Now().UTC().Add(time.Minute))

	if err := te.svc.Reconcile(ctx, "t1", "prod"); err != nil {
		t.Fatalf("Reconcile() after hotfix error = %v", err)
	}
	if got := diffFor(t, te, "dev", "prod", "order-intake"); got != drift.DiffTargetHotfix {
		t.Errorf("out-of-band target edit diff = %s, want target_hotfix", got)
	}
}

func TestReconcilePrunesVanishedPairs(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.createEnvironment(t, "staging", 2)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	seedCanonical(t, te, "order-intake", "dev")
	seedMapping(t, te, "dev", "order-intake", "wf-d1", "H1", past)
	seedMapping(t, te, "staging", "order-intake", "wf-s1", "H1", past)

	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	// Workflow disappears from both sides (e.g. unlinked): rows are pruned
	// by the full replace.
	for _, envID := range []string{"dev", "staging"} {
		mapping, err := te.workflows.GetEnvMap(ctx, "t1", envID, "order-intake")
		if err != nil {
			t.Fatalf("GetEnvMap() error = %v", err)
		}
		mapping.Status = "deleted"
		if err := te.workflows.UpsertEnvMap(ctx, mapping); err != nil {
			t.Fatalf("UpsertEnvMap() error = %v", err)
		}
	}

	if err := te.svc.Reconcile(ctx, "t1", "dev"); err != nil {
		t.Fatalf("Reconcile() second pass error = %v", err)
	}
	rows, err := te.workflows.ListDiffStates(ctx, "t1", "dev", "staging")
	if err != nil {
		t.Fatalf("ListDiffStates() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("diff rows after prune = %d, want 0", len(rows))
	}
}
