package sync

import (
	"context"
	"testing"

	"driftline/internal/infrastructure/cache"
	"driftline/internal/ports"
)

const orderIntakeJSON = `{"name":"order-intake","nodes":[{"name":"Start","type":"n8n-nodes-base.start"}]}`
const invoiceExportJSON = `{"name":"invoice-export","nodes":[{"name":"Start","type":"n8n-nodes-base.start"}]}`

func TestSyncRepositoryFirstPassCreates(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	te.repo.files["workflows/invoice-export.json"] = []byte(invoiceExportJSON)
	ctx := context.Background()

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() error = %v", err)
	}
	if result.Created != 2 || result.Updated != 0 || result.Unchanged != 0 {
		t.Errorf("first pass = created %d updated %d unchanged %d, want 2/0/0", result.Created, result.Updated, result.Unchanged)
	}
	if len(result.Errors) != 0 {
		t.Errorf("first pass errors = %v, want none", result.Errors)
	}

	state, err := te.workflows.GetGitState(ctx, "t1", "dev", "order-intake")
	if err != nil {
		t.Fatalf("GetGitState() error = %v", err)
	}
	if state.GitCommitSHA != "commit-1" {
		t.Errorf("GitCommitSHA = %s, want commit-1", state.GitCommitSHA)
	}
	if state.GitContentHash == "" {
		t.Errorf("GitContentHash is empty")
	}
}

func TestSyncRepositoryReRunIsUnchangedOnly(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	te.repo.files["workflows/invoice-export.json"] = []byte(invoiceExportJSON)
	ctx := context.Background()

	if _, err := te.svc.SyncRepository(ctx, "t1", "dev"); err != nil {
		t.Fatalf("SyncRepository() first pass error = %v", err)
	}

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() second pass error = %v", err)
	}
	if result.Unchanged != 2 {
		t.Errorf("second pass unchanged = %d, want 2", result.Unchanged)
	}
	if result.Created != 0 || result.Updated != 0 {
		t.Errorf("second pass created/updated = %d/%d, want 0/0", result.Created, result.Updated)
	}
}

func TestSyncRepositoryVolatileOnlyChangeIsUnchanged(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	ctx := context.Background()

	if _, err := te.svc.SyncRepository(ctx, "t1", "dev"); err != nil {
		t.Fatalf("SyncRepository() first pass error = %v", err)
	}

	// Content differs only in volatile fields; the normalized hash matches.
	te.repo.files["workflows/order-intake.json"] = []byte(`{"id":"999","updatedAt":"2026-08-29T00:00:00Z","name":"order-intake","nodes":[{"name":"Start","type":"n8n-nodes-base.start"}]}`)
	te.repo.sha = "commit-2"

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() second pass error = %v", err)
	}
	if result.Unchanged != 1 || result.Updated != 0 {
		t.Errorf("volatile-only change = unchanged %d updated %d, want 1/0", result.Unchanged, result.Updated)
	}
}

func TestSyncRepositoryCorruptFileIsIsolated(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	te.repo.files["workflows/broken.json"] = []byte(`{not json`)
	ctx := context.Background()

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() error = %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly 1", result.Errors)
	}
	if result.Errors[0].Item != "workflows/broken.json" {
		t.Errorf("error item = %s, want workflows/broken.json", result.Errors[0].Item)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1 (healthy file still processed)", result.Created)
	}
}

func TestSyncRepositorySidecarLinksMapping(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	te.repo.files["workflows/order-intake.meta.yaml"] = []byte("display_name: Order Intake\nenvironments:\n  dev: wf-77\n")
	ctx := context.Background()

	if _, err := te.svc.SyncRepository(ctx, "t1", "dev"); err != nil {
		t.Fatalf("SyncRepository() error = %v", err)
	}

	mapping, err := te.workflows.GetEnvMap(ctx, "t1", "dev", "order-intake")
	if err != nil {
		t.Fatalf("GetEnvMap() error = %v", err)
	}
	if mapping.N8NWorkflowID != "wf-77" {
		t.Errorf("N8NWorkflowID = %s, want wf-77", mapping.N8NWorkflowID)
	}
	if mapping.Status != "linked" {
		t.Errorf("mapping status = %s, want linked", mapping.Status)
	}

	canonical, err := te.workflows.GetCanonicalWorkflow(ctx, "t1", "order-intake", ports.CanonicalWorkflowFilter{})
	if err != nil {
		t.Fatalf("GetCanonicalWorkflow() error = %v", err)
	}
	if canonical.DisplayName != "Order Intake" {
		t.Errorf("DisplayName = %s, want Order Intake (from sidecar)", canonical.DisplayName)
	}
}

func TestSyncRepositoryFolderSettingsIgnore(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.repo.files["workflows/.driftline.toml"] = []byte("ignore = [\"scratch-*.json\"]\n")
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	te.repo.files["workflows/scratch-test.json"] = []byte(invoiceExportJSON)
	ctx := context.Background()

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() error = %v", err)
	}
	if result.Created != 1 {
		t.Errorf("created = %d, want 1 (scratch file ignored)", result.Created)
	}
	if _, err := te.workflows.GetGitState(ctx, "t1", "dev", "scratch-test"); err == nil {
		t.Errorf("ignored file produced a GitState row")
	}
}

func TestSyncRepositorySkipsPassOnCachedCommitSHA(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.svc.cache = cache.NewSQLiteCache(te.db)
	te.repo.files["workflows/order-intake.json"] = []byte(orderIntakeJSON)
	ctx := context.Background()

	result, err := te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() first pass error = %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("first pass created = %d, want 1", result.Created)
	}

	// Same commit: the pass ends before listing any files.
	result, err = te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() cached pass error = %v", err)
	}
	if result.Synced != 0 || result.Unchanged != 0 {
		t.Errorf("cached pass = synced %d unchanged %d, want 0/0", result.Synced, result.Unchanged)
	}

	// A new commit invalidates the short-circuit.
	te.repo.sha = "commit-2"
	te.repo.files["workflows/order-intake.json"] = []byte(`{"name":"order-intake","nodes":[{"name":"Start","type":"n8n-nodes-base.start"},{"name":"Notify","type":"n8n-nodes-base.slack"}]}`)

	result, err = te.svc.SyncRepository(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncRepository() after new commit error = %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("after new commit updated = %d, want 1", result.Updated)
	}
}
