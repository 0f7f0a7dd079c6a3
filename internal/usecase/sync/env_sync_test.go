package sync

import (
	"context"
	"testing"

	"driftline/internal/domain/drift"
	"driftline/internal/ports"
)

func startDefinition(name string) map[string]any {
	return map[string]any{
		"name": name,
		"nodes": []any{
			map[string]any{"name": "Start", "type": "n8n-nodes-base.start"},
		},
	}
}

func TestSyncEnvironmentCreatesIdentities(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.runtime.addWorkflow("wf-1", "Order Intake", startDefinition("Order Intake"))
	ctx := context.Background()

	result, err := te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() error = %v", err)
	}
	if len(result.ObservedIDs) != 1 || len(result.CreatedIDs) != 1 {
		t.Fatalf("result = observed %v created %v, want one each", result.ObservedIDs, result.CreatedIDs)
	}

	canonicalID := result.CreatedIDs[0]
	if canonicalID != "order-intake" {
		t.Errorf("minted canonical id = %s, want order-intake", canonicalID)
	}

	mapping, err := te.workflows.GetEnvMapByRuntimeID(ctx, "t1", "dev", "wf-1")
	if err != nil {
		t.Fatalf("GetEnvMapByRuntimeID() error = %v", err)
	}
	if mapping.CanonicalID != canonicalID {
		t.Errorf("mapping canonical = %s, want %s", mapping.CanonicalID, canonicalID)
	}
	if mapping.EnvContentHash == "" || mapping.LastEnvSyncAt == nil {
		t.Errorf("mapping not refreshed: %+v", mapping)
	}
}

func TestSyncEnvironmentUpdatesChangedHash(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.runtime.addWorkflow("wf-1", "Order Intake", startDefinition("Order Intake"))
	ctx := context.Background()

	if _, err := te.svc.SyncEnvironment(ctx, "t1", "dev"); err != nil {
		t.Fatalf("SyncEnvironment() first pass error = %v", err)
	}

	// Unchanged content: observed but not updated.
	result, err := te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() second pass error = %v", err)
	}
	if len(result.UpdatedIDs) != 0 || len(result.CreatedIDs) != 0 {
		t.Errorf("no-change pass = updated %v created %v, want none", result.UpdatedIDs, result.CreatedIDs)
	}

	definition := startDefinition("Order Intake")
	definition["nodes"] = append(definition["nodes"].([]any), map[string]any{"name": "Notify", "type": "n8n-nodes-base.slack"})
	te.runtime.definitions["wf-1"] = definition

	result, err = te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() third pass error = %v", err)
	}
	if len(result.UpdatedIDs) != 1 {
		t.Errorf("changed pass updated = %v, want one id", result.UpdatedIDs)
	}
}

func TestSyncEnvironmentPerWorkflowFailureIsIsolated(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	te.runtime.addWorkflow("wf-1", "Order Intake", startDefinition("Order Intake"))
	// Listed but not fetchable: the adapter reports not-found on detail.
	te.runtime.summaries = append(te.runtime.summaries, ports.RuntimeWorkflowSummary{ID: "wf-gone", Name: "Ghost"})
	ctx := context.Background()

	result, err := te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() error = %v", err)
	}
	if len(result.Errors) != 1 || result.Errors[0].Item != "wf-gone" {
		t.Errorf("errors = %v, want one for wf-gone", result.Errors)
	}
	if len(result.ObservedIDs) != 1 {
		t.Errorf("observed = %v, want the healthy workflow only", result.ObservedIDs)
	}
}

func TestSyncEnvironmentSuggestsLinkInsteadOfDuplicate(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	ctx := context.Background()

	// An identity already exists (e.g. from repository sync) with no mapping
	// in this environment.
	if _, err := te.workflows.CreateCanonicalWorkflow(ctx, ports.CanonicalWorkflow{
		TenantID:            "t1",
		CanonicalID:         "order-intake",
		DisplayName:         "Order Intake",
		OriginEnvironmentID: "dev",
	}); err != nil {
		t.Fatalf("CreateCanonicalWorkflow() error = %v", err)
	}

	te.runtime.addWorkflow("wf-1", "Order Intake", startDefinition("Order Intake"))

	result, err := te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() error = %v", err)
	}
	if len(result.CreatedIDs) != 0 {
		t.Fatalf("created = %v, want none (suggestion expected instead)", result.CreatedIDs)
	}

	suggestions, err := te.workflows.ListLinkSuggestions(ctx, "t1", "dev", drift.SuggestionOpen)
	if err != nil {
		t.Fatalf("ListLinkSuggestions() error = %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(suggestions))
	}
	sg := suggestions[0]
	if sg.CanonicalID != "order-intake" || sg.N8NWorkflowID != "wf-1" {
		t.Errorf("suggestion = %+v", sg)
	}
	if sg.Score < suggestionThreshold {
		t.Errorf("score = %f, want >= %f", sg.Score, suggestionThreshold)
	}

	// Accepting links the mapping and closes the suggestion.
	if err := te.svc.AcceptLinkSuggestion(ctx, "t1", sg.ID, "alice"); err != nil {
		t.Fatalf("AcceptLinkSuggestion() error = %v", err)
	}
	mapping, err := te.workflows.GetEnvMapByRuntimeID(ctx, "t1", "dev", "wf-1")
	if err != nil {
		t.Fatalf("GetEnvMapByRuntimeID() error = %v", err)
	}
	if mapping.CanonicalID != "order-intake" {
		t.Errorf("accepted mapping canonical = %s, want order-intake", mapping.CanonicalID)
	}

	// The next pass refreshes the now-linked mapping rather than suggesting.
	result, err = te.svc.SyncEnvironment(ctx, "t1", "dev")
	if err != nil {
		t.Fatalf("SyncEnvironment() after accept error = %v", err)
	}
	if len(result.CreatedIDs) != 0 {
		t.Errorf("post-accept created = %v, want none", result.CreatedIDs)
	}
}

func TestComputeMappingStatusDefaultsInconsistency(t *testing.T) {
	te := setupService(t)
	te.createEnvironment(t, "dev", 1)
	ctx := context.Background()

	// Unknown runtime workflow, present in runtime: untracked.
	status, err := te.svc.ComputeMappingStatus(ctx, "t1", "dev", "wf-unknown", true)
	if err != nil {
		t.Fatalf("ComputeMappingStatus() error = %v", err)
	}
	if status != drift.MappingUntracked {
		t.Errorf("status = %s, want untracked", status)
	}

	// Linked and present: linked.
	if _, err := te.workflows.CreateCanonicalWorkflow(ctx, ports.CanonicalWorkflow{
		TenantID: "t1", CanonicalID: "order-intake", DisplayName: "Order Intake", OriginEnvironmentID: "dev",
	}); err != nil {
		t.Fatalf("CreateCanonicalWorkflow() error = %v", err)
	}
	if err := te.workflows.UpsertEnvMap(ctx, ports.EnvMap{
		TenantID: "t1", EnvironmentID: "dev", CanonicalID: "order-intake", N8NWorkflowID: "wf-1", Status: "linked",
	}); err != nil {
		t.Fatalf("UpsertEnvMap() error = %v", err)
	}

	status, err = te.svc.ComputeMappingStatus(ctx, "t1", "dev", "wf-1", true)
	if err != nil {
		t.Fatalf("ComputeMappingStatus() error = %v", err)
	}
	if status != drift.MappingLinked {
		t.Errorf("status = %s, want linked", status)
	}

	// Linked but gone from the runtime: missing.
	status, err = te.svc.ComputeMappingStatus(ctx, "t1", "dev", "wf-1", false)
	if err != nil {
		t.Fatalf("ComputeMappingStatus() error = %v", err)
	}
	if status != drift.MappingMissing {
		t.Errorf("status = %s, want missing", status)
	}
}
