package normalize

import (
	"encoding/json"
	"testing"
)

func sampleDefinition() map[string]any {
	return map[string]any{
		"id":        "wf-runtime-123",
		"versionId": "abc-def",
		"name":      "invoice sync",
		"createdAt": "2026-01-01T00:00:00Z",
		"updatedAt": "2026-02-01T00:00:00Z",
		"active":    true,
		"nodes": []any{
			map[string]any{
				"id":        "node-1",
				"name":      "Webhook",
				"type":      "n8n-nodes-base.webhook",
				"webhookId": "hook-9",
				"position":  []any{120.0, 240.0},
				"parameters": map[string]any{
					"path":   "invoices",
					"unused": nil,
				},
			},
		},
		"meta":       map[string]any{"instanceId": "deadbeef"},
		"staticData": nil,
	}
}

func TestWorkflowStripsVolatileFieldsAndNulls(t *testing.T) {
	canonical := Workflow(sampleDefinition())

	for _, key := range []string{"id", "versionId", "createdAt", "updatedAt", "meta", "staticData", "active"} {
		if _, ok := canonical[key]; ok {
			t.Fatalf("canonical form still contains volatile key %q", key)
		}
	}

	nodes, ok := canonical["nodes"].([]any)
	if !ok || len(nodes) != 1 {
		t.Fatalf("nodes = %v", canonical["nodes"])
	}
	node := nodes[0].(map[string]any)
	if _, ok := node["position"]; ok {
		t.Fatalf("node position should be stripped")
	}
	if _, ok := node["webhookId"]; ok {
		t.Fatalf("node webhookId should be stripped")
	}
	params := node["parameters"].(map[string]any)
	if _, ok := params["unused"]; ok {
		t.Fatalf("null-valued key should be dropped")
	}
	if params["path"] != "invoices" {
		t.Fatalf("parameters.path = %v", params["path"])
	}
}

func TestWorkflowIsIdempotent(t *testing.T) {
	once := Workflow(sampleDefinition())
	twice := Workflow(once)

	h1, err := Hash(once)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := Hash(twice)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 != h2 {
		t.Fatalf("normalize is not idempotent: %s != %s", h1, h2)
	}
}

func TestHashStableAcrossCallsAndKeyOrder(t *testing.T) {
	first, err := HashDefinition(sampleDefinition())
	if err != nil {
		t.Fatalf("HashDefinition() error = %v", err)
	}
	second, err := HashDefinition(sampleDefinition())
	if err != nil {
		t.Fatalf("HashDefinition() error = %v", err)
	}
	if first != second {
		t.Fatalf("hash not stable: %s != %s", first, second)
	}

	// Same document serialized with a different key order must hash equally.
	reordered := []byte(`{"nodes":[{"parameters":{"path":"invoices"},"type":"n8n-nodes-base.webhook","name":"Webhook"}],"name":"invoice sync"}`)
	inOrder := []byte(`{"name":"invoice sync","nodes":[{"name":"Webhook","type":"n8n-nodes-base.webhook","parameters":{"path":"invoices"}}]}`)

	ha, err := HashRaw(reordered)
	if err != nil {
		t.Fatalf("HashRaw() error = %v", err)
	}
	hb, err := HashRaw(inOrder)
	if err != nil {
		t.Fatalf("HashRaw() error = %v", err)
	}
	if ha != hb {
		t.Fatalf("key order changed the hash: %s != %s", ha, hb)
	}
}

func TestHashIgnoresVolatileDifferences(t *testing.T) {
	a := sampleDefinition()
	b := sampleDefinition()
	b["id"] = "totally-different"
	b["updatedAt"] = "2026-03-01T00:00:00Z"

	equal, err := Equal(a, b)
	if err != nil {
		t.Fatalf("Equal() error = %v", err)
	}
	if !equal {
		t.Fatalf("volatile-only differences should not change the hash")
	}
}

func TestHashDetectsSemanticChange(t *testing.T) {
	a := sampleDefinition()
	b := sampleDefinition()
	b["nodes"].([]any)[0].(map[string]any)["parameters"].(map[string]any)["path"] = "orders"

	equal, err := Equal(a, b)
	if err != nil {
		t.Fatalf("Equal() error = %v", err)
	}
	if equal {
		t.Fatalf("semantic change must change the hash")
	}
}

func TestValidateRaw(t *testing.T) {
	valid, err := json.Marshal(sampleDefinition())
	if err != nil {
		t.Fatalf("marshal sample: %v", err)
	}
	if err := ValidateRaw(valid); err != nil {
		t.Fatalf("ValidateRaw(valid) error = %v", err)
	}

	if err := ValidateRaw([]byte(`{"nodes":[]}`)); err == nil {
		t.Fatalf("ValidateRaw should reject a definition without a name")
	}
	if err := ValidateRaw(nil); err == nil {
		t.Fatalf("ValidateRaw should reject empty input")
	}
	if err := ValidateRaw([]byte(`{broken`)); err == nil {
		t.Fatalf("ValidateRaw should reject malformed JSON")
	}
}
