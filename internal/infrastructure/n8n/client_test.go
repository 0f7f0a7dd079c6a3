package n8n

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"driftline/internal/ports"
)

func TestClientGetWorkflowsPaged(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-N8N-API-KEY")
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"data":[{"id":"wf-1","name":"order-intake","active":true}],"nextCursor":"abc"}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":"wf-2","name":"invoice-export","active":false}],"nextCursor":""}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second)
	workflows, err := client.GetWorkflows(context.Background())
	if err != nil {
		t.Fatalf("GetWorkflows() error = %v", err)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q, want secret", gotKey)
	}
	if len(workflows) != 2 {
		t.Fatalf("GetWorkflows() returned %d workflows, want 2", len(workflows))
	}
	if workflows[1].ID != "wf-2" || workflows[1].Name != "invoice-export" {
		t.Errorf("second page workflow = %+v", workflows[1])
	}
}

func TestClientGetWorkflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workflows/wf-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id":"wf-1","name":"order-intake","nodes":[{"name":"Start","type":"n8n-nodes-base.start"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second)

	definition, err := client.GetWorkflow(context.Background(), "wf-1")
	if err != nil {
		t.Fatalf("GetWorkflow() error = %v", err)
	}
	if definition["name"] != "order-intake" {
		t.Errorf("GetWorkflow() name = %v", definition["name"])
	}

	_, err = client.GetWorkflow(context.Background(), "missing")
	if !errors.Is(err, ports.ErrRuntimeNotFound) {
		t.Errorf("GetWorkflow() missing workflow error = %v, want ErrRuntimeNotFound", err)
	}
}

func TestClientGetWorkflowServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second)
	_, err := client.GetWorkflow(context.Background(), "wf-1")
	if !errors.Is(err, ports.ErrRuntimeUnavailable) {
		t.Errorf("GetWorkflow() on 502 error = %v, want ErrRuntimeUnavailable", err)
	}
}
