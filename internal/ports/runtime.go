package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRuntimeNotFound marks a workflow id the automation runtime does not
	// know (terminal for that workflow, not for the sync run).
	ErrRuntimeNotFound = errors.New("workflow not found in automation runtime")

	// ErrRuntimeUnavailable marks a transient adapter failure (network,
	// timeout, auth); callers may retry a later pass.
	ErrRuntimeUnavailable = errors.New("automation runtime unavailable")
)

// RuntimeWorkflowSummary is one entry of the runtime's workflow listing.
type RuntimeWorkflowSummary struct {
	ID        string
	Name      string
	Active    bool
	UpdatedAt *time.Time
}

// RuntimeAdapter is the automation-platform boundary. Implementations must
// wrap failures in ErrRuntimeNotFound or ErrRuntimeUnavailable so engines
// can tell terminal from transient.
type RuntimeAdapter interface {
	GetWorkflows(ctx context.Context) ([]RuntimeWorkflowSummary, error)
	GetWorkflow(ctx context.Context, id string) (map[string]any, error)
}
