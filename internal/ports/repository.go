package ports

import (
	"context"
	"errors"
)

// ErrRepositoryUnavailable marks a transient failure of the version-control
// backend; the whole sync job fails but timestamps still advance.
var ErrRepositoryUnavailable = errors.New("workflow repository unavailable")

// RepositoryAdapter is the version-control boundary the repository sync
// engine pulls from. A missing file is not an error: GetFileContent returns
// (nil, nil).
type RepositoryAdapter interface {
	// GetAllWorkflowFiles returns path -> raw content for every workflow
	// file under folder at ref (empty ref means the configured branch).
	GetAllWorkflowFiles(ctx context.Context, folder, ref string) (map[string][]byte, error)

	// GetFileContent fetches one file; (nil, nil) when the path is absent.
	GetFileContent(ctx context.Context, path, ref string) ([]byte, error)

	// ResolveRef resolves a branch or ref name to a commit SHA.
	ResolveRef(ctx context.Context, ref string) (string, error)
}
