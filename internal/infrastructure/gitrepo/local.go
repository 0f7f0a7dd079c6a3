// Package gitrepo implements the repository adapter against a git clone on
// local disk.
package gitrepo

import (
	"context"
	"errors"
	"path"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"driftline/internal/errs"
	"driftline/internal/ports"
)

// LocalAdapter reads workflow files from a repository clone. It never writes;
// keeping the clone fresh (fetch/pull) is the operator's concern.
type LocalAdapter struct {
	path string
}

var _ ports.RepositoryAdapter = (*LocalAdapter)(nil)

func NewLocalAdapter(repoPath string) *LocalAdapter {
	return &LocalAdapter{path: repoPath}
}

func (a *LocalAdapter) GetAllWorkflowFiles(ctx context.Context, folder, ref string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	tree, err := a.treeAt(ref)
	if err != nil {
		return nil, err
	}

	prefix := normalizeFolder(folder)
	out := make(map[string][]byte)

	iter := tree.Files()
	defer iter.Close()
	if err := iter.ForEach(func(f *object.File) error {
		if prefix != "" && !strings.HasPrefix(f.Name, prefix) {
			return nil
		}
		if !strings.HasSuffix(f.Name, ".json") {
			return nil
		}
		content, err := f.Contents()
		if err != nil {
			return errs.Wrapf(err, "read %s", f.Name)
		}
		out[f.Name] = []byte(content)
		return nil
	}); err != nil {
		return nil, errs.Wrap(err, "walk repository tree")
	}

	return out, nil
}

func (a *LocalAdapter) GetFileContent(ctx context.Context, filePath, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	tree, err := a.treeAt(ref)
	if err != nil {
		return nil, err
	}

	f, err := tree.File(path.Clean(filePath))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, nil
		}
		return nil, errs.Wrapf(err, "open %s", filePath)
	}

	content, err := f.Contents()
	if err != nil {
		return nil, errs.Wrapf(err, "read %s", filePath)
	}
	return []byte(content), nil
}

func (a *LocalAdapter) ResolveRef(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	repo, err := a.open()
	if err != nil {
		return "", err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revisionOrHead(ref)))
	if err != nil {
		return "", errs.Wrapf(err, "resolve ref %q", ref)
	}
	return hash.String(), nil
}

func (a *LocalAdapter) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(a.path)
	if err != nil {
		return nil, errs.Wrapf(ports.ErrRepositoryUnavailable, "open clone at %s: %v", a.path, err)
	}
	return repo, nil
}

func (a *LocalAdapter) treeAt(ref string) (*object.Tree, error) {
	repo, err := a.open()
	if err != nil {
		return nil, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revisionOrHead(ref)))
	if err != nil {
		return nil, errs.Wrapf(err, "resolve ref %q", ref)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, errs.Wrap(err, "load commit")
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, errs.Wrap(err, "load tree")
	}
	return tree, nil
}

func revisionOrHead(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return "HEAD"
	}
	return ref
}

func normalizeFolder(folder string) string {
	cleaned := strings.Trim(strings.TrimSpace(folder), "/")
	if cleaned == "" || cleaned == "." {
		return ""
	}
	return cleaned + "/"
}
