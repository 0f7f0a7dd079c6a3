package gitrepo

import (
	"context"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"driftline/internal/errs"
	"driftline/internal/ports"
)

// GitHubAdapter reads workflow files through the GitHub contents API, so no
// local clone is needed. Authentication is either a personal access token or
// a GitHub App installation.
type GitHubAdapter struct {
	client *github.Client
	owner  string
	repo   string
}

var _ ports.RepositoryAdapter = (*GitHubAdapter)(nil)

type GitHubOptions struct {
	Owner string
	Repo  string

	// Token auth. Ignored when the App fields are set.
	Token string

	// GitHub App installation auth.
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

func NewGitHubAdapter(opts GitHubOptions) (*GitHubAdapter, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, errs.New("github adapter requires owner and repo")
	}

	var httpClient *http.Client
	switch {
	case opts.AppID != 0:
		transport, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, opts.AppID, opts.InstallationID, opts.PrivateKeyPath)
		if err != nil {
			return nil, errs.Wrap(err, "load github app key")
		}
		httpClient = &http.Client{Transport: transport}
	case opts.Token != "":
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
	default:
		return nil, errs.New("github adapter requires a token or app credentials")
	}

	return &GitHubAdapter{
		client: github.NewClient(httpClient),
		owner:  opts.Owner,
		repo:   opts.Repo,
	}, nil
}

func (a *GitHubAdapter) GetAllWorkflowFiles(ctx context.Context, folder, ref string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	if err := a.collect(ctx, strings.Trim(folder, "/"), ref, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *GitHubAdapter) collect(ctx context.Context, dir, ref string, out map[string][]byte) error {
	_, entries, resp, err := a.client.Repositories.GetContents(ctx, a.owner, a.repo, dir, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return errs.Wrapf(ports.ErrRepositoryUnavailable, "list %s: %v", dir, err)
	}

	for _, entry := range entries {
		switch entry.GetType() {
		case "dir":
			if err := a.collect(ctx, entry.GetPath(), ref, out); err != nil {
				return err
			}
		case "file":
			if !strings.HasSuffix(entry.GetName(), ".json") {
				continue
			}
			content, err := a.GetFileContent(ctx, entry.GetPath(), ref)
			if err != nil {
				return err
			}
			if content != nil {
				out[entry.GetPath()] = content
			}
		}
	}
	return nil
}

func (a *GitHubAdapter) GetFileContent(ctx context.Context, path, ref string) ([]byte, error) {
	file, _, resp, err := a.client.Repositories.GetContents(ctx, a.owner, a.repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, errs.Wrapf(ports.ErrRepositoryUnavailable, "fetch %s: %v", path, err)
	}
	if file == nil {
		return nil, errs.Newf("%s is not a file", path)
	}

	decoded, err := file.GetContent()
	if err != nil {
		return nil, errs.Wrapf(err, "decode %s", path)
	}
	return []byte(decoded), nil
}

func (a *GitHubAdapter) ResolveRef(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		ref = "HEAD"
	}
	sha, _, err := a.client.Repositories.GetCommitSHA1(ctx, a.owner, a.repo, ref, "")
	if err != nil {
		return "", errs.Wrapf(ports.ErrRepositoryUnavailable, "resolve ref %q: %v", ref, err)
	}
	return sha, nil
}
