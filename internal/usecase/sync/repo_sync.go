package sync

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
	"driftline/internal/normalize"
	"driftline/internal/ports"
)

// folderSettings is the optional .driftline.toml at the root of an
// environment's repo folder.
type folderSettings struct {
	Ignore         []string `toml:"ignore"`
	ValidateSchema *bool    `toml:"validate_schema"`
}

func (s folderSettings) validate() bool {
	return s.ValidateSchema == nil || *s.ValidateSchema
}

// sidecarMeta is the optional <name>.meta.yaml next to a workflow file,
// mapping environment names to runtime workflow IDs.
type sidecarMeta struct {
	DisplayName  string            `yaml:"display_name"`
	Environments map[string]string `yaml:"environments"`
}

// SyncRepository pulls the environment's repo folder into the identity
// store. Unchanged files are skipped on hash equality before any write; a
// corrupt file is recorded per-item and never aborts the pass.
func (s *Service) SyncRepository(ctx context.Context, tenantID, environmentID string) (RepoSyncResult, error) {
	var result RepoSyncResult

	env, err := s.workflows.GetEnvironment(ctx, tenantID, environmentID)
	if err != nil {
		return result, errs.Wrap(err, "load environment")
	}

	commitSHA, err := s.repo.ResolveRef(ctx, env.RepoBranch)
	if err != nil {
		return result, errs.Wrap(err, "resolve repository ref")
	}

	// A commit fully determines folder content; a clean pass already
	// recorded for this SHA has nothing new to ingest.
	shaKey := "repo-sha:" + env.TenantID + ":" + env.ID + ":" + env.RepoBranch
	if cached, ok := s.getCacheBestEffort(ctx, shaKey); ok && cached == commitSHA {
		logging.Debug(ctx, "repository unchanged since last pass",
			slog.String("environment_id", env.ID),
			slog.String("commit_sha", commitSHA),
		)
		return result, nil
	}

	files, err := s.repo.GetAllWorkflowFiles(ctx, env.RepoFolder, env.RepoBranch)
	if err != nil {
		return result, errs.Wrap(err, "list workflow files")
	}

	settings := s.loadFolderSettings(ctx, env)

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, filePath := range paths {
		if s.cancelled(ctx) {
			break
		}
		// Sidecars and settings files ride along in the listing; only .json
		// files are workflow definitions.
		if !strings.HasSuffix(filePath, ".json") {
			continue
		}
		if settings.ignored(filePath) {
			continue
		}

		if err := s.syncRepoFile(ctx, env, filePath, files[filePath], commitSHA, settings, &result); err != nil {
			result.Errors = append(result.Errors, ItemError{Item: filePath, Message: err.Error()})
			logging.Warn(ctx, "workflow file skipped",
				slog.String("path", filePath),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		result.Synced++
	}

	if len(result.Errors) == 0 && !s.cancelled(ctx) {
		s.setCacheBestEffort(ctx, shaKey, commitSHA, time.Hour)
	}

	logging.Info(ctx, "repository sync pass finished",
		slog.Int("synced", result.Synced),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *Service) syncRepoFile(ctx context.Context, env ports.Environment, filePath string, raw []byte, commitSHA string, settings folderSettings, result *RepoSyncResult) error {
	canonicalID := canonicalIDFromPath(filePath)
	if canonicalID == "" {
		return errs.Newf("cannot derive canonical id from %s", filePath)
	}

	if settings.validate() {
		if err := normalize.ValidateRaw(raw); err != nil {
			return errs.Wrap(err, "validate workflow definition")
		}
	}

	hash, err := normalize.HashRaw(raw)
	if err != nil {
		return errs.Wrap(err, "hash workflow definition")
	}

	// Hash short-circuit: most scheduled passes touch zero files.
	stored, err := s.workflows.GetGitState(ctx, env.TenantID, env.ID, canonicalID)
	if err == nil && stored.GitContentHash == hash {
		result.Unchanged++
		return nil
	}
	if err != nil && !errors.Is(err, ports.ErrGitStateNotFound) {
		return errs.Wrap(err, "load git state")
	}

	meta := s.loadSidecar(ctx, env, filePath)
	now := s.now()

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.workflows.GetCanonicalWorkflow(txCtx, env.TenantID, canonicalID, ports.CanonicalWorkflowFilter{})
		switch {
		case errors.Is(err, ports.ErrWorkflowNotFound):
			displayName := meta.DisplayName
			if displayName == "" {
				displayName = canonicalID
			}
			if _, err := s.workflows.CreateCanonicalWorkflow(txCtx, ports.CanonicalWorkflow{
				TenantID:            env.TenantID,
				CanonicalID:         canonicalID,
				DisplayName:         displayName,
				OriginEnvironmentID: env.ID,
				CreatedAt:           now,
			}); err != nil {
				return errs.Wrap(err, "create canonical workflow")
			}
			result.Created++
		case err != nil:
			return errs.Wrap(err, "load canonical workflow")
		default:
			result.Updated++
		}

		if err := s.workflows.UpsertGitState(txCtx, ports.GitState{
			TenantID:       env.TenantID,
			EnvironmentID:  env.ID,
			CanonicalID:    canonicalID,
			GitPath:        filePath,
			GitContentHash: hash,
			GitCommitSHA:   commitSHA,
			LastRepoSyncAt: &now,
		}); err != nil {
			return errs.Wrap(err, "upsert git state")
		}

		return s.linkFromSidecar(txCtx, env, canonicalID, meta, now)
	}); err != nil {
		return err
	}

	return nil
}

// loadFolderSettings fetches the optional per-folder settings file. Absence
// and parse failures both yield defaults.
func (s *Service) loadFolderSettings(ctx context.Context, env ports.Environment) folderSettings {
	var settings folderSettings

	raw, err := s.repo.GetFileContent(ctx, path.Join(env.RepoFolder, ".driftline.toml"), env.RepoBranch)
	if err != nil || raw == nil {
		return settings
	}
	if err := toml.Unmarshal(raw, &settings); err != nil {
		logging.Warn(ctx, "folder settings unparseable, using defaults", slog.Any("err", errs.Loggable(err)))
		return folderSettings{}
	}
	return settings
}

func (s folderSettings) ignored(filePath string) bool {
	base := path.Base(filePath)
	for _, pattern := range s.Ignore {
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// loadSidecar fetches the optional <name>.meta.yaml next to a workflow file.
// Missing or malformed sidecars are not errors.
func (s *Service) loadSidecar(ctx context.Context, env ports.Environment, workflowPath string) sidecarMeta {
	var meta sidecarMeta

	sidecarPath := strings.TrimSuffix(workflowPath, ".json") + ".meta.yaml"
	raw, err := s.repo.GetFileContent(ctx, sidecarPath, env.RepoBranch)
	if err != nil || raw == nil {
		return meta
	}
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		logging.Warn(ctx, "sidecar unparseable, ignoring",
			slog.String("path", sidecarPath),
			slog.Any("err", errs.Loggable(err)),
		)
		return sidecarMeta{}
	}
	return meta
}

// linkFromSidecar links the environment to its declared runtime workflow ID
// when no mapping exists yet. Existing mappings are never overwritten from a
// sidecar.
func (s *Service) linkFromSidecar(ctx context.Context, env ports.Environment, canonicalID string, meta sidecarMeta, now time.Time) error {
	runtimeID, ok := meta.Environments[env.Name]
	if !ok || runtimeID == "" {
		return nil
	}

	_, err := s.workflows.GetEnvMap(ctx, env.TenantID, env.ID, canonicalID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ports.ErrEnvMapNotFound) {
		return errs.Wrap(err, "load environment mapping")
	}

	if err := s.workflows.UpsertEnvMap(ctx, ports.EnvMap{
		TenantID:       env.TenantID,
		EnvironmentID:  env.ID,
		CanonicalID:    canonicalID,
		N8NWorkflowID:  runtimeID,
		LinkedAt:       &now,
		LinkedByUserID: "sidecar",
		Status:         "linked",
	}); err != nil {
		return errs.Wrap(err, "link from sidecar")
	}
	return nil
}

func canonicalIDFromPath(filePath string) string {
	base := path.Base(filePath)
	return strings.TrimSuffix(base, ".json")
}
