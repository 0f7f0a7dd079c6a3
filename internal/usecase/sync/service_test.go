package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"driftline/internal/infrastructure/persistence/sqlite/model"
	"driftline/internal/infrastructure/persistence/sqlite/repository"
	"driftline/internal/infrastructure/persistence/sqlite/uow"
	"driftline/internal/ports"
)

type testEnv struct {
	svc       *Service
	db        *gorm.DB
	workflows *repository.WorkflowRepository
	jobs      *repository.JobRepository
	repo      *fakeRepoAdapter
	runtime   *fakeRuntime
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "driftline.sqlite") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&model.Environment{},
		&model.CanonicalWorkflow{},
		&model.GitState{},
		&model.EnvMap{},
		&model.DiffState{},
		&model.LinkSuggestion{},
		&model.SyncJob{},
		&model.CacheKV{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repoAdapter := &fakeRepoAdapter{files: map[string][]byte{}, sha: "commit-1"}
	runtime := &fakeRuntime{definitions: map[string]map[string]any{}}
	workflows := repository.NewWorkflowRepository(db)
	jobs := repository.NewJobRepository(db)

	svc := NewService(
		workflows,
		jobs,
		uow.NewUnitOfWork(db),
		nil,
		repoAdapter,
		func(ports.Environment) ports.RuntimeAdapter { return runtime },
		nil,
	)

	return &testEnv{svc: svc, db: db, workflows: workflows, jobs: jobs, repo: repoAdapter, runtime: runtime}
}

func (te *testEnv) createEnvironment(t *testing.T, id string, ordinal int) ports.Environment {
	t.Helper()

	env, err := te.workflows.CreateEnvironment(context.Background(), ports.Environment{
		ID:                  id,
		TenantID:            "t1",
		Name:                id,
		Ordinal:             ordinal,
		RepoFolder:          "workflows",
		RepoBranch:          "main",
		SyncIntervalSeconds: 300,
	})
	if err != nil {
		t.Fatalf("CreateEnvironment() error = %v", err)
	}
	return env
}

type fakeRepoAdapter struct {
	files map[string][]byte
	sha   string
	err   error
}

func (f *fakeRepoAdapter) GetAllWorkflowFiles(_ context.Context, folder, _ string) (map[string][]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]byte, len(f.files))
	for p, content := range f.files {
		out[p] = content
	}
	_ = folder
	return out, nil
}

func (f *fakeRepoAdapter) GetFileContent(_ context.Context, path, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	content, ok := f.files[path]
	if !ok {
		return nil, nil
	}
	return content, nil
}

func (f *fakeRepoAdapter) ResolveRef(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.sha, nil
}

type fakeRuntime struct {
	summaries   []ports.RuntimeWorkflowSummary
	definitions map[string]map[string]any
	listErr     error
}

func (f *fakeRuntime) GetWorkflows(_ context.Context) ([]ports.RuntimeWorkflowSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.summaries, nil
}

func (f *fakeRuntime) GetWorkflow(_ context.Context, id string) (map[string]any, error) {
	definition, ok := f.definitions[id]
	if !ok {
		return nil, ports.ErrRuntimeNotFound
	}
	return definition, nil
}

func (f *fakeRuntime) addWorkflow(id, name string, definition map[string]any) {
	f.summaries = append(f.summaries, ports.RuntimeWorkflowSummary{ID: id, Name: name, Active: true})
	f.definitions[id] = definition
}

func ptrTime(t time.Time) *time.Time { return &t }
