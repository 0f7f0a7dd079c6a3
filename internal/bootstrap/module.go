package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"driftline/internal/bootstrap/config"
	"driftline/internal/bootstrap/database"
	"driftline/internal/bootstrap/logging"
	cacheinfra "driftline/internal/infrastructure/cache"
	"driftline/internal/infrastructure/events"
	"driftline/internal/infrastructure/gitrepo"
	"driftline/internal/infrastructure/n8n"
	sqliterepo "driftline/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "driftline/internal/infrastructure/persistence/sqlite/uow"
	"driftline/internal/ports"
	"driftline/internal/server"
	"driftline/internal/usecase/drift"
	"driftline/internal/usecase/sync"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewWorkflowRepository,
			fx.As(new(ports.WorkflowRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewJobRepository,
			fx.As(new(ports.JobRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewIncidentRepository,
			fx.As(new(ports.IncidentRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideEmitter),
	fx.Provide(provideRepositoryAdapter),
	fx.Provide(provideRuntimeFactory),
	fx.Provide(sync.NewService),
	fx.Provide(drift.NewService),
	fx.Provide(server.NewServer),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideCache(cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	switch cfg.Cache.Driver {
	case "", "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	case "redis":
		return cacheinfra.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	default:
		return nil, errors.New("cache.driver must be sqlite or redis")
	}
}

func provideEmitter(lc fx.Lifecycle, cfg config.Config) (ports.EventEmitter, error) {
	switch cfg.Events.Driver {
	case "", "noop":
		return events.NewNoopEmitter(), nil
	case "nats":
		emitter, err := events.NewNATSEmitter(cfg.Events.NATSURL, cfg.Events.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				emitter.Close()
				return nil
			},
		})
		return emitter, nil
	default:
		return nil, errors.New("events.driver must be noop or nats")
	}
}

func provideRepositoryAdapter(cfg config.Config) (ports.RepositoryAdapter, error) {
	switch cfg.Repository.Mode {
	case "local":
		return gitrepo.NewLocalAdapter(cfg.Repository.LocalPath), nil
	case "github":
		return gitrepo.NewGitHubAdapter(gitrepo.GitHubOptions{
			Owner:          cfg.Repository.GitHubOwner,
			Repo:           cfg.Repository.GitHubRepo,
			Token:          cfg.Repository.GitHubToken,
			AppID:          cfg.Repository.GitHubAppID,
			InstallationID: cfg.Repository.GitHubInstallationID,
			PrivateKeyPath: cfg.Repository.GitHubPrivateKeyPath,
		})
	default:
		return nil, errors.New("repository.mode must be local or github")
	}
}

// provideRuntimeFactory builds one runtime client per environment, since
// every environment points at its own runtime base URL.
func provideRuntimeFactory(cfg config.Config) sync.RuntimeFactory {
	timeout := time.Duration(cfg.Runtime.TimeoutSeconds) * time.Second
	return func(env ports.Environment) ports.RuntimeAdapter {
		return n8n.NewClient(env.RuntimeBaseURL, cfg.Runtime.APIKey, timeout)
	}
}
