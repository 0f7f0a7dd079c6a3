package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"driftline/internal/bootstrap/logging"
	"driftline/internal/errs"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Events     EventsConfig     `mapstructure:"events"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Server     ServerConfig     `mapstructure:"server"`
}

type AppConfig struct {
	Name   string `mapstructure:"name"`
	Env    string `mapstructure:"env"`
	Tenant string `mapstructure:"tenant"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RuntimeConfig struct {
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RepositoryConfig selects the version-control backend. mode "local" reads a
// clone on disk through go-git; mode "github" uses the GitHub contents API
// with either a token or GitHub App credentials.
type RepositoryConfig struct {
	Mode string `mapstructure:"mode"`

	LocalPath string `mapstructure:"local_path"`

	GitHubOwner          string `mapstructure:"github_owner"`
	GitHubRepo           string `mapstructure:"github_repo"`
	GitHubToken          string `mapstructure:"github_token"`
	GitHubAppID          int64  `mapstructure:"github_app_id"`
	GitHubInstallationID int64  `mapstructure:"github_installation_id"`
	GitHubPrivateKeyPath string `mapstructure:"github_private_key_path"`
}

type EventsConfig struct {
	Driver        string `mapstructure:"driver"` // noop or nats
	NATSURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type CacheConfig struct {
	Driver    string `mapstructure:"driver"` // sqlite or redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
}

type SchedulerConfig struct {
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
	SuggestionTTLDays      int `mapstructure:"suggestion_ttl_days"`
	SnapshotRetentionDays  int `mapstructure:"snapshot_retention_days"`
	WatcherDebounceSeconds int `mapstructure:"watcher_debounce_seconds"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DRIFTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, using defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.App.Tenant == "" {
		return Config{}, errors.New("app.tenant is required")
	}
	switch cfg.Repository.Mode {
	case "local", "github":
	default:
		return Config{}, errors.New("repository.mode must be local or github")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("tenant", cfg.App.Tenant),
		slog.String("repository_mode", cfg.Repository.Mode),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "driftline")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.tenant", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".driftline/state/driftline.sqlite")
	v.SetDefault("runtime.timeout_seconds", 30)
	v.SetDefault("repository.mode", "local")
	v.SetDefault("repository.local_path", ".")
	v.SetDefault("events.driver", "noop")
	v.SetDefault("events.subject_prefix", "driftline")
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("scheduler.poll_interval_seconds", 60)
	v.SetDefault("scheduler.suggestion_ttl_days", 14)
	v.SetDefault("scheduler.snapshot_retention_days", 90)
	v.SetDefault("scheduler.watcher_debounce_seconds", 5)
	v.SetDefault("server.addr", ":8787")
}
