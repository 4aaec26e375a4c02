// Package config handles loading and validation of enginehealth.yaml project configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// FileName is the project config file looked up in the config directory.
const FileName = "enginehealth.yaml"

// SecretPrefix marks a value to be fetched from AWS Secrets Manager.
const SecretPrefix = "secretsmanager:"

// Environment overrides applied after the file is parsed.
const (
	EnvRedisPassword = "ENGINEHEALTH_REDIS_PASSWORD"
	EnvPostgresDSN   = "ENGINEHEALTH_POSTGRES_DSN"
	EnvOTLPEndpoint  = "ENGINEHEALTH_OTLP_ENDPOINT"
	EnvWebhookURL    = "ENGINEHEALTH_WEBHOOK_URL"
)

// SecretsAPI is the subset of the Secrets Manager client used to resolve references.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	secrets SecretsAPI
}

// WithSecretsClient injects the Secrets Manager client.
func WithSecretsClient(c SecretsAPI) Option {
	return func(l *loader) { l.secrets = c }
}

// Load reads enginehealth.yaml from dir. A .env file in dir is loaded into
// the environment first without overriding variables already set.
func Load(dir string, opts ...Option) (*types.ProjectConfig, error) {
	return LoadContext(context.Background(), dir, opts...)
}

// LoadContext is Load with a context for secret resolution.
func LoadContext(ctx context.Context, dir string, opts ...Option) (*types.ProjectConfig, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg, dir)
	applyEnv(&cfg)
	if err := l.resolveSecrets(ctx, &cfg); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig, dir string) {
	if cfg.Store.Type == "" {
		cfg.Store.Type = types.StoreFile
	}
	if cfg.Store.Type == types.StoreFile && len(cfg.Store.Dirs) == 0 {
		cfg.Store.Dirs = []string{"profiles"}
	}
	for i, d := range cfg.Store.Dirs {
		if !filepath.IsAbs(d) {
			cfg.Store.Dirs[i] = filepath.Join(dir, d)
		}
	}
	if cfg.Cache.TTL == "" {
		cfg.Cache.TTL = "5m"
	}
}

func applyEnv(cfg *types.ProjectConfig) {
	if v := os.Getenv(EnvRedisPassword); v != "" && cfg.Store.Redis != nil {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		if cfg.Store.Postgres == nil {
			cfg.Store.Postgres = &types.PostgresConfig{}
		}
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		for i := range cfg.Alerts {
			if cfg.Alerts[i].Type == types.AlertWebhook {
				cfg.Alerts[i].URL = v
			}
		}
	}
}

// resolveSecrets replaces every secretsmanager: reference with its secret string.
func (l *loader) resolveSecrets(ctx context.Context, cfg *types.ProjectConfig) error {
	var refs []*string
	if cfg.Store.Redis != nil {
		refs = append(refs, &cfg.Store.Redis.Password)
	}
	if cfg.Store.Postgres != nil {
		refs = append(refs, &cfg.Store.Postgres.DSN)
	}
	for i := range cfg.Alerts {
		refs = append(refs, &cfg.Alerts[i].URL)
	}

	for _, ref := range refs {
		id, ok := strings.CutPrefix(*ref, SecretPrefix)
		if !ok {
			continue
		}
		if l.secrets == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("loading AWS config for secrets: %w", err)
			}
			l.secrets = secretsmanager.NewFromConfig(awsCfg)
		}
		out, err := l.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
		if err != nil {
			return fmt.Errorf("resolving secret %q: %w", id, err)
		}
		if out.SecretString == nil {
			return fmt.Errorf("secret %q has no string value", id)
		}
		*ref = *out.SecretString
	}
	return nil
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store.Type {
	case types.StoreFile:
	case types.StoreRedis:
		if cfg.Store.Redis == nil || cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required when store type is redis")
		}
	case types.StorePostgres:
		if cfg.Store.Postgres == nil || cfg.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required when store type is postgres")
		}
	case types.StoreDynamoDB:
		if cfg.Store.DynamoDB == nil || cfg.Store.DynamoDB.TableName == "" {
			return fmt.Errorf("store.dynamodb.tableName is required when store type is dynamodb")
		}
	default:
		return fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}

	if _, err := time.ParseDuration(cfg.Cache.TTL); err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}
	if cd := cfg.Store.Breaker.Cooldown; cd != "" {
		if _, err := time.ParseDuration(cd); err != nil {
			return fmt.Errorf("store.breaker.cooldown: %w", err)
		}
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	if cfg.Stats.StalenessSec < 0 {
		return fmt.Errorf("stats.stalenessSec must not be negative")
	}

	for i, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts[%d]: webhook url is required", i)
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts[%d]: file path is required", i)
			}
		case types.AlertEventBridge:
			if a.BusName == "" {
				return fmt.Errorf("alerts[%d]: eventbridge busName is required", i)
			}
		case types.AlertSQS:
			if a.QueueURL == "" {
				return fmt.Errorf("alerts[%d]: sqs queueUrl is required", i)
			}
		default:
			return fmt.Errorf("alerts[%d]: unknown alert type %q", i, a.Type)
		}
	}
	return nil
}

// CacheTTL returns the parsed cache TTL. Load has already validated it.
func CacheTTL(cfg *types.ProjectConfig) time.Duration {
	d, _ := time.ParseDuration(cfg.Cache.TTL)
	return d
}
