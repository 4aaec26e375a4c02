package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

type mockSecrets struct {
	values map[string]string
	calls  []string
}

func (m *mockSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(in.SecretId)
	m.calls = append(m.calls, id)
	v, ok := m.values[id]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `store:
  type: redis
  redis:
    addr: localhost:6379
    keyPrefix: "bench:"
  breaker:
    failThreshold: 3
    cooldown: 10s
cache:
  ttl: 1m
classifier:
  runningRpm: 450
stats:
  stalenessSec: 5
  categorical: [gear]
alerts:
  - type: console
  - type: file
    path: alerts.jsonl
telemetry:
  otlpEndpoint: collector:4317
concurrency: 8
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.StoreRedis, cfg.Store.Type)
	require.NotNil(t, cfg.Store.Redis)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, "bench:", cfg.Store.Redis.KeyPrefix)
	assert.Equal(t, 3, cfg.Store.Breaker.FailThreshold)
	assert.Equal(t, 450.0, cfg.Classifier.RunningRPM)
	assert.Equal(t, []string{"gear"}, cfg.Stats.Categorical)
	assert.Len(t, cfg.Alerts, 2)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "1m0s", CacheTTL(cfg).String())
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeConfig(t, "alerts:\n  - type: console\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, types.StoreFile, cfg.Store.Type)
	assert.Equal(t, []string{filepath.Join(dir, "profiles")}, cfg.Store.Dirs)
	assert.Equal(t, "5m", cfg.Cache.TTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.ErrorContains(t, err, "reading config")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "invalid: [yaml")
	_, err := Load(dir)
	assert.ErrorContains(t, err, "parsing config")
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown store", "store:\n  type: mongo\n", "unknown store type"},
		{"redis without addr", "store:\n  type: redis\n", "store.redis.addr"},
		{"postgres without dsn", "store:\n  type: postgres\n", "store.postgres.dsn"},
		{"dynamodb without table", "store:\n  type: dynamodb\n  dynamodb:\n    region: us-east-1\n", "tableName"},
		{"bad ttl", "cache:\n  ttl: soon\n", "cache.ttl"},
		{"bad cooldown", "store:\n  breaker:\n    cooldown: later\n", "cooldown"},
		{"negative concurrency", "concurrency: -1\n", "concurrency"},
		{"webhook without url", "alerts:\n  - type: webhook\n", "webhook url"},
		{"sqs without queue", "alerts:\n  - type: sqs\n", "queueUrl"},
		{"unknown alert", "alerts:\n  - type: pager\n", "unknown alert type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://env@localhost/eh")
	t.Setenv(EnvOTLPEndpoint, "otel:4317")
	t.Setenv(EnvWebhookURL, "https://hooks.example.com/eh")

	dir := writeConfig(t, `store:
  type: postgres
alerts:
  - type: webhook
    url: https://placeholder
`)
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env@localhost/eh", cfg.Store.Postgres.DSN)
	assert.Equal(t, "otel:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "https://hooks.example.com/eh", cfg.Alerts[0].URL)
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv(EnvRedisPassword, "")
	dir := writeConfig(t, `store:
  type: redis
  redis:
    addr: localhost:6379
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvRedisPassword+"=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(EnvRedisPassword) })
	require.NoError(t, os.Unsetenv(EnvRedisPassword))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Store.Redis.Password)
}

func TestLoad_SecretReferences(t *testing.T) {
	dir := writeConfig(t, `store:
  type: postgres
  postgres:
    dsn: secretsmanager:arn:aws:secretsmanager:us-east-1:1:secret:pg
alerts:
  - type: webhook
    url: secretsmanager:hook
`)
	sm := &mockSecrets{values: map[string]string{
		"arn:aws:secretsmanager:us-east-1:1:secret:pg": "postgres://secret@db/eh",
		"hook": "https://hooks.example.com/secret",
	}}

	cfg, err := Load(dir, WithSecretsClient(sm))
	require.NoError(t, err)
	assert.Equal(t, "postgres://secret@db/eh", cfg.Store.Postgres.DSN)
	assert.Equal(t, "https://hooks.example.com/secret", cfg.Alerts[0].URL)
	assert.Len(t, sm.calls, 2)
}

func TestLoad_SecretMissing(t *testing.T) {
	dir := writeConfig(t, `store:
  type: postgres
  postgres:
    dsn: secretsmanager:gone
`)
	_, err := Load(dir, WithSecretsClient(&mockSecrets{}))
	assert.ErrorContains(t, err, `resolving secret "gone"`)
}
