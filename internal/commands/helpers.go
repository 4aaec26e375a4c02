// Package commands implements the CLI subcommands for the enginehealth binary.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/enginehealth/internal/config"
	"github.com/dwsmith1983/enginehealth/internal/provider"
	ddbprov "github.com/dwsmith1983/enginehealth/internal/provider/dynamodb"
	"github.com/dwsmith1983/enginehealth/internal/provider/file"
	"github.com/dwsmith1983/enginehealth/internal/provider/postgres"
	"github.com/dwsmith1983/enginehealth/internal/provider/redis"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

const (
	flagConfigDir = "config-dir"
	flagLogLevel  = "log-level"
)

// AddGlobalFlags registers the flags every subcommand reads.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String(flagConfigDir, ".", "directory containing enginehealth.yaml")
	root.PersistentFlags().String(flagLogLevel, "info", "log level: debug, info, warn, error")
}

// newLogger builds a text logger writing to w at the named level.
func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "", "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// setup loads the project config and builds the logger from global flags.
func setup(cmd *cobra.Command) (*types.ProjectConfig, *slog.Logger, error) {
	level, _ := cmd.Flags().GetString(flagLogLevel)
	logger, err := newLogger(level, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString(flagConfigDir)
	cfg, err := config.LoadContext(cmd.Context(), dir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logger, nil
}

// newStore creates the configured profile store. Remote backends are wrapped
// in a circuit breaker.
func newStore(ctx context.Context, cfg *types.StoreConfig, logger *slog.Logger) (provider.ProfileStore, error) {
	var (
		store provider.ProfileStore
		err   error
	)
	switch cfg.Type {
	case types.StoreFile, "":
		return file.New(cfg.Dirs, logger), nil
	case types.StoreRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is required when store type is redis")
		}
		store = redis.New(cfg.Redis, logger)
	case types.StorePostgres:
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres config is required when store type is postgres")
		}
		store, err = postgres.New(ctx, cfg.Postgres)
	case types.StoreDynamoDB:
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when store type is dynamodb")
		}
		store, err = ddbprov.New(cfg.DynamoDB, logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.Type, err)
	}
	return provider.NewBreakerStore(store, cfg.Breaker, logger)
}

// openStore creates and starts the store. The returned func stops it.
func openStore(ctx context.Context, cfg *types.StoreConfig, logger *slog.Logger) (provider.ProfileStore, func(), error) {
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("starting %s store: %w", cfg.Type, err)
	}
	return store, func() { _ = store.Stop(context.Background()) }, nil
}
