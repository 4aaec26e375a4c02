// Package redis implements the ProfileStore interface using Redis/Valkey.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/enginehealth/internal/provider"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

var _ provider.ProfileStore = (*Store)(nil)

const defaultPrefix = "enginehealth:"

// Store keeps each profile as a JSON string plus a set of known ids.
type Store struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// New creates a new Store.
func New(cfg *types.RedisConfig, logger *slog.Logger) *Store {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewFromClient(client, cfg.KeyPrefix, logger)
}

// NewFromClient creates a Store from an existing client (useful for testing).
func NewFromClient(client *goredis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) profileKey(id string) string { return s.prefix + "profile:" + id }

func (s *Store) profileIndexKey() string { return s.prefix + "profiles" }

// GetProfile retrieves a profile definition.
func (s *Store) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	data, err := s.client.Get(ctx, s.profileKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, &types.ProfileNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("redis get profile: %w", err)
	}

	var p types.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile %q: %w", id, err)
	}
	return &p, nil
}

// PutProfile stores a profile definition, replacing any existing one.
func (s *Store) PutProfile(ctx context.Context, p types.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.profileKey(p.ID), data, 0)
	pipe.SAdd(ctx, s.profileIndexKey(), p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put profile: %w", err)
	}
	return nil
}

// ListProfiles returns every stored profile ordered by id. Corrupt entries
// are logged and skipped.
func (s *Store) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	ids, err := s.client.SMembers(ctx, s.profileIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list profiles: %w", err)
	}
	sort.Strings(ids)

	var out []types.Profile
	for _, id := range ids {
		p, err := s.GetProfile(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable profile entry", "profile", id, "error", err)
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// DeleteProfile removes a profile definition. Deleting an unknown id is not an error.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.profileKey(id))
	pipe.SRem(ctx, s.profileIndexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete profile: %w", err)
	}
	return nil
}

// Start verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	return s.Ping(ctx)
}

// Stop closes the client.
func (s *Store) Stop(_ context.Context) error {
	return s.client.Close()
}

// Ping checks connectivity to the Redis server.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Client returns the underlying Redis client (for advanced usage/testing).
func (s *Store) Client() *goredis.Client {
	return s.client
}
