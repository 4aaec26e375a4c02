package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dwsmith1983/enginehealth/internal/provider"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

var _ provider.ProfileStore = (*Store)(nil)

// Store is a Postgres-backed profile store. The profile document is kept as
// JSONB; id, parent and version are also columns for ad hoc queries.
type Store struct {
	pool    *pgxpool.Pool
	migrate bool
}

// New creates a new Postgres Store and verifies the connection.
func New(ctx context.Context, cfg *types.PostgresConfig) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool, migrate: cfg.Migrate}, nil
}

// Migrate runs the schema DDL to create tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	if err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile definition.
func (s *Store) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM profiles WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &types.ProfileNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get profile: %w", err)
	}

	var p types.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling profile %q: %w", id, err)
	}
	return &p, nil
}

// PutProfile upserts a profile definition.
func (s *Store) PutProfile(ctx context.Context, p types.Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	var parent *string
	if p.ParentID != "" {
		parent = &p.ParentID
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO profiles (id, parent_id, name, version, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			body = EXCLUDED.body,
			updated_at = NOW()
	`, p.ID, parent, p.Name, p.Version, body)
	if err != nil {
		return fmt.Errorf("postgres put profile: %w", err)
	}
	return nil
}

// ListProfiles returns every stored profile ordered by id.
func (s *Store) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres list profiles: %w", err)
	}
	defer rows.Close()

	var out []types.Profile
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p types.Profile
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("unmarshaling profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile definition. Deleting an unknown id is not an error.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres delete profile: %w", err)
	}
	return nil
}

// Start applies the schema when migration is enabled.
func (s *Store) Start(ctx context.Context) error {
	if s.migrate {
		return s.Migrate(ctx)
	}
	return nil
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}
