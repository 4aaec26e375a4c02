// Package provider defines the profile store backend interface.
package provider

import (
	"context"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// ProfileStore is the storage backend for profile definitions. The file
// backend reads a YAML directory; redis, postgres and dynamodb serve shared
// fleets.
type ProfileStore interface {
	// GetProfile returns an error matching types.ErrProfileNotFound for unknown ids.
	GetProfile(ctx context.Context, id string) (*types.Profile, error)
	PutProfile(ctx context.Context, p types.Profile) error
	ListProfiles(ctx context.Context) ([]types.Profile, error)
	DeleteProfile(ctx context.Context, id string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
