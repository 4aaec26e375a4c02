package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Breaker defaults.
const (
	DefaultFailThreshold = 5
	DefaultCooldown      = 30 * time.Second
)

// BreakerStore wraps a remote ProfileStore in a circuit breaker. After
// FailThreshold consecutive backend failures calls fail fast until Cooldown
// elapses. A not-found answer is a healthy response and never trips it.
type BreakerStore struct {
	inner  ProfileStore
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

var _ ProfileStore = (*BreakerStore)(nil)

// NewBreakerStore wraps inner. Zero config fields take the defaults; an
// unparsable cooldown is an error.
func NewBreakerStore(inner ProfileStore, cfg types.BreakerConfig, logger *slog.Logger) (*BreakerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.FailThreshold
	if threshold <= 0 {
		threshold = DefaultFailThreshold
	}
	cooldown := DefaultCooldown
	if cfg.Cooldown != "" {
		d, err := time.ParseDuration(cfg.Cooldown)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid breaker cooldown %q", cfg.Cooldown)
		}
		cooldown = d
	}

	s := &BreakerStore{inner: inner, logger: logger}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "profile-store",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, types.ErrProfileNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s, nil
}

// State returns the breaker state.
func (s *BreakerStore) State() gobreaker.State { return s.cb.State() }

func (s *BreakerStore) do(fn func() (any, error)) (any, error) {
	v, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("profile store unavailable: %w", err)
	}
	return v, err
}

// GetProfile implements ProfileStore.
func (s *BreakerStore) GetProfile(ctx context.Context, id string) (*types.Profile, error) {
	v, err := s.do(func() (any, error) { return s.inner.GetProfile(ctx, id) })
	if err != nil {
		return nil, err
	}
	return v.(*types.Profile), nil
}

// PutProfile implements ProfileStore.
func (s *BreakerStore) PutProfile(ctx context.Context, p types.Profile) error {
	_, err := s.do(func() (any, error) { return nil, s.inner.PutProfile(ctx, p) })
	return err
}

// ListProfiles implements ProfileStore.
func (s *BreakerStore) ListProfiles(ctx context.Context) ([]types.Profile, error) {
	v, err := s.do(func() (any, error) { return s.inner.ListProfiles(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]types.Profile), nil
}

// DeleteProfile implements ProfileStore.
func (s *BreakerStore) DeleteProfile(ctx context.Context, id string) error {
	_, err := s.do(func() (any, error) { return nil, s.inner.DeleteProfile(ctx, id) })
	return err
}

// Start starts the wrapped store without the breaker.
func (s *BreakerStore) Start(ctx context.Context) error { return s.inner.Start(ctx) }

// Stop stops the wrapped store.
func (s *BreakerStore) Stop(ctx context.Context) error { return s.inner.Stop(ctx) }

// Ping checks the wrapped store through the breaker.
func (s *BreakerStore) Ping(ctx context.Context) error {
	_, err := s.do(func() (any, error) { return nil, s.inner.Ping(ctx) })
	return err
}
