// Package testutil provides shared test utilities.
package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/enginehealth/internal/provider"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.ProfileStore = (*MockStore)(nil)

// MockStore is an in-memory ProfileStore for testing.
type MockStore struct {
	mu       sync.Mutex
	profiles map[string]types.Profile
	err      error

	getCount atomic.Int64 // incremented on each GetProfile call
}

// NewMockStore creates a store pre-loaded with profiles.
func NewMockStore(profiles ...types.Profile) *MockStore {
	m := &MockStore{profiles: make(map[string]types.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MockStore) GetProfile(_ context.Context, id string) (*types.Profile, error) {
	m.getCount.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, &types.ProfileNotFoundError{ID: id}
	}
	return &p, nil
}

func (m *MockStore) PutProfile(_ context.Context, p types.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *MockStore) ListProfiles(_ context.Context) ([]types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]types.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	return nil
}

func (m *MockStore) Start(_ context.Context) error { return nil }
func (m *MockStore) Stop(_ context.Context) error  { return nil }
func (m *MockStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// SetError makes every subsequent call fail with err; nil restores normal behavior.
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetCount returns the number of GetProfile calls made.
func (m *MockStore) GetCount() int64 {
	return m.getCount.Load()
}
