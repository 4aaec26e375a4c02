// Package file implements a ProfileStore over directories of YAML profile files.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/enginehealth/internal/provider"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

var _ provider.ProfileStore = (*Store)(nil)

// Store holds profiles loaded from one or more directories, one profile per
// file. Writes go to the first directory as <id>.yaml.
type Store struct {
	mu       sync.RWMutex
	dirs     []string
	profiles map[string]*types.Profile
	paths    map[string]string
	logger   *slog.Logger
}

// New creates an empty Store over dirs. Call Start or LoadDir to populate it.
func New(dirs []string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dirs:     dirs,
		profiles: make(map[string]*types.Profile),
		paths:    make(map[string]string),
		logger:   logger,
	}
}

// LoadDir loads all YAML profile files from a directory.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading profile dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		if err := s.LoadFile(path); err != nil {
			return fmt.Errorf("loading profile %s: %w", path, err)
		}
	}
	return nil
}

// LoadFile loads a single profile YAML file. An id already loaded from a
// different file is an error.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	var p types.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	if err := ValidateProfile(&p); err != nil {
		return fmt.Errorf("validating profile %q: %w", p.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.paths[p.ID]; ok && prev != path {
		return fmt.Errorf("duplicate profile id %q (also in %s)", p.ID, prev)
	}
	s.profiles[p.ID] = &p
	s.paths[p.ID] = path
	return nil
}

// GetProfile returns a copy of the profile with the given id.
func (s *Store) GetProfile(_ context.Context, id string) (*types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, &types.ProfileNotFoundError{ID: id}
	}
	cp := *p
	return &cp, nil
}

// PutProfile validates p, writes it to the first directory and registers it.
func (s *Store) PutProfile(_ context.Context, p types.Profile) error {
	if err := ValidateProfile(&p); err != nil {
		return err
	}
	if len(s.dirs) == 0 {
		return errors.New("file store has no directory to write to")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.paths[p.ID]
	if !ok {
		path = filepath.Join(s.dirs[0], p.ID+".yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	s.profiles[p.ID] = &p
	s.paths[p.ID] = path
	return nil
}

// ListProfiles returns every loaded profile ordered by id.
func (s *Store) ListProfiles(_ context.Context) ([]types.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteProfile unregisters a profile and removes its file.
func (s *Store) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, ok := s.paths[id]
	if !ok {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing profile file: %w", err)
	}
	delete(s.profiles, id)
	delete(s.paths, id)
	return nil
}

// Start loads every configured directory.
func (s *Store) Start(_ context.Context) error {
	for _, dir := range s.dirs {
		if err := s.LoadDir(dir); err != nil {
			return err
		}
	}
	s.logger.Debug("profiles loaded", "count", s.Len(), "dirs", s.dirs)
	return nil
}

// Stop is a no-op.
func (s *Store) Stop(_ context.Context) error { return nil }

// Ping checks that every configured directory is readable.
func (s *Store) Ping(_ context.Context) error {
	for _, dir := range s.dirs {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("profile dir unavailable: %w", err)
		}
	}
	return nil
}

// Len returns the number of loaded profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
