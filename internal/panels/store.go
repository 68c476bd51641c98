// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/jeranaias/sawmon/internal/storage"
)

// CacheKey is the storage key of the cached visibility map.
const CacheKey = "dashboard_panel_visibility"

// Visibility maps dashboard to panel id to visible.
type Visibility map[string]map[string]bool

func (v Visibility) clone() Visibility {
	out := make(Visibility, len(v))
	for dash, m := range v {
		out[dash] = cloneDashboard(m)
	}
	return out
}

func cloneDashboard(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, b := range m {
		out[k] = b
	}
	return out
}

// Backend loads and saves visibility on the server. api.Client implements it.
type Backend interface {
	PanelVisibility(ctx context.Context) (map[string]map[string]bool, error)
	SavePanelVisibility(ctx context.Context, dashboard string, visibility map[string]bool) error
}

// Store holds the visibility map.
type Store struct {
	backend Backend
	cache   storage.KV
	logger  *slog.Logger

	mu         sync.RWMutex
	visibility Visibility
	loaded     bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store and fills it from cache. A missing or
// unreadable cache starts empty.
func NewStore(backend Backend, cache storage.KV, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		cache:      cache,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		visibility: Visibility{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.visibility = s.readCache()
	return s
}

func (s *Store) readCache() Visibility {
	raw, err := s.cache.Get(CacheKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to read panel visibility cache", "error", err)
		}
		return Visibility{}
	}
	var v Visibility
	if err := json.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		s.logger.Warn("ignoring unreadable panel visibility cache", "error", err)
		return Visibility{}
	}
	return v
}

// writeCacheLocked stores the current map. Failures are logged only.
func (s *Store) writeCacheLocked() {
	raw, err := json.Marshal(s.visibility)
	if err == nil {
		err = s.cache.Set(CacheKey, string(raw))
	}
	if err != nil {
		s.logger.Warn("failed to cache panel visibility", "error", err)
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// IsVisible reports whether a panel is shown. Panels default to visible.
func (s *Store) IsVisible(dashboard, panel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visible, ok := s.visibility[dashboard][panel]
	return !ok || visible
}

// DashboardVisibility returns a copy of one dashboard's explicit settings.
func (s *Store) DashboardVisibility(dashboard string) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDashboard(s.visibility[dashboard])
}

// All returns a copy of every setting.
func (s *Store) All() Visibility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibility.clone()
}

// Dashboards returns the dashboards that have settings, sorted.
func (s *Store) Dashboards() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.visibility))
	for name := range s.visibility {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Loaded reports whether the backend map has been applied.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// =============================================================================
// CHANGES
// =============================================================================

// LoadFromBackend replaces the cache with the backend's map the first time
// it succeeds with a non-empty map. Later calls do nothing. On error the
// cached map stays in use and the error is returned.
func (s *Store) LoadFromBackend(ctx context.Context) error {
	if s.Loaded() {
		return nil
	}

	remote, err := s.backend.PanelVisibility(ctx)
	if err != nil {
		s.logger.Warn("failed to load panel visibility from backend", "error", err)
		return fmt.Errorf("failed to load panel visibility: %w", err)
	}
	if len(remote) == 0 {
		return nil
	}

	s.mu.Lock()
	s.visibility = Visibility(remote).clone()
	s.loaded = true
	s.writeCacheLocked()
	s.mu.Unlock()
	return nil
}

// Toggle sets one panel's visibility.
func (s *Store) Toggle(ctx context.Context, dashboard, panel string, visible bool) error {
	return s.SetPanels(ctx, dashboard, []string{panel}, visible)
}

// ShowAll marks the given panels visible.
func (s *Store) ShowAll(ctx context.Context, dashboard string, panels []string) error {
	return s.SetPanels(ctx, dashboard, panels, true)
}

// HideAll marks the given panels hidden.
func (s *Store) HideAll(ctx context.Context, dashboard string, panels []string) error {
	return s.SetPanels(ctx, dashboard, panels, false)
}

// SetPanels updates the local map and cache, then saves the dashboard's
// map to the backend. The local change stands even if the save fails;
// the save error is returned.
func (s *Store) SetPanels(ctx context.Context, dashboard string, panels []string, visible bool) error {
	s.mu.Lock()
	dash := s.visibility[dashboard]
	if dash == nil {
		dash = make(map[string]bool)
		s.visibility[dashboard] = dash
	}
	for _, p := range panels {
		dash[p] = visible
	}
	s.writeCacheLocked()
	snapshot := cloneDashboard(dash)
	s.mu.Unlock()

	if err := s.backend.SavePanelVisibility(ctx, dashboard, snapshot); err != nil {
		s.logger.Warn("failed to save panel visibility to backend", "dashboard", dashboard, "error", err)
		return fmt.Errorf("failed to save panel visibility: %w", err)
	}
	return nil
}
