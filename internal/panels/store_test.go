// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panels

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sawmon/internal/storage"
)

type fakeBackend struct {
	mu      sync.Mutex
	remote  map[string]map[string]bool
	loadErr error
	saveErr error
	loads   int
	saved   map[string]map[string]bool
}

func (f *fakeBackend) PanelVisibility(context.Context) (map[string]map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.remote, f.loadErr
}

func (f *fakeBackend) SavePanelVisibility(_ context.Context, dashboard string, v map[string]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = make(map[string]map[string]bool)
	}
	f.saved[dashboard] = v
	return f.saveErr
}

func TestIsVisible_DefaultsToTrue(t *testing.T) {
	s := NewStore(&fakeBackend{}, storage.NewMemoryKV())
	assert.True(t, s.IsVisible("main", "1"))
	assert.Empty(t, s.DashboardVisibility("main"))
}

func TestToggle_UpdatesCacheAndBackend(t *testing.T) {
	backend := &fakeBackend{}
	kv := storage.NewMemoryKV()
	s := NewStore(backend, kv)
	ctx := context.Background()

	require.NoError(t, s.Toggle(ctx, "main", "2", false))
	assert.False(t, s.IsVisible("main", "2"))
	assert.True(t, s.IsVisible("main", "3"))
	assert.Equal(t, map[string]bool{"2": false}, backend.saved["main"])

	raw, err := kv.Get(CacheKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":{"2":false}}`, raw)

	// A second store on the same cache sees the change.
	again := NewStore(backend, kv)
	assert.False(t, again.IsVisible("main", "2"))
}

func TestShowAllHideAll(t *testing.T) {
	backend := &fakeBackend{}
	s := NewStore(backend, storage.NewMemoryKV())
	ctx := context.Background()

	require.NoError(t, s.HideAll(ctx, "main", []string{"1", "2", "3"}))
	for _, p := range []string{"1", "2", "3"} {
		assert.False(t, s.IsVisible("main", p))
	}
	require.NoError(t, s.ShowAll(ctx, "main", []string{"1", "3"}))
	assert.True(t, s.IsVisible("main", "1"))
	assert.False(t, s.IsVisible("main", "2"))
	assert.Equal(t, map[string]bool{"1": true, "2": false, "3": true}, backend.saved["main"])
	assert.Equal(t, []string{"main"}, s.Dashboards())
}

func TestSaveFailureKeepsLocalChange(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("offline")}
	s := NewStore(backend, storage.NewMemoryKV())

	err := s.Toggle(context.Background(), "main", "1", false)
	require.Error(t, err)
	assert.False(t, s.IsVisible("main", "1"))
}

func TestLoadFromBackend_Once(t *testing.T) {
	backend := &fakeBackend{remote: map[string]map[string]bool{"main": {"4": false}}}
	kv := storage.NewMemoryKV()
	s := NewStore(backend, kv)
	ctx := context.Background()

	require.NoError(t, s.LoadFromBackend(ctx))
	require.NoError(t, s.LoadFromBackend(ctx))
	assert.Equal(t, 1, backend.loads)
	assert.True(t, s.Loaded())
	assert.False(t, s.IsVisible("main", "4"))

	raw, err := kv.Get(CacheKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":{"4":false}}`, raw)
}

func TestLoadFromBackend_FailureKeepsCache(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(CacheKey, `{"main":{"1":false}}`))
	backend := &fakeBackend{loadErr: errors.New("502")}
	s := NewStore(backend, kv)

	require.Error(t, s.LoadFromBackend(context.Background()))
	assert.False(t, s.Loaded())
	assert.False(t, s.IsVisible("main", "1"))
}

func TestLoadFromBackend_EmptyKeepsCache(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(CacheKey, `{"main":{"1":false}}`))
	backend := &fakeBackend{remote: map[string]map[string]bool{}}
	s := NewStore(backend, kv)

	require.NoError(t, s.LoadFromBackend(context.Background()))
	assert.False(t, s.Loaded())
	assert.False(t, s.IsVisible("main", "1"))
}

func TestNewStore_CorruptCache(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(CacheKey, `not json`))
	s := NewStore(&fakeBackend{}, kv)
	assert.Empty(t, s.All())
}

func TestCopiesAreIndependent(t *testing.T) {
	s := NewStore(&fakeBackend{}, storage.NewMemoryKV())
	require.NoError(t, s.Toggle(context.Background(), "main", "1", false))

	m := s.DashboardVisibility("main")
	m["1"] = true
	all := s.All()
	all["main"]["1"] = true

	assert.False(t, s.IsVisible("main", "1"))
}
