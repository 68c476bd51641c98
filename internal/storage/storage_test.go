// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the shared contract against any backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()

	_, err := kv.Get("auth_token")
	require.True(t, errors.Is(err, ErrNotFound), "missing key should be ErrNotFound, got %v", err)

	require.NoError(t, kv.Set("auth_token", "abc"))
	v, err := kv.Get("auth_token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	require.NoError(t, kv.Set("auth_token", "def"))
	v, err = kv.Get("auth_token")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	require.NoError(t, kv.Delete("auth_token"))
	_, err = kv.Get("auth_token")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting twice is fine
	require.NoError(t, kv.Delete("auth_token"))
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	exerciseKV(t, kv)

	require.NoError(t, kv.Set("b", "2"))
	require.NoError(t, kv.Set("a", "1"))
	assert.Equal(t, []string{"a", "b"}, kv.Keys())
}

func TestSQLiteKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sawmon.db")
	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	defer kv.Close()

	exerciseKV(t, kv)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSQLiteKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sawmon.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set("auth_user", `{"id":1}`))
	require.NoError(t, kv.Close())

	kv, err = OpenSQLite(path)
	require.NoError(t, err)
	defer kv.Close()

	v, err := kv.Get("auth_user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, v)

	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"auth_user"}, keys)
}

func TestFileKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	kv, err := OpenFile(path)
	require.NoError(t, err)

	exerciseKV(t, kv)

	require.NoError(t, kv.Set("auth_token", "persisted"))
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, err := reopened.Get("auth_token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestFileKV_SharedBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	first, err := OpenFile(path)
	require.NoError(t, err)
	second, err := OpenFile(path)
	require.NoError(t, err)

	require.NoError(t, first.Set("auth_token", "tok"))
	require.NoError(t, first.Set("auth_user", `{"username":"op"}`))

	v, err := second.Get("auth_token")
	require.NoError(t, err, "a write through one handle is visible through the other")
	assert.Equal(t, "tok", v)

	// A write through the second handle keeps what the first wrote.
	require.NoError(t, second.Set("login_attempts", "{}"))
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, err = reopened.Get("auth_user")
	require.NoError(t, err)
	assert.Equal(t, `{"username":"op"}`, v)

	require.NoError(t, first.Delete("auth_token"))
	_, err = second.Get("auth_token")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err = second.Get("login_attempts")
	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestFileKV_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := OpenFile(path)
	assert.Error(t, err)
}

// =============================================================================
// SEALED STORE TESTS
// =============================================================================

func TestSealedKV(t *testing.T) {
	inner := NewMemoryKV()
	key := KeyFromPassphrase("correct horse", []byte("sawmon-test-salt"))
	kv, err := NewSealedKV(inner, key)
	require.NoError(t, err)

	exerciseKV(t, kv)

	require.NoError(t, kv.Set("auth_token", "secret-token"))
	raw, err := inner.Get("auth_token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, sealedPrefix))
	assert.NotContains(t, raw, "secret-token")

	v, err := kv.Get("auth_token")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", v)
}

func TestSealedKV_WrongKey(t *testing.T) {
	inner := NewMemoryKV()
	a, err := NewSealedKV(inner, KeyFromPassphrase("one", []byte("salt")))
	require.NoError(t, err)
	b, err := NewSealedKV(inner, KeyFromPassphrase("two", []byte("salt")))
	require.NoError(t, err)

	require.NoError(t, a.Set("auth_token", "x"))
	_, err = b.Get("auth_token")
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestSealedKV_ValueBoundToKey(t *testing.T) {
	inner := NewMemoryKV()
	kv, err := NewSealedKV(inner, make([]byte, KeySize))
	require.NoError(t, err)

	require.NoError(t, kv.Set("auth_token", "x"))
	raw, _ := inner.Get("auth_token")
	require.NoError(t, inner.Set("auth_user", raw))

	_, err = kv.Get("auth_user")
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestSealedKV_PlainValueRejected(t *testing.T) {
	inner := NewMemoryKV()
	require.NoError(t, inner.Set("auth_token", "plain"))
	kv, err := NewSealedKV(inner, make([]byte, KeySize))
	require.NoError(t, err)

	_, err = kv.Get("auth_token")
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestNewSealedKV_BadKeySize(t *testing.T) {
	_, err := NewSealedKV(NewMemoryKV(), []byte("short"))
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.key")

	k1, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, k1, KeySize)

	k2, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_NotifiesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	kv, err := OpenFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := Watch(ctx, path, 20*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, kv.Set("auth_token", "abc"))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	select {
	case _, ok := <-changes:
		for ok {
			_, ok = <-changes
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel should close after cancel")
	}
}
