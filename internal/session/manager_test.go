// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/storage"
)

// fakeAuth is a scripted Authenticator.
type fakeAuth struct {
	mu         sync.Mutex
	login      func(ctx context.Context, username, password string) (TokenResponse, error)
	pin        func(ctx context.Context, pin string) (TokenResponse, error)
	me         func(ctx context.Context) (UserProfile, error)
	meCalls    int
	meTokens   []string
	loginNames []string
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	f.mu.Lock()
	f.loginNames = append(f.loginNames, username)
	fn := f.login
	f.mu.Unlock()
	return fn(ctx, username, password)
}

func (f *fakeAuth) LoginWithPin(ctx context.Context, pin string) (TokenResponse, error) {
	return f.pin(ctx, pin)
}

func (f *fakeAuth) CurrentUser(ctx context.Context) (UserProfile, error) {
	tok, _ := TokenFromContext(ctx)
	f.mu.Lock()
	f.meCalls++
	f.meTokens = append(f.meTokens, tok)
	fn := f.me
	f.mu.Unlock()
	return fn(ctx)
}

type detailErr struct{ msg string }

func (e detailErr) Error() string  { return "http 401: " + e.msg }
func (e detailErr) Detail() string { return e.msg }

var adminUser = UserProfile{ID: 1, Username: "alice", FullName: "Alice Admin", Role: access.RoleAdmin}

func okAuth() *fakeAuth {
	return &fakeAuth{
		login: func(_ context.Context, username, _ string) (TokenResponse, error) {
			return TokenResponse{AccessToken: "tok-" + username, TokenType: "bearer"}, nil
		},
		pin: func(_ context.Context, _ string) (TokenResponse, error) {
			return TokenResponse{AccessToken: "tok-pin", TokenType: "bearer"}, nil
		},
		me: func(_ context.Context) (UserProfile, error) {
			return adminUser, nil
		},
	}
}

func newTestManager(t *testing.T, auth Authenticator) (*Manager, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	return NewManager(auth, WithPersister(NewKVPersister(kv))), kv
}

// =============================================================================
// LOGIN
// =============================================================================

func TestLogin_Success(t *testing.T) {
	auth := okAuth()
	m, kv := newTestManager(t, auth)

	require.NoError(t, m.Login(context.Background(), "alice", "secret"))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "tok-alice", m.Token())
	assert.Equal(t, "Alice Admin", m.UserName())
	assert.Empty(t, m.LoginError())
	assert.False(t, m.Loading())
	assert.Equal(t, "Bearer tok-alice", m.AuthorizationHeader())

	role, ok := m.UserRole()
	assert.True(t, ok)
	assert.Equal(t, access.RoleAdmin, role)

	// Profile fetch used the freshly issued token.
	assert.Equal(t, []string{"tok-alice"}, auth.meTokens)

	tok, err := kv.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-alice", tok)
	_, err = kv.Get(UserKey)
	require.NoError(t, err)
}

func TestLogin_NormalizesUsername(t *testing.T) {
	auth := okAuth()
	m, _ := newTestManager(t, auth)

	require.NoError(t, m.Login(context.Background(), "  Café ", "pw"))
	assert.Equal(t, []string{"Café"}, auth.loginNames)
}

func TestLogin_FailureUsesBackendDetail(t *testing.T) {
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		return TokenResponse{}, detailErr{msg: "Incorrect username or password"}
	}
	m, kv := newTestManager(t, auth)

	err := m.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	var le *LoginError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "Incorrect username or password", le.Message)
	assert.Equal(t, "Incorrect username or password", m.LoginError())
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
	assert.False(t, m.Loading())
	assert.Equal(t, 0, auth.meCalls)
	assert.Empty(t, kv.Keys())
}

func TestLogin_FailureFallbackMessages(t *testing.T) {
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		return TokenResponse{}, errors.New("connection refused")
	}
	auth.pin = func(context.Context, string) (TokenResponse, error) {
		return TokenResponse{}, detailErr{}
	}
	m, _ := newTestManager(t, auth)

	require.Error(t, m.Login(context.Background(), "alice", "pw"))
	assert.Equal(t, DefaultLoginError, m.LoginError())

	require.Error(t, m.LoginWithPin(context.Background(), "1234"))
	assert.Equal(t, DefaultPinError, m.LoginError())
}

func TestLogin_FailureClearsPreviousSession(t *testing.T) {
	auth := okAuth()
	m, kv := newTestManager(t, auth)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		return TokenResponse{}, detailErr{msg: "Account disabled"}
	}
	require.Error(t, m.Login(context.Background(), "alice", "pw"))

	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentUser())
	assert.Empty(t, kv.Keys())
}

func TestLogin_ProfileFetchFailureLeavesNoToken(t *testing.T) {
	auth := okAuth()
	auth.me = func(context.Context) (UserProfile, error) {
		return UserProfile{}, errors.New("500")
	}
	m, kv := newTestManager(t, auth)

	err := m.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.Empty(t, m.Token())
	assert.Equal(t, DefaultLoginError, m.LoginError())
	assert.Empty(t, kv.Keys())
}

func TestLogin_EmptyTokenIsFailure(t *testing.T) {
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		return TokenResponse{TokenType: "bearer"}, nil
	}
	m, _ := newTestManager(t, auth)

	err := m.Login(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, ErrNoToken)
	assert.False(t, m.IsAuthenticated())
}

func TestLoginWithPin_Success(t *testing.T) {
	auth := okAuth()
	auth.me = func(context.Context) (UserProfile, error) {
		return UserProfile{ID: 7, Username: "op1", Role: access.RoleOperator}, nil
	}
	m, _ := newTestManager(t, auth)

	require.NoError(t, m.LoginWithPin(context.Background(), " 4321 "))
	assert.Equal(t, "tok-pin", m.Token())
	assert.Equal(t, "op1", m.UserName())

	ev := access.NewEvaluator(m)
	assert.True(t, ev.CanAccess(access.FeatureDashboard))
	assert.False(t, ev.CanAccess(access.FeatureUsers))
}

func TestLogin_LoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		close(started)
		<-release
		return TokenResponse{AccessToken: "t"}, nil
	}
	m, _ := newTestManager(t, auth)

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background(), "alice", "pw") }()

	<-started
	assert.True(t, m.Loading())
	close(release)
	require.NoError(t, <-done)
	assert.False(t, m.Loading())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestLogin_LastInitiatedWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstStarted := make(chan struct{})
	auth := okAuth()
	auth.login = func(_ context.Context, username, _ string) (TokenResponse, error) {
		if username == "slow" {
			close(firstStarted)
			<-releaseFirst
		}
		return TokenResponse{AccessToken: "tok-" + username}, nil
	}
	auth.me = func(ctx context.Context) (UserProfile, error) {
		tok, _ := TokenFromContext(ctx)
		return UserProfile{Username: tok, Role: access.RoleUser}, nil
	}
	m, kv := newTestManager(t, auth)

	slow := make(chan error, 1)
	go func() { slow <- m.Login(context.Background(), "slow", "pw") }()
	<-firstStarted

	require.NoError(t, m.Login(context.Background(), "fast", "pw"))
	assert.True(t, m.Loading(), "slow attempt still running")

	close(releaseFirst)
	require.ErrorIs(t, <-slow, ErrSuperseded)

	assert.Equal(t, "tok-fast", m.Token())
	assert.Equal(t, "tok-fast", m.CurrentUser().Username)
	assert.False(t, m.Loading())

	stored, err := kv.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-fast", stored)
}

func TestLogout_SupersedesInFlightLogin(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		close(started)
		<-release
		return TokenResponse{AccessToken: "late"}, nil
	}
	m, kv := newTestManager(t, auth)

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background(), "alice", "pw") }()
	<-started

	m.Logout()
	close(release)

	require.ErrorIs(t, <-done, ErrSuperseded)
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
	assert.Empty(t, kv.Keys())
}

func TestLogin_SupersededFailureKeepsNewerSession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	auth := okAuth()
	auth.login = func(_ context.Context, username, _ string) (TokenResponse, error) {
		if username == "bad" {
			close(started)
			<-release
			return TokenResponse{}, detailErr{msg: "nope"}
		}
		return TokenResponse{AccessToken: "good"}, nil
	}
	m, _ := newTestManager(t, auth)

	done := make(chan error, 1)
	go func() { done <- m.Login(context.Background(), "bad", "pw") }()
	<-started

	require.NoError(t, m.Login(context.Background(), "good", "pw"))
	close(release)

	require.ErrorIs(t, <-done, ErrSuperseded)
	assert.True(t, m.IsAuthenticated())
	assert.Empty(t, m.LoginError())
}

// =============================================================================
// LOGOUT / REFRESH
// =============================================================================

func TestLogout_Idempotent(t *testing.T) {
	m, kv := newTestManager(t, okAuth())
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	m.Logout()
	m.Logout()

	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.AuthorizationHeader())
	assert.Empty(t, m.LoginError())
	assert.Empty(t, kv.Keys())
}

func TestRefreshUser_NoTokenDoesNothing(t *testing.T) {
	auth := okAuth()
	m, _ := newTestManager(t, auth)

	m.RefreshUser(context.Background())
	assert.Equal(t, 0, auth.meCalls)
}

func TestRefreshUser_UpdatesProfile(t *testing.T) {
	auth := okAuth()
	m, kv := newTestManager(t, auth)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	auth.me = func(context.Context) (UserProfile, error) {
		u := adminUser
		u.FullName = "Alice Renamed"
		return u, nil
	}
	m.RefreshUser(context.Background())

	assert.Equal(t, "Alice Renamed", m.UserName())
	raw, err := kv.Get(UserKey)
	require.NoError(t, err)
	assert.Contains(t, raw, "Alice Renamed")
}

func TestRefreshUser_FailureSignsOutSilently(t *testing.T) {
	auth := okAuth()
	m, kv := newTestManager(t, auth)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	auth.me = func(context.Context) (UserProfile, error) {
		return UserProfile{}, detailErr{msg: "Token expired"}
	}
	m.RefreshUser(context.Background())

	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.LoginError())
	assert.Empty(t, kv.Keys())
}

func TestRefreshUser_CanceledKeepsSession(t *testing.T) {
	auth := okAuth()
	m, _ := newTestManager(t, auth)
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	auth.me = func(ctx context.Context) (UserProfile, error) {
		return UserProfile{}, ctx.Err()
	}
	m.RefreshUser(ctx)

	assert.True(t, m.IsAuthenticated())
}

// =============================================================================
// REHYDRATE
// =============================================================================

func TestNewManager_RestoresStoredSession(t *testing.T) {
	kv := storage.NewMemoryKV()
	p := NewKVPersister(kv)
	require.NoError(t, p.SaveToken("stored"))
	require.NoError(t, p.SaveUser(adminUser))

	m := NewManager(okAuth(), WithPersister(p))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "stored", m.Token())
	assert.Equal(t, "Bearer stored", m.AuthorizationHeader())
	assert.Equal(t, adminUser, *m.CurrentUser())
}

func TestNewManager_DiscardsTokenWithoutUser(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(TokenKey, "orphan"))

	m := NewManager(okAuth(), WithPersister(NewKVPersister(kv)))

	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())
	assert.Empty(t, kv.Keys())
}

func TestNewManager_DiscardsUserWithoutToken(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, NewKVPersister(kv).SaveUser(adminUser))

	m := NewManager(okAuth(), WithPersister(NewKVPersister(kv)))

	assert.Nil(t, m.CurrentUser())
	assert.Empty(t, kv.Keys())
}

func TestNewManager_CorruptUserStartsSignedOut(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(TokenKey, "t"))
	require.NoError(t, kv.Set(UserKey, "{not json"))

	m := NewManager(okAuth(), WithPersister(NewKVPersister(kv)))

	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, kv.Keys())
}

func TestNewManager_NullUserStartsSignedOut(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(TokenKey, "t"))
	require.NoError(t, kv.Set(UserKey, "null"))

	m := NewManager(okAuth(), WithPersister(NewKVPersister(kv)))

	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentUser())
	assert.Empty(t, kv.Keys())
}

// brokenKV fails every operation.
type brokenKV struct {
	mu     sync.Mutex
	writes int
}

var errDiskFull = errors.New("disk full")

func (b *brokenKV) Get(string) (string, error) { return "", errDiskFull }

func (b *brokenKV) Set(string, string) error {
	b.mu.Lock()
	b.writes++
	b.mu.Unlock()
	return errDiskFull
}

func (b *brokenKV) Delete(string) error {
	b.mu.Lock()
	b.writes++
	b.mu.Unlock()
	return errDiskFull
}

func TestManager_StorageFailuresAreBestEffort(t *testing.T) {
	kv := &brokenKV{}
	m := NewManager(okAuth(), WithPersister(NewKVPersister(kv)))
	require.False(t, m.IsAuthenticated())

	require.NoError(t, m.Login(context.Background(), "alice", "secret"))
	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, "tok-alice", m.Token())
	assert.Equal(t, "Bearer tok-alice", m.AuthorizationHeader())

	m.RefreshUser(context.Background())
	assert.True(t, m.IsAuthenticated())

	m.Logout()
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.Token())

	require.NoError(t, m.LoginWithPin(context.Background(), "1234"))
	assert.Equal(t, "tok-pin", m.Token())

	kv.mu.Lock()
	defer kv.mu.Unlock()
	assert.Positive(t, kv.writes, "writes were attempted")
}

func TestRehydrate_SeesLoginThroughSharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	kvA, err := storage.OpenFile(path)
	require.NoError(t, err)
	kvW, err := storage.OpenFile(path)
	require.NoError(t, err)

	a := NewManager(okAuth(), WithPersister(NewKVPersister(kvA)))
	w := NewManager(okAuth(), WithPersister(NewKVPersister(kvW)))

	require.NoError(t, a.Login(context.Background(), "alice", "secret"))
	w.Rehydrate()
	assert.True(t, w.IsAuthenticated())
	assert.Equal(t, "tok-alice", w.Token())

	require.NoError(t, kvW.Set("login_attempts", "{}"))
	reopened, err := storage.OpenFile(path)
	require.NoError(t, err)
	fresh := NewManager(okAuth(), WithPersister(NewKVPersister(reopened)))
	assert.True(t, fresh.IsAuthenticated(), "another writer keeps the stored session")

	a.Logout()
	w.Rehydrate()
	assert.False(t, w.IsAuthenticated())
}

func TestRehydrate_PicksUpExternalChange(t *testing.T) {
	kv := storage.NewMemoryKV()
	p := NewKVPersister(kv)
	m := NewManager(okAuth(), WithPersister(p))
	require.False(t, m.IsAuthenticated())

	require.NoError(t, p.SaveToken("from-elsewhere"))
	require.NoError(t, p.SaveUser(adminUser))
	m.Rehydrate()
	assert.Equal(t, "from-elsewhere", m.Token())

	require.NoError(t, p.RemoveToken())
	require.NoError(t, p.RemoveUser())
	m.Rehydrate()
	assert.False(t, m.IsAuthenticated())
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReceivesSnapshots(t *testing.T) {
	m, _ := newTestManager(t, okAuth())

	var mu sync.Mutex
	var seen []State
	cancel := m.Watch(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, m.Login(context.Background(), "alice", "pw"))

	mu.Lock()
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	count := len(seen)
	mu.Unlock()
	assert.True(t, last.IsAuthenticated())
	assert.False(t, last.Loading)

	// Snapshots are copies.
	last.User.FullName = "mutated"
	assert.Equal(t, "Alice Admin", m.UserName())

	cancel()
	m.Logout()
	mu.Lock()
	assert.Len(t, seen, count)
	mu.Unlock()
}

// =============================================================================
// TOKEN INFO
// =============================================================================

func TestInspectToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed := signedToken(t, "alice", exp)

	info, err := InspectToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Subject)
	assert.True(t, info.ExpiresAt.Equal(exp))
	assert.False(t, info.Expired(time.Now()))
	assert.True(t, info.Expired(exp.Add(time.Second)))

	_, err = InspectToken("opaque-session-id")
	assert.ErrorIs(t, err, ErrOpaqueToken)
	_, err = InspectToken("")
	assert.ErrorIs(t, err, ErrOpaqueToken)
}

func TestManager_TokenInfo(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	signed := signedToken(t, "bob", exp)
	auth := okAuth()
	auth.login = func(context.Context, string, string) (TokenResponse, error) {
		return TokenResponse{AccessToken: signed}, nil
	}
	m, _ := newTestManager(t, auth)
	require.NoError(t, m.Login(context.Background(), "bob", "pw"))

	info, err := m.TokenInfo()
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Subject)
}
