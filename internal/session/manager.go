// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/storage"
)

// Default messages shown when the backend gives no detail.
const (
	DefaultLoginError = "Login failed"
	DefaultPinError   = "Invalid PIN code"
)

var (
	// ErrSuperseded is returned by a login whose result was discarded because
	// a newer login or a logout started while it was in flight.
	ErrSuperseded = errors.New("login superseded by a newer session change")

	// ErrNoToken is used when the backend accepted the credentials but sent
	// no access token.
	ErrNoToken = errors.New("backend returned no access token")
)

// TokenResponse is the body of a successful credential exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Authenticator performs the backend calls the session depends on.
// CurrentUser must use the token bound to ctx by WithToken when present.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (TokenResponse, error)
	LoginWithPin(ctx context.Context, pin string) (TokenResponse, error)
	CurrentUser(ctx context.Context) (UserProfile, error)
}

// LoginError is returned by Login and LoginWithPin on failure. Message is
// the text also stored in State.LoginError.
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// detailer is implemented by backend errors that carry a display message.
type detailer interface {
	Detail() string
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the session state and drives it through the Authenticator.
type Manager struct {
	auth      Authenticator
	persister Persister
	logger    *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	inflight   int

	watchMu  sync.Mutex
	watchers map[int]func(State)
	nextID   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithPersister sets the durable storage adapter. Without it the session
// lives in memory only.
func WithPersister(p Persister) Option {
	return func(m *Manager) {
		m.persister = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager and rehydrates the session from the persister.
func NewManager(auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		auth:      auth,
		persister: NewKVPersister(storage.NewMemoryKV()),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		watchers:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = m.loadStored()
	return m
}

// loadStored reads the persisted session. Anything unreadable or a token
// without a user (or the reverse) results in an empty session, and the
// leftover entry is removed.
func (m *Manager) loadStored() State {
	token, user, err := m.persister.Load()
	if err != nil {
		m.logger.Warn("could not restore session, starting signed out", "error", err)
		token, user = "", nil
	}

	switch {
	case token != "" && user != nil:
		return State{Token: token, User: user}
	case token != "":
		m.logger.Debug("discarding stored token without user")
		m.persistBestEffort(Change{Token: true, User: true}, State{})
	case user != nil || err != nil:
		m.persistBestEffort(Change{Token: true, User: true}, State{})
	}
	return State{}
}

// =============================================================================
// GETTERS
// =============================================================================

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// IsAuthenticated reports whether token and user are both present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated()
}

// CurrentUser returns a copy of the user, or nil.
func (m *Manager) CurrentUser() *UserProfile {
	return m.State().User
}

// UserRole implements access.RoleSource.
func (m *Manager) UserRole() (access.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UserRole()
}

// UserName returns the display name of the user, or "".
func (m *Manager) UserName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UserName()
}

// Token returns the bearer token, or "". It implements TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Token
}

// LoginError returns the message of the last failed login, or "".
func (m *Manager) LoginError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LoginError
}

// Loading reports whether a login is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Loading
}

// AuthorizationHeader returns the Authorization value requests currently
// get, or "" when there is no token.
func (m *Manager) AuthorizationHeader() string {
	return authorizationValue(m.Token())
}

// =============================================================================
// ACTIONS
// =============================================================================

// Login exchanges username and password for a token and loads the profile.
// On failure the session is signed out, LoginError holds a display message
// and the returned error is a *LoginError (or ErrSuperseded).
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = normalizeUsername(username)
	return m.authenticate(ctx, "password", DefaultLoginError, func(ctx context.Context) (TokenResponse, error) {
		return m.auth.Login(ctx, username, password)
	})
}

// LoginWithPin is Login for the operator PIN exchange.
func (m *Manager) LoginWithPin(ctx context.Context, pin string) error {
	pin = strings.TrimSpace(pin)
	return m.authenticate(ctx, "pin", DefaultPinError, func(ctx context.Context) (TokenResponse, error) {
		return m.auth.LoginWithPin(ctx, pin)
	})
}

func (m *Manager) authenticate(ctx context.Context, method, fallback string, exchange func(context.Context) (TokenResponse, error)) error {
	gen := m.begin()
	defer m.end()

	tok, err := exchange(ctx)
	if err == nil && tok.AccessToken == "" {
		err = ErrNoToken
	}
	if err != nil {
		return m.fail(gen, method, fallback, err)
	}
	if !m.commitIf(gen, SetToken{Token: tok.AccessToken}) {
		return ErrSuperseded
	}

	user, err := m.auth.CurrentUser(WithToken(ctx, tok.AccessToken))
	if err != nil {
		return m.fail(gen, method, fallback, err)
	}
	if !m.commitIf(gen, SetUser{User: &user}) {
		return ErrSuperseded
	}

	m.logger.Info("signed in", "method", method, "user", user.Username, "role", user.Role)
	return nil
}

// fail signs the session out and records the display message, unless a
// newer attempt owns the session by now.
func (m *Manager) fail(gen uint64, method, fallback string, err error) error {
	msg := fallback
	var d detailer
	if errors.As(err, &d) && d.Detail() != "" {
		msg = d.Detail()
	}
	if !m.commitIf(gen, SetLoginError{Message: msg}, SetToken{}, SetUser{}) {
		return ErrSuperseded
	}
	m.logger.Warn("sign-in failed", "method", method, "error", err)
	return &LoginError{Message: msg, Err: err}
}

// Logout clears token, user and login error. Safe to call repeatedly.
// Logins still in flight will not restore the session.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()

	m.commit(SetToken{}, SetUser{}, SetLoginError{})
}

// RefreshUser re-fetches the profile with the current token. Without a
// token it does nothing. A failed fetch is treated as an expired session
// and signs out silently; a canceled ctx leaves the session alone.
func (m *Manager) RefreshUser(ctx context.Context) {
	m.mu.Lock()
	token, gen := m.state.Token, m.generation
	m.mu.Unlock()

	if token == "" {
		return
	}

	user, err := m.auth.CurrentUser(WithToken(ctx, token))
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if m.commitIf(gen, SetToken{}, SetUser{}) {
			m.logger.Info("session expired", "error", err)
		}
		return
	}
	m.commitIf(gen, SetUser{User: &user})
}

// Rehydrate replaces the session with what the persister holds, for
// example after another process signed in or out. In-flight logins are
// superseded.
func (m *Manager) Rehydrate() {
	stored := m.loadStored()

	m.mu.Lock()
	m.generation++
	next := Reduce(m.state, SetToken{Token: stored.Token}, SetUser{User: stored.User})
	changed := Diff(m.state, next)
	m.state = next
	snapshot := next.clone()
	m.mu.Unlock()

	if changed.Token || changed.User {
		m.notify(snapshot)
	}
}

// Watch registers fn to receive a snapshot after every state change.
// The returned function unregisters it.
func (m *Manager) Watch(fn func(State)) (cancel func()) {
	m.watchMu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.watchMu.Unlock()

	return func() {
		m.watchMu.Lock()
		delete(m.watchers, id)
		m.watchMu.Unlock()
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

// begin starts a login attempt: new generation, loading on, error cleared.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	m.generation++
	m.inflight++
	gen := m.generation
	m.mu.Unlock()

	m.commit(SetLoading{Loading: true}, SetLoginError{})
	return gen
}

// end finishes a login attempt. Loading stays on while others are running.
func (m *Manager) end() {
	m.mu.Lock()
	m.inflight--
	loading := m.inflight > 0
	m.mu.Unlock()

	m.commit(SetLoading{Loading: loading})
}

// commit applies actions unconditionally.
func (m *Manager) commit(actions ...Action) {
	m.mu.Lock()
	snapshot, changed := m.applyLocked(actions)
	m.mu.Unlock()

	if changed {
		m.notify(snapshot)
	}
}

// commitIf applies actions only while gen is still the current generation.
func (m *Manager) commitIf(gen uint64, actions ...Action) bool {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return false
	}
	snapshot, changed := m.applyLocked(actions)
	m.mu.Unlock()

	if changed {
		m.notify(snapshot)
	}
	return true
}

// applyLocked reduces, persists the difference and returns the new state.
// Persisting under the lock keeps storage writes in state order.
func (m *Manager) applyLocked(actions []Action) (State, bool) {
	prev := m.state
	next := Reduce(prev, actions...)
	m.state = next
	change := Diff(prev, next)
	m.persistBestEffort(change, next)
	changed := change != (Change{}) || prev.LoginError != next.LoginError || prev.Loading != next.Loading
	return next.clone(), changed
}

// persistBestEffort writes or removes the entries named by change. Storage
// failures are logged; the in-memory session stays authoritative.
func (m *Manager) persistBestEffort(change Change, s State) {
	if change.Token {
		var err error
		if s.Token != "" {
			err = m.persister.SaveToken(s.Token)
		} else {
			err = m.persister.RemoveToken()
		}
		if err != nil {
			m.logger.Warn("failed to persist token", "error", err)
		}
	}
	if change.User {
		var err error
		if s.User != nil {
			err = m.persister.SaveUser(*s.User)
		} else {
			err = m.persister.RemoveUser()
		}
		if err != nil {
			m.logger.Warn("failed to persist user", "error", err)
		}
	}
}

func (m *Manager) notify(s State) {
	m.watchMu.Lock()
	fns := make([]func(State), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}

// normalizeUsername trims and NFC-normalizes so that visually identical
// names typed on different keyboards reach the backend as the same bytes.
func normalizeUsername(username string) string {
	return norm.NFC.String(strings.TrimSpace(username))
}
