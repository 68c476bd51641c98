// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/sawmon/internal/access"

// =============================================================================
// STATE
// =============================================================================

// UserProfile is the signed-in user as reported by the backend.
type UserProfile struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"full_name"`
	Role     access.Role `json:"role"`
}

// DisplayName returns the full name, falling back to the username.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// State is a snapshot of the session.
type State struct {
	Token      string
	User       *UserProfile
	LoginError string
	Loading    bool
}

// IsAuthenticated reports whether both token and user are present.
func (s State) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// UserRole returns the user's role; ok is false without a user or role.
func (s State) UserRole() (role access.Role, ok bool) {
	if s.User == nil || s.User.Role == "" {
		return "", false
	}
	return s.User.Role, true
}

// UserName returns the full name, then the username, then "".
func (s State) UserName() string {
	return s.User.DisplayName()
}

// clone returns a copy that shares nothing mutable with s.
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// =============================================================================
// REDUCER
// =============================================================================

// Action is a single state transition.
type Action interface {
	apply(State) State
}

// SetToken replaces the token. An empty token clears it.
type SetToken struct{ Token string }

// SetUser replaces the user. nil clears it.
type SetUser struct{ User *UserProfile }

// SetLoginError replaces the displayed login error. "" clears it.
type SetLoginError struct{ Message string }

// SetLoading sets the loading flag.
type SetLoading struct{ Loading bool }

func (a SetToken) apply(s State) State {
	s.Token = a.Token
	return s
}

func (a SetUser) apply(s State) State {
	if a.User == nil {
		s.User = nil
		return s
	}
	u := *a.User
	s.User = &u
	return s
}

func (a SetLoginError) apply(s State) State {
	s.LoginError = a.Message
	return s
}

func (a SetLoading) apply(s State) State {
	s.Loading = a.Loading
	return s
}

// Reduce applies actions in order and returns the new state. It performs no
// I/O and never modifies s.
func Reduce(s State, actions ...Action) State {
	s = s.clone()
	for _, a := range actions {
		if a == nil {
			continue
		}
		s = a.apply(s)
	}
	return s
}

// Change lists the durable entries that differ between two states.
type Change struct {
	Token bool
	User  bool
}

// Diff reports which persisted entries must be written or removed to go
// from old to new.
func Diff(old, new State) Change {
	return Change{
		Token: old.Token != new.Token,
		User:  !sameUser(old.User, new.User),
	}
}

func sameUser(a, b *UserProfile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
