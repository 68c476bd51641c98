// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sawmon/internal/access"
)

func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestReduce_DoesNotModifyInput(t *testing.T) {
	u := adminUser
	start := State{Token: "a", User: &u}

	next := Reduce(start, SetToken{Token: "b"}, SetUser{User: &UserProfile{Username: "bob"}})

	assert.Equal(t, "a", start.Token)
	assert.Equal(t, "alice", start.User.Username)
	assert.Equal(t, "b", next.Token)
	assert.Equal(t, "bob", next.User.Username)
}

func TestReduce_CopiesUser(t *testing.T) {
	u := adminUser
	next := Reduce(State{}, SetUser{User: &u})
	u.FullName = "changed"
	assert.Equal(t, "Alice Admin", next.User.FullName)
}

func TestReduce_Sequence(t *testing.T) {
	s := Reduce(State{},
		SetLoading{Loading: true},
		SetLoginError{Message: "x"},
		SetLoginError{},
		nil,
		SetToken{Token: "t"},
	)
	assert.True(t, s.Loading)
	assert.Empty(t, s.LoginError)
	assert.Equal(t, "t", s.Token)
	assert.False(t, s.IsAuthenticated(), "no user yet")
}

func TestDiff(t *testing.T) {
	u := adminUser
	same := adminUser
	other := adminUser
	other.Role = access.RoleUser

	tests := []struct {
		name string
		old  State
		new  State
		want Change
	}{
		{"identical", State{Token: "t", User: &u}, State{Token: "t", User: &same}, Change{}},
		{"token only", State{Token: "t"}, State{Token: "u"}, Change{Token: true}},
		{"user cleared", State{User: &u}, State{}, Change{User: true}},
		{"user changed", State{User: &u}, State{User: &other}, Change{User: true}},
		{"loading ignored", State{Loading: true}, State{LoginError: "e"}, Change{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(tt.old, tt.new))
		})
	}
}

func TestState_Accessors(t *testing.T) {
	var s State
	role, ok := s.UserRole()
	assert.False(t, ok)
	assert.Empty(t, role)
	assert.Empty(t, s.UserName())

	s.User = &UserProfile{Username: "op1"}
	_, ok = s.UserRole()
	assert.False(t, ok, "empty role counts as no role")
	assert.Equal(t, "op1", s.UserName())

	s.User.FullName = "Operator One"
	assert.Equal(t, "Operator One", s.UserName())
}
