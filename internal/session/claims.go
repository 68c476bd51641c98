// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned when a token is not a readable JWT.
var ErrOpaqueToken = errors.New("token is not a JWT")

// TokenInfo is what can be read from a bearer token without its signing key.
// It is informational only; the backend stays the authority on validity.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// InspectToken decodes the registered claims of a JWT without verifying
// the signature.
func InspectToken(token string) (TokenInfo, error) {
	if token == "" {
		return TokenInfo{}, ErrOpaqueToken
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// TokenInfo inspects the current token.
func (m *Manager) TokenInfo() (TokenInfo, error) {
	return InspectToken(m.Token())
}
