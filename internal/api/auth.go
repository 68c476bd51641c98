// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/jeranaias/sawmon/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type pinRequest struct {
	Pin string `json:"pin"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login exchanges a username and password for a token.
func (c *Client) Login(ctx context.Context, username, password string) (session.TokenResponse, error) {
	var tok session.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Username: username, Password: password}, &tok)
	return tok, err
}

// LoginWithPin exchanges an operator PIN for a token.
func (c *Client) LoginWithPin(ctx context.Context, pin string) (session.TokenResponse, error) {
	var tok session.TokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login/pin", pinRequest{Pin: pin}, &tok)
	return tok, err
}

// CurrentUser returns the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context) (session.UserProfile, error) {
	var u session.UserProfile
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u)
	return u, err
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/change-password",
		changePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}
