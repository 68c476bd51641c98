// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jeranaias/sawmon/internal/access"
)

// User is an account as listed by the user management endpoints.
type User struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	FullName string      `json:"full_name"`
	Role     access.Role `json:"role"`
	IsActive bool        `json:"is_active"`
	HasPin   bool        `json:"has_pin"`
}

// UserInput is the body of create and update calls. Zero fields are left
// out so an update only touches what was set.
type UserInput struct {
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
	FullName string      `json:"full_name,omitempty"`
	Role     access.Role `json:"role,omitempty"`
	IsActive *bool       `json:"is_active,omitempty"`
}

type newPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ListUsers returns all accounts.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/users/", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListRoles returns the role names the backend accepts.
func (c *Client) ListRoles(ctx context.Context) ([]string, error) {
	var roles []string
	if err := c.do(ctx, http.MethodGet, "/api/users/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateUser creates an account.
func (c *Client) CreateUser(ctx context.Context, in UserInput) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/api/users/", in, &u)
	return u, err
}

// UpdateUser changes the set fields of an account.
func (c *Client) UpdateUser(ctx context.Context, id int64, in UserInput) (User, error) {
	var u User
	err := c.do(ctx, http.MethodPut, userPath(id, ""), in, &u)
	return u, err
}

// ResetPassword sets a new password for another account.
func (c *Client) ResetPassword(ctx context.Context, id int64, password string) error {
	return c.do(ctx, http.MethodPost, userPath(id, "/reset-password"), newPasswordRequest{NewPassword: password}, nil)
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id, ""), nil, nil)
}

// SetPin assigns a login PIN to an operator account.
func (c *Client) SetPin(ctx context.Context, id int64, pin string) error {
	return c.do(ctx, http.MethodPost, userPath(id, "/set-pin"), pinRequest{Pin: pin}, nil)
}

// ClearPin removes the login PIN from an account.
func (c *Client) ClearPin(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id, "/pin"), nil, nil)
}

func userPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/users/%d%s", id, suffix)
}
