// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sawmon/internal/access"
)

type fakeSession struct {
	role access.Role
}

func (f fakeSession) IsAuthenticated() bool { return f.role != "" }

func (f fakeSession) UserRole() (access.Role, bool) { return f.role, f.role != "" }

func TestLookup(t *testing.T) {
	tests := []struct {
		path string
		name string
	}{
		{"/programs/new", "NewProgram"},
		{"/programs/42", "EditProgram"},
		{"/programs/", "Programs"},
		{"/my-machines/7/maintenance", "MachineMaintenance"},
		{"/catalog/machine/abc?tab=specs", "MachineDetails"},
		{"/", "Home"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, ok := Lookup(tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.name, r.Name)
		})
	}

	_, ok := Lookup("/catalog/machine")
	assert.False(t, ok)
}

func TestGuard_Decisions(t *testing.T) {
	tests := []struct {
		name string
		role access.Role
		path string
		want Decision
	}{
		{"sign-in is public", "", "/signIn", Allow},
		{"anonymous redirected", "", "/programs", RedirectSignIn},
		{"anonymous profile", "", "/profile", RedirectSignIn},
		{"unknown path", access.RoleAdmin, "/nope", NotFound},
		{"unknown path anonymous", "", "/nope", NotFound},
		{"operator dashboard", access.RoleOperator, "/", Allow},
		{"operator programs", access.RoleOperator, "/programs", Allow},
		{"operator cannot edit programs", access.RoleOperator, "/programs/3", Forbidden},
		{"user edits programs", access.RoleUser, "/programs/3", Allow},
		{"operator cannot add programs", access.RoleOperator, "/programs/new", Forbidden},
		{"operator no catalog", access.RoleOperator, "/catalog", Forbidden},
		{"user catalog", access.RoleUser, "/catalog/machine/1", Allow},
		{"user no users page", access.RoleUser, "/users", Forbidden},
		{"service users page", access.RoleService, "/users", Allow},
		{"service no datasources", access.RoleService, "/management/datasources", Forbidden},
		{"service dashboard management", access.RoleService, "/management/dashboards", Allow},
		{"admin datasources", access.RoleAdmin, "/management/datasources", Allow},
		{"any user profile", access.RoleOperator, "/profile", Allow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := NewGuard(fakeSession{role: tt.role}).Check(tt.path)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestGuard_FollowsRedirects(t *testing.T) {
	d, r := NewGuard(fakeSession{role: access.RoleUser}).Check("/dashboards")
	assert.Equal(t, Allow, d)
	assert.Equal(t, "dashboard-grafana", r.Name)
}

func TestGuard_NilSession(t *testing.T) {
	d, _ := NewGuard(nil).Check("/alarms")
	assert.Equal(t, RedirectSignIn, d)
}

func TestTable_FeaturesAreKnown(t *testing.T) {
	for _, r := range Table {
		if r.Feature != "" {
			assert.True(t, access.Known(r.Feature), r.Pattern)
		}
		if r.Redirect != "" {
			_, ok := Lookup(r.Redirect)
			assert.True(t, ok, r.Pattern)
		}
	}
}
