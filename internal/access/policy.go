// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package access

import (
	"errors"
	"sort"
)

// ErrUnknownRole is returned by ParseRole for names outside the level table.
var ErrUnknownRole = errors.New("unknown role")

// Feature names a capability gated by the capability map.
type Feature string

const (
	FeatureDashboard       Feature = "dashboard"
	FeaturePrograms        Feature = "programs"
	FeatureProgramsAdd     Feature = "programs.add"
	FeatureCatalog         Feature = "catalog"
	FeatureMachines        Feature = "machines"
	FeatureUsers           Feature = "users"
	FeatureDashboardManage Feature = "dashboard.manage"
	FeatureManagement      Feature = "management"
	FeatureDatasources     Feature = "datasources"
	FeatureAdmin           Feature = "admin"
)

// =============================================================================
// CAPABILITY MAP
// =============================================================================

// capabilities maps each feature to the roles allowed to use it.
var capabilities = map[Feature][]Role{
	// Dashboard charts (read)
	FeatureDashboard: {RoleOperator, RoleUser, RoleService, RoleAdmin},
	// Programs: read for operators, list and add for user and up
	FeaturePrograms:    {RoleOperator, RoleUser, RoleService, RoleAdmin},
	FeatureProgramsAdd: {RoleUser, RoleService, RoleAdmin},
	FeatureCatalog:     {RoleUser, RoleService, RoleAdmin},
	FeatureMachines:    {RoleUser, RoleService, RoleAdmin},
	// User management
	FeatureUsers: {RoleService, RoleAdmin},
	// Dashboard management (edit/upload/delete)
	FeatureDashboardManage: {RoleService, RoleAdmin},
	FeatureManagement:      {RoleService, RoleAdmin},
	FeatureDatasources:     {RoleAdmin},
	FeatureAdmin:           {RoleAdmin},
}

// CanAccess reports whether a user holding current may use feature.
// ok must be false when there is no signed-in user. Features missing from
// the capability map are admin-only.
func CanAccess(current Role, ok bool, feature Feature) bool {
	if !ok || current == "" {
		return false
	}
	allowed, known := capabilities[feature]
	if !known {
		return HasRole(current, ok, RoleAdmin)
	}
	for _, r := range allowed {
		if r == current {
			return true
		}
	}
	return false
}

// Known reports whether feature has an explicit row in the capability map.
func Known(feature Feature) bool {
	_, ok := capabilities[feature]
	return ok
}

// Features returns all features of the capability map, sorted by name.
func Features() []Feature {
	out := make([]Feature, 0, len(capabilities))
	for f := range capabilities {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllowedRoles returns the roles allowed for feature. Unknown features
// report admin only, matching CanAccess.
func AllowedRoles(feature Feature) []Role {
	allowed, ok := capabilities[feature]
	if !ok {
		return []Role{RoleAdmin}
	}
	out := make([]Role, len(allowed))
	copy(out, allowed)
	return out
}

// PolicyRow is one line of the exported capability matrix.
type PolicyRow struct {
	Feature Feature `json:"feature" yaml:"feature"`
	Roles   []Role  `json:"roles" yaml:"roles"`
}

// Matrix returns the capability map as sorted rows for audit export.
func Matrix() []PolicyRow {
	features := Features()
	rows := make([]PolicyRow, 0, len(features))
	for _, f := range features {
		rows = append(rows, PolicyRow{Feature: f, Roles: AllowedRoles(f)})
	}
	return rows
}
