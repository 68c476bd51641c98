// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package access

import (
	"fmt"
	"strings"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is the privilege tier assigned to a user by the backend.
type Role string

const (
	// RoleOperator can view dashboard charts and programs. Operators usually
	// sign in with a PIN at the machine.
	RoleOperator Role = "operator"

	// RoleUser adds the catalog, machines and adding programs.
	RoleUser Role = "user"

	// RoleService adds user management and dashboard management.
	RoleService Role = "service"

	// RoleAdmin has access to everything, including datasources.
	RoleAdmin Role = "admin"
)

// NoLevel is the level of a role that is not in the level table.
const NoLevel = -1

// unreachableLevel is used for an unrecognized required role so that it is
// never satisfied, not even by admin.
const unreachableLevel = 999

// roleLevels is the privilege order. Higher number = more privileges.
var roleLevels = map[Role]int{
	RoleOperator: 0,
	RoleUser:     1,
	RoleService:  2,
	RoleAdmin:    3,
}

// orderedRoles lists roles from least to most privileged.
var orderedRoles = []Role{RoleOperator, RoleUser, RoleService, RoleAdmin}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Level returns the privilege level of a role held by a user.
// Unknown roles map to NoLevel so they never satisfy any requirement.
func Level(r Role) int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return NoLevel
}

// requiredLevel returns the level needed to satisfy a requirement.
// Unknown required roles can never be satisfied.
func requiredLevel(r Role) int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return unreachableLevel
}

// Roles returns all known roles from least to most privileged.
func Roles() []Role {
	out := make([]Role, len(orderedRoles))
	copy(out, orderedRoles)
	return out
}

// ParseRole validates a role name from user input.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q (valid: operator, user, service, admin)", ErrUnknownRole, s)
	}
	return r, nil
}

// HasRole reports whether a user holding current satisfies "at least
// required". ok must be false when there is no signed-in user.
func HasRole(current Role, ok bool, required Role) bool {
	if !ok {
		return false
	}
	return Level(current) >= requiredLevel(required)
}
