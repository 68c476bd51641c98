// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package access provides role-based access control for the sawmon console.
//
// Two questions are answered here, both from static tables that never change
// at runtime:
//
//   - Does role A dominate role B? (hierarchy check, HasRole)
//   - May role R use feature F? (capability map lookup, CanAccess)
//
// # Roles
//
// Four roles with a strict privilege order:
//
//	operator (0) < user (1) < service (2) < admin (3)
//
// The order comes only from the level table; role strings are never compared
// directly.
//
// # Features
//
// The capability map is flat: every feature maps to the set of roles allowed
// to use it. Unknown features are admin-only.
//
// # Usage
//
//	ev := access.NewEvaluator(sessionManager)
//
//	if ev.CanAccess(access.FeatureUsers) {
//	    // show user management
//	}
//
//	if ev.HasRole(access.RoleService) {
//	    // at least service
//	}
package access
