// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package access

// RoleSource reports the role of the signed-in user. ok is false when no
// user is present.
type RoleSource interface {
	UserRole() (role Role, ok bool)
}

// Evaluator answers access questions for whoever RoleSource reports.
// It holds no state of its own, so it is safe to share between goroutines
// as long as the source is.
type Evaluator struct {
	src RoleSource
}

// NewEvaluator binds an evaluator to a role source.
func NewEvaluator(src RoleSource) *Evaluator {
	return &Evaluator{src: src}
}

// HasRole reports whether the current user is at least required.
func (e *Evaluator) HasRole(required Role) bool {
	role, ok := e.current()
	return HasRole(role, ok, required)
}

// CanAccess reports whether the current user may use feature.
func (e *Evaluator) CanAccess(feature Feature) bool {
	role, ok := e.current()
	return CanAccess(role, ok, feature)
}

func (e *Evaluator) current() (Role, bool) {
	if e == nil || e.src == nil {
		return "", false
	}
	return e.src.UserRole()
}

// StaticRole is a RoleSource with a fixed role. The zero value has no user.
type StaticRole struct {
	Role    Role
	Present bool
}

// UserRole implements RoleSource.
func (s StaticRole) UserRole() (Role, bool) {
	return s.Role, s.Present
}

// As returns a RoleSource for a user holding r.
func As(r Role) StaticRole {
	return StaticRole{Role: r, Present: true}
}
