// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package routes

import "github.com/jeranaias/sawmon/internal/access"

// Decision is the outcome of a route check.
type Decision int

const (
	Allow Decision = iota
	RedirectSignIn
	Forbidden
	NotFound
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectSignIn:
		return "redirect-sign-in"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not-found"
	}
	return "unknown"
}

// maxRedirects bounds redirect chains in the table.
const maxRedirects = 4

// Session is what the guard needs to know about the visitor.
// session.Manager implements it.
type Session interface {
	access.RoleSource
	IsAuthenticated() bool
}

// Guard checks navigation against the current session.
type Guard struct {
	session Session
}

// NewGuard creates a guard for s.
func NewGuard(s Session) *Guard {
	return &Guard{session: s}
}

// Check resolves path through redirects and decides whether the session
// may open it. The returned route is the final one after redirects.
func (g *Guard) Check(path string) (Decision, Route) {
	r, ok := Lookup(path)
	for i := 0; ok && r.Redirect != "" && i < maxRedirects; i++ {
		r, ok = Lookup(r.Redirect)
	}
	if !ok {
		return NotFound, Route{}
	}
	if r.Public {
		return Allow, r
	}
	if g.session == nil || !g.session.IsAuthenticated() {
		return RedirectSignIn, r
	}
	if r.Feature == "" {
		return Allow, r
	}
	if !access.NewEvaluator(g.session).CanAccess(r.Feature) {
		return Forbidden, r
	}
	return Allow, r
}
