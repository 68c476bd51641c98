// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// access_cmd.go - Access commands: can, policy, route.
//
// These answer access questions locally from the capability map and the
// route table; nothing is sent to the backend.
//
// Examples:
//   sawmon can users datasources          Check the signed-in user
//   sawmon can --as operator programs.add Check a role without signing in
//   sawmon policy --yaml > policy.yaml    Export the matrix for review
//   sawmon route /management/datasources
//   sawmon route --as anonymous /users    Check a signed-out visitor
package cli

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/routes"
	"github.com/jeranaias/sawmon/internal/util"
)

// anonymousRole is accepted by --as to mean "no signed-in user".
const anonymousRole = "anonymous"

// visitor is a routes.Session with a fixed role.
type visitor struct {
	access.StaticRole
}

func (v visitor) IsAuthenticated() bool {
	return v.Present
}

// subject returns who access questions are about: the --as role when
// given, else the stored session.
func (a *App) subject(p *ArgParser) (routes.Session, error) {
	as := p.Flag("as")
	if as == "" {
		mgr, err := a.session()
		if err != nil {
			return nil, err
		}
		return mgr, nil
	}
	if strings.EqualFold(as, anonymousRole) {
		return visitor{}, nil
	}
	role, err := access.ParseRole(as)
	if err != nil {
		return nil, NewValidationErrorWithExample("role", as, "unknown role", "operator, user, service, admin or anonymous")
	}
	return visitor{access.As(role)}, nil
}

// =============================================================================
// CAN
// =============================================================================

// handleCan checks each feature. It fails with a PermissionError when any
// feature is denied so scripts can branch on the exit code.
func (a *App) handleCan(_ context.Context, args Args) (any, error) {
	p := args.Parser()
	features := p.PositionalFrom(0)
	if len(features) == 0 {
		return nil, ErrMissingArgument("feature", "sawmon can users")
	}

	subject, err := a.subject(p)
	if err != nil {
		return nil, err
	}
	eval := access.NewEvaluator(subject)

	results := make([]CanData, 0, len(features))
	var denied []string
	for _, name := range features {
		f := access.Feature(name)
		r := CanData{Feature: f, Known: access.Known(f), Allowed: eval.CanAccess(f)}
		results = append(results, r)
		if !r.Allowed {
			denied = append(denied, name)
		}

		status := "allowed"
		if !r.Allowed {
			status = "denied"
		}
		note := ""
		if !r.Known {
			note = paint(DimStyle, " (not in the capability map; admin only)")
		}
		a.printf("%s %s%s\n", RenderStatus(status), name, note)
	}

	if len(denied) > 0 {
		role, _ := subject.UserRole()
		return results, &PermissionError{
			Action:  "can",
			User:    string(role),
			Feature: strings.Join(denied, ", "),
		}
	}
	return results, nil
}

// =============================================================================
// POLICY
// =============================================================================

func (a *App) handlePolicy(_ context.Context, args Args) (any, error) {
	p := args.Parser("yaml")
	matrix := access.Matrix()

	if args.JSON {
		return matrix, nil
	}
	if p.BoolFlag("yaml") {
		out, err := yaml.Marshal(matrix)
		if err != nil {
			return nil, fmt.Errorf("failed to encode policy: %w", err)
		}
		_, err = a.out.Write(out)
		return matrix, err
	}

	const featureWidth = 18
	const roleWidth = 10
	roles := access.Roles()

	var header strings.Builder
	header.WriteString(util.PadRight("FEATURE", featureWidth))
	for _, r := range roles {
		header.WriteString(util.PadRight(strings.ToUpper(string(r)), roleWidth))
	}
	a.printf("%s\n", paint(TitleStyle, header.String()))

	for _, row := range matrix {
		allowed := make(map[access.Role]bool, len(row.Roles))
		for _, r := range row.Roles {
			allowed[r] = true
		}
		var line strings.Builder
		line.WriteString(util.PadRight(string(row.Feature), featureWidth))
		for _, r := range roles {
			cell := "-"
			if allowed[r] {
				cell = "yes"
			}
			line.WriteString(util.PadRight(cell, roleWidth))
		}
		a.printf("%s\n", strings.TrimRight(line.String(), " "))
	}
	return matrix, nil
}

// =============================================================================
// ROUTE
// =============================================================================

func (a *App) handleRoute(_ context.Context, args Args) (any, error) {
	p := args.Parser()
	path := p.Subcommand()
	if path == "" {
		return nil, ErrMissingArgument("path", "sawmon route /users")
	}

	subject, err := a.subject(p)
	if err != nil {
		return nil, err
	}

	decision, route := routes.NewGuard(subject).Check(path)
	data := RouteData{
		Path:     path,
		Decision: decision.String(),
		Route:    route.Name,
		Pattern:  route.Pattern,
		Feature:  route.Feature,
	}

	switch decision {
	case routes.Allow:
		a.printf("%s %s -> %s\n", RenderStatus("allow"), path, route.Name)
	case routes.RedirectSignIn:
		a.printf("%s %s -> %s\n", RenderStatus("redirect"), path, routes.SignInPath)
	case routes.Forbidden:
		a.printf("%s %s needs feature %s\n", RenderStatus("forbidden"), path, route.Feature)
	case routes.NotFound:
		return data, &NotFoundError{Resource: "route", ID: path}
	}
	return data, nil
}
