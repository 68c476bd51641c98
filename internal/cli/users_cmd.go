// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// users_cmd.go - Account management. Needs the "users" feature.
//
// Subcommands:
//   list (default)                  List all accounts
//   roles                           List assignable roles
//   create --username U --role R    Create an account
//   update ID [flags]               Change username, name, role or active flag
//   delete ID [--confirm]           Delete an account
//   reset-password ID               Set a new password for an account
//   set-pin ID [PIN] / clear-pin ID Manage an operator PIN
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/api"
	"github.com/jeranaias/sawmon/internal/audit"
	"github.com/jeranaias/sawmon/internal/util"
)

func (a *App) handleUsers(ctx context.Context, args Args) (any, error) {
	p := args.Parser("password-stdin", "confirm")
	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}

	client, err := a.authorized("users "+sub, access.FeatureUsers)
	if err != nil {
		return nil, err
	}

	data, err := a.runUsers(ctx, client, p, sub, args.JSON)
	var apiErr *api.Error
	if changesUsers(sub) && (err == nil || errors.As(err, &apiErr)) {
		a.recordUserChange(sub, p, err)
	}
	return data, err
}

func (a *App) runUsers(ctx context.Context, client *api.Client, p *ArgParser, sub string, jsonMode bool) (any, error) {
	switch sub {
	case "list", "ls":
		return a.usersList(ctx, client, jsonMode)
	case "roles":
		roles, err := client.ListRoles(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range roles {
			a.printf("%s\n", r)
		}
		return roles, nil
	case "create", "add":
		return a.usersCreate(ctx, client, p)
	case "update", "edit":
		return a.usersUpdate(ctx, client, p)
	case "delete", "rm":
		id, err := ParseID(p.Positional(1))
		if err != nil {
			return nil, err
		}
		if err := a.RequireConfirmation(p.BoolFlag("confirm"), fmt.Sprintf("delete user %d", id), jsonMode); err != nil {
			return nil, err
		}
		if err := client.DeleteUser(ctx, id); err != nil {
			return nil, err
		}
		a.printf("Deleted user %d\n", id)
		return map[string]int64{"deleted": id}, nil
	case "reset-password":
		id, err := ParseID(p.Positional(1))
		if err != nil {
			return nil, err
		}
		password, err := a.readNewSecret(p.BoolFlag("password-stdin"), "New password: ")
		if err != nil {
			return nil, err
		}
		if err := client.ResetPassword(ctx, id, password); err != nil {
			return nil, err
		}
		a.printf("Password reset for user %d\n", id)
		return map[string]int64{"reset": id}, nil
	case "set-pin":
		id, err := ParseID(p.Positional(1))
		if err != nil {
			return nil, err
		}
		pin := p.Positional(2)
		if pin == "" {
			if pin, err = a.readNewSecret(p.BoolFlag("password-stdin"), "PIN: "); err != nil {
				return nil, err
			}
		}
		if err := client.SetPin(ctx, id, pin); err != nil {
			return nil, err
		}
		a.printf("PIN set for user %d\n", id)
		return map[string]int64{"pin_set": id}, nil
	case "clear-pin":
		id, err := ParseID(p.Positional(1))
		if err != nil {
			return nil, err
		}
		if err := client.ClearPin(ctx, id); err != nil {
			return nil, err
		}
		a.printf("PIN cleared for user %d\n", id)
		return map[string]int64{"pin_cleared": id}, nil
	}
	return nil, ErrUnknownSubcommand("users", sub, "sawmon users list")
}

// changesUsers reports whether sub modifies accounts.
func changesUsers(sub string) bool {
	switch sub {
	case "create", "add", "update", "edit", "delete", "rm", "reset-password", "set-pin", "clear-pin":
		return true
	}
	return false
}

// recordUserChange audits an account change that reached the backend.
func (a *App) recordUserChange(sub string, p *ArgParser, err error) {
	meta := map[string]string{"action": sub}
	if target := p.Positional(1); target != "" {
		meta["target"] = target
	}
	if name := p.Flag("username"); name != "" {
		meta["username"] = name
	}
	if role := p.Flag("role"); role != "" {
		meta["role"] = role
	}
	e := audit.Event{Type: audit.EventUserChange, Success: err == nil, Metadata: meta}
	if mgr, serr := a.session(); serr == nil {
		if user := mgr.State().User; user != nil {
			e.User = user.Username
			e.Role = string(user.Role)
		}
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.record(e)
}

func (a *App) usersList(ctx context.Context, client *api.Client, jsonMode bool) (any, error) {
	users, err := client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if jsonMode {
		return users, nil
	}

	a.printf("%s\n", paint(TitleStyle, fmt.Sprintf("%s%s%s%s%s%s",
		util.PadRight("ID", 6),
		util.PadRight("USERNAME", 18),
		util.PadRight("NAME", 24),
		util.PadRight("ROLE", 10),
		util.PadRight("ACTIVE", 8),
		"PIN")))
	for _, u := range users {
		a.printf("%s%s%s%s%s%s\n",
			util.PadRight(strconv.FormatInt(u.ID, 10), 6),
			util.PadRight(u.Username, 18),
			util.PadRight(u.FullName, 24),
			util.PadRight(string(u.Role), 10),
			util.PadRight(yesNo(u.IsActive), 8),
			yesNo(u.HasPin))
	}
	return users, nil
}

func (a *App) usersCreate(ctx context.Context, client *api.Client, p *ArgParser) (any, error) {
	in := api.UserInput{
		Username: p.Flag("username"),
		FullName: p.Flag("full-name"),
	}
	if in.Username == "" {
		return nil, ErrMissingArgument("username", "sawmon users create --username bob --role user")
	}
	role, err := parseRoleFlag(p.Flag("role"))
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, ErrMissingArgument("role", "sawmon users create --username bob --role user")
	}
	in.Role = role

	if in.Password, err = a.readNewSecret(p.BoolFlag("password-stdin"), "Password: "); err != nil {
		return nil, err
	}

	user, err := client.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	a.printf("Created user %d (%s, %s)\n", user.ID, user.Username, user.Role)
	return user, nil
}

func (a *App) usersUpdate(ctx context.Context, client *api.Client, p *ArgParser) (any, error) {
	id, err := ParseID(p.Positional(1))
	if err != nil {
		return nil, err
	}
	in := api.UserInput{
		Username: p.Flag("username"),
		FullName: p.Flag("full-name"),
	}
	if in.Role, err = parseRoleFlag(p.Flag("role")); err != nil {
		return nil, err
	}
	if p.HasFlag("active") {
		active := p.BoolFlag("active")
		if v := p.Flag("active"); v != "" {
			if active, err = ParseBoolString(v); err != nil {
				return nil, NewValidationError("active", v, "must be true or false")
			}
		}
		in.IsActive = &active
	}
	if in == (api.UserInput{}) {
		return nil, ErrMissingArgument("field to change", "sawmon users update 42 --role service")
	}

	user, err := client.UpdateUser(ctx, id, in)
	if err != nil {
		return nil, err
	}
	a.printf("Updated user %d (%s, %s)\n", user.ID, user.Username, user.Role)
	return user, nil
}

// parseRoleFlag validates a --role value; "" passes through.
func parseRoleFlag(s string) (access.Role, error) {
	if s == "" {
		return "", nil
	}
	role, err := access.ParseRole(s)
	if err != nil {
		return "", NewValidationErrorWithExample("role", s, "unknown role", "operator, user, service or admin")
	}
	return role, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
