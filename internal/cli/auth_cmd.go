// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Session commands: login, logout, whoami, refresh, passwd.
//
// Examples:
//   sawmon login                              Prompt for username and password
//   sawmon login --username bob --password-stdin < pw.txt
//   sawmon login --pin                        Prompt for an operator PIN
//   sawmon login --pin 4711
//   sawmon whoami --json
//   sawmon passwd --password-stdin            Reads current, then new password
package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/sawmon/internal/api"
	"github.com/jeranaias/sawmon/internal/audit"
	"github.com/jeranaias/sawmon/internal/lockout"
	"github.com/jeranaias/sawmon/internal/session"
)

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

func (a *App) handleLogin(ctx context.Context, args Args) (any, error) {
	p := args.Parser("pin", "password-stdin")

	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	tracker, err := a.lockoutTracker()
	if err != nil {
		return nil, err
	}

	if p.BoolFlag("pin") {
		if err := tracker.Check(lockout.PinIdentifier); err != nil {
			return nil, err
		}
		pin := p.Subcommand()
		if pin == "" {
			if pin, err = a.prompter.Secret("PIN: "); err != nil {
				return nil, err
			}
		}
		return a.signIn(ctx, mgr, tracker, lockout.PinIdentifier, "", "pin", func(ctx context.Context) error {
			return mgr.LoginWithPin(ctx, pin)
		})
	}

	username := p.Flag("username")
	if username == "" {
		username = p.Subcommand()
	}
	if username == "" {
		if username, err = a.prompter.Line("Username: "); err != nil {
			return nil, err
		}
	}
	id := userIdentifier(username)
	if err := tracker.Check(id); err != nil {
		return nil, err
	}

	password, err := a.readSecret(p.BoolFlag("password-stdin"), "Password: ")
	if err != nil {
		return nil, err
	}

	return a.signIn(ctx, mgr, tracker, id, username, "password", func(ctx context.Context) error {
		return mgr.Login(ctx, username, password)
	})
}

// signIn runs one attempt, counts rejections against id and writes the
// outcome to the audit log.
func (a *App) signIn(ctx context.Context, mgr *session.Manager, tracker *lockout.Tracker,
	id, user, method string, attempt func(context.Context) error) (any, error) {
	err := attempt(ctx)
	if err == nil {
		tracker.RecordSuccess(id)
		data := a.reportSignedIn(mgr)
		a.record(audit.Event{
			Type:     audit.EventLogin,
			User:     data.Username,
			Role:     string(data.Role),
			Success:  true,
			Metadata: map[string]string{"method": method},
		})
		return data, nil
	}

	var loginErr *session.LoginError
	if errors.As(err, &loginErr) {
		event := audit.Event{
			Type:     audit.EventLoginFailed,
			User:     user,
			Error:    loginErr.Message,
			Metadata: map[string]string{"method": method},
		}
		if rejected(err) && tracker.Enabled() {
			rec := tracker.RecordFailure(id)
			event.Metadata["attempts"] = strconv.Itoa(rec.Count)
		}
		a.record(event)
	}
	return nil, err
}

// rejected reports whether the backend refused the credentials, as opposed
// to not answering.
func rejected(err error) bool {
	return errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrForbidden)
}

// userIdentifier is the lockout identifier for a username, normalized the
// way the session manager sends it.
func userIdentifier(username string) string {
	return "user:" + strings.ToLower(norm.NFC.String(strings.TrimSpace(username)))
}

func (a *App) reportSignedIn(mgr *session.Manager) WhoamiData {
	data := a.whoami(mgr)
	a.printf("%s Signed in as %s (%s)\n", paint(SuccessStyle, "[OK]"), data.Name, data.Role)
	return data
}

func (a *App) handleLogout(_ context.Context, _ Args) (any, error) {
	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	state := mgr.State()
	was := state.UserName()
	mgr.Logout()
	if was != "" {
		role, _ := state.UserRole()
		a.record(audit.Event{Type: audit.EventLogout, User: state.User.Username, Role: string(role), Success: true})
		a.printf("Signed out %s\n", was)
	} else {
		a.printf("Not signed in\n")
	}
	return map[string]bool{"signed_out": true}, nil
}

// =============================================================================
// WHOAMI / REFRESH
// =============================================================================

func (a *App) handleWhoami(_ context.Context, args Args) (any, error) {
	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	if !mgr.IsAuthenticated() {
		return WhoamiData{}, ErrNotSignedIn
	}

	data := a.whoami(mgr)
	if args.JSON {
		return data, nil
	}

	a.printf("%s\n", paint(TitleStyle, data.Name))
	a.printf("%s%s\n", RenderLabel("Username:"), data.Username)
	a.printf("%s%s\n", RenderLabel("Role:"), data.Role)
	if data.ExpiresAt != nil {
		left := data.ExpiresAt.Sub(a.now())
		if data.Expired {
			a.printf("%s%s\n", RenderLabel("Token:"), paint(WarningStyle, "expired; run 'sawmon refresh' or sign in again"))
		} else {
			a.printf("%s%s (%s left)\n", RenderLabel("Token expires:"),
				data.ExpiresAt.Local().Format(time.RFC1123), formatDuration(left))
		}
	}
	return data, nil
}

// whoami describes the session. Token expiry is read from the JWT when it
// is one; the backend stays the authority.
func (a *App) whoami(mgr *session.Manager) WhoamiData {
	state := mgr.State()
	if !state.IsAuthenticated() {
		return WhoamiData{}
	}
	data := WhoamiData{
		Authenticated: true,
		ID:            state.User.ID,
		Username:      state.User.Username,
		Name:          state.UserName(),
		Role:          state.User.Role,
	}
	if info, err := session.InspectToken(state.Token); err == nil && !info.ExpiresAt.IsZero() {
		exp := info.ExpiresAt
		data.ExpiresAt = &exp
		data.Expired = info.Expired(a.now())
	}
	return data
}

func (a *App) handleRefresh(ctx context.Context, _ Args) (any, error) {
	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	if mgr.Token() == "" {
		return nil, ErrNotSignedIn
	}

	before := mgr.State()
	mgr.RefreshUser(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !mgr.IsAuthenticated() {
		if before.User != nil {
			a.record(audit.Event{Type: audit.EventSessionExpired, User: before.User.Username, Role: string(before.User.Role)})
		}
		return WhoamiData{}, errors.New("session is no longer valid; signed out")
	}
	data := a.whoami(mgr)
	a.printf("Profile refreshed: %s (%s)\n", data.Name, data.Role)
	return data, nil
}

// =============================================================================
// PASSWD
// =============================================================================

func (a *App) handlePasswd(ctx context.Context, args Args) (any, error) {
	p := args.Parser("password-stdin")
	fromStdin := p.BoolFlag("password-stdin")

	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	if !mgr.IsAuthenticated() {
		return nil, ErrNotSignedIn
	}

	current, err := a.readSecret(fromStdin, "Current password: ")
	if err != nil {
		return nil, err
	}
	next, err := a.readNewSecret(fromStdin, "New password: ")
	if err != nil {
		return nil, err
	}

	user := mgr.State().User.Username
	if err := a.client.ChangePassword(ctx, current, next); err != nil {
		a.record(audit.Event{Type: audit.EventPasswordChange, User: user, Error: err.Error()})
		return nil, NewCommandError("passwd", "change", "backend rejected the change", err)
	}
	a.record(audit.Event{Type: audit.EventPasswordChange, User: user, Success: true})
	a.printf("%s Password changed\n", paint(SuccessStyle, "[OK]"))
	return map[string]bool{"changed": true}, nil
}

// =============================================================================
// SECRET INPUT
// =============================================================================

// readSecret reads a secret from the next stdin line or from a no-echo prompt.
func (a *App) readSecret(fromStdin bool, prompt string) (string, error) {
	if fromStdin {
		return readLine(a.stdin)
	}
	return a.prompter.Secret(prompt)
}

// readNewSecret is readSecret with confirmation when prompting.
func (a *App) readNewSecret(fromStdin bool, prompt string) (string, error) {
	secret, err := a.readSecret(fromStdin, prompt)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", NewValidationError("password", "", "must not be empty")
	}
	if fromStdin {
		return secret, nil
	}
	again, err := a.prompter.Secret("Repeat: ")
	if err != nil {
		return "", err
	}
	if again != secret {
		return "", NewValidationError("password", "", "entries do not match")
	}
	return secret, nil
}
