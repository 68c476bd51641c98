// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Session inspection commands.
//
// Subcommands:
//   show (default)   Print the stored session
//   watch            Follow changes made by other sawmon processes until
//                    interrupted; each change is printed as one line
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/jeranaias/sawmon/internal/session"
	"github.com/jeranaias/sawmon/internal/storage"
)

// watchDebounce folds the bursts of events one store write produces.
const watchDebounce = 150 * time.Millisecond

func (a *App) handleSession(ctx context.Context, args Args) (any, error) {
	sub := args.Parser().Subcommand()
	switch sub {
	case "", "show":
		mgr, err := a.session()
		if err != nil {
			return nil, err
		}
		data := a.whoami(mgr)
		if data.Authenticated {
			a.printf("Signed in as %s (%s)\n", data.Name, data.Role)
		} else {
			a.printf("Not signed in\n")
		}
		return data, nil
	case "watch":
		return a.watchSession(ctx, args.JSON)
	}
	return nil, ErrUnknownSubcommand("session", sub, "sawmon session show|watch")
}

// watchSession rehydrates the manager whenever the store file changes and
// prints every resulting state change. It returns when ctx is done.
func (a *App) watchSession(ctx context.Context, jsonMode bool) (any, error) {
	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	if a.storePath == "" {
		return nil, errors.New("session watch needs a file-backed store")
	}

	events, err := storage.Watch(ctx, a.storePath, watchDebounce)
	if err != nil {
		return nil, err
	}

	changes := 0
	cancel := mgr.Watch(func(s session.State) {
		changes++
		if jsonMode {
			return
		}
		if s.IsAuthenticated() {
			role, _ := s.UserRole()
			a.printf("%s signed in as %s (%s)\n", a.now().Format(time.TimeOnly), s.UserName(), role)
		} else {
			a.printf("%s signed out\n", a.now().Format(time.TimeOnly))
		}
	})
	defer cancel()

	a.printf("Watching %s (Ctrl-C to stop)\n", a.storePath)
	for range events {
		a.logger.Debug("session store changed", "path", a.storePath)
		mgr.Rehydrate()
	}

	final := a.whoami(mgr)
	return map[string]any{"changes": changes, "session": final}, nil
}
