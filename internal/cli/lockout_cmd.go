// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/lockout"
	"github.com/jeranaias/sawmon/internal/util"
)

// LockoutEntry is one throttled identifier as reported by "lockout status".
type LockoutEntry struct {
	Identifier  string        `json:"identifier"`
	Attempts    int           `json:"attempts"`
	LastAttempt time.Time     `json:"last_attempt"`
	Locked      bool          `json:"locked"`
	LockedUntil *time.Time    `json:"locked_until,omitempty"`
	Remaining   time.Duration `json:"remaining_ns,omitempty"`
	Lockouts    int           `json:"lockouts"`
}

func (a *App) handleLockout(_ context.Context, args Args) (any, error) {
	p := args.Parser()
	sub := p.Subcommand()

	tracker, err := a.lockoutTracker()
	if err != nil {
		return nil, err
	}

	switch sub {
	case "", "status", "list":
		return a.lockoutStatus(tracker, args.JSON)
	case "clear", "unlock":
		id := p.Positional(1)
		if id == "" {
			return nil, ErrMissingArgument("identifier", "sawmon lockout clear user:bob")
		}
		if _, err := a.authorized("lockout clear", access.FeatureUsers); err != nil {
			return nil, err
		}
		mgr, err := a.session()
		if err != nil {
			return nil, err
		}
		by := ""
		if user := mgr.State().User; user != nil {
			by = user.Username
		}
		if err := tracker.Unlock(id, by); err != nil {
			if errors.Is(err, lockout.ErrNotLocked) {
				return nil, &NotFoundError{Resource: "lockout", ID: id}
			}
			return nil, err
		}
		a.printf("%s Cleared %s\n", paint(SuccessStyle, "[OK]"), id)
		return map[string]string{"cleared": id}, nil
	}
	return nil, ErrUnknownSubcommand("lockout", sub, "sawmon lockout status|clear ID")
}

func (a *App) lockoutStatus(tracker *lockout.Tracker, jsonMode bool) (any, error) {
	now := a.now()
	records := tracker.Status()
	entries := make([]LockoutEntry, 0, len(records))
	for _, id := range tracker.Identifiers() {
		rec, ok := records[id]
		if !ok {
			continue
		}
		e := LockoutEntry{
			Identifier:  id,
			Attempts:    rec.Count,
			LastAttempt: rec.LastAttempt,
			Locked:      rec.Locked(now),
			Lockouts:    rec.LockoutCount,
		}
		if e.Locked {
			until := rec.LockedUntil
			e.LockedUntil = &until
			e.Remaining = rec.Remaining(now)
		}
		entries = append(entries, e)
	}
	if jsonMode {
		return entries, nil
	}

	if !tracker.Enabled() {
		a.printf("%s\n", paint(DimStyle, "Sign-in lockout is off (auth.max_attempts = 0)"))
	}
	if len(entries) == 0 {
		a.printf("No failed sign-in attempts recorded\n")
		return entries, nil
	}

	a.printf("%s\n", paint(TitleStyle, util.PadRight("IDENTIFIER", 24)+
		util.PadRight("ATTEMPTS", 10)+util.PadRight("LOCKOUTS", 10)+"STATUS"))
	for _, e := range entries {
		status := paint(DimStyle, "open")
		if e.Locked {
			status = paint(ErrorStyle, "locked for "+e.Remaining.Round(time.Second).String())
		}
		a.printf("%s%s%s%s\n",
			util.PadRight(e.Identifier, 24),
			util.PadRight(strconv.Itoa(e.Attempts), 10),
			util.PadRight(strconv.Itoa(e.Lockouts), 10),
			status)
	}
	return entries, nil
}
