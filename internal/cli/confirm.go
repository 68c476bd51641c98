// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation before destructive actions.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// errCancelled is returned when the user declines a confirmation.
var errCancelled = errors.New("cancelled")

// RequireConfirmation checks that the user has confirmed a destructive
// action:
//  1. --confirm proceeds immediately
//  2. --json mode without --confirm is an error (no interactive prompts)
//  3. otherwise the user is asked and must answer y or yes
func (a *App) RequireConfirmation(confirmFlag bool, action string, jsonMode bool) error {
	if confirmFlag {
		return nil
	}
	if jsonMode {
		return NewValidationErrorWithExample("confirmation", "", "--confirm is required in JSON mode", "--confirm")
	}

	answer, err := a.prompter.Line(fmt.Sprintf("Are you sure you want to %s? [y/N]: ", action))
	if err != nil {
		var ttyErr *TTYRequiredError
		if errors.As(err, &ttyErr) {
			return NewValidationErrorWithExample("confirmation", "", "stdin is not a terminal", "--confirm")
		}
		return err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errCancelled
}
