// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for all sawmon commands.
//
// Handlers always return errors; Run decides how to display them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/jeranaias/sawmon/internal/api"
	"github.com/jeranaias/sawmon/internal/config"
	"github.com/jeranaias/sawmon/internal/lockout"
	"github.com/jeranaias/sawmon/internal/session"
	"github.com/jeranaias/sawmon/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication or authorization failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitSecurityError indicates the local store could not be unsealed
	ExitSecurityError = 6
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// ErrNotSignedIn is returned by commands that need a session when there is none.
var ErrNotSignedIn = errors.New("not signed in; run 'sawmon login'")

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "users", "panels")
	Action  string // Action being performed (e.g., "create", "hide")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// PermissionError is returned when the signed-in role lacks a feature.
type PermissionError struct {
	Action  string // Action that was denied
	User    string // User who was denied
	Feature string // Required feature
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s requires feature '%s' (user: %s)",
		e.Action, e.Feature, e.User)
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string // Type of resource (e.g., "route", "dashboard")
	ID       string // Identifier that was not found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrUnknownSubcommand creates an error for a subcommand the command lacks.
func ErrUnknownSubcommand(command, sub, usage string) error {
	return NewValidationErrorWithExample(command+" subcommand", sub, "unknown subcommand", usage)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError writes a human-readable error to w. Login failures show only
// the message the session recorded.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	var loginErr *session.LoginError
	if errors.As(err, &loginErr) {
		msg = loginErr.Message
	}
	fmt.Fprintf(w, "%s %s\n", paint(ErrorStyle, "[ERROR]"), msg)
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var ttyErr *TTYRequiredError
	if errors.As(err, &validationErr) || errors.As(err, &ttyErr) {
		return ExitUsageError
	}

	var cfgErr config.ValidationError
	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgErrs) {
		return ExitConfigError
	}

	var permissionErr *PermissionError
	var loginErr *session.LoginError
	if errors.As(err, &permissionErr) || errors.As(err, &loginErr) ||
		errors.Is(err, ErrNotSignedIn) || errors.Is(err, lockout.ErrLocked) ||
		errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrForbidden) {
		return ExitAuthError
	}

	if errors.Is(err, storage.ErrCorrupt) {
		return ExitSecurityError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) || errors.Is(err, api.ErrNotFound) {
		return ExitNotFoundError
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ExitTimeoutError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.Is(err, api.ErrServer) || errors.Is(err, api.ErrRateLimited) {
		return ExitNetworkError
	}

	return ExitGeneralError
}
