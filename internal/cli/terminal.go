// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection and interactive prompts.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	colorsEnabled     bool
	colorsEnabledOnce sync.Once
)

// ColorsEnabled returns true if colored output should be used.
// NO_COLOR wins over FORCE_COLOR, which wins over TTY detection.
func ColorsEnabled() bool {
	colorsEnabledOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// ForceColorsEnabled overrides color detection. Tests only.
func ForceColorsEnabled(enabled bool) {
	colorsEnabledOnce = sync.Once{}
	colorsEnabledOnce.Do(func() {
		colorsEnabled = enabled
	})
}

// TTYRequiredError is returned when an operation requires a TTY but none is available.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	if e.Operation != "" {
		return "stdin is not a terminal; cannot " + e.Operation + " interactively"
	}
	return "stdin is not a terminal; interactive input not available"
}

// errPromptAborted is returned when the user presses Ctrl-C at a prompt.
var errPromptAborted = errors.New("aborted")

// =============================================================================
// PROMPTS
// =============================================================================

// Prompter asks the user for input.
type Prompter interface {
	// Line reads one line of visible input.
	Line(prompt string) (string, error)
	// Secret reads one line without echo.
	Secret(prompt string) (string, error)
}

// terminalPrompter prompts on the controlling terminal. Visible input goes
// through liner for line editing; secrets use term.ReadPassword.
type terminalPrompter struct {
	out io.Writer
}

func (p terminalPrompter) Line(prompt string) (string, error) {
	if !IsTTY() {
		return "", &TTYRequiredError{Operation: "prompt for " + strings.TrimSpace(strings.TrimSuffix(prompt, ": "))}
	}
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", errPromptAborted
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func (p terminalPrompter) Secret(prompt string) (string, error) {
	if !IsTTY() {
		return "", &TTYRequiredError{Operation: "prompt for " + strings.TrimSpace(strings.TrimSuffix(prompt, ": "))}
	}
	fmt.Fprint(p.out, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(raw), nil
}

// readLine reads one line from r, dropping the line terminator. An empty
// stream is an error; a final line without newline is accepted.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("no input on stdin")
		}
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
