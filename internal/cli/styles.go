// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for all sawmon commands.
//
// Colors are dropped for non-TTY output and when NO_COLOR is set; see
// ColorsEnabled in terminal.go.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sawmon/internal/util"
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	// SuccessStyle is used for success messages and allowed checks
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for error messages and denied checks
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for warnings and cautions
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray
)

// paint renders text with style when colors are enabled.
func paint(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}

// RenderSeparator renders a horizontal rule of the given width (default 60).
func RenderSeparator(width ...int) string {
	w := 60
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return paint(SeparatorStyle, strings.Repeat("=", w))
}

// RenderStatus renders a status indicator with appropriate color.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "allow", "allowed", "yes":
		return paint(SuccessStyle, "[OK]")
	case "deny", "denied", "no", "forbidden":
		return paint(ErrorStyle, "[DENIED]")
	case "warn", "redirect", "redirect-signin":
		return paint(WarningStyle, "[REDIRECT]")
	default:
		return paint(DimStyle, "["+strings.ToUpper(status)+"]")
	}
}

// RenderLabel pads label to width (default 16) and dims it.
func RenderLabel(label string, width ...int) string {
	w := 16
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return paint(LabelStyle, util.PadRight(label, w))
}
