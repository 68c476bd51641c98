// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - The --json envelope shared by every command.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/sawmon/internal/access"
)

// JSONResponse is the response format for all CLI commands in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ExitCode is the process exit code, so scripts need not read $?
	ExitCode int `json:"exit_code"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		ExitCode:  GetExitCode(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to w as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// WhoamiData describes the signed-in user.
type WhoamiData struct {
	Authenticated bool        `json:"authenticated"`
	ID            int64       `json:"id,omitempty"`
	Username      string      `json:"username,omitempty"`
	Name          string      `json:"name,omitempty"`
	Role          access.Role `json:"role,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Expired       bool        `json:"expired,omitempty"`
}

// CanData is one feature check.
type CanData struct {
	Feature access.Feature `json:"feature"`
	Known   bool           `json:"known"`
	Allowed bool           `json:"allowed"`
}

// RouteData is the router's verdict on a path.
type RouteData struct {
	Path     string         `json:"path"`
	Decision string         `json:"decision"`
	Route    string         `json:"route,omitempty"`
	Pattern  string         `json:"pattern,omitempty"`
	Feature  access.Feature `json:"feature,omitempty"`
}

// PanelsData is the visibility of one or all dashboards.
type PanelsData struct {
	Dashboard  string                     `json:"dashboard,omitempty"`
	Visibility map[string]map[string]bool `json:"visibility"`
}
