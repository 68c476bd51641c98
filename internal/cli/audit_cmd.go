// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// audit_cmd.go - Local audit trail. Reading it needs the "admin" feature.
package cli

import (
	"context"
	"strconv"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/audit"
)

const defaultAuditLimit = 50

func (a *App) handleAudit(_ context.Context, args Args) (any, error) {
	p := args.Parser()
	sub := p.Subcommand()

	switch sub {
	case "path":
		path, err := a.auditFilePath()
		if err != nil {
			return nil, err
		}
		a.printf("%s\n", path)
		return map[string]string{"audit_path": path}, nil
	case "", "show", "tail":
		return a.auditShow(p, args.JSON)
	}
	return nil, ErrUnknownSubcommand("audit", sub, "sawmon audit show|path")
}

func (a *App) auditShow(p *ArgParser, jsonMode bool) (any, error) {
	limit := defaultAuditLimit
	if raw := p.Flag("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, NewValidationError("limit", raw, "must be a non-negative number")
		}
		limit = n
	}

	if _, err := a.authorized("audit show", access.FeatureAdmin); err != nil {
		return nil, err
	}

	path, err := a.auditFilePath()
	if err != nil {
		return nil, err
	}
	events, err := audit.ReadEvents(path, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	if jsonMode {
		return events, nil
	}

	if len(events) == 0 {
		a.printf("No audit events\n")
		return events, nil
	}
	for i := range events {
		line := events[i].ToLogLine()
		if !events[i].Success {
			line = paint(ErrorStyle, line)
		}
		a.printf("%s\n", line)
	}
	return events, nil
}
