// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// stats_cmd.go - Dashboard data and datasource views.
//
// Examples:
//   sawmon stats alarms
//   sawmon stats time-ranges set ranges.json
//   echo '{"alarms":"7d"}' | sawmon stats time-ranges set -
//   sawmon datasources connection-string --json
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/api"
)

func (a *App) handleStats(ctx context.Context, args Args) (any, error) {
	p := args.Parser()
	sub := p.Subcommand()
	if sub == "" {
		return nil, ErrMissingArgument("view", "sawmon stats alarms")
	}

	var fetch func(context.Context) (json.RawMessage, error)
	switch sub {
	case "tools", "tool-statistics":
		fetch = func(ctx context.Context) (json.RawMessage, error) { return a.client.ToolStatistics(ctx) }
	case "effectivity":
		fetch = func(ctx context.Context) (json.RawMessage, error) { return a.client.Effectivity(ctx) }
	case "programs", "loaded-programs":
		fetch = func(ctx context.Context) (json.RawMessage, error) { return a.client.LoadedPrograms(ctx) }
	case "alarms":
		fetch = func(ctx context.Context) (json.RawMessage, error) { return a.client.Alarms(ctx) }
	case "time-ranges":
		if p.Positional(1) == "set" {
			return a.saveTimeRanges(ctx, p.Positional(2))
		}
		fetch = func(ctx context.Context) (json.RawMessage, error) { return a.client.DefaultTimeRanges(ctx) }
	default:
		return nil, ErrUnknownSubcommand("stats", sub, "sawmon stats tools|effectivity|programs|alarms|time-ranges")
	}

	if _, err := a.authorized("stats "+sub, access.FeatureDashboard); err != nil {
		return nil, err
	}
	raw, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	return a.printRaw(raw, args.JSON)
}

func (a *App) saveTimeRanges(ctx context.Context, file string) (any, error) {
	if file == "" {
		return nil, ErrMissingArgument("file", "sawmon stats time-ranges set ranges.json")
	}
	client, err := a.authorized("stats time-ranges set", access.FeatureDashboard)
	if err != nil {
		return nil, err
	}

	var body []byte
	if file == "-" {
		body, err = io.ReadAll(a.stdin)
	} else {
		body, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	if !json.Valid(body) {
		return nil, NewValidationError("file", file, "not valid JSON")
	}

	saved, err := client.SaveDefaultTimeRanges(ctx, json.RawMessage(body))
	if err != nil {
		return nil, err
	}
	a.printf("%s Default time ranges saved\n", paint(SuccessStyle, "[OK]"))
	if len(saved) == 0 {
		return json.RawMessage(body), nil
	}
	return saved, nil
}

func (a *App) handleDatasources(ctx context.Context, args Args) (any, error) {
	view := args.Parser().Subcommand()
	if view == "" {
		view = "list"
	}
	if _, ok := api.DatasourceViews[view]; !ok {
		return nil, ErrUnknownSubcommand("datasources", view, strings.Join(api.DatasourceViewNames(), ", "))
	}

	client, err := a.authorized("datasources "+view, access.FeatureDatasources)
	if err != nil {
		return nil, err
	}
	raw, err := client.Datasource(ctx, view)
	if err != nil {
		return nil, err
	}
	return a.printRaw(raw, args.JSON)
}

// printRaw pretty-prints a backend document in human mode and hands it
// back for the JSON envelope.
func (a *App) printRaw(raw json.RawMessage, jsonMode bool) (any, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	if jsonMode {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		a.printf("%s\n", raw)
		return raw, nil
	}
	a.printf("%s\n", buf.String())
	return raw, nil
}
