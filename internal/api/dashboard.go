// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// Dashboard data is passed through undecoded; its shape belongs to the
// charts that render it.

// ToolStatistics returns the manufacturing tool statistics.
func (c *Client) ToolStatistics(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/manufacturing_tool_statistics")
}

// Effectivity returns the saw effectivity series.
func (c *Client) Effectivity(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/effectivity")
}

// LoadedPrograms returns the programs loaded on the machines.
func (c *Client) LoadedPrograms(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/loaded_programs")
}

// Alarms returns the alarm history.
func (c *Client) Alarms(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/alarms")
}

// DefaultTimeRanges returns the saved default time range per chart.
func (c *Client) DefaultTimeRanges(ctx context.Context) (json.RawMessage, error) {
	return c.getRaw(ctx, "/get_default_time_ranges")
}

// SaveDefaultTimeRanges stores the default time ranges. ranges must be a
// JSON document.
func (c *Client) SaveDefaultTimeRanges(ctx context.Context, ranges json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/save_default_time_ranges", ranges, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// PANEL VISIBILITY
// =============================================================================

// PanelVisibility returns the stored visibility of every dashboard's panels.
func (c *Client) PanelVisibility(ctx context.Context) (map[string]map[string]bool, error) {
	var all map[string]map[string]bool
	if err := c.do(ctx, http.MethodGet, "/api/dashboards/panel-visibility", nil, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// SavePanelVisibility replaces the visibility map of one dashboard.
func (c *Client) SavePanelVisibility(ctx context.Context, dashboard string, visibility map[string]bool) error {
	path := "/api/dashboards/panel-visibility/" + url.PathEscape(dashboard)
	return c.do(ctx, http.MethodPut, path, visibility, nil)
}
