// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// DatasourceViews maps the names accepted by Datasource to backend paths.
var DatasourceViews = map[string]string{
	"list":              "/api/datasources/",
	"influxdb":          "/api/datasources/influxdb",
	"client":            "/api/datasources/influxdb/client",
	"grafana":           "/api/datasources/influxdb/grafana",
	"default":           "/api/datasources/default",
	"validate":          "/api/datasources/validate",
	"connection-string": "/api/datasources/connection-string",
}

// DatasourceViewNames returns the keys of DatasourceViews, sorted.
func DatasourceViewNames() []string {
	names := make([]string, 0, len(DatasourceViews))
	for name := range DatasourceViews {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Datasource fetches one datasource view by name.
func (c *Client) Datasource(ctx context.Context, view string) (json.RawMessage, error) {
	path, ok := DatasourceViews[view]
	if !ok {
		return nil, fmt.Errorf("unknown datasource view %q", view)
	}
	return c.getRaw(ctx, path)
}
