// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package routes

import (
	"strings"

	"github.com/jeranaias/sawmon/internal/access"
)

// SignInPath is where unauthenticated visitors are sent.
const SignInPath = "/signIn"

// Route is one page of the dashboard. Segments starting with ':' match any
// single path segment. An empty Feature means any signed-in user.
type Route struct {
	Pattern  string         `json:"pattern" yaml:"pattern"`
	Name     string         `json:"name" yaml:"name"`
	Feature  access.Feature `json:"feature,omitempty" yaml:"feature,omitempty"`
	Public   bool           `json:"public,omitempty" yaml:"public,omitempty"`
	Redirect string         `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

// Table is the dashboard's page list.
var Table = []Route{
	{Pattern: "/", Name: "Home", Redirect: "/dashboards/dashboard-pegas-gonda"},
	{Pattern: SignInPath, Name: "SignIn", Public: true},
	{Pattern: "/signUp", Name: "SignUp", Public: true},

	{Pattern: "/dashboards", Name: "Dashboards", Redirect: "/dashboards/grafana"},
	{Pattern: "/dashboards/grafana", Name: "dashboard-grafana", Feature: access.FeatureDashboard},
	{Pattern: "/dashboards/dashboard-version-one", Name: "dashboard-version-one", Feature: access.FeatureDashboard},
	{Pattern: "/dashboards/dashboard-pegas-gonda", Name: "dashboard-pegas-gonda", Feature: access.FeatureDashboard},
	{Pattern: "/manufacturing-tool-statistics", Name: "ManufacturingToolStatistics", Feature: access.FeatureDashboard},
	{Pattern: "/effectivity", Name: "Effectivity", Feature: access.FeatureDashboard},
	{Pattern: "/loaded-programs", Name: "LoadedPrograms", Feature: access.FeatureDashboard},
	{Pattern: "/alarms", Name: "Alarms", Feature: access.FeatureDashboard},

	{Pattern: "/catalog", Name: "Catalog", Feature: access.FeatureCatalog},
	{Pattern: "/catalog/machine/:id", Name: "MachineDetails", Feature: access.FeatureCatalog},
	{Pattern: "/my-machines", Name: "MyMachines", Feature: access.FeatureMachines},
	{Pattern: "/my-machines/:id", Name: "MachineConfiguration", Feature: access.FeatureMachines},
	{Pattern: "/my-machines/:id/maintenance", Name: "MachineMaintenance", Feature: access.FeatureMachines},
	{Pattern: "/programs", Name: "Programs", Feature: access.FeaturePrograms},
	{Pattern: "/programs/new", Name: "NewProgram", Feature: access.FeatureProgramsAdd},
	{Pattern: "/programs/:id", Name: "EditProgram", Feature: access.FeatureProgramsAdd},

	{Pattern: "/management", Name: "Management", Feature: access.FeatureManagement},
	{Pattern: "/management/datasources", Name: "Datasources", Feature: access.FeatureDatasources},
	{Pattern: "/management/dashboards", Name: "ManagementDashboards", Feature: access.FeatureDashboardManage},
	{Pattern: "/users", Name: "Users", Feature: access.FeatureUsers},

	{Pattern: "/notifications", Name: "Notifications"},
	{Pattern: "/help", Name: "Help"},
	{Pattern: "/profile", Name: "Profile"},
	{Pattern: "/profile/profileTwo", Name: "ProfileTwo"},
}

// splitPath turns "/a/b/?x=1" into ["a", "b"].
func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// match reports whether path fits pattern and how many literal segments
// matched. Literal matches rank above parameters.
func match(pattern, path []string) (score int, ok bool) {
	if len(pattern) != len(path) {
		return 0, false
	}
	for i, seg := range pattern {
		switch {
		case strings.HasPrefix(seg, ":"):
			if path[i] == "" {
				return 0, false
			}
		case seg == path[i]:
			score++
		default:
			return 0, false
		}
	}
	return score, true
}

// Lookup finds the route for path. Literal segments win over parameters.
func Lookup(path string) (Route, bool) {
	segs := splitPath(path)
	best, bestScore, found := Route{}, -1, false
	for _, r := range Table {
		score, ok := match(splitPath(r.Pattern), segs)
		if ok && score > bestScore {
			best, bestScore, found = r, score, true
		}
	}
	return best, found
}
