// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// panels_cmd.go - Dashboard panel visibility. Needs the "dashboard" feature.
//
// Visibility is loaded from the backend when reachable and cached in the
// session store, so 'panels list' keeps working offline.
package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/panels"
)

func (a *App) handlePanels(ctx context.Context, args Args) (any, error) {
	p := args.Parser()
	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}
	switch sub {
	case "list", "show", "hide", "show-all", "hide-all":
	default:
		return nil, ErrUnknownSubcommand("panels", sub, "sawmon panels list|show|hide|show-all|hide-all DASHBOARD [PANEL...]")
	}

	client, err := a.authorized("panels "+sub, access.FeatureDashboard)
	if err != nil {
		return nil, err
	}
	store, err := a.panelStore(client)
	if err != nil {
		return nil, err
	}
	if err := store.LoadFromBackend(ctx); err != nil {
		a.logger.Warn("panel visibility not loaded from backend; using cache", "error", err)
	}

	dashboard := p.Positional(1)
	if sub == "list" {
		return a.panelsList(store, dashboard)
	}

	if dashboard == "" {
		return nil, ErrMissingArgument("dashboard", fmt.Sprintf("sawmon panels %s dashboard-pegas-gonda alarms", sub))
	}
	names := p.PositionalFrom(2)
	if len(names) == 0 {
		return nil, ErrMissingArgument("panel", fmt.Sprintf("sawmon panels %s %s alarms", sub, dashboard))
	}

	visible := sub == "show" || sub == "show-all"
	if sub == "show" || sub == "hide" {
		for _, name := range names {
			if err := store.Toggle(ctx, dashboard, name, visible); err != nil {
				return nil, NewCommandError("panels", sub, "backend did not save the change", err)
			}
		}
	} else if err := store.SetPanels(ctx, dashboard, names, visible); err != nil {
		return nil, NewCommandError("panels", sub, "backend did not save the change", err)
	}

	state := "hidden"
	if visible {
		state = "visible"
	}
	a.printf("%s %d panel(s) on %s now %s\n", paint(SuccessStyle, "[OK]"), len(names), dashboard, state)
	return PanelsData{
		Dashboard:  dashboard,
		Visibility: map[string]map[string]bool{dashboard: store.DashboardVisibility(dashboard)},
	}, nil
}

func (a *App) panelsList(store *panels.Store, dashboard string) (any, error) {
	all := store.All()
	dashboards := store.Dashboards()
	if dashboard != "" {
		if _, ok := all[dashboard]; !ok {
			return nil, &NotFoundError{Resource: "dashboard", ID: dashboard}
		}
		dashboards = []string{dashboard}
		all = map[string]map[string]bool{dashboard: all[dashboard]}
	}

	for _, d := range dashboards {
		a.printf("%s\n", paint(TitleStyle, d))
		names := make([]string, 0, len(all[d]))
		for name := range all[d] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			status := "visible"
			if !all[d][name] {
				status = "hidden"
			}
			a.printf("  %s%s\n", RenderLabel(name, 32), status)
		}
	}
	if len(dashboards) == 0 {
		a.printf("%s\n", paint(DimStyle, "No panel visibility stored; every panel is shown."))
	}
	return PanelsData{Dashboard: dashboard, Visibility: all}, nil
}
