// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for sawmon.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Display current configuration
//   path                Show configuration file path
//   keys                List settable keys
//   get <key>           Print one value
//   set <key> <value>   Change one value and save
//
// Examples:
//   sawmon config set api.base_url http://saw-01:8000
//   sawmon config set storage.backend file
//   sawmon config set storage.encrypt true
//   sawmon config get log.level
package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/sawmon/internal/config"
)

// ConfigData is what config show returns in --json mode.
type ConfigData struct {
	Config *config.Config `json:"config"`
	Path   string         `json:"config_path"`
}

func (a *App) handleConfig(_ context.Context, args Args) (any, error) {
	p := args.Parser()
	sub := p.Subcommand()

	switch sub {
	case "", "show":
		return a.configShow(args)
	case "path":
		path, err := a.configPath(args)
		if err != nil {
			return nil, err
		}
		a.printf("%s\n", path)
		return map[string]string{"config_path": path}, nil
	case "keys":
		keys := config.GetAllKeys()
		for _, k := range keys {
			a.printf("%s\n", k)
		}
		return keys, nil
	case "get":
		key := p.Positional(1)
		if key == "" {
			return nil, ErrMissingArgument("key", "sawmon config get api.base_url")
		}
		value, err := a.cfg.Get(key)
		if err != nil {
			return nil, NewValidationError("key", key, err.Error())
		}
		if key == "storage.passphrase" && value != "" {
			value = "[REDACTED]"
		}
		a.printf("%v\n", value)
		return map[string]any{key: value}, nil
	case "set":
		return a.configSet(args, p.Positional(1), p.Positional(2))
	}
	return nil, ErrUnknownSubcommand("config", sub, "sawmon config show|path|keys|get|set")
}

func (a *App) configShow(args Args) (any, error) {
	path, err := a.configPath(args)
	if err != nil {
		return nil, err
	}
	if args.JSON {
		safe := a.cfg.Clone()
		if safe.Storage.Passphrase != "" {
			safe.Storage.Passphrase = "[REDACTED]"
		}
		return ConfigData{Config: safe, Path: path}, nil
	}

	a.printf("%s\n", paint(TitleStyle, "sawmon configuration"))
	a.printf("%s%s\n\n", RenderLabel("File:"), path)
	a.printf("%s\n", a.cfg.String())
	return nil, nil
}

// configSet changes one key on a fresh copy of the file, so environment
// overrides in effect for this run are not written back.
func (a *App) configSet(args Args, key, value string) (any, error) {
	if key == "" || value == "" {
		return nil, ErrMissingArgument("key and value", "sawmon config set api.base_url http://saw-01:8000")
	}

	path, err := a.configPath(args)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if err := loadConfigFile(cfg, path); err != nil {
		return nil, err
	}

	if err := cfg.Set(key, value); err != nil {
		return nil, NewValidationError("key", key, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return nil, err
	}

	a.printf("%s %s updated\n", paint(SuccessStyle, "[OK]"), key)
	return map[string]string{"key": key, "config_path": path}, nil
}

// configPath returns --config when given, else the default TOML path.
func (a *App) configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}
