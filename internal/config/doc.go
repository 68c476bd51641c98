// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the sawmon configuration.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: the [api], [storage] and [log] sections
//   - ValidationError / ValidateErrors: every invalid setting at once
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SAWMON_*)
//   - ~/.sawmon/config.toml
//   - ~/.sawmon/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := api.NewClient(cfg.API.BaseURL)
package config
