// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for sawmon.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global flags
//   - App: The wiring of config, session store, backend client, audit log
//     and sign-in lockout
//   - JSONResponse: The envelope printed in --json mode
//
// # Usage
//
// Parse and execute commands:
//
//	cmd, args := cli.Parse(os.Args[1:])
//	app := cli.NewApp(cfg, logger)
//	defer app.Close()
//	os.Exit(cli.Run(ctx, app, cmd, args))
//
// # Commands Overview
//
// Session: login, logout, whoami, refresh, passwd, session watch
//
// Access: can, policy, route
//
// Backend: users, stats, datasources, panels
//
// Local: audit, lockout, config, version, help
//
// Every command supports --json for machine-parseable output. Exit codes
// are listed in errors.go.
package cli
