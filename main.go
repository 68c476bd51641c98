// sawmon - Command-line client for the bandsaw monitoring dashboard.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/sawmon/internal/cli"
	"github.com/jeranaias/sawmon/internal/config"
	"github.com/jeranaias/sawmon/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args := cli.Parse(os.Args[1:])

	cfg, err := loadConfig(args.ConfigPath)
	if err != nil {
		// Local commands still work on defaults; backend commands would act
		// on settings the user did not ask for.
		if cfg == nil || !localCommand(cmd) {
			cli.DisplayError(os.Stderr, err)
			return cli.ExitConfigError
		}
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format, os.Stderr)
	if err != nil {
		cli.DisplayError(os.Stderr, err)
		return cli.ExitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, logger)
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}()

	return cli.Run(ctx, app, cmd, args)
}

// loadConfig loads path when given, else the default locations. On a load
// error the defaults are returned along with it.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return config.Default(), err
	}
	return cfg, nil
}

// localCommand reports whether cmd runs without the backend.
func localCommand(cmd cli.Command) bool {
	switch cmd {
	case cli.CmdConfig, cli.CmdVersion, cli.CmdHelp, cli.CmdPolicy, cli.CmdUnknown:
		return true
	}
	return false
}
