// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents a CLI command type.
type Command int

const (
	CmdUnknown Command = iota
	CmdLogin
	CmdLogout
	CmdWhoami
	CmdRefresh
	CmdPasswd
	CmdCan
	CmdPolicy
	CmdRoute
	CmdUsers
	CmdStats
	CmdDatasources
	CmdPanels
	CmdSession
	CmdAudit
	CmdLockout
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdUnknown:     "unknown",
	CmdLogin:       "login",
	CmdLogout:      "logout",
	CmdWhoami:      "whoami",
	CmdRefresh:     "refresh",
	CmdPasswd:      "passwd",
	CmdCan:         "can",
	CmdPolicy:      "policy",
	CmdRoute:       "route",
	CmdUsers:       "users",
	CmdStats:       "stats",
	CmdDatasources: "datasources",
	CmdPanels:      "panels",
	CmdSession:     "session",
	CmdAudit:       "audit",
	CmdLockout:     "lockout",
	CmdConfig:      "config",
	CmdVersion:     "version",
	CmdHelp:        "help",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds the parsed command-line arguments.
type Args struct {
	// Global flags
	JSON       bool
	Quiet      bool
	Verbose    bool
	ConfigPath string

	// Name is the command word as typed, kept for suggestions.
	Name string

	// Raw holds everything after the command word, unparsed.
	Raw []string
}

// Parser returns an ArgParser over the command's arguments.
func (a Args) Parser(boolFlags ...string) *ArgParser {
	return NewArgParser(a.Raw, boolFlags...)
}

const usageText = `sawmon - Bandsaw dashboard client

USAGE:
  sawmon [global flags] <command> [arguments]

SESSION:
  login [--username U] [--password-stdin]   Sign in with username and password
  login --pin [PIN]                         Sign in with an operator PIN
  logout                                    Sign out and forget the session
  whoami                                    Show the signed-in user
  refresh                                   Re-fetch the profile; ends a dead session
  passwd [--password-stdin]                 Change your password
  session watch                             Follow session changes made elsewhere

ACCESS:
  can [--as ROLE] FEATURE...                Check features for the current user
  policy [--yaml]                           Print the role/feature matrix
  route [--as ROLE] PATH                    Show what the router does with PATH

BACKEND:
  users list|roles                          List accounts or assignable roles
  users create --username U --role R [--full-name N] [--password-stdin]
  users update ID [--username U] [--full-name N] [--role R] [--active=BOOL]
  users delete ID [--confirm]
  users reset-password ID [--password-stdin]
  users set-pin ID [PIN] | users clear-pin ID
  stats tools|effectivity|programs|alarms   Dashboard data
  stats time-ranges [set FILE]              Show or replace default time ranges
  datasources [VIEW]                        list, influxdb, client, grafana,
                                            default, validate, connection-string
  panels list [DASHBOARD]                   Show panel visibility
  panels show|hide DASHBOARD PANEL...       Toggle panels
  panels show-all|hide-all DASHBOARD PANEL...

LOCAL:
  audit [show] [--limit N] | audit path     Review the local audit trail (admin)
  lockout [status]                          List throttled sign-in identifiers
  lockout clear ID                          Lift a lockout (needs users feature)
  config show|path|keys                     Inspect configuration
  config get KEY | config set KEY VALUE     Read or change one setting
  version                                   Show version information
  help                                      Show this help

GLOBAL FLAGS:
  --json            Machine-readable output
  -q, --quiet       Only print errors
  -v, --verbose     Debug logging to stderr
  --config PATH     Use a specific config file

EXIT CODES:
  0 ok, 1 error, 2 usage, 3 config, 4 auth or permission,
  5 network, 6 security, 7 not found, 8 timeout
`

// PrintUsage writes the help text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "sawmon %s\n", Version)
	fmt.Fprintf(w, "  Commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:     %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdHelp, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	parsedArgs.Name = cmd
	parsedArgs.Raw = remaining[1:]

	switch cmd {
	case "login", "signin":
		return CmdLogin, parsedArgs
	case "logout", "signout":
		return CmdLogout, parsedArgs
	case "whoami", "me":
		return CmdWhoami, parsedArgs
	case "refresh":
		return CmdRefresh, parsedArgs
	case "passwd", "password":
		return CmdPasswd, parsedArgs
	case "can":
		return CmdCan, parsedArgs
	case "policy", "matrix":
		return CmdPolicy, parsedArgs
	case "route":
		return CmdRoute, parsedArgs
	case "users", "user":
		return CmdUsers, parsedArgs
	case "stats":
		return CmdStats, parsedArgs
	case "datasources", "datasource", "ds":
		return CmdDatasources, parsedArgs
	case "panels", "panel":
		return CmdPanels, parsedArgs
	case "session":
		return CmdSession, parsedArgs
	case "audit":
		return CmdAudit, parsedArgs
	case "lockout", "lockouts":
		return CmdLockout, parsedArgs
	case "config":
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
// Global flags may appear anywhere on the line.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--json":
			parsedArgs.JSON = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			if strings.HasPrefix(arg, "--config=") {
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

// =============================================================================
// DISPATCH
// =============================================================================

// handlerFunc runs one command. Human output is written by the handler;
// the returned data is what --json mode prints.
type handlerFunc func(ctx context.Context, args Args) (any, error)

func (a *App) handler(cmd Command) handlerFunc {
	switch cmd {
	case CmdLogin:
		return a.handleLogin
	case CmdLogout:
		return a.handleLogout
	case CmdWhoami:
		return a.handleWhoami
	case CmdRefresh:
		return a.handleRefresh
	case CmdPasswd:
		return a.handlePasswd
	case CmdCan:
		return a.handleCan
	case CmdPolicy:
		return a.handlePolicy
	case CmdRoute:
		return a.handleRoute
	case CmdUsers:
		return a.handleUsers
	case CmdStats:
		return a.handleStats
	case CmdDatasources:
		return a.handleDatasources
	case CmdPanels:
		return a.handlePanels
	case CmdSession:
		return a.handleSession
	case CmdAudit:
		return a.handleAudit
	case CmdLockout:
		return a.handleLockout
	case CmdConfig:
		return a.handleConfig
	case CmdVersion:
		return a.handleVersion
	case CmdHelp:
		return a.handleHelp
	}
	return a.handleUnknown
}

// Run executes cmd and returns the process exit code.
func Run(ctx context.Context, app *App, cmd Command, args Args) int {
	app.quiet = args.Quiet || args.JSON

	data, err := app.handler(cmd)(ctx, args)

	if args.JSON {
		name := cmd.String()
		if cmd == CmdUnknown {
			name = args.Name
		}
		var resp *JSONResponse
		if err != nil {
			resp = NewJSONErrorResponse(name, err)
		} else {
			resp = NewJSONResponse(name, data)
		}
		if perr := resp.Print(app.out); perr != nil && err == nil {
			err = perr
		}
		return GetExitCode(err)
	}

	if err != nil {
		DisplayError(app.errOut, err)
	}
	return GetExitCode(err)
}

func (a *App) handleVersion(_ context.Context, args Args) (any, error) {
	if !args.JSON {
		PrintVersion(a.out)
	}
	return VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}, nil
}

func (a *App) handleHelp(_ context.Context, args Args) (any, error) {
	if !args.JSON {
		PrintUsage(a.out)
	}
	return map[string]string{"usage": usageText}, nil
}

func (a *App) handleUnknown(_ context.Context, args Args) (any, error) {
	if args.Name == "" {
		return nil, ErrMissingArgument("command", "sawmon help")
	}
	err := &ValidationError{Field: "command", Value: args.Name, Reason: "unknown command"}
	if suggestion := SuggestCommand(args.Name); suggestion != "" {
		err.Example = "sawmon " + suggestion
	}
	return nil, err
}
