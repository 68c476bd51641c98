// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing shared by all sawmon commands.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits a command's arguments into flags and positionals.
// It handles these formats:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: arguments without flags
//   - Subcommands: first positional argument
//
// A flag named in boolFlags never consumes the following argument, so
// "login --pin 1234" keeps 1234 as a positional.
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

// NewArgParser parses raw. boolFlags lists flag names (without dashes)
// that never take a value.
//
// Example:
//
//	p := NewArgParser([]string{"create", "--role", "user", "--password-stdin"}, "password-stdin")
//	p.Subcommand()               // "create"
//	p.Flag("role")               // "user"
//	p.BoolFlag("password-stdin") // true
func NewArgParser(raw []string, boolFlags ...string) *ArgParser {
	parser := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0),
		raw:        raw,
	}
	isBool := make(map[string]bool, len(boolFlags))
	for _, name := range boolFlags {
		isBool[strings.TrimLeft(name, "-")] = true
	}

	i := 0
	for i < len(raw) {
		arg := raw[i]

		// "-" is a positional meaning stdin; "--" ends flag parsing.
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			parser.positional = append(parser.positional, arg)
			i++
			continue
		}
		if arg == "--" {
			parser.positional = append(parser.positional, raw[i+1:]...)
			break
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			flagName := strings.TrimLeft(name, "-")
			if value == "true" || value == "false" {
				parser.boolFlags[flagName] = value == "true"
			} else {
				parser.flags[flagName] = value
			}
			i++
			continue
		}

		flagName := strings.TrimLeft(arg, "-")
		if !isBool[flagName] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			parser.flags[flagName] = raw[i+1]
			i += 2
			continue
		}
		parser.boolFlags[flagName] = true
		i++
	}

	if len(parser.positional) > 0 {
		parser.subcommand = parser.positional[0]
	}

	return parser
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the value of a string flag, or "" if absent.
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagOrDefault returns the flag value or a default if not found.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if val := p.Flag(name); val != "" {
		return val
	}
	return defaultValue
}

// BoolFlag returns the value of a boolean flag; absent means false.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// Positional returns the positional argument at index, or "".
// Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns all positional arguments starting from index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag returns true if the flag exists as a string or bool flag.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Raw returns the original raw arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// =============================================================================
// HELPER FUNCTIONS FOR COMMON ARG PATTERNS
// =============================================================================

// ParseID parses a positive numeric account id.
func ParseID(s string) (int64, error) {
	if s == "" {
		return 0, ErrMissingArgument("id", "sawmon users delete 42")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewValidationErrorWithExample("id", s, "must be a positive integer", "42")
	}
	return id, nil
}

// ParseBoolString parses a boolean from various string representations.
// Accepts: true/false, yes/no, y/n, 1/0, on/off (case-insensitive)
func ParseBoolString(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}
