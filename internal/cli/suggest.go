// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands lists every command word Parse accepts.
var validCommands = []string{
	"login", "logout", "whoami", "refresh", "passwd",
	"can", "policy", "route",
	"users", "stats", "datasources", "panels",
	"session", "audit", "lockout", "config", "version", "help",
	// Aliases
	"signin", "signout", "me", "password", "matrix",
	"user", "datasource", "ds", "panel", "lockouts",
}

// SuggestCommand returns the closest valid command to input, or "" when
// nothing is close enough. Short inputs tolerate one edit, longer ones two
// or three.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := maxDistance + 1
	for _, cmd := range validCommands {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-rune insertions, deletions or
// substitutions that turn s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
