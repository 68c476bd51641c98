// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/sawmon/internal/config"
)

// formatDuration formats a time.Duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// loadConfigFile decodes path into cfg by extension. A missing file leaves
// cfg untouched.
func loadConfigFile(cfg *config.Config, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if strings.HasSuffix(path, ".json") {
		return config.LoadJSON(cfg, path)
	}
	return config.LoadTOML(cfg, path)
}

// saveConfigFile writes cfg to path by extension.
func saveConfigFile(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
