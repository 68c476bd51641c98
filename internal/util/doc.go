// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across sawmon.
//
//   - AtomicWriteFile: crash-safe file writes (temp file, fsync, rename)
//   - Truncate, PadRight: display-width aware text for CLI tables
package util
