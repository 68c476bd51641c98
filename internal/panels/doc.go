// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package panels tracks which dashboard panels a user has hidden.
//
// Visibility is a map of dashboard to panel id to bool. Panels without an
// entry are visible. The map is cached in a storage.KV so it survives
// restarts and is available when the backend is not, and every change is
// pushed to the backend one dashboard at a time.
package panels
