// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package routes decides whether the current session may open a dashboard
// page. Each page is bound to an access.Feature; public pages such as the
// sign-in form need no session.
package routes
