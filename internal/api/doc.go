// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the bandsaw monitoring backend.
//
// The client never holds credentials itself. Its http.Client goes through
// session.Transport, which attaches the bearer token of the current
// session (or of the request context) to each outgoing request.
//
// # Key Types
//
//   - Client: endpoints for auth, users, dashboard data, datasources and
//     panel visibility, with retries, rate limiting and a response size cap
//   - Error: non-2xx response; Detail() is the backend's display message
//
// # Usage
//
//	client := api.NewClient("http://localhost:8000").
//	    WithTimeout(15 * time.Second).
//	    WithLogger(logger)
//	mgr := session.NewManager(client, session.WithPersister(p))
//	client.WithTokenSource(mgr)
//
// Client implements session.Authenticator and panels.Backend.
package api
