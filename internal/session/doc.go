// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authentication token and the signed-in user.
//
// A session is authenticated when both a bearer token and a user profile
// are present. They are set and cleared together; the only moment one
// exists without the other is between the token exchange and the profile
// fetch of a login.
//
// # Key Types
//
//   - State: token, user, last login error and the loading flag
//   - Reduce: pure state transitions, no I/O
//   - Persister: durable storage adapter (KVPersister on storage.KV)
//   - Manager: login, PIN login, logout, refresh and rehydration
//   - Transport: http.RoundTripper that attaches the bearer token per request
//
// # Usage
//
//	mgr := session.NewManager(apiClient,
//	    session.WithPersister(session.NewKVPersister(kv)),
//	    session.WithLogger(logger),
//	)
//
//	if err := mgr.Login(ctx, "anna", "secret"); err != nil {
//	    fmt.Println(mgr.LoginError()) // message for display
//	}
//
//	httpClient := &http.Client{Transport: session.NewTransport(nil, mgr)}
//
// # Concurrency
//
// Manager is safe for concurrent use. Overlapping logins are resolved by
// generation: the most recently started attempt (or a logout issued after
// it) wins, and older attempts return ErrSuperseded without touching state.
package session
