// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource string

func (s staticSource) Token() string { return string(s) }

func authEcho(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Auth", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, client *http.Client, req *http.Request) string {
	t.Helper()
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.Header.Get("X-Seen-Auth")
}

func TestTransport_UsesSourceToken(t *testing.T) {
	srv := authEcho(t)
	client := &http.Client{Transport: NewTransport(nil, staticSource("abc"))}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", doRequest(t, client, req))
	assert.Empty(t, req.Header.Get("Authorization"), "caller request untouched")
}

func TestTransport_ContextTokenWins(t *testing.T) {
	srv := authEcho(t)
	client := &http.Client{Transport: NewTransport(nil, staticSource("session"))}

	req, err := http.NewRequestWithContext(WithToken(context.Background(), "fresh"), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", doRequest(t, client, req))
}

func TestTransport_NoTokenStripsHeader(t *testing.T) {
	srv := authEcho(t)
	client := &http.Client{Transport: NewTransport(http.DefaultTransport, staticSource(""))}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer stale")
	assert.Empty(t, doRequest(t, client, req))
}

func TestTransport_FollowsManagerState(t *testing.T) {
	srv := authEcho(t)
	m, _ := newTestManager(t, okAuth())
	client := &http.Client{Transport: NewTransport(nil, m)}

	get := func() string {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		return doRequest(t, client, req)
	}

	assert.Empty(t, get())
	require.NoError(t, m.Login(context.Background(), "alice", "pw"))
	assert.Equal(t, "Bearer tok-alice", get())
	m.Logout()
	assert.Empty(t, get())
}
