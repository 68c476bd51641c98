// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"net/http"
)

type tokenKey struct{}

// WithToken binds a bearer token to ctx. Requests made with that context
// through a Transport carry this token instead of the session's.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token bound by WithToken.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok
}

// TokenSource supplies the current bearer token. Manager implements it.
type TokenSource interface {
	Token() string
}

// Transport is an http.RoundTripper that sets the Authorization header on
// each request from the context token or, failing that, from Source. With
// no token at all, any Authorization header is removed.
type Transport struct {
	Base   http.RoundTripper
	Source TokenSource
}

// NewTransport wraps base. A nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, src TokenSource) *Transport {
	return &Transport{Base: base, Source: src}
}

// RoundTrip implements http.RoundTripper. The caller's request is not modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := TokenFromContext(req.Context())
	if !ok && t.Source != nil {
		token = t.Source.Token()
	}

	out := req.Clone(req.Context())
	if v := authorizationValue(token); v != "" {
		out.Header.Set("Authorization", v)
	} else {
		out.Header.Del("Authorization")
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

func authorizationValue(token string) string {
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
