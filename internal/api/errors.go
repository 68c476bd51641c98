// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Sentinel errors matched by Error.Unwrap for the common statuses.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrTooLarge     = errors.New("response too large")
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status    int
	Method    string
	Path      string
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
}

// Detail returns the backend's message, suitable for display.
func (e *Error) Detail() string {
	return e.Message
}

// Unwrap maps the status to a sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return ErrForbidden
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServer
	}
	return nil
}

// errorBody is the backend's error envelope. detail is either a string or
// a list of validation problems.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationProblem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail extracts a display message from an error body. Bodies that
// are not JSON are used verbatim when short.
func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}

	var problems []validationProblem
	if err := json.Unmarshal(eb.Detail, &problems); err == nil {
		msgs := make([]string, 0, len(problems))
		for _, p := range problems {
			if p.Msg == "" {
				continue
			}
			if field := lastLoc(p.Loc); field != "" {
				msgs = append(msgs, field+": "+p.Msg)
			} else {
				msgs = append(msgs, p.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func lastLoc(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok {
		return s
	}
	return ""
}

// isRetryable reports whether a request that failed with err may be sent
// again: a 5xx, a 429, or a transport failure that was not a cancellation.
func isRetryable(err error) bool {
	if errors.Is(err, ErrServer) || errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
