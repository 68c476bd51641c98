// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit keeps a local, append-only trail of session and access
// events: sign-ins and their failures, sign-outs, denied commands, local
// lockouts and account changes made from this machine.
//
// Events are JSON lines. Tokens, JWTs and password or PIN assignments are
// redacted before they reach the file.
package audit
