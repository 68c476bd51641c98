// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable key-value persistence for sawmon.
//
// The session and the panel visibility cache survive process restarts by
// writing a handful of string keys to a KV backend.
//
// # Key Types
//
//   - KV: the key-value interface every backend implements
//   - SQLiteKV: default backend, a single "kv" table in a SQLite file
//   - FileKV: one JSON file, written atomically
//   - SealedKV: wraps another KV and encrypts values at rest
//   - MemoryKV: in-process map, used by tests and as a last resort
//
// # Usage
//
//	kv, err := storage.OpenSQLite(filepath.Join(dataDir, "sawmon.db"))
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	err = kv.Set("auth_token", token)
//	token, err := kv.Get("auth_token") // ErrNotFound when absent
//
// # Storage Location
//
// Data lives in ~/.sawmon/ unless storage.data_dir says otherwise.
package storage
