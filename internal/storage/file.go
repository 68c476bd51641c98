// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/sawmon/internal/util"
)

// FileKV keeps all keys in one JSON object on disk. Every write rewrites the
// file atomically, so a crash leaves either the old or the new contents.
// Each operation re-reads the file first, so other processes sharing the
// path see each other's writes.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// OpenFile opens the store at path. A missing file is an empty store; an
// unreadable one is an error.
func OpenFile(path string) (*FileKV, error) {
	f := &FileKV{path: path}
	if _, err := f.readLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the backing file path.
func (f *FileKV) Path() string {
	return f.path
}

// Get implements KV.
func (f *FileKV) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements KV.
func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		return err
	}
	data[key] = value
	return f.writeLocked(data)
}

// Delete implements KV.
func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.writeLocked(data)
}

// readLocked returns the current file contents.
func (f *FileKV) readLocked() (map[string]string, error) {
	data := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode store %s: %w", f.path, err)
	}
	if data == nil {
		data = make(map[string]string)
	}
	return data, nil
}

func (f *FileKV) writeLocked(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if err := util.AtomicWriteFile(f.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}
