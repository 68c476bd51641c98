// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/sawmon/internal/storage"
)

// Storage keys for the persisted session.
const (
	TokenKey = "auth_token"
	UserKey  = "auth_user"
)

// Persister stores the session durably so a restart can pick it up again.
type Persister interface {
	// Load returns whatever is stored. A missing entry is not an error.
	Load() (token string, user *UserProfile, err error)
	SaveToken(token string) error
	RemoveToken() error
	SaveUser(user UserProfile) error
	RemoveUser() error
}

// KVPersister keeps the token as a plain string and the user as JSON.
type KVPersister struct {
	kv storage.KV
}

// NewKVPersister creates a persister backed by kv.
func NewKVPersister(kv storage.KV) *KVPersister {
	return &KVPersister{kv: kv}
}

var errEmptyUser = errors.New("stored user is empty")

// Load implements Persister. A user record that fails to decode, or that
// names no user, is reported as an error along with a nil user.
func (p *KVPersister) Load() (string, *UserProfile, error) {
	token, err := p.kv.Get(TokenKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", nil, fmt.Errorf("failed to load token: %w", err)
	}

	raw, err := p.kv.Get(UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		return token, nil, nil
	}
	if err != nil {
		return token, nil, fmt.Errorf("failed to load user: %w", err)
	}

	var user UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return token, nil, fmt.Errorf("failed to decode stored user: %w", err)
	}
	// JSON null decodes to a zero profile; it names nobody.
	if user.Username == "" && user.Role == "" {
		return token, nil, errEmptyUser
	}
	return token, &user, nil
}

// SaveToken implements Persister.
func (p *KVPersister) SaveToken(token string) error {
	return p.kv.Set(TokenKey, token)
}

// RemoveToken implements Persister.
func (p *KVPersister) RemoveToken() error {
	return p.kv.Delete(TokenKey)
}

// SaveUser implements Persister.
func (p *KVPersister) SaveUser(user UserProfile) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return p.kv.Set(UserKey, string(raw))
}

// RemoveUser implements Persister.
func (p *KVPersister) RemoveUser() error {
	return p.kv.Delete(UserKey)
}
