// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/sawmon/internal/util"
)

const (
	// sealedPrefix marks values written by SealedKV.
	sealedPrefix = "v1:"

	// KeySize is the size of a sealing key in bytes.
	KeySize = chacha20poly1305.KeySize

	pbkdf2Iterations = 210000
)

// ErrCorrupt is returned when a sealed value cannot be opened.
var ErrCorrupt = errors.New("stored value is corrupt or was sealed with another key")

// SealedKV encrypts values with XChaCha20-Poly1305 before handing them to
// the wrapped store. Keys are stored in clear text and bound to their value
// as additional data, so a value copied under another key fails to open.
type SealedKV struct {
	inner KV
	key   []byte
}

// NewSealedKV wraps inner. key must be KeySize bytes.
func NewSealedKV(inner KV, key []byte) (*SealedKV, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &SealedKV{inner: inner, key: k}, nil
}

// Get implements KV.
func (s *SealedKV) Get(key string) (string, error) {
	raw, err := s.inner.Get(key)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(raw, sealedPrefix) {
		return "", ErrCorrupt
	}
	blob, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil {
		return "", ErrCorrupt
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(blob) < aead.NonceSize() {
		return "", ErrCorrupt
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

// Set implements KV.
func (s *SealedKV) Set(key, value string) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	blob := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(key, sealedPrefix+base64.StdEncoding.EncodeToString(blob))
}

// Delete implements KV.
func (s *SealedKV) Delete(key string) error {
	return s.inner.Delete(key)
}

// KeyFromPassphrase derives a sealing key with PBKDF2-SHA256.
func KeyFromPassphrase(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, KeySize, sha256.New)
}

// LoadOrCreateKey reads a raw sealing key from path, generating one with
// 0600 permissions on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("key file %s has %d bytes, want %d", path, len(key), KeySize)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := util.AtomicWriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}
