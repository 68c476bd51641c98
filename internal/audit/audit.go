// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMaxFileSize is the size at which the log is rotated (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Event types.
const (
	EventLogin          = "LOGIN"
	EventLoginFailed    = "LOGIN_FAILED"
	EventLogout         = "LOGOUT"
	EventSessionExpired = "SESSION_EXPIRED"
	EventAccessDenied   = "ACCESS_DENIED"
	EventPasswordChange = "PASSWORD_CHANGE"
	EventUserChange     = "USER_CHANGE"
	EventLockout        = "AUTH_LOCKOUT"
	EventBlocked        = "AUTH_BLOCKED"
	EventUnlock         = "AUTH_UNLOCK"
)

// =============================================================================
// EVENT
// =============================================================================

// Event is one audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      string            `json:"event_type"`
	User      string            `json:"user,omitempty"`
	Role      string            `json:"role,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event as a single human-readable line.
func (e *Event) ToLogLine() string {
	status := "SUCCESS"
	if !e.Success {
		status = "FAILURE"
		if e.Error != "" {
			status = "FAILURE: " + e.Error
		}
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+e.Metadata[k])
	}

	return fmt.Sprintf("%s | %s | %s | %s | %s | %s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		e.Type,
		e.User,
		e.Role,
		status,
		strings.Join(pairs, " "),
	)
}

// Sink receives audit events.
type Sink interface {
	Log(event Event) error
}

type discard struct{}

func (discard) Log(Event) error { return nil }

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

// =============================================================================
// REDACTION
// =============================================================================

var secretPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]+`), "Bearer [TOKEN_REDACTED]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{regexp.MustCompile(`(?i)(password|passwd|pin)\s*[=:]\s*\S+`), "[SECRET_REDACTED]"},
}

// RedactSecrets removes tokens and credentials from s.
func RedactSecrets(s string) string {
	for _, sp := range secretPatterns {
		s = sp.pattern.ReplaceAllString(s, sp.replace)
	}
	return s
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger appends events as JSON lines to a file, rotating it by size.
// It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	maxSize int64
	now     func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithMaxSize sets the rotation threshold. Zero or less disables rotation.
func WithMaxSize(size int64) Option {
	return func(l *Logger) {
		l.maxSize = size
	}
}

// WithClock replaces time.Now for timestamps and rotation names.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// NewLogger opens path for appending, creating it and its directory.
func NewLogger(path string, opts ...Option) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	l := &Logger{
		path:    path,
		file:    file,
		maxSize: DefaultMaxFileSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log writes event. A zero timestamp is set to now; the error text and
// metadata values are redacted.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return errors.New("audit log is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	event.Error = RedactSecrets(event.Error)
	if len(event.Metadata) > 0 {
		clean := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			clean[k] = RedactSecrets(v)
		}
		event.Metadata = clean
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return l.checkRotationLocked()
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// =============================================================================
// FILE ROTATION
// =============================================================================

func (l *Logger) checkRotationLocked() error {
	if l.maxSize <= 0 {
		return nil
	}
	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxSize {
		return nil
	}
	return l.rotateLocked()
}

// rotateLocked renames the current file with a timestamp suffix and
// starts a new one.
func (l *Logger) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log for rotation: %w", err)
	}

	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	rotated := fmt.Sprintf("%s_%s%s", base, l.now().Format("20060102_150405"), ext)

	if err := os.Rename(l.path, rotated); err != nil {
		l.file, _ = os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		return fmt.Errorf("failed to rotate audit log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create new audit log after rotation: %w", err)
	}
	l.file = file
	return nil
}

// =============================================================================
// READING
// =============================================================================

// ReadEvents returns the last limit events in path, oldest first. limit
// <= 0 returns all of them. A missing file has no events; lines that are
// not events are skipped.
func ReadEvents(path string, limit int) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil || e.Type == "" {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) > limit {
			events = events[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
