// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lockout throttles sign-in attempts on this machine.
//
// After MaxAttempts rejected sign-ins for the same identifier, further
// attempts are refused locally until the lockout expires or a service or
// admin user clears it. The backend remains the authority on credentials;
// this only keeps a workstation from being used to guess them.
package lockout

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/sawmon/internal/audit"
	"github.com/jeranaias/sawmon/internal/logging"
	"github.com/jeranaias/sawmon/internal/storage"
)

const (
	// DefaultMaxAttempts is the number of rejected attempts before lockout.
	DefaultMaxAttempts = 5

	// DefaultDuration is how long a lockout lasts.
	DefaultDuration = 15 * time.Minute

	// StateKey is the store key holding every attempt record.
	StateKey = "login_attempts"

	// PinIdentifier is shared by all PIN sign-ins; a PIN names no user.
	PinIdentifier = "pin"
)

// ErrLocked matches every *LockedError.
var ErrLocked = errors.New("sign-in locked")

// ErrNotLocked is returned by Unlock for an identifier with no record.
var ErrNotLocked = errors.New("no failed attempts recorded")

// LockedError is returned while an identifier is locked out.
type LockedError struct {
	Identifier string
	Until      time.Time
	Remaining  time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed sign-in attempts for %s; try again in %s",
		e.Identifier, e.Remaining.Round(time.Second))
}

func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// =============================================================================
// ATTEMPT RECORD
// =============================================================================

// Record tracks rejected attempts for one identifier.
type Record struct {
	// Count is the number of consecutive rejected attempts.
	Count        int       `json:"count"`
	FirstAttempt time.Time `json:"first_attempt"`
	LastAttempt  time.Time `json:"last_attempt"`
	// LockedUntil is zero when the identifier has never been locked.
	LockedUntil  time.Time `json:"locked_until,omitempty"`
	LockoutCount int       `json:"lockout_count,omitempty"`
}

// Locked reports whether the lockout is still running at now.
func (r Record) Locked(now time.Time) bool {
	return now.Before(r.LockedUntil)
}

// Remaining is the time left on the lockout, or 0.
func (r Record) Remaining(now time.Time) time.Duration {
	if !r.Locked(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker records sign-in outcomes in a storage.KV so every sawmon process
// on the machine sees the same counts.
type Tracker struct {
	mu          sync.Mutex
	kv          storage.KV
	maxAttempts int
	duration    time.Duration
	audit       audit.Sink
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxAttempts sets the rejected attempts allowed before lockout.
// 0 turns the lockout off.
func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n >= 0 {
			t.maxAttempts = n
		}
	}
}

// WithDuration sets how long a lockout lasts.
func WithDuration(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.duration = d
		}
	}
}

// WithAudit sends lockout events to sink.
func WithAudit(sink audit.Sink) Option {
	return func(t *Tracker) {
		t.audit = sink
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker over kv.
func NewTracker(kv storage.KV, opts ...Option) *Tracker {
	t := &Tracker{
		kv:          kv,
		maxAttempts: DefaultMaxAttempts,
		duration:    DefaultDuration,
		audit:       audit.Discard,
		logger:      logging.Discard(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enabled reports whether attempts are being limited.
func (t *Tracker) Enabled() bool {
	return t.maxAttempts > 0
}

// Check returns a *LockedError when id may not attempt a sign-in now.
func (t *Tracker) Check(id string) error {
	if !t.Enabled() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.loadLocked()[id]
	if !ok || !rec.Locked(now) {
		return nil
	}
	t.event(audit.Event{
		Type:     audit.EventBlocked,
		User:     id,
		Metadata: map[string]string{"locked_until": rec.LockedUntil.UTC().Format(time.RFC3339)},
	})
	return &LockedError{Identifier: id, Until: rec.LockedUntil, Remaining: rec.Remaining(now)}
}

// RecordFailure counts a rejected attempt and starts a lockout when the
// limit is reached. It returns the updated record.
func (t *Tracker) RecordFailure(id string) Record {
	if !t.Enabled() {
		return Record{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	records := t.loadLocked()
	rec := records[id]

	// An expired lockout starts a fresh series.
	if !rec.LockedUntil.IsZero() && !rec.Locked(now) {
		rec.Count = 0
		rec.LockedUntil = time.Time{}
	}
	if rec.Count == 0 {
		rec.FirstAttempt = now
	}
	rec.Count++
	rec.LastAttempt = now

	if rec.Count >= t.maxAttempts {
		rec.LockedUntil = now.Add(t.duration)
		rec.LockoutCount++
		t.logger.Warn("sign-in locked", "identifier", id, "until", rec.LockedUntil)
		t.event(audit.Event{
			Type: audit.EventLockout,
			User: id,
			Metadata: map[string]string{
				"attempts": strconv.Itoa(rec.Count),
				"duration": t.duration.String(),
				"lockouts": strconv.Itoa(rec.LockoutCount),
			},
		})
	}

	records[id] = rec
	t.saveLocked(records)
	return rec
}

// RecordSuccess forgets the identifier's failures.
func (t *Tracker) RecordSuccess(id string) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.loadLocked()
	if _, ok := records[id]; !ok {
		return
	}
	delete(records, id)
	t.saveLocked(records)
}

// Unlock clears the identifier's record. by names who cleared it.
func (t *Tracker) Unlock(id, by string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.loadLocked()
	if _, ok := records[id]; !ok {
		return fmt.Errorf("%w for %s", ErrNotLocked, id)
	}
	delete(records, id)
	t.saveLocked(records)

	t.event(audit.Event{
		Type:     audit.EventUnlock,
		User:     by,
		Success:  true,
		Metadata: map[string]string{"identifier": id},
	})
	return nil
}

// Status returns every record, keyed by identifier.
func (t *Tracker) Status() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked()
}

// Identifiers returns the recorded identifiers, sorted.
func (t *Tracker) Identifiers() []string {
	records := t.Status()
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// loadLocked reads the records. A missing or unreadable state counts as
// no failures; the next save replaces it.
func (t *Tracker) loadLocked() map[string]Record {
	records := make(map[string]Record)
	raw, err := t.kv.Get(StateKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			t.logger.Warn("failed to load sign-in attempts", "error", err)
		}
		return records
	}
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.logger.Warn("discarding unreadable sign-in attempts", "error", err)
		return make(map[string]Record)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	return records
}

func (t *Tracker) saveLocked(records map[string]Record) {
	var err error
	if len(records) == 0 {
		err = t.kv.Delete(StateKey)
	} else {
		var raw []byte
		if raw, err = json.Marshal(records); err == nil {
			err = t.kv.Set(StateKey, string(raw))
		}
	}
	if err != nil {
		t.logger.Warn("failed to save sign-in attempts", "error", err)
	}
}

func (t *Tracker) event(e audit.Event) {
	if err := t.audit.Log(e); err != nil {
		t.logger.Warn("failed to write audit event", "type", e.Type, "error", err)
	}
}
