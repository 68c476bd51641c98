// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/sawmon/internal/access"
	"github.com/jeranaias/sawmon/internal/api"
	"github.com/jeranaias/sawmon/internal/audit"
	"github.com/jeranaias/sawmon/internal/config"
	"github.com/jeranaias/sawmon/internal/lockout"
	"github.com/jeranaias/sawmon/internal/logging"
	"github.com/jeranaias/sawmon/internal/panels"
	"github.com/jeranaias/sawmon/internal/session"
	"github.com/jeranaias/sawmon/internal/storage"
)

// Store file names inside the data directory.
const (
	sqliteStoreName = "session.db"
	fileStoreName   = "session.json"
	keyFileName     = "session.key"
	saltFileName    = "session.salt"
	auditFileName   = "audit.log"
)

// App wires configuration, the local store, the backend client and the
// session together for one CLI invocation. The store and client are opened
// on first use so local-only commands never touch the disk or network.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	in       io.Reader
	stdin    *bufio.Reader
	out      io.Writer
	errOut   io.Writer
	prompter Prompter
	quiet    bool
	now      func() time.Time

	kv        storage.KV
	storePath string
	closers   []io.Closer

	client *api.Client
	mgr    *session.Manager

	auditSink audit.Sink
	tracker   *lockout.Tracker
}

// AppOption configures an App.
type AppOption func(*App)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) AppOption {
	return func(a *App) {
		a.in = in
		a.out = out
		a.errOut = errOut
	}
}

// WithStore uses kv instead of opening the configured store. path is what
// 'session watch' follows and may be empty.
func WithStore(kv storage.KV, path string) AppOption {
	return func(a *App) {
		a.kv = kv
		a.storePath = path
	}
}

// WithAudit sends audit events to sink instead of the configured log.
func WithAudit(sink audit.Sink) AppOption {
	return func(a *App) {
		a.auditSink = sink
	}
}

// WithPrompter replaces the terminal prompter.
func WithPrompter(p Prompter) AppOption {
	return func(a *App) {
		a.prompter = p
	}
}

// NewApp creates an App for cfg. A nil logger discards.
func NewApp(cfg *config.Config, logger *slog.Logger, opts ...AppOption) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.prompter == nil {
		a.prompter = terminalPrompter{out: a.errOut}
	}
	a.stdin = bufio.NewReader(a.in)
	return a
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// printf writes human output unless --quiet or --json is set.
func (a *App) printf(format string, args ...any) {
	if a.quiet {
		return
	}
	fmt.Fprintf(a.out, format, args...)
}

// =============================================================================
// LAZY WIRING
// =============================================================================

// store returns the session store, opening it on first use.
func (a *App) store() (storage.KV, error) {
	if a.kv != nil {
		return a.kv, nil
	}
	kv, path, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.kv = kv
	a.storePath = path
	return kv, nil
}

// openStore opens the configured backend in the data directory, sealed
// when storage.encrypt is set.
func (a *App) openStore() (storage.KV, string, error) {
	dir, err := a.cfg.DataDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve data directory: %w", err)
	}

	var (
		kv   storage.KV
		path string
	)
	switch a.cfg.Storage.Backend {
	case config.BackendFile:
		path = filepath.Join(dir, fileStoreName)
		f, err := storage.OpenFile(path)
		if err != nil {
			return nil, "", err
		}
		kv = f
	default:
		path = filepath.Join(dir, sqliteStoreName)
		db, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, "", err
		}
		a.closers = append(a.closers, db)
		kv = db
	}
	a.logger.Debug("session store opened", "backend", a.cfg.Storage.Backend, "path", path)

	if !a.cfg.Storage.Encrypt {
		return kv, path, nil
	}
	key, err := a.sealingKey(dir)
	if err != nil {
		return nil, "", err
	}
	sealed, err := storage.NewSealedKV(kv, key)
	if err != nil {
		return nil, "", err
	}
	return sealed, path, nil
}

// sealingKey derives the key from the passphrase when one is configured,
// else loads or creates a random key file.
func (a *App) sealingKey(dir string) ([]byte, error) {
	if a.cfg.Storage.Passphrase == "" {
		return storage.LoadOrCreateKey(filepath.Join(dir, keyFileName))
	}
	salt, err := storage.LoadOrCreateKey(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load salt: %w", err)
	}
	return storage.KeyFromPassphrase(a.cfg.Storage.Passphrase, salt), nil
}

// session returns the session manager, building the client and restoring
// the stored session on first use.
func (a *App) session() (*session.Manager, error) {
	if a.mgr != nil {
		return a.mgr, nil
	}
	kv, err := a.store()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(a.cfg.API.BaseURL).
		WithTimeout(time.Duration(a.cfg.API.TimeoutSecs) * time.Second).
		WithMaxRetries(a.cfg.API.MaxRetries).
		WithRateLimit(a.cfg.API.RequestsPerSecond, a.cfg.API.Burst).
		WithLogger(a.logger).
		WithUserAgent("sawmon/" + Version)

	mgr := session.NewManager(client,
		session.WithPersister(session.NewKVPersister(kv)),
		session.WithLogger(a.logger),
	)
	client.WithTokenSource(mgr)

	a.client = client
	a.mgr = mgr
	return mgr, nil
}

// authorized returns the client once the session holds a user allowed to
// use feature.
func (a *App) authorized(action string, feature access.Feature) (*api.Client, error) {
	mgr, err := a.session()
	if err != nil {
		return nil, err
	}
	if !mgr.IsAuthenticated() {
		return nil, ErrNotSignedIn
	}
	if !access.NewEvaluator(mgr).CanAccess(feature) {
		role, _ := mgr.UserRole()
		user := mgr.State().User.Username
		a.logger.Info("access denied", "action", action, "feature", feature, "role", role)
		a.record(audit.Event{
			Type: audit.EventAccessDenied,
			User: user,
			Role: string(role),
			Metadata: map[string]string{
				"action":  action,
				"feature": string(feature),
			},
		})
		return nil, &PermissionError{Action: action, User: user, Feature: string(feature)}
	}
	return a.client, nil
}

// auditLog returns the audit sink, opening the log in the data directory
// on first use. A log that cannot be opened is reported once and events
// are dropped.
func (a *App) auditLog() audit.Sink {
	if a.auditSink != nil {
		return a.auditSink
	}
	a.auditSink = audit.Discard
	if !a.cfg.Audit.Enabled {
		return a.auditSink
	}
	path, err := a.auditFilePath()
	if err != nil {
		a.logger.Warn("audit log disabled", "error", err)
		return a.auditSink
	}
	l, err := audit.NewLogger(path,
		audit.WithMaxSize(int64(a.cfg.Audit.MaxSizeMB)<<20))
	if err != nil {
		a.logger.Warn("audit log disabled", "error", err)
		return a.auditSink
	}
	a.closers = append(a.closers, l)
	a.auditSink = l
	return l
}

// auditFilePath is where the audit log lives for this configuration.
func (a *App) auditFilePath() (string, error) {
	dir, err := a.cfg.DataDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return filepath.Join(dir, auditFileName), nil
}

// record writes an audit event; failures are logged and otherwise ignored.
func (a *App) record(e audit.Event) {
	if err := a.auditLog().Log(e); err != nil {
		a.logger.Warn("failed to write audit event", "type", e.Type, "error", err)
	}
}

// lockoutTracker returns the sign-in throttle over the session store.
func (a *App) lockoutTracker() (*lockout.Tracker, error) {
	if a.tracker != nil {
		return a.tracker, nil
	}
	kv, err := a.store()
	if err != nil {
		return nil, err
	}
	a.tracker = lockout.NewTracker(kv,
		lockout.WithMaxAttempts(a.cfg.Auth.MaxAttempts),
		lockout.WithDuration(time.Duration(a.cfg.Auth.LockoutSecs)*time.Second),
		lockout.WithAudit(a.auditLog()),
		lockout.WithLogger(a.logger),
		lockout.WithClock(a.now),
	)
	return a.tracker, nil
}

// panelStore returns a panel store over the backend and the session store.
func (a *App) panelStore(client *api.Client) (*panels.Store, error) {
	kv, err := a.store()
	if err != nil {
		return nil, err
	}
	return panels.NewStore(client, kv, panels.WithLogger(a.logger)), nil
}
