// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/sawmon/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete sawmon configuration.
type Config struct {
	API     APIConfig     `toml:"api" json:"api"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	Auth    AuthConfig    `toml:"auth" json:"auth"`
	Audit   AuditConfig   `toml:"audit" json:"audit"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// APIConfig describes how to reach the backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8000
	BaseURL string `toml:"base_url" json:"base_url"`
	// TimeoutSecs bounds a single HTTP attempt.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// MaxRetries is the number of attempts for idempotent requests.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RequestsPerSecond caps outgoing requests; 0 disables the cap.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the number of requests allowed at once under the cap.
	Burst int `toml:"burst" json:"burst"`
}

// StorageConfig describes where the session and caches are kept.
type StorageConfig struct {
	// DataDir holds the session store (empty = config directory).
	DataDir string `toml:"data_dir" json:"data_dir"`
	// Backend is "sqlite" or "file".
	Backend string `toml:"backend" json:"backend"`
	// Encrypt seals stored values with XChaCha20-Poly1305.
	Encrypt bool `toml:"encrypt" json:"encrypt"`
	// Passphrase derives the sealing key. When empty a random key file in
	// DataDir is used. Prefer SAWMON_STORAGE_PASSPHRASE over the file.
	Passphrase string `toml:"passphrase,omitempty" json:"passphrase,omitempty"`
}

// AuthConfig controls local sign-in throttling.
type AuthConfig struct {
	// MaxAttempts is the number of rejected sign-ins before the account
	// is locked on this machine. 0 turns the lockout off.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`
	// LockoutSecs is how long a lockout lasts.
	LockoutSecs int `toml:"lockout_secs" json:"lockout_secs"`
}

// AuditConfig controls the local audit trail of session and access events.
type AuditConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxSizeMB rotates the log once it grows past this size.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Format is text or json.
	Format string `toml:"format" json:"format"`
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8000",
			TimeoutSecs:       30,
			MaxRetries:        3,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		Auth: AuthConfig{
			MaxAttempts: 5,
			LockoutSecs: 900,
		},
		Audit: AuditConfig{
			Enabled:   true,
			MaxSizeMB: 10,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sawmon configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sawmon"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory for stored data, resolving the default.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return ConfigDir()
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ensureSecurePermissions tightens a config file to 0600. The file may
// hold the storage passphrase.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads config.toml, then config.json, then falls back to defaults.
// Environment overrides are applied last. A file that exists but cannot
// be decoded is reported along with the defaults.
func Load() (*Config, error) {
	var loadErr error

	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err == nil {
			return cfg, nil
		}
		if loadErr == nil {
			loadErr = err
		}
	}

	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath loads one file over the defaults; the format follows the
// extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides and validates.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	fillDefaults(c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadTOML decodes a TOML file into cfg and fills missing values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file into cfg and fills missing values.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in missing values. Zero RequestsPerSecond is a valid
// setting and is left alone.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = defaults.API.MaxRetries
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = defaults.API.Burst
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	if cfg.Auth.LockoutSecs == 0 {
		cfg.Auth.LockoutSecs = defaults.Auth.LockoutSecs
	}
	if cfg.Audit.MaxSizeMB == 0 {
		cfg.Audit.MaxSizeMB = defaults.Audit.MaxSizeMB
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# sawmon configuration file\n")
	buf.WriteString("# Generated by sawmon - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON, atomically with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every setting and returns all problems at once as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("%d out of range, must be 1-600", c.API.TimeoutSecs),
		})
	}
	if c.API.MaxRetries < 1 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.max_retries",
			Message: fmt.Sprintf("%d out of range, must be 1-10", c.API.MaxRetries),
		})
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.requests_per_second",
			Message: "must not be negative",
		})
	}
	if c.API.Burst < 1 {
		errs = append(errs, ValidationError{
			Field:   "api.burst",
			Message: "must be at least 1",
		})
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendFile:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, file", c.Storage.Backend),
		})
	}

	if c.Auth.MaxAttempts < 0 || c.Auth.MaxAttempts > 100 {
		errs = append(errs, ValidationError{
			Field:   "auth.max_attempts",
			Message: fmt.Sprintf("%d out of range, must be 0-100", c.Auth.MaxAttempts),
		})
	}
	if c.Auth.LockoutSecs < 1 || c.Auth.LockoutSecs > 86400 {
		errs = append(errs, ValidationError{
			Field:   "auth.lockout_secs",
			Message: fmt.Sprintf("%d out of range, must be 1-86400", c.Auth.LockoutSecs),
		})
	}
	if c.Audit.MaxSizeMB < 1 || c.Audit.MaxSizeMB > 1024 {
		errs = append(errs, ValidationError{
			Field:   "audit.max_size_mb",
			Message: fmt.Sprintf("%d out of range, must be 1-1024", c.Audit.MaxSizeMB),
		})
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variables on top of the file:
//   - SAWMON_API_URL: api.base_url
//   - SAWMON_DATA_DIR: storage.data_dir
//   - SAWMON_STORAGE_BACKEND: storage.backend
//   - SAWMON_STORAGE_PASSPHRASE: storage.passphrase (also turns on encrypt)
//   - SAWMON_LOG_LEVEL: log.level
//   - SAWMON_LOG_FORMAT: log.format
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SAWMON_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SAWMON_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SAWMON_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SAWMON_STORAGE_PASSPHRASE"); v != "" {
		c.Storage.Passphrase = v
		c.Storage.Encrypt = true
	}
	if v := os.Getenv("SAWMON_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SAWMON_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dot notation, e.g. "api.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dot notation. Strings are converted to the
// field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a setting", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName turns snake_case or kebab-case into a Go field name.
// Acronyms are matched case-insensitively by the caller.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"api.base_url",
		"api.timeout_secs",
		"api.max_retries",
		"api.requests_per_second",
		"api.burst",
		"storage.data_dir",
		"storage.backend",
		"storage.encrypt",
		"storage.passphrase",
		"auth.max_attempts",
		"auth.lockout_secs",
		"audit.enabled",
		"audit.max_size_mb",
		"log.level",
		"log.format",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with the passphrase redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Storage.Passphrase != "" {
		safe.Storage.Passphrase = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
