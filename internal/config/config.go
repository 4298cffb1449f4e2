// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/gpureset/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete gpureset configuration.
type Config struct {
	// Reset controls which strategies run and in what order.
	Reset ResetConfig `toml:"reset" json:"reset"`

	// Runtime lists CUDA runtime library candidates.
	Runtime LibraryConfig `toml:"runtime" json:"runtime"`

	// Driver lists CUDA driver library candidates.
	Driver LibraryConfig `toml:"driver" json:"driver"`

	// Devcon configures the device-control tool.
	Devcon DevconConfig `toml:"devcon" json:"devcon"`

	// Log configures the structured log file.
	Log LogConfig `toml:"log" json:"log"`

	// History configures the optional run history database.
	History HistoryConfig `toml:"history" json:"history"`

	// UI configures the interactive shell.
	UI UIConfig `toml:"ui" json:"ui"`
}

// ResetConfig contains strategy selection.
type ResetConfig struct {
	// Order lists strategy IDs in execution order.
	Order []string `toml:"order" json:"order"`
}

// LibraryConfig lists shared library names, preferred first.
// Empty means the platform default list.
type LibraryConfig struct {
	Libraries []string `toml:"libraries" json:"libraries"`
}

// DevconConfig contains device-control tool settings.
type DevconConfig struct {
	// Tool is the executable name or path.
	Tool string `toml:"tool" json:"tool"`
	// HardwareID identifies the GPU to toggle.
	HardwareID string `toml:"hardware_id" json:"hardware_id"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level"`
	// File is the log path (empty = ~/.gpureset/gpureset.log).
	File string `toml:"file" json:"file"`
}

// HistoryConfig contains run history settings.
type HistoryConfig struct {
	// Enabled records every Run in SQLite.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Path is the database path (empty = ~/.gpureset/history.db).
	Path string `toml:"path" json:"path"`
}

// UIConfig contains shell settings.
type UIConfig struct {
	// NoColor disables colored output.
	NoColor bool `toml:"no_color" json:"no_color"`
	// ConfirmRun asks before a CLI run starts.
	ConfirmRun bool `toml:"confirm_run" json:"confirm_run"`
	// ShowGPU probes nvidia-smi for the header line.
	ShowGPU bool `toml:"show_gpu" json:"show_gpu"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultOrder is the strategy order used when none is configured.
var DefaultOrder = []string{"runtime", "driver-context", "primary-context", "nvml", "hotkey", "devcon"}

// DefaultHardwareID is the device toggled unless configured otherwise.
const DefaultHardwareID = `PCI\VEN_10DE&DEV_1C8C&SUBSYS_07981028`

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Reset: ResetConfig{
			Order: append([]string(nil), DefaultOrder...),
		},
		Devcon: DevconConfig{
			Tool:       "devcon",
			HardwareID: DefaultHardwareID,
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			ConfirmRun: true,
			ShowGPU:    true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "GPURESET_CONFIG"

// Dir returns the gpureset data directory (~/.gpureset).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".gpureset"), nil
}

// Path returns the config file path, honouring GPURESET_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogPath returns the configured log path or the default.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gpureset.log"), nil
}

// HistoryPath returns the configured history database path or the default.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config from Path. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config at path, applies environment overrides and
// validates the result. A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes the file at path over the defaults, without environment
// overrides or validation. A missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}
	return cfg, nil
}

const fileHeader = `# gpureset configuration file
#
# [reset] order lists strategy IDs: runtime, driver-context,
# primary-context, nvml, hotkey, devcon.
# Empty library lists use the platform defaults.

`

// Encode renders the config as TOML with the file header.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the config to path atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS, OVERRIDES, VALIDATION
// =============================================================================

// SetDefaults fills fields that were left empty.
func (c *Config) SetDefaults() {
	if len(c.Reset.Order) == 0 {
		c.Reset.Order = append([]string(nil), DefaultOrder...)
	}
	if c.Devcon.Tool == "" {
		c.Devcon.Tool = "devcon"
	}
	if c.Devcon.HardwareID == "" {
		c.Devcon.HardwareID = DefaultHardwareID
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - GPURESET_LOG_LEVEL: overrides log.level
//   - GPURESET_LOG_FILE: overrides log.file
//   - GPURESET_DEVCON: overrides devcon.tool
//   - GPURESET_HARDWARE_ID: overrides devcon.hardware_id
//   - GPURESET_HISTORY: overrides history.enabled
//   - GPURESET_ORDER: overrides reset.order (comma-separated)
//   - NO_COLOR: sets ui.no_color
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("GPURESET_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GPURESET_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("GPURESET_DEVCON"); v != "" {
		c.Devcon.Tool = v
	}
	if v := os.Getenv("GPURESET_HARDWARE_ID"); v != "" {
		c.Devcon.HardwareID = v
	}
	if v := os.Getenv("GPURESET_HISTORY"); v != "" {
		c.History.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("GPURESET_ORDER"); v != "" {
		c.Reset.Order = splitList(v)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.UI.NoColor = true
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidationError represents a configuration validation error.
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks field values. Strategy IDs are checked by the caller
// that knows the registered strategies; here only duplicates are rejected.
func (c *Config) Validate() error {
	var errs ValidateErrors

	seen := make(map[string]bool, len(c.Reset.Order))
	for _, id := range c.Reset.Order {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, ValidationError{Field: "reset.order", Message: "empty strategy id"})
			continue
		}
		if seen[id] {
			errs = append(errs, ValidationError{Field: "reset.order", Message: fmt.Sprintf("strategy '%s' listed twice", id)})
		}
		seen[id] = true
	}

	for field, libs := range map[string][]string{"runtime.libraries": c.Runtime.Libraries, "driver.libraries": c.Driver.Libraries} {
		for _, lib := range libs {
			if strings.TrimSpace(lib) == "" {
				errs = append(errs, ValidationError{Field: field, Message: "empty library name"})
			}
		}
	}

	if strings.ContainsAny(c.Devcon.HardwareID, " \t\n") {
		errs = append(errs, ValidationError{Field: "devcon.hardware_id", Message: "must not contain whitespace"})
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Keys returns every settable key in dot notation, in file order.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tagName(section)+"."+tagName(section.Type.Field(j)))
		}
	}
	return keys
}

// Get retrieves a value by its TOML key, e.g. "devcon.tool".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field named by key. Lists are comma-separated.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected a boolean, got %q", key, value)
		}
		field.SetBool(b)
	case reflect.Slice:
		field.Set(reflect.ValueOf(splitList(value)))
	default:
		return fmt.Errorf("%s: unsupported field type %s", key, field.Kind())
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return reflect.Value{}, fmt.Errorf("key %q must be section.name", key)
	}
	v := reflect.ValueOf(c).Elem()
	sv, ok := fieldByTag(v, section)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown section: %s", section)
	}
	fv, ok := fieldByTag(sv, name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown field: %s", key)
	}
	return fv, nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	return name
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	out := *c
	out.Reset.Order = append([]string(nil), c.Reset.Order...)
	out.Runtime.Libraries = append([]string(nil), c.Runtime.Libraries...)
	out.Driver.Libraries = append([]string(nil), c.Driver.Libraries...)
	return &out
}
