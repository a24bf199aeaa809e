// Package config loads the daemon configuration from a YAML file and
// supplies defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SyncMode selects how the two OS selection buffers are kept in sync.
type SyncMode string

const (
	// SyncDisabled leaves the primary selection untouched; only the
	// copy/paste buffer is observed.
	SyncDisabled SyncMode = "disabled"
	// SyncToClipboard mirrors primary-selection text to the copy/paste buffer.
	SyncToClipboard SyncMode = "to-clipboard"
	// SyncToPrimary mirrors copy/paste text to the primary selection.
	SyncToPrimary SyncMode = "to-primary"
	// SyncBoth mirrors both ways.
	SyncBoth SyncMode = "both"
)

func (m SyncMode) Valid() bool {
	switch m {
	case SyncDisabled, SyncToClipboard, SyncToPrimary, SyncBoth:
		return true
	}
	return false
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "72h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// RuleConditions are the match conditions of one action rule. A rule
// must specify at least one of them.
type RuleConditions struct {
	SourceApp        string `yaml:"source_app,omitempty"`
	ContentRegex     string `yaml:"content_regex,omitempty"`
	SourceTitleRegex string `yaml:"source_title_regex,omitempty"`
}

// RuleActions are the effects of one action rule.
type RuleActions struct {
	TTL            Duration `yaml:"ttl,omitempty"`
	Command        []string `yaml:"command,omitempty"`
	CommandTimeout Duration `yaml:"command_timeout,omitempty"`
}

// RuleDefinition is the uncompiled file shape of an action rule.
type RuleDefinition struct {
	Name       string         `yaml:"name"`
	Conditions RuleConditions `yaml:"conditions"`
	Actions    RuleActions    `yaml:"actions"`
}

type Config struct {
	DBPath          string           `yaml:"db_path,omitempty"`
	MaxHistory      int              `yaml:"max_history"`
	WatchIntervalMS int              `yaml:"watch_interval_ms"`
	MaxEntrySizeKB  int              `yaml:"max_entry_size_kb"`
	MaxAge          Duration         `yaml:"max_age,omitempty"`
	PruneInterval   Duration         `yaml:"prune_interval,omitempty"`
	SyncMode        SyncMode         `yaml:"sync_mode"`
	CommandTimeout  Duration         `yaml:"command_timeout"`
	Rules           []RuleDefinition `yaml:"rules,omitempty"`
}

func Default() *Config {
	return &Config{
		MaxHistory:      500,
		WatchIntervalMS: 500,
		MaxEntrySizeKB:  51200, // 50MB
		SyncMode:        SyncDisabled,
		CommandTimeout:  Duration(5 * time.Second),
	}
}

// Load reads the config at path, falling back to defaults when the
// file does not exist. Out-of-range values are clamped to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if !cfg.SyncMode.Valid() {
		return nil, fmt.Errorf("invalid sync_mode %q (want disabled, to-clipboard, to-primary or both)", cfg.SyncMode)
	}

	cfg.validate()
	return cfg, nil
}

func (c *Config) validate() {
	if c.MaxHistory <= 0 {
		c.MaxHistory = 500
	}
	if c.WatchIntervalMS <= 0 {
		c.WatchIntervalMS = 500
	}
	if c.MaxEntrySizeKB <= 0 {
		c.MaxEntrySizeKB = 51200
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = Duration(5 * time.Second)
	}
}

// WatchInterval returns the poll interval between ticks.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMS) * time.Millisecond
}

// MaxEntrySize returns the entry size ceiling in bytes.
func (c *Config) MaxEntrySize() int {
	return c.MaxEntrySizeKB * 1024
}

// EffectivePruneInterval derives the maintenance interval when none is
// configured: 120 poll intervals, clamped to [30s, 5m].
func (c *Config) EffectivePruneInterval() time.Duration {
	if c.PruneInterval > 0 {
		return c.PruneInterval.Std()
	}
	derived := c.WatchInterval() * 120
	if derived < 30*time.Second {
		return 30 * time.Second
	}
	if derived > 5*time.Minute {
		return 5 * time.Minute
	}
	return derived
}

// Dir returns the configuration directory, creating it if needed.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	dir := filepath.Join(base, "clio")
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// DataDir returns the data directory (database location), creating it
// if needed.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		dir := filepath.Join(xdg, "clio")
		_ = os.MkdirAll(dir, 0o755)
		return dir
	}
	dir := filepath.Join(os.Getenv("HOME"), ".local", "share", "clio")
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// DatabasePath resolves the SQLite file path, honoring db_path.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(DataDir(), "history.db")
}
