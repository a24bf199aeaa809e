package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 500, cfg.MaxHistory)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchInterval())
	assert.Equal(t, 50*1024*1024, cfg.MaxEntrySize())
	assert.Equal(t, SyncDisabled, cfg.SyncMode)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout.Std())
	assert.Zero(t, cfg.MaxAge)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "max_history: 42\nsync_mode: both\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxHistory)
	assert.Equal(t, SyncBoth, cfg.SyncMode)
	assert.Equal(t, 500, cfg.WatchIntervalMS)
	assert.Equal(t, 51200, cfg.MaxEntrySizeKB)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
db_path: /tmp/test.db
max_history: 100
watch_interval_ms: 250
max_entry_size_kb: 1024
max_age: 72h
prune_interval: 1m
sync_mode: to-clipboard
command_timeout: 10s
rules:
  - name: passwords
    conditions:
      source_app: KeePassXC
    actions:
      ttl: 60s
  - name: trim
    conditions:
      content_regex: ".+"
    actions:
      command: ["tr", "-d", "\n"]
      command_timeout: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath())
	assert.Equal(t, 100, cfg.MaxHistory)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchInterval())
	assert.Equal(t, 1024*1024, cfg.MaxEntrySize())
	assert.Equal(t, 72*time.Hour, cfg.MaxAge.Std())
	assert.Equal(t, time.Minute, cfg.EffectivePruneInterval())
	assert.Equal(t, SyncToClipboard, cfg.SyncMode)

	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "passwords", cfg.Rules[0].Name)
	assert.Equal(t, time.Minute, cfg.Rules[0].Actions.TTL.Std())
	assert.Equal(t, []string{"tr", "-d", "\n"}, cfg.Rules[1].Actions.Command)
	assert.Equal(t, 2*time.Second, cfg.Rules[1].Actions.CommandTimeout.Std())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "max_history: [not an int\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidSyncMode(t *testing.T) {
	path := writeConfig(t, "sync_mode: sideways\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, "max_age: eventually\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadClampsOutOfRangeValues(t *testing.T) {
	path := writeConfig(t, "max_history: -5\nwatch_interval_ms: 0\nmax_entry_size_kb: -1\nsync_mode: disabled\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxHistory)
	assert.Equal(t, 500, cfg.WatchIntervalMS)
	assert.Equal(t, 51200, cfg.MaxEntrySizeKB)
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := yaml.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "1m30s\n", string(out))

	var back Duration
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, d, back)
}

func TestEffectivePruneIntervalDerivation(t *testing.T) {
	cfg := Default()

	// 500ms * 120 = 60s.
	assert.Equal(t, time.Minute, cfg.EffectivePruneInterval())

	cfg.WatchIntervalMS = 100 // 12s, below floor
	assert.Equal(t, 30*time.Second, cfg.EffectivePruneInterval())

	cfg.WatchIntervalMS = 10000 // 20m, above ceiling
	assert.Equal(t, 5*time.Minute, cfg.EffectivePruneInterval())

	cfg.PruneInterval = Duration(45 * time.Second)
	assert.Equal(t, 45*time.Second, cfg.EffectivePruneInterval())
}

func TestDatabasePathDefault(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	cfg := Default()
	assert.Equal(t, filepath.Base(cfg.DatabasePath()), "history.db")
}
